package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/vault"
)

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names (header-based parsing).
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColExtra    = "extra"
	lpColName     = "name"
)

// lpSecureNoteURL marks secure notes, which have no credentials.
const lpSecureNoteURL = "http://sn"

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte) (*codec.Decoded, error) {
	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true // Handle malformed exports
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &codec.FormatError{Err: fmt.Errorf("failed to read LastPass CSV header: %w", err)}
	}

	// LastPass uses lowercase column names
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{lpColName, lpColUsername, lpColPassword} {
		if _, ok := colIndex[col]; !ok {
			return nil, &codec.FormatError{Err: fmt.Errorf("%w: %s", codec.ErrMissingColumns, col)}
		}
	}

	result := &codec.Decoded{}
	rowNum := 1
	for {
		rowNum++
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, codec.SkippedRow{Row: rowNum, Reason: err.Error()})
			continue
		}

		getValue := func(col string) string {
			if idx, ok := colIndex[col]; ok && idx < len(row) {
				return DecodeHTMLEntities(strings.TrimSpace(row[idx]))
			}
			return ""
		}

		url := getValue(lpColURL)
		if url == lpSecureNoteURL {
			result.Skipped = append(result.Skipped, codec.SkippedRow{Row: rowNum, Reason: "secure note"})
			continue
		}

		f := vault.Fields{
			Site:     siteName(getValue(lpColName), url),
			Username: getValue(lpColUsername),
			Password: getValue(lpColPassword),
			Notes:    getValue(lpColExtra),
		}
		if len(f.Missing()) > 0 {
			result.Skipped = append(result.Skipped, codec.SkippedRow{Row: rowNum, Reason: skipReason(f)})
			continue
		}
		result.Candidates = append(result.Candidates, f)
	}

	return result, nil
}
