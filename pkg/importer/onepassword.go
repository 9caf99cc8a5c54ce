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

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names (header-based parsing).
const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColArchived = "Archived"
	op1ColNotes    = "Notes"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data. Archived items are skipped.
func (p *OnePasswordParser) Parse(data []byte) (*codec.Decoded, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &codec.FormatError{Err: fmt.Errorf("failed to read 1Password CSV header: %w", err)}
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}
	if _, ok := colIndex[op1ColTitle]; !ok {
		return nil, &codec.FormatError{Err: fmt.Errorf("%w: %s", codec.ErrMissingColumns, op1ColTitle)}
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
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		if strings.EqualFold(getValue(op1ColArchived), "true") {
			result.Skipped = append(result.Skipped, codec.SkippedRow{Row: rowNum, Reason: "archived"})
			continue
		}

		f := vault.Fields{
			Site:     siteName(getValue(op1ColTitle), getValue(op1ColWebsite)),
			Username: getValue(op1ColUsername),
			Password: getValue(op1ColPassword),
			Notes:    getValue(op1ColNotes),
		}
		if len(f.Missing()) > 0 {
			result.Skipped = append(result.Skipped, codec.SkippedRow{Row: rowNum, Reason: skipReason(f)})
			continue
		}
		result.Candidates = append(result.Candidates, f)
	}

	return result, nil
}
