// Package codec converts vault records to and from the VaultX export formats.
//
// Three formats are supported: a JSON envelope, CSV with a byte-order mark,
// and an xlsx workbook. Decoding produces candidate records only; duplicate
// handling and id assignment belong to the importer.
package codec

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest6511/vaultx/pkg/vault"
)

// Version is written into every export.
const Version = "2.0.0"

// Format identifies an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Ext returns the file extension for the format, without a dot.
func (f Format) Ext() string {
	return string(f)
}

// ExportMeta describes an export run.
type ExportMeta struct {
	ExportedAt time.Time
	Version    string
}

// NewExportMeta returns metadata stamped with at and the current Version.
func NewExportMeta(at time.Time) ExportMeta {
	return ExportMeta{ExportedAt: at, Version: Version}
}

// SkippedRow is a data row that was not turned into a candidate.
type SkippedRow struct {
	// Row is the 1-based row (or item) number in the source file.
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Decoded is the result of decoding an import file.
type Decoded struct {
	Candidates []vault.Fields
	Skipped    []SkippedRow
}

// Codec converts between records and one external byte format.
type Codec interface {
	Format() Format
	Encode(records []vault.Record, meta ExportMeta) ([]byte, error)
	Decode(data []byte) (*Decoded, error)
}

// ForFormat returns the codec for f.
func ForFormat(f Format) (Codec, error) {
	switch f {
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatCSV:
		return CSVCodec{}, nil
	case FormatXLSX:
		return XLSXCodec{}, nil
	default:
		return nil, formatErr(f, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f)))
	}
}

// ParseFormat parses a format name as given on the command line.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xls", "excel":
		return FormatXLSX, nil
	default:
		return "", formatErr("", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name))
	}
}

// FormatFromFilename classifies a file by extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return "", formatErr("", fmt.Errorf("%w: %q", ErrLegacyWorkbook, filepath.Base(name)))
	default:
		return "", formatErr("", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Base(name)))
	}
}

// ExportFilename returns the suggested file name, e.g. vaultx-backup-2024-05-01.csv.
func ExportFilename(f Format, at time.Time) string {
	return fmt.Sprintf("vaultx-backup-%s.%s", at.Format(time.DateOnly), f.Ext())
}

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatXLSX}
}
