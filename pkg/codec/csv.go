package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/forest6511/vaultx/pkg/vault"
)

// utf8BOM lets spreadsheet tools detect the encoding of exported CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVCodec reads and writes comma-separated files.
//
// Fields containing a comma, quote or line break are quoted with inner quotes
// doubled. On decode, columns are resolved from the header by synonym.
type CSVCodec struct{}

func (CSVCodec) Format() Format { return FormatCSV }

func (CSVCodec) Encode(records []vault.Record, _ ExportMeta) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(exportRow(r)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func (CSVCodec) Decode(data []byte) (*Decoded, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true // Handle malformed exports

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, formatErr(FormatCSV, err)
		}
		rows = append(rows, row)
	}
	return decodeRows(FormatCSV, rows)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateOnly)
}
