package codec

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/forest6511/vaultx/pkg/vault"
)

// Sheet names of the xlsx export.
const (
	EntriesSheet = "VaultX Passwords"
	InfoSheet    = "Export Info"
)

var entriesColWidths = []float64{20, 25, 20, 30, 12, 12}

// XLSXCodec reads and writes spreadsheet workbooks.
//
// Encode writes the records sheet plus an informational sheet that Decode
// never reads. Decode reads the records sheet when present, else the first
// sheet.
type XLSXCodec struct{}

func (XLSXCodec) Format() Format { return FormatXLSX }

func (XLSXCodec) Encode(records []vault.Record, meta ExportMeta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), EntriesSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, exportHeader)
	for _, r := range records {
		rows = append(rows, exportRow(r))
	}
	if err := writeRows(f, EntriesSheet, rows); err != nil {
		return nil, err
	}
	for i, w := range entriesColWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(EntriesSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if _, err := f.NewSheet(InfoSheet); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}
	info := [][]string{
		{"VaultX Password Export"},
		{""},
		{"Export Date:", meta.ExportedAt.Local().Format("2006-01-02 15:04:05")},
		{"Total Entries:", strconv.Itoa(len(records))},
		{"Version:", meta.Version},
		{""},
		{"Security Notice:"},
		{"This file contains sensitive password information."},
		{"Please store it in a secure location and delete when no longer needed."},
	}
	if err := writeRows(f, InfoSheet, info); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(InfoSheet, "A", "A", 25); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(InfoSheet, "B", "B", 30); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (XLSXCodec) Decode(data []byte) (*Decoded, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, formatErr(FormatXLSX, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, formatErr(FormatXLSX, ErrEmptyFile)
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if name == EntriesSheet {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, formatErr(FormatXLSX, err)
	}
	return decodeRows(FormatXLSX, rows)
}

// writeRows writes rows starting at A1. Cells are written as strings so
// numeric-looking passwords keep their exact text.
func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
