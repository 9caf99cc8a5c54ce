package codec

import (
	"errors"
	"fmt"
)

// Codec errors
var (
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("codec: invalid import format")

	// ErrUnsupportedFormat indicates a file extension that no codec handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrLegacyWorkbook indicates a binary .xls workbook; only .xlsx is read.
	ErrLegacyWorkbook = fmt.Errorf("%w: legacy .xls workbooks cannot be read, save the file as .xlsx", ErrUnsupportedFormat)

	// ErrMissingColumns indicates the site, username or password column could not be resolved.
	ErrMissingColumns = errors.New("required columns not found")

	// ErrMissingEntries indicates a JSON export without an entries array.
	ErrMissingEntries = errors.New(`missing "entries" array`)

	// ErrEmptyFile indicates a file with no header or no data rows.
	ErrEmptyFile = errors.New("file appears to be empty")
)

// FormatError reports a payload that cannot be imported as a whole.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("codec: %v", e.Err)
	}
	return fmt.Sprintf("codec: invalid %s file: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is matches ErrFormat in addition to the wrapped error.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErr(f Format, err error) error {
	return &FormatError{Format: f, Err: err}
}
