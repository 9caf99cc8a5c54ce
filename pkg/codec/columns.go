package codec

import (
	"fmt"
	"strings"

	"github.com/forest6511/vaultx/pkg/vault"
)

// Column synonyms, in priority order. A header matches a synonym when it
// contains it, ignoring case.
var (
	siteSynonyms     = []string{"site", "app", "website", "url"}
	usernameSynonyms = []string{"username", "email", "user", "login"}
	passwordSynonyms = []string{"password", "pass", "pwd"}
	notesSynonyms    = []string{"notes", "note", "comments", "description"}
)

// exportHeader is the header row written by the CSV and xlsx codecs.
var exportHeader = []string{"Site/App", "Username/Email", "Password", "Notes", "Created", "Updated"}

// columns maps record fields to header positions. Notes is -1 when absent.
type columns struct {
	site, username, password, notes int
}

// findColumn returns the first header matching the earliest synonym, or -1.
func findColumn(headers []string, synonyms []string) int {
	for _, name := range synonyms {
		for i, h := range headers {
			if strings.Contains(h, name) {
				return i
			}
		}
	}
	return -1
}

// resolveColumns locates the record columns in a header row.
func resolveColumns(f Format, header []string) (columns, error) {
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cols := columns{
		site:     findColumn(headers, siteSynonyms),
		username: findColumn(headers, usernameSynonyms),
		password: findColumn(headers, passwordSynonyms),
		notes:    findColumn(headers, notesSynonyms),
	}

	var missing []string
	if cols.site < 0 {
		missing = append(missing, vault.FieldSite)
	}
	if cols.username < 0 {
		missing = append(missing, vault.FieldUsername)
	}
	if cols.password < 0 {
		missing = append(missing, vault.FieldPassword)
	}
	if len(missing) > 0 {
		return columns{}, formatErr(f, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", ")))
	}
	return cols, nil
}

// candidate builds a trimmed candidate from a row. ok is false when a
// required field is empty.
func (c columns) candidate(row []string) (vault.Fields, bool) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	f := vault.Fields{
		Site:     cell(c.site),
		Username: cell(c.username),
		Password: cell(c.password),
		Notes:    cell(c.notes),
	}
	return f, len(f.Missing()) == 0
}

// decodeRows turns a header row plus data rows into candidates.
// rows[0] is the header; row numbers in Skipped are 1-based file rows.
func decodeRows(f Format, rows [][]string) (*Decoded, error) {
	if len(rows) < 2 {
		return nil, formatErr(f, ErrEmptyFile)
	}

	cols, err := resolveColumns(f, rows[0])
	if err != nil {
		return nil, err
	}

	out := &Decoded{Candidates: make([]vault.Fields, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		cand, ok := cols.candidate(row)
		if !ok {
			out.Skipped = append(out.Skipped, SkippedRow{
				Row:    i + 2,
				Reason: "missing " + strings.Join(cand.Missing(), ", "),
			})
			continue
		}
		out.Candidates = append(out.Candidates, cand)
	}
	return out, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// exportRow formats a record as an export row.
func exportRow(r vault.Record) []string {
	return []string{
		r.Site,
		r.Username,
		r.Password,
		r.Notes,
		formatDate(r.CreatedAt),
		formatDate(r.UpdatedAt),
	}
}
