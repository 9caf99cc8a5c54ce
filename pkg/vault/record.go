package vault

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Required field names as reported by ValidationError.
const (
	FieldSite     = "site"
	FieldUsername = "username"
	FieldPassword = "password"
)

// Fields is the editable part of a record.
type Fields struct {
	Site     string `json:"site"`
	Username string `json:"username"`
	Password string `json:"password"`
	Notes    string `json:"notes"`
}

// Record is a stored credential entry.
type Record struct {
	ID string `json:"id"`
	Fields
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Trimmed returns f with surrounding whitespace removed from every field.
func (f Fields) Trimmed() Fields {
	return Fields{
		Site:     strings.TrimSpace(f.Site),
		Username: strings.TrimSpace(f.Username),
		Password: strings.TrimSpace(f.Password),
		Notes:    strings.TrimSpace(f.Notes),
	}
}

// Missing returns the names of required fields that are empty after trimming.
func (f Fields) Missing() []string {
	var missing []string
	if strings.TrimSpace(f.Site) == "" {
		missing = append(missing, FieldSite)
	}
	if strings.TrimSpace(f.Username) == "" {
		missing = append(missing, FieldUsername)
	}
	if strings.TrimSpace(f.Password) == "" {
		missing = append(missing, FieldPassword)
	}
	return missing
}

// Validate returns a *ValidationError when any required field is empty.
func (f Fields) Validate() error {
	if missing := f.Missing(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Fold normalizes s for case-insensitive comparison (NFC, then Unicode case folding).
// A Caser is stateful, so one is created per call.
func Fold(s string) string {
	return foldText(strings.TrimSpace(s))
}

// foldText is Fold without trimming.
func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// IdentityKey is the (site, username) pair used for duplicate detection.
type IdentityKey struct {
	Site     string
	Username string
}

// Key returns the folded identity of f.
func (f Fields) Key() IdentityKey {
	return IdentityKey{Site: Fold(f.Site), Username: Fold(f.Username)}
}
