// Package cli provides shared utilities for CLI commands.
package cli

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/forest6511/vaultx/pkg/vault"
)

// MinRefLength is the shortest id prefix accepted by ResolveRecord.
const MinRefLength = 4

// ErrAmbiguousRef is returned when an id prefix matches more than one record.
var ErrAmbiguousRef = errors.New("reference matches more than one entry")

// ValidatePattern reports a malformed glob pattern.
func ValidatePattern(pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}
	return nil
}

// MatchSite reports whether site matches pattern, ignoring case.
// If the pattern contains glob characters (*?[), it performs glob matching;
// '*' does not cross '/'. Otherwise it performs exact matching.
func MatchSite(pattern, site string) (bool, error) {
	if err := ValidatePattern(pattern); err != nil {
		return false, err
	}
	p, s := vault.Fold(pattern), vault.Fold(site)
	if !strings.ContainsAny(p, "*?[") {
		return p == s, nil
	}
	return path.Match(p, s)
}

// FilterBySite returns the records whose site matches any of patterns, in input order.
// No patterns returns records unchanged.
func FilterBySite(records []vault.Record, patterns []string) ([]vault.Record, error) {
	if len(patterns) == 0 {
		return records, nil
	}
	for _, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			return nil, err
		}
	}

	var result []vault.Record
	for _, r := range records {
		for _, p := range patterns {
			// validated above
			if ok, _ := MatchSite(p, r.Site); ok {
				result = append(result, r)
				break
			}
		}
	}
	return result, nil
}

// ResolveRecord finds the record named by ref: a full id, or an unambiguous id
// prefix of at least MinRefLength characters.
func ResolveRecord(records []vault.Record, ref string) (vault.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return vault.Record{}, errors.New("entry id is required")
	}

	var matches []vault.Record
	for _, r := range records {
		if r.ID == ref {
			return r, nil
		}
		if len(ref) >= MinRefLength && strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return vault.Record{}, &vault.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	default:
		return vault.Record{}, fmt.Errorf("%w: '%s' (%d entries)", ErrAmbiguousRef, ref, len(matches))
	}
}
