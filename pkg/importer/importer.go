// Package importer loads candidate records from export files and merges them
// into a vault store.
//
// VaultX exports (JSON, CSV, xlsx) are classified by file extension and
// decoded by pkg/codec. Exports of other password managers are read by the
// parsers in this package and produce the same candidate shape.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/vault"
)

// Source identifies the application that produced an import file.
type Source string

const (
	SourceVaultX    Source = "vaultx"
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// Import errors
var (
	ErrNoEntries         = errors.New("no valid entries found")
	ErrUnsupportedSource = errors.New("unsupported import source")
)

// Parser decodes an export of another password manager.
type Parser interface {
	Parse(data []byte) (*codec.Decoded, error)
	Source() Source
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(SourceVaultX),
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}

// ParseSource parses a source name; the empty string selects SourceVaultX.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if s == "" {
		return SourceVaultX, nil
	}
	for _, valid := range ValidSources() {
		if string(s) == valid {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be one of %v)", ErrUnsupportedSource, name, ValidSources())
}

// Batch is a decoded import file, ready to merge.
type Batch struct {
	Path       string
	Source     Source
	Format     codec.Format
	Candidates []vault.Fields
	Skipped    []codec.SkippedRow
}

// Label names the batch format for messages, e.g. "CSV" or "Bitwarden".
func (b *Batch) Label() string {
	switch b.Source {
	case Source1Password:
		return "1Password"
	case SourceBitwarden:
		return "Bitwarden"
	case SourceLastPass:
		return "LastPass"
	}
	if b.Format == codec.FormatXLSX {
		return "Excel"
	}
	return strings.ToUpper(string(b.Format))
}

// Load reads and decodes the file at path.
//
// VaultX files are classified by extension before anything is read, so an
// unrecognized extension fails with a *codec.FormatError. A file that decodes
// to no candidates fails with ErrNoEntries.
func Load(ctx context.Context, path string, source Source) (*Batch, error) {
	if source == "" {
		source = SourceVaultX
	}
	b := &Batch{Path: path, Source: source}

	var decode func([]byte) (*codec.Decoded, error)
	if source == SourceVaultX {
		format, err := codec.FormatFromFilename(path)
		if err != nil {
			return nil, err
		}
		c, err := codec.ForFormat(format)
		if err != nil {
			return nil, err
		}
		b.Format = format
		decode = c.Decode
	} else {
		p, err := GetParser(source)
		if err != nil {
			return nil, err
		}
		decode = p.Parse
	}

	data, err := ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	decoded, err := decode(data)
	if err != nil {
		return nil, err
	}
	if len(decoded.Candidates) == 0 {
		return nil, fmt.Errorf("%w in %s file", ErrNoEntries, b.Label())
	}

	b.Candidates = decoded.Candidates
	b.Skipped = decoded.Skipped
	return b, nil
}

// extractHostname extracts the hostname from a URL.
func extractHostname(urlStr string) string {
	// Simple hostname extraction without full URL parsing
	urlStr = strings.TrimPrefix(urlStr, "https://")
	urlStr = strings.TrimPrefix(urlStr, "http://")

	if idx := strings.Index(urlStr, "/"); idx != -1 {
		urlStr = urlStr[:idx]
	}
	if idx := strings.Index(urlStr, ":"); idx != -1 {
		urlStr = urlStr[:idx]
	}

	return strings.TrimPrefix(urlStr, "www.")
}

// siteName picks the record site from an item name, falling back to the URL host.
func siteName(name, url string) string {
	if name = normalizeValue(name); name != "" {
		return name
	}
	return extractHostname(normalizeValue(url))
}

// DecodeHTMLEntities decodes common HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&apos;", "'")
	return s
}

// normalizeValue trims whitespace and normalizes Unicode to NFC.
func normalizeValue(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// skipReason describes a candidate missing required fields.
func skipReason(f vault.Fields) string {
	return "missing " + strings.Join(f.Missing(), ", ")
}
