package importer

import (
	"encoding/json"
	"fmt"

	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/vault"
)

// BitwardenParser parses Bitwarden JSON export files. Only login items carry
// credentials; notes, cards and identities are skipped.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// bitwardenExport represents the top-level Bitwarden export structure.
type bitwardenExport struct {
	Encrypted bool            `json:"encrypted"`
	Items     []bitwardenItem `json:"items"`
}

type bitwardenItem struct {
	Type  int             `json:"type"`
	Name  string          `json:"name"`
	Notes string          `json:"notes"`
	Login *bitwardenLogin `json:"login"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data.
func (p *BitwardenParser) Parse(data []byte) (*codec.Decoded, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, &codec.FormatError{Err: fmt.Errorf("failed to parse Bitwarden JSON: %w", err)}
	}
	if export.Encrypted {
		return nil, &codec.FormatError{Err: fmt.Errorf("encrypted Bitwarden exports are not supported")}
	}

	result := &codec.Decoded{}
	for i := range export.Items {
		item := &export.Items[i]
		f, reason := p.parseItem(item)
		if reason != "" {
			result.Skipped = append(result.Skipped, codec.SkippedRow{Row: i + 1, Reason: reason})
			continue
		}
		result.Candidates = append(result.Candidates, f)
	}

	return result, nil
}

// parseItem returns the candidate for a login item, or a skip reason.
func (p *BitwardenParser) parseItem(item *bitwardenItem) (vault.Fields, string) {
	switch item.Type {
	case bitwardenTypeLogin:
	case bitwardenTypeSecureNote:
		return vault.Fields{}, "secure note"
	case bitwardenTypeCard:
		return vault.Fields{}, "card"
	case bitwardenTypeIdentity:
		return vault.Fields{}, "identity"
	default:
		return vault.Fields{}, fmt.Sprintf("unsupported item type: %d", item.Type)
	}
	if item.Login == nil {
		return vault.Fields{}, "login item without login data"
	}

	var url string
	for _, u := range item.Login.URIs {
		if u.URI != "" {
			url = u.URI
			break
		}
	}

	f := vault.Fields{
		Site:     siteName(item.Name, url),
		Username: normalizeValue(item.Login.Username),
		Password: item.Login.Password,
		Notes:    item.Notes,
	}
	if len(f.Missing()) > 0 {
		return vault.Fields{}, skipReason(f)
	}
	return f, ""
}
