package codec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/forest6511/vaultx/pkg/vault"
)

// envelope is the JSON export document.
type envelope struct {
	Version    string         `json:"version"`
	ExportedAt string         `json:"exportedAt"`
	Entries    []vault.Record `json:"entries"`
}

// JSONCodec reads and writes the {version, exportedAt, entries} envelope.
type JSONCodec struct{}

func (JSONCodec) Format() Format { return FormatJSON }

func (JSONCodec) Encode(records []vault.Record, meta ExportMeta) ([]byte, error) {
	if records == nil {
		records = []vault.Record{}
	}
	env := envelope{
		Version:    meta.Version,
		ExportedAt: meta.ExportedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Entries:    records,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

// Decode requires an "entries" array. Entries are read leniently: a field
// that is not a string or number decodes as empty, so the entry is excluded
// later by the importer instead of failing the whole file.
func (JSONCodec) Decode(data []byte) (*Decoded, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, formatErr(FormatJSON, err)
	}

	raw, ok := doc["entries"]
	if !ok {
		return nil, formatErr(FormatJSON, ErrMissingEntries)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, formatErr(FormatJSON, ErrMissingEntries)
	}

	out := &Decoded{Candidates: make([]vault.Fields, 0, len(entries))}
	for _, e := range entries {
		var obj map[string]any
		if err := json.Unmarshal(e, &obj); err != nil {
			obj = nil
		}
		out.Candidates = append(out.Candidates, vault.Fields{
			Site:     stringField(obj, "site"),
			Username: stringField(obj, "username"),
			Password: stringField(obj, "password"),
			Notes:    stringField(obj, "notes"),
		})
	}
	return out, nil
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
