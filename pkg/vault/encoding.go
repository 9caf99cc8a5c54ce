package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Serialize encodes the store as base64 text of a JSON array in store order.
func (s *Store) Serialize() (string, error) {
	s.mu.RLock()
	records := s.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	s.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("failed to marshal records: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Restore replaces the store content with text produced by Serialize.
//
// Restore never fails: empty or malformed text yields an empty store and a
// logged warning. Records with empty required fields or repeated ids are
// dropped. It reports how many records were loaded.
func (s *Store) Restore(text string) int {
	records := s.decode(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.reindex()
	return len(records)
}

func (s *Store) decode(text string) []Record {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		s.logger.Warn("stored vault is not valid base64, starting empty", zap.Error(err))
		return nil
	}

	var raw []Record
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("stored vault is not a valid record list, starting empty", zap.Error(err))
		return nil
	}

	records := make([]Record, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		if r.ID == "" {
			s.logger.Warn("dropping stored record without id", zap.Int("position", i))
			continue
		}
		if missing := r.Fields.Missing(); len(missing) > 0 {
			s.logger.Warn("dropping stored record with missing fields",
				zap.String("id", r.ID), zap.Strings("missing", missing))
			continue
		}
		if _, dup := seen[r.ID]; dup {
			s.logger.Warn("dropping stored record with duplicate id", zap.String("id", r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
		records = append(records, r)
	}
	return records
}
