package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/vaultx/pkg/vault"
)

// ReuseGroup is a set of records sharing one password.
type ReuseGroup struct {
	// RecordIDs and Sites are empty unless records may be shown.
	RecordIDs []string `json:"record_ids,omitempty"`
	Sites     []string `json:"sites,omitempty"`
	Count     int      `json:"count"`
}

// FindReused groups records by password.
// Passwords are compared by HMAC-SHA256 under a key that lives only as long
// as the Calculator, so the digests cannot be used for offline guessing.
// Groups are sorted by count, largest first; a limit of 0 means no limit.
func (c *Calculator) FindReused(records []vault.Record, includeRecords bool, limit int) ([]ReuseGroup, error) {
	if err := c.ensureKey(); err != nil {
		return nil, err
	}

	byHash := make(map[string][]vault.Record)
	var order []string
	for _, r := range records {
		value := normalizeValue(r.Password)
		if value == "" {
			continue
		}
		h := computeValueHash(value, c.hmacKey)
		if _, ok := byHash[h]; !ok {
			order = append(order, h)
		}
		byHash[h] = append(byHash[h], r)
	}

	var groups []ReuseGroup
	for _, h := range order {
		members := byHash[h]
		if len(members) <= 1 {
			continue
		}
		group := ReuseGroup{Count: len(members)}
		if includeRecords {
			for _, r := range members {
				group.RecordIDs = append(group.RecordIDs, r.ID)
				group.Sites = append(group.Sites, r.Site)
			}
		}
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// uniqueCount returns the number of distinct non-empty passwords and the
// number of non-empty passwords.
func (c *Calculator) uniqueCount(records []vault.Record) (unique, total int, err error) {
	if err := c.ensureKey(); err != nil {
		return 0, 0, err
	}
	seen := make(map[string]struct{})
	for _, r := range records {
		value := normalizeValue(r.Password)
		if value == "" {
			continue
		}
		total++
		seen[computeValueHash(value, c.hmacKey)] = struct{}{}
	}
	return len(seen), total, nil
}

func (c *Calculator) ensureKey() error {
	if c.hmacKey != nil {
		return nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	c.hmacKey = key
	return nil
}

// computeValueHash computes HMAC-SHA256 of a value with the session key.
func computeValueHash(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeValue normalizes a password for comparison: the store already
// trims, so only Unicode NFC is applied.
func normalizeValue(value string) string {
	return norm.NFC.String(value)
}
