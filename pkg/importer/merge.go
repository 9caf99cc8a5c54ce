package importer

import (
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/pkg/vault"
)

// MergeReport counts the outcome of a merge.
type MergeReport struct {
	// Imported candidates were added to the store.
	Imported int `json:"imported"`
	// Skipped candidates matched an existing record, or an earlier
	// candidate of the same batch, by site and username.
	Skipped int `json:"skipped"`
	// Excluded candidates lacked a site, username or password.
	Excluded int `json:"excluded"`
}

// Total returns the number of candidates considered.
func (r MergeReport) Total() int {
	return r.Imported + r.Skipped + r.Excluded
}

type mergeOptions struct {
	logger *zap.Logger
}

// MergeOption configures Merge.
type MergeOption func(*mergeOptions)

// WithLogger sets the logger for the merge summary.
func WithLogger(l *zap.Logger) MergeOption {
	return func(o *mergeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Merge inserts the candidates that are not already in store.
//
// A candidate is a duplicate when its site and username both equal, ignoring
// case, those of an existing record or of a candidate accepted earlier in the
// batch. Duplicates are skipped and never update the existing record.
// Accepted candidates get fresh ids and timestamps and are inserted at the
// front of the store in candidate order. Candidates are not modified.
//
// The insert is all or nothing: on error the store is unchanged.
func Merge(candidates []vault.Fields, store *vault.Store, opts ...MergeOption) (MergeReport, error) {
	o := mergeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	existing := store.Records()
	seen := make(map[vault.IdentityKey]struct{}, len(existing)+len(candidates))
	for _, r := range existing {
		seen[r.Key()] = struct{}{}
	}

	var report MergeReport
	accepted := make([]vault.Record, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Missing()) > 0 {
			report.Excluded++
			continue
		}
		key := c.Key()
		if _, dup := seen[key]; dup {
			report.Skipped++
			continue
		}
		seen[key] = struct{}{}
		accepted = append(accepted, store.NewRecord(c))
	}

	if err := store.Prepend(accepted...); err != nil {
		return MergeReport{}, err
	}
	report.Imported = len(accepted)

	o.logger.Info("merged import batch",
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("excluded", report.Excluded))
	return report, nil
}
