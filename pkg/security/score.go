package security

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/forest6511/vaultx/pkg/vault"
)

// DefaultStaleAfter is the age after which an unchanged password is reported.
const DefaultStaleAfter = 365 * 24 * time.Hour

// Component maxima; they sum to 100.
const (
	maxStrengthScore   = 40
	maxUniquenessScore = 40
	maxFreshnessScore  = 20
)

// SecurityScore represents the overall security assessment of a vault.
type SecurityScore struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ScoreComponents `json:"components"`
	// Issues contains the detected security issues.
	Issues []SecurityIssue `json:"issues"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
	// Limited indicates if issues were truncated for the audience.
	Limited bool `json:"limited"`
}

// ScoreComponents breaks down the security score into categories.
type ScoreComponents struct {
	// StrengthScore is based on average password tier (0-40).
	StrengthScore int `json:"strength"`
	// UniquenessScore is based on the share of unique passwords (0-40).
	UniquenessScore int `json:"uniqueness"`
	// FreshnessScore is based on the share of recently updated records (0-20).
	FreshnessScore int `json:"freshness"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakPassword is a password below the medium tier.
	IssueWeakPassword IssueType = "weak"
	// IssueReusedPassword is a password shared by several records.
	IssueReusedPassword IssueType = "reused"
	// IssueStalePassword is a password not changed for a long time.
	IssueStalePassword IssueType = "stale"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityCritical requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// SecurityIssue represents a detected security problem.
type SecurityIssue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	// RecordID and Site identify the affected record, when allowed.
	RecordID string `json:"record_id,omitempty"`
	Site     string `json:"site,omitempty"`
	// RecordIDs is used for reuse issues.
	RecordIDs   []string `json:"record_ids,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Calculator computes security scores for a set of records.
type Calculator struct {
	limits     Limits
	hmacKey    []byte // Session-local key for reuse detection
	staleAfter time.Duration
	now        func() time.Time
}

// NewCalculator creates a calculator for the given audience.
func NewCalculator(audience Audience) *Calculator {
	return &Calculator{
		limits:     GetLimits(audience),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// WithStaleAfter sets the age at which a record is considered stale.
func (c *Calculator) WithStaleAfter(d time.Duration) *Calculator {
	c.staleAfter = d
	return c
}

// WithClock overrides the current time.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CalculateScore computes the full security score for records.
func (c *Calculator) CalculateScore(records []vault.Record) (*SecurityScore, error) {
	if len(records) == 0 {
		return &SecurityScore{
			Overall: 100,
			Components: ScoreComponents{
				StrengthScore:   maxStrengthScore,
				UniquenessScore: maxUniquenessScore,
				FreshnessScore:  maxFreshnessScore,
			},
			Issues:      []SecurityIssue{},
			Suggestions: []string{},
		}, nil
	}

	show := c.limits.ShowRecords
	strengthScore, weakIssues := c.calculateStrengthScore(records, show)
	uniquenessScore, reuseIssues, err := c.calculateUniquenessScore(records, show)
	if err != nil {
		return nil, err
	}
	freshnessScore, staleIssues := c.calculateFreshnessScore(records, show)

	allIssues := make([]SecurityIssue, 0, len(weakIssues)+len(reuseIssues)+len(staleIssues))
	allIssues = append(allIssues, weakIssues...)
	allIssues = append(allIssues, reuseIssues...)
	allIssues = append(allIssues, staleIssues...)

	limited := false
	if c.limits.IsLimited() {
		allIssues, limited = c.applyLimits(allIssues)
	}

	return &SecurityScore{
		Overall: strengthScore + uniquenessScore + freshnessScore,
		Components: ScoreComponents{
			StrengthScore:   strengthScore,
			UniquenessScore: uniquenessScore,
			FreshnessScore:  freshnessScore,
		},
		Issues:      allIssues,
		Suggestions: c.generateSuggestions(allIssues),
		Limited:     limited,
	}, nil
}

// calculateStrengthScore averages tier percentages and reports passwords
// below the medium tier.
func (c *Calculator) calculateStrengthScore(records []vault.Record, show bool) (int, []SecurityIssue) {
	var issues []SecurityIssue
	totalPercent := 0

	for _, r := range records {
		strength := EstimatePassword(r.Password)
		totalPercent += strength.Percentage

		if strength.Tier >= TierMedium {
			continue
		}
		severity := SeverityWarning
		if strength.Tier == TierVeryWeak {
			severity = SeverityCritical
		}
		issue := SecurityIssue{
			Type:        IssueWeakPassword,
			Severity:    severity,
			Description: fmt.Sprintf("Password is %s (%.0f bits)", strength.Tier, strength.EntropyBits),
			Suggestion:  "Generate a longer password with more character classes",
		}
		if show {
			issue.RecordID = r.ID
			issue.Site = r.Site
		}
		issues = append(issues, issue)
	}

	avg := float64(totalPercent) / float64(len(records))
	return int(avg * maxStrengthScore / 100), issues
}

// calculateUniquenessScore scores the share of distinct passwords.
func (c *Calculator) calculateUniquenessScore(records []vault.Record, show bool) (int, []SecurityIssue, error) {
	groups, err := c.FindReused(records, show, 0)
	if err != nil {
		return 0, nil, err
	}
	unique, total, err := c.uniqueCount(records)
	if err != nil {
		return 0, nil, err
	}
	if total == 0 {
		return maxUniquenessScore, nil, nil
	}

	var issues []SecurityIssue
	for _, g := range groups {
		issue := SecurityIssue{
			Type:        IssueReusedPassword,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%d records share the same password", g.Count),
			Suggestion:  "Use a unique password for every site",
		}
		if show {
			issue.RecordIDs = g.RecordIDs
		}
		issues = append(issues, issue)
	}

	return unique * maxUniquenessScore / total, issues, nil
}

// calculateFreshnessScore scores the share of records updated within staleAfter.
func (c *Calculator) calculateFreshnessScore(records []vault.Record, show bool) (int, []SecurityIssue) {
	if c.staleAfter <= 0 {
		return maxFreshnessScore, nil
	}

	now := c.now()
	var issues []SecurityIssue
	fresh := 0
	for _, r := range records {
		if now.Sub(r.UpdatedAt) < c.staleAfter {
			fresh++
			continue
		}
		issue := SecurityIssue{
			Type:        IssueStalePassword,
			Severity:    SeverityInfo,
			Description: "Password last changed " + humanize.RelTime(r.UpdatedAt, now, "ago", "from now"),
			Suggestion:  "Rotate passwords that have not changed in a long time",
		}
		if show {
			issue.RecordID = r.ID
			issue.Site = r.Site
		}
		issues = append(issues, issue)
	}

	return fresh * maxFreshnessScore / len(records), issues
}

// applyLimits truncates issues per the audience limits.
func (c *Calculator) applyLimits(issues []SecurityIssue) ([]SecurityIssue, bool) {
	limited := false
	weakCount := 0
	reusedCount := 0
	var result []SecurityIssue

	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakPassword:
			if c.limits.WeakLimit > 0 && weakCount >= c.limits.WeakLimit {
				limited = true
				continue
			}
			weakCount++
		case IssueReusedPassword:
			if c.limits.ReusedLimit > 0 && reusedCount >= c.limits.ReusedLimit {
				limited = true
				continue
			}
			reusedCount++
		}
		result = append(result, issue)
	}

	return result, limited
}

// generateSuggestions creates actionable recommendations based on issues.
func (c *Calculator) generateSuggestions(issues []SecurityIssue) []string {
	suggestions := []string{}
	hasWeak := false
	hasReused := false
	hasStale := false

	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakPassword:
			hasWeak = true
		case IssueReusedPassword:
			hasReused = true
		case IssueStalePassword:
			hasStale = true
		}
	}

	if hasWeak {
		suggestions = append(suggestions, "Replace weak passwords with generated ones (vaultx generate)")
	}
	if hasReused {
		suggestions = append(suggestions, "Replace reused passwords with unique values")
	}
	if hasStale {
		suggestions = append(suggestions, "Rotate passwords that have not changed recently")
	}

	return suggestions
}
