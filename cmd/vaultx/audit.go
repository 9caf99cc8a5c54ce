package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/pkg/security"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

type auditOptions struct {
	json    bool
	verbose bool
	stale   time.Duration
}

func newAuditCmd(a *app) *cobra.Command {
	var opts auditOptions

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Analyze vault security health",
		Long: `Analyze the passwords in the vault and get recommendations.

The security score is calculated from:
  - Password Strength (0-40): average strength tier of stored passwords
  - Uniqueness (0-40): share of passwords used by only one entry
  - Freshness (0-20): share of entries changed within --stale

Examples:
  vaultx audit              # Show security score and issues
  vaultx audit --verbose    # Also show suggestions
  vaultx audit --json       # Output in JSON format
  vaultx audit reused       # List entries sharing a password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(_ context.Context, _ *session.Session, store *vault.Store) error {
				calc := security.NewCalculator(security.AudienceUser).WithStaleAfter(opts.stale)
				score, err := calc.CalculateScore(store.Records())
				if err != nil {
					return fmt.Errorf("failed to calculate security score: %w", err)
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), score)
				}
				outputAuditText(cmd.OutOrStdout(), score, opts.verbose)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "output in JSON format")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "show suggestions")
	cmd.Flags().DurationVar(&opts.stale, "stale", security.DefaultStaleAfter, "age after which an unchanged password is reported, 0 disables")

	cmd.AddCommand(newAuditReusedCmd(a))
	return cmd
}

func newAuditReusedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reused",
		Short: "List entries that share a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(_ context.Context, _ *session.Session, store *vault.Store) error {
				calc := security.NewCalculator(security.AudienceUser)
				groups, err := calc.FindReused(store.Records(), true, 0)
				if err != nil {
					return fmt.Errorf("failed to find reused passwords: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(groups) == 0 {
					fmt.Fprintln(out, "No reused passwords found")
					return nil
				}
				fmt.Fprintf(out, "Reused Passwords (%d groups found)\n\n", len(groups))
				for i, g := range groups {
					fmt.Fprintf(out, "%d. %d entries share the same password:\n", i+1, g.Count)
					for j, id := range g.RecordIDs {
						fmt.Fprintf(out, "   - %s (%s)\n", g.Sites[j], shortID(id))
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
}

func outputAuditText(w io.Writer, score *security.SecurityScore, verbose bool) {
	var rating string
	switch {
	case score.Overall >= 90:
		rating = "Excellent"
	case score.Overall >= 70:
		rating = "Good"
	case score.Overall >= 50:
		rating = "Fair"
	default:
		rating = "Needs Attention"
	}

	fmt.Fprintf(w, "Security Score: %d/100 (%s)\n\n", score.Overall, rating)

	fmt.Fprintln(w, "Components:")
	fmt.Fprintf(w, "  Password Strength: %2d/40 %s\n", score.Components.StrengthScore, progressBar(score.Components.StrengthScore, 40))
	fmt.Fprintf(w, "  Uniqueness:        %2d/40 %s\n", score.Components.UniquenessScore, progressBar(score.Components.UniquenessScore, 40))
	fmt.Fprintf(w, "  Freshness:         %2d/20 %s\n", score.Components.FreshnessScore, progressBar(score.Components.FreshnessScore, 20))
	fmt.Fprintln(w)

	if len(score.Issues) > 0 {
		fmt.Fprintf(w, "Issues (%d):\n", len(score.Issues))
		for i, issue := range score.Issues {
			label := strings.ToUpper(string(issue.Type))
			target := ""
			switch {
			case issue.Site != "":
				target = fmt.Sprintf(" %s (%s)", issue.Site, shortID(issue.RecordID))
			case len(issue.RecordIDs) > 0:
				ids := make([]string, len(issue.RecordIDs))
				for j, id := range issue.RecordIDs {
					ids[j] = shortID(id)
				}
				target = " " + strings.Join(ids, ", ")
			}
			fmt.Fprintf(w, "  %d. [%s]%s: %s\n", i+1, label, target, issue.Description)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No issues found")
	}

	if verbose && len(score.Suggestions) > 0 {
		fmt.Fprintln(w, "Suggestions:")
		for _, s := range score.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
		fmt.Fprintln(w)
	}
}

// progressBar renders value out of maxVal as a 20 cell bar.
func progressBar(value, maxVal int) string {
	const width = 20
	filled := 0
	if maxVal > 0 {
		filled = value * width / maxVal
	}
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
