package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/pkg/audit"
)

type logOptions struct {
	limit  int
	since  time.Duration
	verify bool
	json   bool
}

func newLogCmd(a *app) *cobra.Command {
	var opts logOptions

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the vault activity log",
		Long: `Show recent vault changes: added, edited and deleted entries, imports,
exports, master password changes and MCP tool calls. The log records entry ids
only, never sites, usernames or passwords.

Every event is chained to the previous one with an HMAC; --verify checks the
whole chain for edits and deletions.

Examples:
  vaultx log
  vaultx log -n 50 --since 24h
  vaultx log --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := audit.OpenForVault(a.cfg.VaultDir)
			if err != nil {
				return fmt.Errorf("failed to open activity log: %w", err)
			}
			out := cmd.OutOrStdout()

			if opts.verify {
				result, err := l.Verify()
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(out, result)
				}
				if !result.Valid {
					for _, e := range result.Errors {
						fmt.Fprintf(out, "  %s\n", e)
					}
					return fmt.Errorf("activity log verification failed (%d events checked)", result.RecordsTotal)
				}
				fmt.Fprintf(out, "Activity log intact (%d events)\n", result.RecordsTotal)
				return nil
			}

			var since time.Time
			if opts.since > 0 {
				since = time.Now().Add(-opts.since)
			}
			events, err := l.List(opts.limit, since)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(out, events)
			}
			printEvents(out, events, time.Now())
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "number of most recent events, 0 for all")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only events newer than this, e.g. 24h")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "verify the HMAC chain")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output in JSON format")

	return cmd
}

func printEvents(w io.Writer, events []audit.Event, now time.Time) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No activity recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tSOURCE\tOPERATION\tRESULT\tDETAILS")
	for _, e := range events {
		when := e.Timestamp
		if t, err := e.Time(); err == nil {
			when = humanize.RelTime(t, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", when, e.Source, e.Operation, e.Result, eventDetails(e))
	}
	tw.Flush()
}

func eventDetails(e audit.Event) string {
	var parts []string
	if e.RecordID != "" {
		parts = append(parts, shortID(e.RecordID))
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
