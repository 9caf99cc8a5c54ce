package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/importer"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

type importOptions struct {
	from string
	yes  bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import entries from a JSON, CSV or Excel file",
		Long: `Import entries from a file into the vault.

VaultX exports are recognized by extension (.json, .csv, .xlsx). Exports of
other password managers are read with --from.

Entries whose site and username already exist (ignoring case) are skipped;
existing entries are never overwritten. Rows without a site, username or
password are excluded and listed.

Examples:
  # Import a VaultX backup
  vaultx import vaultx-backup-2024-05-01.csv

  # Import a Bitwarden JSON export without confirmation
  vaultx import bitwarden.json --from bitwarden --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", fmt.Sprintf("source application: %s", strings.Join(importer.ValidSources(), ", ")))
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask before merging into a non-empty vault")

	return cmd
}

func (a *app) runImport(cmd *cobra.Command, path string, opts importOptions) error {
	source, err := importer.ParseSource(opts.from)
	if err != nil {
		return err
	}

	// decode before unlocking so a bad file never costs a password prompt
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	batch, err := importer.Load(ctx, path, source)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	p := newPrompter(cmd)
	return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, store *vault.Store) error {
		out := cmd.OutOrStdout()
		if n := store.Len(); n > 0 && !opts.yes {
			q := fmt.Sprintf("The vault has %s. Merge %d entries from %s?", pluralEntries(n), len(batch.Candidates), batch.Label())
			if !p.Confirm(q) {
				fmt.Fprintln(out, "Aborted")
				return nil
			}
		}

		report, err := importer.Merge(batch.Candidates, store, importer.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if report.Imported > 0 {
			if err := sess.Save(ctx); err != nil {
				return err
			}
		}
		a.record(audit.OpVaultImport, audit.SourceCLI, "", map[string]any{
			"format":   batch.Label(),
			"imported": report.Imported,
			"skipped":  report.Skipped,
			"excluded": report.Excluded,
		})

		fmt.Fprintf(out, "Imported %s from %s\n", pluralEntries(report.Imported), batch.Label())
		if report.Skipped > 0 {
			fmt.Fprintf(out, "Skipped %d duplicates\n", report.Skipped)
		}
		if report.Excluded > 0 {
			fmt.Fprintf(out, "Excluded %d incomplete entries\n", report.Excluded)
		}
		if len(batch.Skipped) > 0 {
			fmt.Fprintf(out, "Rows not read (%d):\n", len(batch.Skipped))
			for _, row := range batch.Skipped {
				fmt.Fprintf(out, "  row %d: %s\n", row.Row, row.Reason)
			}
		}
		return nil
	})
}
