package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/internal/cli"
	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

// stdoutPath selects standard output for --output.
const stdoutPath = "-"

var errNothingToExport = errors.New("no entries to export")

type exportOptions struct {
	format string
	output string
	sites  []string
	force  bool
}

func newExportCmd(a *app) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries to JSON, CSV or Excel",
		Long: `Export vault entries, including passwords in plain text.

The file is written with 0600 permissions and named
vaultx-backup-YYYY-MM-DD.<ext> unless --output is given.

Examples:
  # Export everything as CSV into the current directory
  vaultx export

  # Export as an Excel workbook
  vaultx export -f xlsx -o passwords.xlsx

  # Export some sites as JSON to stdout
  vaultx export -f json -o - --site "*.example.com"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", string(codec.FormatCSV), "output format: json, csv, xlsx")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file path, "-" for stdout`)
	cmd.Flags().StringArrayVar(&opts.sites, "site", nil, "site glob pattern, can be repeated")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing file")

	return cmd
}

func (a *app) runExport(cmd *cobra.Command, opts exportOptions) error {
	format, err := codec.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	for _, pattern := range opts.sites {
		if err := cli.ValidatePattern(pattern); err != nil {
			return err
		}
	}

	p := newPrompter(cmd)
	return a.withStore(cmd, p, func(_ context.Context, _ *session.Session, store *vault.Store) error {
		records, err := cli.FilterBySite(store.Records(), opts.sites)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return errNothingToExport
		}

		now := store.Now()
		data, err := c.Encode(records, codec.NewExportMeta(now))
		if err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}

		a.record(audit.OpVaultExport, audit.SourceCLI, "", map[string]any{"format": string(format), "count": len(records)})

		if opts.output == stdoutPath {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}

		path := opts.output
		if path == "" {
			path = codec.ExportFilename(format, now)
		}
		if err := writePrivateFile(path, data, opts.force); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", pluralEntries(len(records)), path)
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the file contains plain-text passwords. Store it securely and delete it when no longer needed.")
		a.logger.Info("exported entries", zap.String("format", string(format)), zap.Int("count", len(records)))
		return nil
	})
}

// writePrivateFile writes data with owner-only permissions. Without force an
// existing file is left alone.
func writePrivateFile(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("file %s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// O_CREATE keeps the mode of an existing file
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set permissions of %s: %w", path, err)
	}
	return nil
}
