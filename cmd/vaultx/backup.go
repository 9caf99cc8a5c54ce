package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/backup"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

// backupPasswordEnv supplies the archive password without a prompt.
const backupPasswordEnv = "VAULTX_BACKUP_PASSWORD"

type backupOptions struct {
	output      string
	keyFile     string
	generateKey bool
	force       bool
}

func newBackupCmd(a *app) *cobra.Command {
	var opts backupOptions

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write an encrypted backup of the vault",
		Long: `Write an encrypted, integrity-checked archive of every entry.

The archive is encrypted with AES-256-GCM under a backup password (asked
twice, or read from VAULTX_BACKUP_PASSWORD) or a 32-byte key file. Unlike
export, the file never holds plain-text passwords.

Examples:
  # Backup to vaultx-<date>-<time>.vxbak in the current directory
  vaultx backup

  # Backup with a new key file
  vaultx backup -o vault.vxbak --key-file backup.key --generate-key

  # Pipe the archive elsewhere
  vaultx backup -o - | ssh host 'cat > vault.vxbak'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBackup(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file, "-" for stdout (default vaultx-<date>-<time>.vxbak)`)
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "encrypt with a 32-byte key file instead of a password")
	cmd.Flags().BoolVar(&opts.generateKey, "generate-key", false, "create the --key-file first")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing file")

	return cmd
}

func (a *app) runBackup(cmd *cobra.Command, opts backupOptions) error {
	if opts.generateKey {
		if opts.keyFile == "" {
			return errors.New("--generate-key requires --key-file")
		}
		if err := backup.GenerateKeyFile(opts.keyFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Created key file %s. Keep it apart from the backup.\n", opts.keyFile)
	}

	p := newPrompter(cmd)
	return a.withStore(cmd, p, func(_ context.Context, _ *session.Session, store *vault.Store) error {
		archiveOpts := backup.Options{KeyFile: opts.keyFile, KDF: a.kdf}
		if opts.keyFile == "" {
			pw, err := backupPassword(p, true)
			if err != nil {
				return err
			}
			archiveOpts.Password = []byte(pw)
		}

		var buf bytes.Buffer
		header, err := backup.Write(&buf, store, archiveOpts)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		a.record(audit.OpVaultBackup, audit.SourceCLI, "", map[string]any{
			"count": header.EntryCount,
			"mode":  string(header.EncryptionMode),
		})

		if opts.output == stdoutPath {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}

		path := opts.output
		if path == "" {
			path = backup.DefaultFilename(header.CreatedAt.Local())
		}
		if err := writePrivateFile(path, buf.Bytes(), opts.force); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s to %s\n", pluralEntries(header.EntryCount), path)
		a.logger.Info("wrote backup", zap.String("path", path), zap.Int("count", header.EntryCount))
		return nil
	})
}

type restoreOptions struct {
	mode       string
	keyFile    string
	dryRun     bool
	verifyOnly bool
	yes        bool
}

func newRestoreCmd(a *app) *cobra.Command {
	var opts restoreOptions

	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore entries from an encrypted backup",
		Long: `Restore entries from an archive written by "vaultx backup".

The archive is verified before anything changes. With --mode merge (the
default) archived entries whose site and username are already in the vault
are skipped. With --mode replace the vault content is swapped for the
archive, keeping the archived ids and timestamps.

Examples:
  # Check an archive without opening the vault
  vaultx restore vault.vxbak --verify-only

  # Preview a full replace
  vaultx restore vault.vxbak --mode replace --dry-run

  # Restore with a key file
  vaultx restore vault.vxbak --key-file backup.key --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRestore(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "merge", "restore mode: merge or replace")
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "decrypt with a key file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show what would change without saving")
	cmd.Flags().BoolVar(&opts.verifyOnly, "verify-only", false, "only check the archive")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "verify-only")

	return cmd
}

func (a *app) runRestore(cmd *cobra.Command, path string, opts restoreOptions) error {
	mode, err := backup.ParseRestoreMode(opts.mode)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	p := newPrompter(cmd)
	archiveOpts := backup.Options{KeyFile: opts.keyFile}
	if opts.keyFile == "" {
		pw, err := backupPassword(p, false)
		if err != nil {
			return err
		}
		archiveOpts.Password = []byte(pw)
	}

	// verify before unlocking so a bad archive never touches the vault
	archive, err := backup.Read(f, archiveOpts)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if opts.verifyOnly {
		fmt.Fprintln(out, "Backup verified")
		fmt.Fprintf(out, "  Version:  %d\n", archive.Header.Version)
		fmt.Fprintf(out, "  Created:  %s (%s)\n", archive.Header.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(archive.Header.CreatedAt))
		fmt.Fprintf(out, "  Entries:  %d\n", len(archive.Records))
		fmt.Fprintf(out, "  Method:   %s\n", archive.Header.EncryptionMode)
		return nil
	}

	return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, store *vault.Store) error {
		if !opts.yes && !opts.dryRun && store.Len() > 0 {
			q := fmt.Sprintf("The vault has %s. %s %s from %s?", pluralEntries(store.Len()), restoreVerb(mode), pluralEntries(len(archive.Records)), path)
			if !p.Confirm(q) {
				fmt.Fprintln(out, "Aborted")
				return nil
			}
		}

		result, err := archive.Restore(store, mode, opts.dryRun, a.logger)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		if opts.dryRun {
			fmt.Fprintln(out, "Dry run, nothing saved. Would restore:")
		} else {
			if result.Restored > 0 || result.Removed > 0 {
				if err := sess.Save(ctx); err != nil {
					return err
				}
			}
			a.record(audit.OpVaultRestore, audit.SourceCLI, "", map[string]any{
				"mode":     opts.mode,
				"restored": result.Restored,
				"skipped":  result.Skipped,
				"removed":  result.Removed,
			})
			fmt.Fprintln(out, "Restore complete:")
		}
		fmt.Fprintf(out, "  Restored: %d\n", result.Restored)
		if mode == backup.RestoreMerge {
			fmt.Fprintf(out, "  Skipped:  %d\n", result.Skipped)
		} else {
			fmt.Fprintf(out, "  Removed:  %d\n", result.Removed)
		}
		return nil
	})
}

func restoreVerb(mode backup.RestoreMode) string {
	if mode == backup.RestoreReplace {
		return "Replace them with"
	}
	return "Merge"
}

// backupPassword reads the archive password from the environment or a prompt.
// A new archive asks twice.
func backupPassword(p *prompter, confirm bool) (string, error) {
	if pw := os.Getenv(backupPasswordEnv); pw != "" {
		return pw, nil
	}
	if !confirm {
		pw, err := p.Secret("Enter backup password: ")
		if err == nil && pw == "" {
			err = backup.ErrEmptyPassword
		}
		return pw, err
	}
	return p.NewSecret("Choose backup password: ", "Confirm backup password: ")
}
