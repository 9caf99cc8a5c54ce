package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/internal/cli"
	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/generator"
	"github.com/forest6511/vaultx/pkg/security"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

// shortIDLength is the id prefix shown in listings.
const shortIDLength = 8

type entryOptions struct {
	site     string
	username string
	notes    string
	generate bool
	password bool // edit: prompt for a new password
}

func newAddCmd(a *app) *cobra.Command {
	var opts entryOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		Long: `Add a site entry. The password is prompted for without echo unless
--generate is given, in which case one is generated with the configured defaults.

Examples:
  vaultx add --site github.com --username alice
  vaultx add -s example.com -u bob@example.com --generate --notes "recovery codes in safe"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.site, "site", "s", "", "site or app name")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "username or email")
	cmd.Flags().StringVar(&opts.notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVarP(&opts.generate, "generate", "g", false, "generate the password")

	return cmd
}

func (a *app) runAdd(cmd *cobra.Command, opts entryOptions) error {
	p := newPrompter(cmd)
	fields := vault.Fields{Site: opts.site, Username: opts.username, Notes: opts.notes}

	// fail before asking for any secret
	if missing := fields.Missing(); len(missing) > 1 || (len(missing) == 1 && missing[0] != vault.FieldPassword) {
		return &vault.ValidationError{Missing: missing}
	}

	return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, store *vault.Store) error {
		password, generated, err := a.entryPassword(p, opts.generate, "Password: ")
		if err != nil {
			return err
		}
		fields.Password = password

		r, err := store.Add(fields)
		if err != nil {
			return err
		}
		if err := sess.Save(ctx); err != nil {
			return err
		}

		a.record(audit.OpEntryAdd, audit.SourceCLI, r.ID, nil)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Added %s (%s)\n", r.Site, r.ID)
		printStrength(cmd.ErrOrStderr(), r.Password)
		if generated {
			a.copyToClipboard(cmd, r.Password, "Generated password")
		}
		return nil
	})
}

// entryPassword generates a password or prompts for one.
func (a *app) entryPassword(p *prompter, generate bool, prompt string) (password string, generated bool, err error) {
	if generate {
		pw, err := generator.Generate(a.generatorRequest(""))
		if err != nil {
			return "", false, fmt.Errorf("failed to generate password: %w", err)
		}
		return pw, true, nil
	}
	pw, err := p.Secret(prompt)
	return pw, false, err
}

func printStrength(w io.Writer, password string) {
	st := security.EstimatePassword(password)
	fmt.Fprintf(w, "Password strength: %s (%.1f bits)\n", st.Tier, st.EntropyBits)
}

func newEditCmd(a *app) *cobra.Command {
	var opts entryOptions

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an entry",
		Long: `Edit an entry by id or unique id prefix. Only the given fields change;
the entry keeps its id and creation time.

Examples:
  vaultx edit 0190a1b2 --username alice@example.com
  vaultx edit 0190a1b2 --generate
  vaultx edit 0190a1b2 --password`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			changed := entryChanges{
				site:     f.Changed("site"),
				username: f.Changed("username"),
				notes:    f.Changed("notes"),
			}
			return a.runEdit(cmd, args[0], opts, changed)
		},
	}

	cmd.Flags().StringVarP(&opts.site, "site", "s", "", "new site or app name")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "new username or email")
	cmd.Flags().StringVar(&opts.notes, "notes", "", "new notes (empty clears them)")
	cmd.Flags().BoolVarP(&opts.generate, "generate", "g", false, "replace the password with a generated one")
	cmd.Flags().BoolVarP(&opts.password, "password", "p", false, "prompt for a new password")
	cmd.MarkFlagsMutuallyExclusive("generate", "password")

	return cmd
}

type entryChanges struct {
	site, username, notes bool
}

func (a *app) runEdit(cmd *cobra.Command, ref string, opts entryOptions, changed entryChanges) error {
	if !changed.site && !changed.username && !changed.notes && !opts.generate && !opts.password {
		return errors.New("nothing to change: pass --site, --username, --notes, --password or --generate")
	}
	p := newPrompter(cmd)

	return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, store *vault.Store) error {
		r, err := cli.ResolveRecord(store.Records(), ref)
		if err != nil {
			return err
		}

		fields := r.Fields
		if changed.site {
			fields.Site = opts.site
		}
		if changed.username {
			fields.Username = opts.username
		}
		if changed.notes {
			fields.Notes = opts.notes
		}
		generated := false
		if opts.generate || opts.password {
			fields.Password, generated, err = a.entryPassword(p, opts.generate, "New password: ")
			if err != nil {
				return err
			}
		}

		updated, err := store.Update(r.ID, fields)
		if err != nil {
			return err
		}
		if err := sess.Save(ctx); err != nil {
			return err
		}

		a.record(audit.OpEntryUpdate, audit.SourceCLI, updated.ID, nil)

		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", updated.Site, updated.ID)
		if opts.generate || opts.password {
			printStrength(cmd.ErrOrStderr(), updated.Password)
		}
		if generated {
			a.copyToClipboard(cmd, updated.Password, "Generated password")
		}
		return nil
	})
}

func newRemoveCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, store *vault.Store) error {
				r, err := cli.ResolveRecord(store.Records(), args[0])
				if err != nil {
					return err
				}
				if !force && !p.Confirm(fmt.Sprintf("Delete %s (%s)?", r.Site, r.Username)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}

				store.Remove(r.ID)
				if err := sess.Save(ctx); err != nil {
					return err
				}
				a.record(audit.OpEntryDelete, audit.SourceCLI, r.ID, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", r.Site, r.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var reveal, copyPassword bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an entry",
		Long: `Show an entry by id or unique id prefix. The password is masked unless
--reveal is given; --copy puts it on the clipboard instead of the screen.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(_ context.Context, _ *session.Session, store *vault.Store) error {
				r, err := cli.ResolveRecord(store.Records(), args[0])
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), r, reveal, time.Now())
				if copyPassword {
					a.copyToClipboard(cmd, r.Password, "Password")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&reveal, "reveal", "r", false, "print the password in plain text")
	cmd.Flags().BoolVarP(&copyPassword, "copy", "c", false, "copy the password to the clipboard")
	return cmd
}

func printRecord(w io.Writer, r vault.Record, reveal bool, now time.Time) {
	password := strings.Repeat("*", 8)
	if reveal {
		password = r.Password
	}
	st := security.EstimatePassword(r.Password)

	fmt.Fprintf(w, "ID:       %s\n", r.ID)
	fmt.Fprintf(w, "Site:     %s\n", r.Site)
	fmt.Fprintf(w, "Username: %s\n", r.Username)
	fmt.Fprintf(w, "Password: %s\n", password)
	fmt.Fprintf(w, "Strength: %s (%.1f bits)\n", st.Tier, st.EntropyBits)
	if r.Notes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", r.Notes)
	}
	fmt.Fprintf(w, "Created:  %s (%s)\n", r.CreatedAt.Local().Format(time.DateTime), humanize.RelTime(r.CreatedAt, now, "ago", "from now"))
	fmt.Fprintf(w, "Updated:  %s (%s)\n", r.UpdatedAt.Local().Format(time.DateTime), humanize.RelTime(r.UpdatedAt, now, "ago", "from now"))
}

func newListCmd(a *app) *cobra.Command {
	var sites []string
	var query string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List entries",
		Long: `List entries, most recent first. Passwords are never shown.

Examples:
  vaultx list
  vaultx list --search alice
  vaultx list --site "*.example.com" --site github.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(_ context.Context, _ *session.Session, store *vault.Store) error {
				records, err := cli.FilterBySite(store.Search(query), sites)
				if err != nil {
					return err
				}
				printList(cmd.OutOrStdout(), records, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&sites, "site", nil, "site glob pattern, can be repeated")
	cmd.Flags().StringVarP(&query, "search", "q", "", "case-insensitive substring of site or username")
	return cmd
}

func printList(w io.Writer, records []vault.Record, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No entries found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSITE\tUSERNAME\tUPDATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(r.ID), r.Site, r.Username, humanize.RelTime(r.UpdatedAt, now, "ago", "from now"))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%s\n", pluralEntries(len(records)))
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func pluralEntries(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return humanize.Comma(int64(n)) + " entries"
}

func newClearCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, store *vault.Store) error {
				n := store.Len()
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Vault is already empty")
					return nil
				}
				if !force && !p.Confirm(fmt.Sprintf("Delete all %s? This cannot be undone.", pluralEntries(n))) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}

				store.Clear()
				if err := sess.Save(ctx); err != nil {
					return err
				}
				a.record(audit.OpVaultClear, audit.SourceCLI, "", map[string]any{"deleted": n})
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", pluralEntries(n))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")
	return cmd
}
