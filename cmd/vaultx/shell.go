package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/internal/cli"
	"github.com/forest6511/vaultx/internal/config"
	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/generator"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

const shellHelp = `Commands:
  list [query]     list entries, optionally filtered by site or username
  show <id>        show an entry with the password masked
  reveal <id>      show an entry with the password
  copy <id>        copy the password to the clipboard
  gen [length]     generate a password
  add              add an entry
  edit <id>        edit an entry
  rm <id>          delete an entry
  lock             lock the vault now
  help             show this help
  exit             leave the shell`

// errExitShell ends the read loop.
var errExitShell = errors.New("exit")

func newShellCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Long: `Start an interactive session on the unlocked vault.

The vault locks after --auto-lock without input (default 10m, 0 disables);
the next command asks for the master password again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd)
		},
	}
	cmd.Flags().Duration("auto-lock", config.DefaultAutoLock, "lock the vault after this much inactivity")
	return cmd
}

type shell struct {
	a    *app
	cmd  *cobra.Command
	p    *prompter
	sess *session.Session
	out  io.Writer
}

func (a *app) runShell(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p := newPrompter(cmd)

	sess, err := a.openSession(ctx, p)
	if err != nil {
		return err
	}
	defer sess.Close()

	sh := &shell{a: a, cmd: cmd, p: p, sess: sess, out: cmd.OutOrStdout()}
	idle := session.NewIdleTimer(a.cfg.AutoLock, func() {
		a.logger.Info("auto-lock after inactivity", zap.Duration("timeout", a.cfg.AutoLock))
		sess.Lock()
	})
	defer idle.Stop()

	fmt.Fprintln(sh.out, `vaultx shell. Type "help" for commands.`)
	for {
		idle.Touch()
		line, err := p.Line("vaultx> ")
		idle.Stop()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				fmt.Fprintln(sh.out)
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if sess.Locked() {
			fmt.Fprintln(sh.out, "Vault is locked.")
			if err := sh.unlock(ctx); err != nil {
				return err
			}
		}

		err = sh.exec(ctx, fields[0], fields[1:])
		switch {
		case errors.Is(err, errExitShell):
			return nil
		case err != nil:
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		}
	}
}

// unlock asks for the master password again after a lock. A wrong password
// ends the shell.
func (sh *shell) unlock(ctx context.Context) error {
	password := ""
	if sh.sess.Sealed() {
		pw, err := sh.p.Secret("Enter master password: ")
		if err != nil {
			return err
		}
		password = pw
	}
	if err := sh.sess.Unlock(ctx, password); err != nil {
		if errors.Is(err, vault.ErrInvalidPassword) {
			return errors.New("incorrect master password")
		}
		return fmt.Errorf("failed to unlock vault: %w", err)
	}
	return nil
}

func (sh *shell) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "exit", "quit":
		return errExitShell
	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)
		return nil
	case "lock":
		sh.sess.Lock()
		fmt.Fprintln(sh.out, "Vault locked")
		return nil
	case "gen":
		return sh.gen(args)
	}

	store, err := sh.sess.Store()
	if err != nil {
		return err
	}

	switch name {
	case "list", "ls", "search":
		printList(sh.out, store.Search(strings.Join(args, " ")), time.Now())
		return nil
	case "show", "reveal", "copy":
		r, err := sh.resolve(store, args)
		if err != nil {
			return err
		}
		if name == "copy" {
			sh.a.copyToClipboard(sh.cmd, r.Password, "Password")
			return nil
		}
		printRecord(sh.out, r, name == "reveal", time.Now())
		return nil
	case "add":
		return sh.add(ctx, store)
	case "edit":
		return sh.edit(ctx, store, args)
	case "rm", "delete":
		r, err := sh.resolve(store, args)
		if err != nil {
			return err
		}
		if !sh.p.Confirm(fmt.Sprintf("Delete %s (%s)?", r.Site, r.Username)) {
			return nil
		}
		store.Remove(r.ID)
		if err := sh.sess.Save(ctx); err != nil {
			return err
		}
		sh.a.record(audit.OpEntryDelete, audit.SourceShell, r.ID, nil)
		fmt.Fprintf(sh.out, "Deleted %s\n", r.Site)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try \"help\")", name)
	}
}

func (sh *shell) resolve(store *vault.Store, args []string) (vault.Record, error) {
	if len(args) != 1 {
		return vault.Record{}, errors.New("expected one entry id")
	}
	return cli.ResolveRecord(store.Records(), args[0])
}

func (sh *shell) gen(args []string) error {
	req := sh.a.generatorRequest("")
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid length %q", args[0])
		}
		req.Length = n
	}
	pw, err := generator.Generate(req.Normalize())
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, pw)
	printStrength(sh.out, pw)
	return nil
}

func (sh *shell) add(ctx context.Context, store *vault.Store) error {
	var f vault.Fields
	var err error
	if f.Site, err = sh.p.Line("Site: "); err != nil {
		return err
	}
	if f.Username, err = sh.p.Line("Username: "); err != nil {
		return err
	}
	if f.Password, err = sh.p.Secret("Password (empty generates one): "); err != nil {
		return err
	}
	generated := false
	if strings.TrimSpace(f.Password) == "" {
		if f.Password, err = generator.Generate(sh.a.generatorRequest("")); err != nil {
			return err
		}
		generated = true
	}
	if f.Notes, err = sh.p.Line("Notes: "); err != nil {
		return err
	}

	r, err := store.Add(f)
	if err != nil {
		return err
	}
	if err := sh.sess.Save(ctx); err != nil {
		return err
	}
	sh.a.record(audit.OpEntryAdd, audit.SourceShell, r.ID, nil)
	fmt.Fprintf(sh.out, "Added %s (%s)\n", r.Site, shortID(r.ID))
	printStrength(sh.out, r.Password)
	if generated {
		sh.a.copyToClipboard(sh.cmd, r.Password, "Generated password")
	}
	return nil
}

// edit prompts for each field; an empty answer keeps the current value.
func (sh *shell) edit(ctx context.Context, store *vault.Store, args []string) error {
	r, err := sh.resolve(store, args)
	if err != nil {
		return err
	}

	f := r.Fields
	ask := func(label, current string, secret bool) (string, error) {
		prompt := fmt.Sprintf("%s [%s]: ", label, current)
		read := sh.p.Line
		if secret {
			prompt = label + " (empty keeps current): "
			read = sh.p.Secret
		}
		v, err := read(prompt)
		if err != nil || strings.TrimSpace(v) == "" {
			return current, err
		}
		return v, nil
	}
	if f.Site, err = ask("Site", f.Site, false); err != nil {
		return err
	}
	if f.Username, err = ask("Username", f.Username, false); err != nil {
		return err
	}
	if f.Password, err = ask("Password", f.Password, true); err != nil {
		return err
	}
	if f.Notes, err = ask("Notes", f.Notes, false); err != nil {
		return err
	}

	if f == r.Fields {
		fmt.Fprintln(sh.out, "No changes")
		return nil
	}
	if _, err := store.Update(r.ID, f); err != nil {
		return err
	}
	if err := sh.sess.Save(ctx); err != nil {
		return err
	}
	sh.a.record(audit.OpEntryUpdate, audit.SourceShell, r.ID, nil)
	fmt.Fprintf(sh.out, "Updated %s\n", f.Site)
	return nil
}
