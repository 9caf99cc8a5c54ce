package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/internal/config"
	"github.com/forest6511/vaultx/internal/logging"
	"github.com/forest6511/vaultx/internal/mcp"
	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/crypto"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

// app is the state shared by the commands of one root command.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	// kdf overrides the Argon2id cost of new seals; nil means the default.
	kdf *crypto.Params
	// copy writes to the system clipboard.
	copy func(string) error

	activity *audit.Logger
}

// newRootCmd creates the root command with every subcommand attached.
// Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	return newRootCmdWith(&app{copy: clipboard.WriteAll})
}

func newRootCmdWith(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultx",
		Short: "vaultx is a local password manager",
		Long: `vaultx stores site credentials in a single local vault, generates
strong passwords, and moves entries in and out as JSON, CSV or Excel.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is <user config dir>/vaultx/vaultx.yaml)")
	flags.String("vault-dir", "", "vault directory (default ~/.vaultx)")
	flags.String("backend", config.BackendFile, "storage backend: file or sqlite")
	flags.Bool("sealed", false, "encrypt the vault with a master password")
	flags.String("log-level", logging.DefaultLevel, "log level: debug, info, warn, error")

	cmd.AddCommand(
		newGenerateCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newRemoveCmd(a),
		newShowCmd(a),
		newListCmd(a),
		newClearCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newAuditCmd(a),
		newPasswdCmd(a),
		newShellCmd(a),
		newConfigCmd(a),
		newLogCmd(a),
		newMCPServerCmd(a),
	)

	return cmd
}

// annotationConfigOptional marks commands that run without an existing --config file.
const annotationConfigOptional = "vaultx/config-optional"

// init resolves configuration and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	path := a.cfgFile
	if path != "" && cmd.Annotations[annotationConfigOptional] != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(cmd, path)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) sessionOptions() session.Options {
	return session.Options{
		Dir:     a.cfg.VaultDir,
		Backend: a.cfg.Backend,
		Sealed:  a.cfg.Sealed,
		KDF:     a.kdf,
		Logger:  a.logger,
	}
}

// openSession opens and unlocks the configured vault. A sealed vault takes its
// master password from VAULTX_PASSWORD or a prompt; a new one asks twice.
func (a *app) openSession(ctx context.Context, p *prompter) (*session.Session, error) {
	sess, err := session.Open(ctx, a.sessionOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	password := ""
	if sess.Sealed() {
		password, err = a.masterPassword(ctx, sess, p)
		if err != nil {
			sess.Close()
			return nil, err
		}
	}

	if err := sess.Unlock(ctx, password); err != nil {
		sess.Close()
		switch {
		case errors.Is(err, vault.ErrInvalidPassword):
			return nil, errors.New("incorrect master password")
		case errors.Is(err, vault.ErrSealedVault):
			return nil, fmt.Errorf("%w: enable sealed in the config or pass --sealed", err)
		case errors.Is(err, vault.ErrPlainVault):
			return nil, fmt.Errorf("%w: disable sealed to open it", err)
		}
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}
	return sess, nil
}

func (a *app) masterPassword(ctx context.Context, sess *session.Session, p *prompter) (string, error) {
	if pw := os.Getenv(mcp.PasswordEnv); pw != "" {
		return pw, nil
	}

	exists, err := sess.Exists(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read vault: %w", err)
	}
	if exists {
		return p.Secret("Enter master password: ")
	}

	fmt.Fprintln(p.out, "Creating a new sealed vault.")
	return p.NewSecret("Choose master password: ", "Confirm master password: ")
}

// withStore runs fn against the unlocked store and closes the session afterwards.
func (a *app) withStore(cmd *cobra.Command, p *prompter, fn func(ctx context.Context, sess *session.Session, store *vault.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := a.openSession(ctx, p)
	if err != nil {
		return err
	}
	defer sess.Close()

	store, err := sess.Store()
	if err != nil {
		return err
	}
	return fn(ctx, sess, store)
}

// record appends an event to the activity log of the vault. Failures are
// logged and never fail the command.
func (a *app) record(op, source, recordID string, ctx map[string]any) {
	if a.activity == nil {
		l, err := audit.OpenForVault(a.cfg.VaultDir)
		if err != nil {
			a.logger.Warn("activity log unavailable", zap.Error(err))
			return
		}
		a.activity = l
	}
	if err := a.activity.Log(op, source, audit.ResultSuccess, recordID, ctx); err != nil {
		a.logger.Warn("failed to write activity log", zap.String("op", op), zap.Error(err))
	}
}
