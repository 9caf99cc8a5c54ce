package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password",
		Long: `Change the master password of a sealed vault.

The current password is checked by unlocking the vault. The entries are then
sealed again under the new password; if the write fails the vault keeps the
old password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Sealed {
				return errors.New("vault is not sealed: enable sealed in the config or pass --sealed")
			}

			p := newPrompter(cmd)
			return a.withStore(cmd, p, func(ctx context.Context, sess *session.Session, _ *vault.Store) error {
				next, err := p.NewSecret("Enter new master password: ", "Confirm new master password: ")
				if err != nil {
					return err
				}
				if err := sess.ChangePassword(ctx, next); err != nil {
					return fmt.Errorf("failed to change master password: %w", err)
				}
				a.record(audit.OpPasswordChange, audit.SourceCLI, "", nil)
				fmt.Fprintln(cmd.OutOrStdout(), "Master password changed")
				return nil
			})
		},
	}
}
