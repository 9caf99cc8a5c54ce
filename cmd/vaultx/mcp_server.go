package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/internal/mcp"
)

func newMCPServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Start the MCP server for AI assistant integration",
		Long: `Start an MCP (Model Context Protocol) server on stdio.

AI agents can generate and rate passwords and browse entries, but never
receive a stored password in plaintext.

Available tools:
  - password_generate: generate passwords with strength estimates
  - password_strength: rate a password
  - entry_list:        list entries (no passwords), optional site glob
  - entry_search:      search entries by site or username
  - entry_get_masked:  get an entry with its password masked ("****WXYZ")
  - security_audit:    score the vault; issues do not identify entries

Authentication:
  A sealed vault is unlocked with VAULTX_PASSWORD. The variable is read once
  and cleared from the process environment.

Policy:
  <vault dir>/mcp-policy.yaml (mode 0600) can deny or allow tools by name or
  glob. Without it every tool is available; an invalid or insecure policy
  file restricts the server to the password tools.

Example MCP configuration:
  {
    "mcpServers": {
      "vaultx": {
        "type": "stdio",
        "command": "/path/to/vaultx",
        "args": ["mcp-server"],
        "env": {
          "VAULTX_PASSWORD": "your-master-password"
        }
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server, err := mcp.NewServer(ctx, &mcp.ServerOptions{
				VaultDir: a.cfg.VaultDir,
				Backend:  a.cfg.Backend,
				Sealed:   a.cfg.Sealed,
				KDF:      a.kdf,
				Logger:   a.logger,
				Version:  version,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			if err := server.Run(ctx); err != nil {
				// shutdown by signal is not an error
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}
}
