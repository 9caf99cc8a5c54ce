// Package mcp implements the MCP (Model Context Protocol) server for vaultx.
// AI agents can generate and rate passwords and browse entries, but never
// receive a stored password in plaintext.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/pkg/audit"
	"github.com/forest6511/vaultx/pkg/crypto"
	"github.com/forest6511/vaultx/pkg/generator"
	"github.com/forest6511/vaultx/pkg/session"
	"github.com/forest6511/vaultx/pkg/vault"
)

// PasswordEnv holds the master password of a sealed vault.
const PasswordEnv = "VAULTX_PASSWORD"

// Tool names.
const (
	ToolPasswordGenerate = "password_generate"
	ToolPasswordStrength = "password_strength"
	ToolEntryList        = "entry_list"
	ToolEntrySearch      = "entry_search"
	ToolEntryGetMasked   = "entry_get_masked"
	ToolSecurityAudit    = "security_audit"
)

// Server represents the MCP server for vaultx.
type Server struct {
	server   *mcp.Server
	session  *session.Session
	policy   *Policy
	gen      *generator.Generator
	logger   *zap.Logger
	activity *audit.Logger // nil when the activity log cannot be opened
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	VaultDir string
	Backend  string
	Sealed   bool

	// Password is the master password of a sealed vault.
	// If empty, it is read from VAULTX_PASSWORD.
	Password string

	KDF     *crypto.Params
	Logger  *zap.Logger
	Version string
}

// NewServer opens and unlocks the vault and registers the tools.
func NewServer(ctx context.Context, opts *ServerOptions) (*Server, error) {
	if opts == nil || opts.VaultDir == "" {
		return nil, errors.New("vault directory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, err := LoadPolicy(opts.VaultDir)
	switch {
	case errors.Is(err, ErrPolicyNotFound):
		policy = DefaultPolicy()
	case err != nil:
		// not fatal; keep only the tools that never read entries
		logger.Warn("failed to load MCP policy, using restricted policy", zap.Error(err))
		policy = RestrictedPolicy()
	}

	password := opts.Password
	if password == "" {
		password = os.Getenv(PasswordEnv)
		// Clear the environment variable after reading for security
		os.Unsetenv(PasswordEnv)
	}
	if opts.Sealed && password == "" {
		return nil, fmt.Errorf("no password provided: set %s environment variable", PasswordEnv)
	}

	sess, err := session.Open(ctx, session.Options{
		Dir:     opts.VaultDir,
		Backend: opts.Backend,
		Sealed:  opts.Sealed,
		KDF:     opts.KDF,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if err := sess.Unlock(ctx, password); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	activity, err := audit.OpenForVault(opts.VaultDir)
	if err != nil {
		logger.Warn("activity log unavailable", zap.Error(err))
	}

	s := &Server{
		server:   mcp.NewServer(&mcp.Implementation{Name: "vaultx", Version: version}, nil),
		session:  sess,
		policy:   policy,
		gen:      generator.New(nil),
		logger:   logger.Named("mcp"),
		activity: activity,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolPasswordGenerate,
		Description: "Generate random passwords. Options: length (4-64, default 16), upper/lower/digits/symbols toggles (default on), exclude characters, count (1-100). Returns the passwords and their estimated strength.",
	}, s.handlePasswordGenerate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolPasswordStrength,
		Description: "Estimate the entropy and strength tier of a password. The password is not stored.",
	}, s.handlePasswordStrength)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolEntryList,
		Description: "List vault entries (id, site, username, timestamps). Optional site glob such as '*.example.com'. Does NOT return passwords.",
	}, s.handleEntryList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolEntrySearch,
		Description: "Search vault entries by case-insensitive substring of site or username. Does NOT return passwords.",
	}, s.handleEntrySearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolEntryGetMasked,
		Description: "Get an entry with its password masked (e.g. '****WXYZ') plus the password length and strength. Accepts a full id or unique id prefix.",
	}, s.handleEntryGetMasked)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolSecurityAudit,
		Description: "Score the vault for weak, reused and stale passwords. Issue lists are truncated and do not identify entries.",
	}, s.handleSecurityAudit)
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	defer s.session.Lock()

	s.logger.Info("MCP server started")
	err := s.server.Run(ctx, &mcp.StdioTransport{})
	s.logger.Info("MCP server stopped", zap.Error(err))
	return err
}

// Close closes the server and locks the vault.
func (s *Server) Close() error {
	return s.session.Close()
}

// allow returns ErrToolDenied when the policy rejects tool. Every call is
// recorded in the activity log.
func (s *Server) allow(tool string) error {
	if s.policy != nil {
		if ok, reason := s.policy.IsToolAllowed(tool); !ok {
			s.logger.Warn("tool call denied", zap.String("tool", tool))
			s.recordCall(tool, audit.ResultDenied, reason)
			return fmt.Errorf("%w: %s", ErrToolDenied, reason)
		}
	}
	s.recordCall(tool, audit.ResultSuccess, "")
	return nil
}

func (s *Server) recordCall(tool, result, reason string) {
	if s.activity == nil {
		return
	}
	ctx := map[string]any{"tool": tool}
	if reason != "" {
		ctx["reason"] = reason
	}
	if err := s.activity.Log(audit.OpToolCall, audit.SourceMCP, result, "", ctx); err != nil {
		s.logger.Warn("failed to write activity log", zap.Error(err))
	}
}

func (s *Server) store() (*vault.Store, error) {
	store, err := s.session.Store()
	if err != nil {
		return nil, fmt.Errorf("vault unavailable: %w", err)
	}
	return store, nil
}
