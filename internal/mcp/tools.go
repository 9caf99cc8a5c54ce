package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/forest6511/vaultx/internal/cli"
	"github.com/forest6511/vaultx/pkg/generator"
	"github.com/forest6511/vaultx/pkg/security"
	"github.com/forest6511/vaultx/pkg/vault"
)

// PasswordGenerateInput represents input for password_generate tool.
// Nil toggles default to enabled.
type PasswordGenerateInput struct {
	Length  int    `json:"length,omitempty"`
	Upper   *bool  `json:"upper,omitempty"`
	Lower   *bool  `json:"lower,omitempty"`
	Digits  *bool  `json:"digits,omitempty"`
	Symbols *bool  `json:"symbols,omitempty"`
	Exclude string `json:"exclude,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// PasswordGenerateOutput represents output for password_generate tool.
type PasswordGenerateOutput struct {
	Passwords []string     `json:"passwords"`
	Length    int          `json:"length"`
	Classes   string       `json:"classes"`
	Strength  StrengthInfo `json:"strength"`
}

// StrengthInfo is the estimator result with the tier spelled out.
type StrengthInfo struct {
	EntropyBits float64 `json:"entropy_bits"`
	Tier        string  `json:"tier"`
	Percentage  int     `json:"percentage"`
}

// PasswordStrengthInput represents input for password_strength tool.
type PasswordStrengthInput struct {
	Password string `json:"password"`
}

// PasswordStrengthOutput represents output for password_strength tool.
type PasswordStrengthOutput struct {
	Strength StrengthInfo `json:"strength"`
	Length   int          `json:"length"`
	Classes  string       `json:"classes"`
}

// EntryListInput represents input for entry_list tool.
type EntryListInput struct {
	Site string `json:"site,omitempty"`
}

// EntrySearchInput represents input for entry_search tool.
type EntrySearchInput struct {
	Query string `json:"query"`
}

// EntryListOutput represents output for entry_list and entry_search tools.
type EntryListOutput struct {
	Entries []EntryInfo `json:"entries"`
	Count   int         `json:"count"`
}

// EntryInfo represents an entry without its password.
type EntryInfo struct {
	ID        string `json:"id"`
	Site      string `json:"site"`
	Username  string `json:"username"`
	HasNotes  bool   `json:"has_notes"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// EntryGetMaskedInput represents input for entry_get_masked tool.
type EntryGetMaskedInput struct {
	ID string `json:"id"`
}

// EntryGetMaskedOutput represents output for entry_get_masked tool.
type EntryGetMaskedOutput struct {
	Entry          EntryInfo    `json:"entry"`
	MaskedPassword string       `json:"masked_password"`
	PasswordLength int          `json:"password_length"`
	Strength       StrengthInfo `json:"strength"`
}

// SecurityAuditInput represents input for security_audit tool.
type SecurityAuditInput struct{}

func strengthInfo(st security.Strength) StrengthInfo {
	return StrengthInfo{
		EntropyBits: st.EntropyBits,
		Tier:        st.Tier.String(),
		Percentage:  st.Percentage,
	}
}

func entryInfo(r vault.Record) EntryInfo {
	return EntryInfo{
		ID:        r.ID,
		Site:      r.Site,
		Username:  r.Username,
		HasNotes:  r.Notes != "",
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

func entryList(records []vault.Record) EntryListOutput {
	out := EntryListOutput{Entries: make([]EntryInfo, 0, len(records)), Count: len(records)}
	for _, r := range records {
		out.Entries = append(out.Entries, entryInfo(r))
	}
	return out
}

func toggle(b *bool) bool {
	return b == nil || *b
}

// handlePasswordGenerate handles the password_generate tool call.
func (s *Server) handlePasswordGenerate(_ context.Context, _ *mcp.CallToolRequest, input PasswordGenerateInput) (*mcp.CallToolResult, PasswordGenerateOutput, error) {
	if err := s.allow(ToolPasswordGenerate); err != nil {
		return nil, PasswordGenerateOutput{}, err
	}

	req := generator.Request{
		Length:  input.Length,
		Classes: generator.ClassesFromToggles(toggle(input.Upper), toggle(input.Lower), toggle(input.Digits), toggle(input.Symbols)),
		Exclude: input.Exclude,
	}
	if req.Length == 0 {
		req.Length = generator.DefaultLength
	}
	req = req.Normalize()

	count := input.Count
	if count == 0 {
		count = 1
	}

	passwords, err := s.gen.GenerateN(req, count)
	if err != nil {
		return nil, PasswordGenerateOutput{}, fmt.Errorf("failed to generate password: %w", err)
	}

	return nil, PasswordGenerateOutput{
		Passwords: passwords,
		Length:    req.Length,
		Classes:   req.Classes.String(),
		Strength:  strengthInfo(security.Estimate(req.Length, req.Classes)),
	}, nil
}

// handlePasswordStrength handles the password_strength tool call.
func (s *Server) handlePasswordStrength(_ context.Context, _ *mcp.CallToolRequest, input PasswordStrengthInput) (*mcp.CallToolResult, PasswordStrengthOutput, error) {
	if err := s.allow(ToolPasswordStrength); err != nil {
		return nil, PasswordStrengthOutput{}, err
	}
	if input.Password == "" {
		return nil, PasswordStrengthOutput{}, errors.New("password is required")
	}

	return nil, PasswordStrengthOutput{
		Strength: strengthInfo(security.EstimatePassword(input.Password)),
		Length:   utf8.RuneCountInString(input.Password),
		Classes:  security.ClassesOf(input.Password).String(),
	}, nil
}

// handleEntryList handles the entry_list tool call.
func (s *Server) handleEntryList(_ context.Context, _ *mcp.CallToolRequest, input EntryListInput) (*mcp.CallToolResult, EntryListOutput, error) {
	if err := s.allow(ToolEntryList); err != nil {
		return nil, EntryListOutput{}, err
	}
	store, err := s.store()
	if err != nil {
		return nil, EntryListOutput{}, err
	}

	records := store.Records()
	if input.Site != "" {
		records, err = cli.FilterBySite(records, []string{input.Site})
		if err != nil {
			return nil, EntryListOutput{}, err
		}
	}
	return nil, entryList(records), nil
}

// handleEntrySearch handles the entry_search tool call.
func (s *Server) handleEntrySearch(_ context.Context, _ *mcp.CallToolRequest, input EntrySearchInput) (*mcp.CallToolResult, EntryListOutput, error) {
	if err := s.allow(ToolEntrySearch); err != nil {
		return nil, EntryListOutput{}, err
	}
	store, err := s.store()
	if err != nil {
		return nil, EntryListOutput{}, err
	}
	return nil, entryList(store.Search(input.Query)), nil
}

// handleEntryGetMasked handles the entry_get_masked tool call.
func (s *Server) handleEntryGetMasked(_ context.Context, _ *mcp.CallToolRequest, input EntryGetMaskedInput) (*mcp.CallToolResult, EntryGetMaskedOutput, error) {
	if err := s.allow(ToolEntryGetMasked); err != nil {
		return nil, EntryGetMaskedOutput{}, err
	}
	if strings.TrimSpace(input.ID) == "" {
		return nil, EntryGetMaskedOutput{}, errors.New("id is required")
	}
	store, err := s.store()
	if err != nil {
		return nil, EntryGetMaskedOutput{}, err
	}

	record, err := cli.ResolveRecord(store.Records(), input.ID)
	if err != nil {
		return nil, EntryGetMaskedOutput{}, fmt.Errorf("failed to get entry: %w", err)
	}

	return nil, EntryGetMaskedOutput{
		Entry:          entryInfo(record),
		MaskedPassword: maskValue(record.Password),
		PasswordLength: utf8.RuneCountInString(record.Password),
		Strength:       strengthInfo(security.EstimatePassword(record.Password)),
	}, nil
}

// handleSecurityAudit handles the security_audit tool call.
func (s *Server) handleSecurityAudit(_ context.Context, _ *mcp.CallToolRequest, _ SecurityAuditInput) (*mcp.CallToolResult, security.SecurityScore, error) {
	if err := s.allow(ToolSecurityAudit); err != nil {
		return nil, security.SecurityScore{}, err
	}
	store, err := s.store()
	if err != nil {
		return nil, security.SecurityScore{}, err
	}

	// a fresh calculator per call keeps the HMAC key call-local
	score, err := security.NewCalculator(security.AudienceAgent).CalculateScore(store.Records())
	if err != nil {
		return nil, security.SecurityScore{}, fmt.Errorf("failed to calculate security score: %w", err)
	}
	s.logger.Debug("security audit", zap.Int("overall", score.Overall), zap.Int("issues", len(score.Issues)))
	return nil, *score, nil
}

// maskValue masks a password for display to an agent.
// | Length  | Format          | Example   |
// |---------|-----------------|-----------|
// | 1-4     | All *           | ****      |
// | 5-8     | Show last 2     | ******XY  |
// | 9+      | Show last 4     | ****WXYZ  |
func maskValue(value string) string {
	runes := []rune(value)
	length := len(runes)
	if length == 0 {
		return ""
	}

	switch {
	case length <= 4:
		return strings.Repeat("*", length)
	case length <= 8:
		return strings.Repeat("*", length-2) + string(runes[length-2:])
	default:
		return strings.Repeat("*", length-4) + string(runes[length-4:])
	}
}
