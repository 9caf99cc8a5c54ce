package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultx/pkg/generator"
	"github.com/forest6511/vaultx/pkg/security"
)

type generateOptions struct {
	count   int
	exclude string
	copy    bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate secure random passwords",
		Long: `Generate cryptographically secure random passwords and show their strength.

Defaults come from the generator section of the config file.

Examples:
  # Generate a 16-character password (default)
  vaultx generate

  # Generate a 32-character password without symbols
  vaultx generate -l 32 --symbols=false

  # Generate 5 passwords
  vaultx generate -n 5

  # Generate and copy to clipboard
  vaultx generate -c

  # Generate password excluding ambiguous characters
  vaultx generate --exclude "0O1lI"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntP("length", "l", generator.DefaultLength, fmt.Sprintf("password length (%d-%d)", generator.MinLength, generator.MaxLength))
	f.Bool("upper", true, "include uppercase letters")
	f.Bool("lower", true, "include lowercase letters")
	f.Bool("digits", true, "include digits")
	f.Bool("symbols", true, "include symbols")
	f.IntVarP(&opts.count, "count", "n", 1, fmt.Sprintf("number of passwords to generate (1-%d)", generator.MaxCount))
	f.StringVar(&opts.exclude, "exclude", "", "characters to exclude")
	f.BoolVarP(&opts.copy, "copy", "c", false, "copy the first password to the clipboard")

	return cmd
}

// generatorRequest builds a request from the configured generator defaults.
func (a *app) generatorRequest(exclude string) generator.Request {
	g := a.cfg.Generator
	return generator.Request{
		Length:  g.Length,
		Classes: generator.ClassesFromToggles(g.Upper, g.Lower, g.Digits, g.Symbols),
		Exclude: exclude,
	}
}

func (a *app) runGenerate(cmd *cobra.Command, opts generateOptions) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	req := a.generatorRequest(opts.exclude)
	normalized := req.Normalize()
	if normalized.Length != req.Length {
		fmt.Fprintf(errOut, "Length adjusted to %d (allowed %d-%d)\n", normalized.Length, generator.MinLength, generator.MaxLength)
	}
	if req.Classes.IsEmpty() {
		fmt.Fprintln(errOut, "No character classes selected, using lowercase letters")
	}

	passwords, err := generator.GenerateN(normalized, opts.count)
	if err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	for _, pw := range passwords {
		fmt.Fprintln(out, pw)
	}

	st := security.Estimate(normalized.Length, normalized.Classes)
	fmt.Fprintf(errOut, "Strength: %s (%.1f bits, %d%%)\n", st.Tier, st.EntropyBits, st.Percentage)

	if opts.copy {
		a.copyToClipboard(cmd, passwords[0], "Password")
	}
	return nil
}

// copyToClipboard copies text and reports the outcome on stderr. Failure is not fatal.
func (a *app) copyToClipboard(cmd *cobra.Command, text, what string) {
	errOut := cmd.ErrOrStderr()
	if err := a.copy(text); err != nil {
		fmt.Fprintf(errOut, "Warning: failed to copy to clipboard: %v\n", err)
		return
	}
	fmt.Fprintf(errOut, "%s copied to clipboard\n", what)
}
