// Package generator produces random passwords from the VaultX character classes.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// Length bounds for generated passwords.
const (
	MinLength     = 4
	MaxLength     = 64
	DefaultLength = 16

	// MaxCount bounds GenerateN.
	MaxCount = 100
)

// Errors
var (
	ErrEmptyCharset = errors.New("generator: character set is empty after exclusions")
	ErrInvalidCount = errors.New("generator: count out of range")
)

// Request describes a password to generate.
type Request struct {
	Length  int
	Classes Class
	// Exclude lists characters removed from the alphabet (e.g. "0O1lI").
	Exclude string
}

// DefaultRequest returns a 16 character request with every class enabled.
func DefaultRequest() Request {
	return Request{Length: DefaultLength, Classes: AllClasses}
}

// Normalize clamps the length and substitutes lowercase for an empty class set.
func (r Request) Normalize() Request {
	r.Length = ClampLength(r.Length)
	if r.Classes.IsEmpty() {
		r.Classes = Lower
	}
	return r
}

// Charset returns the alphabet the request draws from.
func (r Request) Charset() string {
	charset := r.Normalize().Classes.Charset()
	if r.Exclude != "" {
		charset = removeChars(charset, r.Exclude)
	}
	return charset
}

// ClampLength limits n to [MinLength, MaxLength].
func ClampLength(n int) int {
	switch {
	case n < MinLength:
		return MinLength
	case n > MaxLength:
		return MaxLength
	default:
		return n
	}
}

// Generator draws passwords from a random source.
type Generator struct {
	rand io.Reader
}

// New returns a Generator reading from r. A nil r selects crypto/rand.
func New(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

var defaultGenerator = New(nil)

// Generate draws a password using crypto/rand.
func Generate(req Request) (string, error) {
	return defaultGenerator.Generate(req)
}

// GenerateN draws n passwords using crypto/rand.
func GenerateN(req Request, n int) ([]string, error) {
	return defaultGenerator.GenerateN(req, n)
}

// Generate returns a password of req.Length characters, each drawn uniformly
// from the request's alphabet. rand.Int rejects out-of-range draws, so indices
// carry no modulo bias.
func (g *Generator) Generate(req Request) (string, error) {
	req = req.Normalize()
	charset := req.Charset()
	if charset == "" {
		return "", ErrEmptyCharset
	}

	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, req.Length)
	for i := range password {
		idx, err := rand.Int(g.rand, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}
	return string(password), nil
}

// GenerateN returns n independent passwords.
func (g *Generator) GenerateN(req Request, n int) ([]string, error) {
	if n < 1 || n > MaxCount {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidCount, n, MaxCount)
	}
	out := make([]string, n)
	for i := range out {
		pw, err := g.Generate(req)
		if err != nil {
			return nil, err
		}
		out[i] = pw
	}
	return out, nil
}

// removeChars removes specified characters from a string
func removeChars(s, chars string) string {
	exclude := make(map[rune]bool)
	for _, c := range chars {
		exclude[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !exclude[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}
