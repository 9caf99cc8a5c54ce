// Package security provides password strength estimation and vault audits.
package security

import (
	"math"
	"unicode"

	"github.com/forest6511/vaultx/pkg/generator"
)

// Tier is the ordinal strength classification of a password.
type Tier int

const (
	// TierVeryWeak is below 40 bits of entropy.
	TierVeryWeak Tier = iota
	// TierWeak is 40 to 60 bits.
	TierWeak
	// TierMedium is 60 to 80 bits.
	TierMedium
	// TierStrong is 80 to 100 bits.
	TierStrong
	// TierVeryStrong is 100 bits or more.
	TierVeryStrong
)

// String returns a human-readable representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierVeryWeak:
		return "very weak"
	case TierWeak:
		return "weak"
	case TierMedium:
		return "medium"
	case TierStrong:
		return "strong"
	case TierVeryStrong:
		return "very strong"
	default:
		return "unknown"
	}
}

// Percentage returns the display value for the tier: 20, 40, 60, 80 or 100.
func (t Tier) Percentage() int {
	switch t {
	case TierVeryWeak:
		return 20
	case TierWeak:
		return 40
	case TierMedium:
		return 60
	case TierStrong:
		return 80
	case TierVeryStrong:
		return 100
	default:
		return 0
	}
}

// Tier thresholds in bits.
const (
	weakBits       = 40
	mediumBits     = 60
	strongBits     = 80
	veryStrongBits = 100
)

// Strength is the result of an estimate.
type Strength struct {
	EntropyBits float64 `json:"entropy_bits"`
	Tier        Tier    `json:"tier"`
	Percentage  int     `json:"percentage"`
}

// ClassSize returns the alphabet size the estimator assigns to a single class.
// Symbols count as 32 even though the generator emits fewer.
func ClassSize(c generator.Class) int {
	switch c {
	case generator.Upper, generator.Lower:
		return 26
	case generator.Digit:
		return 10
	case generator.Symbol:
		return 32
	default:
		return 0
	}
}

// Complexity sums the class sizes of the enabled classes.
func Complexity(classes generator.Class) int {
	total := 0
	for _, c := range classes.Classes() {
		total += ClassSize(c)
	}
	return total
}

// Estimate computes entropy as log2(complexity) * length and maps it to a tier.
func Estimate(length int, classes generator.Class) Strength {
	complexity := Complexity(classes)
	if complexity == 0 || length <= 0 {
		return Strength{Tier: TierVeryWeak, Percentage: TierVeryWeak.Percentage()}
	}

	bits := math.Log2(float64(complexity)) * float64(length)
	tier := tierFor(bits)
	return Strength{
		EntropyBits: bits,
		Tier:        tier,
		Percentage:  tier.Percentage(),
	}
}

func tierFor(bits float64) Tier {
	switch {
	case bits < weakBits:
		return TierVeryWeak
	case bits < mediumBits:
		return TierWeak
	case bits < strongBits:
		return TierMedium
	case bits < veryStrongBits:
		return TierStrong
	default:
		return TierVeryStrong
	}
}

// ClassesOf detects the registry classes a concrete password draws from.
// Symbols outside the registry do not enable the symbol class.
func ClassesOf(password string) generator.Class {
	var c generator.Class
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			c |= generator.Upper
		case r >= 'a' && r <= 'z':
			c |= generator.Lower
		case unicode.IsDigit(r) && r < 0x80:
			c |= generator.Digit
		case isRegistrySymbol(r):
			c |= generator.Symbol
		}
	}
	return c
}

func isRegistrySymbol(r rune) bool {
	for _, s := range generator.Symbols {
		if s == r {
			return true
		}
	}
	return false
}

// EstimatePassword estimates an existing password from its length and detected classes.
func EstimatePassword(password string) Strength {
	return Estimate(len([]rune(password)), ClassesOf(password))
}
