package generator

import "strings"

// Alphabets of the character classes. The symbol alphabet is the set of symbols
// the generator can emit; the strength estimator counts the symbol class as 32
// regardless (see security.ClassSize).
const (
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Digits    = "0123456789"
	Symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Class is a bit set of character classes.
type Class uint8

const (
	Upper Class = 1 << iota
	Lower
	Digit
	Symbol

	// AllClasses enables every class.
	AllClasses = Upper | Lower | Digit | Symbol
)

// classOrder fixes the order in which alphabets are concatenated.
var classOrder = []Class{Upper, Lower, Digit, Symbol}

// Has reports whether every class in c2 is enabled in c.
func (c Class) Has(c2 Class) bool {
	return c&c2 == c2
}

// IsEmpty reports whether no class is enabled.
func (c Class) IsEmpty() bool {
	return c&AllClasses == 0
}

// Alphabet returns the alphabet of a single class, or "" for a combined set.
func (c Class) Alphabet() string {
	switch c {
	case Upper:
		return Uppercase
	case Lower:
		return Lowercase
	case Digit:
		return Digits
	case Symbol:
		return Symbols
	default:
		return ""
	}
}

// Charset returns the concatenation of the enabled alphabets in registry order.
func (c Class) Charset() string {
	var sb strings.Builder
	for _, cl := range classOrder {
		if c.Has(cl) {
			sb.WriteString(cl.Alphabet())
		}
	}
	return sb.String()
}

// Classes returns the enabled single classes in registry order.
func (c Class) Classes() []Class {
	var out []Class
	for _, cl := range classOrder {
		if c.Has(cl) {
			out = append(out, cl)
		}
	}
	return out
}

// String returns a comma-separated list of class names.
func (c Class) String() string {
	if c.IsEmpty() {
		return "none"
	}
	names := make([]string, 0, 4)
	for _, cl := range c.Classes() {
		switch cl {
		case Upper:
			names = append(names, "upper")
		case Lower:
			names = append(names, "lower")
		case Digit:
			names = append(names, "digit")
		case Symbol:
			names = append(names, "symbol")
		}
	}
	return strings.Join(names, ",")
}

// ClassesFromToggles builds a class set from the four UI toggles.
func ClassesFromToggles(upper, lower, digits, symbols bool) Class {
	var c Class
	if upper {
		c |= Upper
	}
	if lower {
		c |= Lower
	}
	if digits {
		c |= Digit
	}
	if symbols {
		c |= Symbol
	}
	return c
}
