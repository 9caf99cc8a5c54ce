package vault

import "unicode/utf8"

// Master password length limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// ValidateMasterPassword checks the length limits of a new master password.
func ValidateMasterPassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
