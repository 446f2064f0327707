package auth

import "strings"

const (
	minPasswordLen = 6
	maxPasswordLen = 20

	// The only symbols a password may contain; at least one is required.
	passwordSymbols = "@$!%*#?&"
)

// ValidatePassword enforces the registration password policy: 6-20
// characters, at least one lowercase letter, one uppercase letter, one
// digit and one symbol, with no characters outside those classes.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return ErrPasswordPolicy
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		default:
			return ErrPasswordPolicy
		}
	}
	if !lower || !upper || !digit || !symbol {
		return ErrPasswordPolicy
	}
	return nil
}
