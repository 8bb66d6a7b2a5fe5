package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 20
)

// ValidateUsername trims the candidate and checks it against the account username rules.
// It returns the normalized username.
func ValidateUsername(username string) (string, error) {
	u := strings.TrimSpace(username)
	n := utf8.RuneCountInString(u)
	if n < UsernameMinLength || n > UsernameMaxLength {
		return "", &UsernameError{Reason: "Username must be between 3 and 20 characters"}
	}
	for _, r := range u {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", &UsernameError{Reason: "Username cannot contain spaces or control characters"}
		}
	}
	return u, nil
}
