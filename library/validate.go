package library

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+$`)

// ValidateEmail reports ErrInvalidEmailFormat unless email is a single
// local-part@domain address without spaces.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmailFormat, email)
	}
	return nil
}

func normalizeISBN(isbn string) (string, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return "", ErrInvalidISBN
	}
	return isbn, nil
}
