package library

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserHasLoans       = errors.New("user has unreturned loans")
	ErrNoCopyAvailable    = errors.New("no copy available")
	ErrBookNotFound       = errors.New("book not found")
	ErrInvalidSearchType  = errors.New("invalid search type")
	ErrInvalidSearchTerm  = errors.New("invalid search term")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrInvalidISBN        = errors.New("invalid isbn")
	ErrInvalidCopyCount   = errors.New("copy count must be positive")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
