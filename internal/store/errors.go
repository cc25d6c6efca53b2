package store

import (
	"errors"
	"fmt"
)

// SQLSTATE codes the application distinguishes.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

var (
	// ErrUnauthenticated is returned when an operation needs a user and the
	// context carries none.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound is returned when a row addressed by id does not exist or is
	// not visible to the current user.
	ErrNotFound = errors.New("record not found")
)

// Error is a failure reported by the store itself, carrying its error code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Status  int    `json:"-"` // HTTP status for REST stores, 0 otherwise
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsUniqueViolation reports whether err is a store uniqueness violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a store referential-integrity
// violation, e.g. deleting a spare part that changes still reference.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
