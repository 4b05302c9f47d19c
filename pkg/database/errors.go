package database

import (
	"errors"

	"github.com/lib/pq"
)

const (
	uniqueViolation           = "23505"
	foreignKeyViolation       = "23503"
	invalidTextRepresentation = "22P02"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique violation, optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqError(err, uniqueViolation)
	if !ok {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsForeignKeyViolation reports whether err is a write referencing a row that does not exist.
func IsForeignKeyViolation(err error) bool {
	_, ok := pqError(err, foreignKeyViolation)
	return ok
}

// IsInvalidInput reports whether PostgreSQL refused a value it could not parse, such as a malformed UUID.
func IsInvalidInput(err error) bool {
	_, ok := pqError(err, invalidTextRepresentation)
	return ok
}

func pqError(err error, code pq.ErrorCode) (*pq.Error, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != code {
		return nil, false
	}
	return pqErr, true
}
