package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create an account with an existing email
	ErrDuplicateEmail = errors.New("account with this email already exists")

	// ErrDuplicateExternalID is returned when an external subject is already linked to another account
	ErrDuplicateExternalID = errors.New("external subject already linked to another account")
)

const (
	uniqueViolation = "23505"

	constraintAccountEmail      = "accounts_email_key"
	constraintAccountExternalID = "accounts_external_subject_id_key"
)

// uniqueViolationConstraint reports the violated constraint name when err is a unique violation
func uniqueViolationConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
