package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) && pkgerrors.Dump(err).PGConstraint != constraintName {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || pkgerrors.PGCode(err) == pgUniqueViolation {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsConstraintViolation reports unique or exclusion constraint failures, the
// two guards that back slot inserts.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if IsUniqueViolation(err, "") {
		return true
	}
	return pkgerrors.PGCode(err) == pgExclusionViolation ||
		strings.Contains(err.Error(), "conflicting key value violates exclusion constraint")
}

// IsNotFound reports whether gorm failed to locate a record.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
