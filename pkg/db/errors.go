package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres (pgx or lib/pq), GORM's translated ErrDuplicatedKey, or SQLite.
// When constraintName is provided, only violations of that constraint match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	if pg := pkgerrors.PostgresDetails(err); pg.Code != "" {
		if pg.Code != pgUniqueViolation {
			return false
		}
		if constraintName == "" {
			return true
		}
		return pg.Constraint == constraintName || strings.Contains(err.Error(), constraintName)
	}

	msg := err.Error()
	matched := errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
	if !matched {
		return false
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return true
}

// IsNotFound reports whether err is GORM's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
