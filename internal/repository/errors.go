package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DuplicateError reports a unique-constraint violation. Field is the
// offending column when it can be recovered from the driver error.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return "duplicate record"
	}
	return "duplicate " + e.Field
}

func (e *DuplicateError) Unwrap() error { return e.Err }

const pgUniqueViolation = "23505"

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique failed")
}

// duplicateFor returns a DuplicateError when err is a unique violation,
// naming the first candidate column that appears in the driver message.
func duplicateFor(err error, candidates ...string) (*DuplicateError, bool) {
	if !isUniqueConstraintError(err) {
		return nil, false
	}
	detail := strings.ToLower(err.Error())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail = strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail + " " + pgErr.Message)
	}
	for _, c := range candidates {
		if strings.Contains(detail, c) {
			return &DuplicateError{Field: c, Err: err}, true
		}
	}
	return &DuplicateError{Err: err}, true
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
