package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound         = errors.New("profile not found")
	ErrVoucherTemplateNotFound = errors.New("voucher template not found")
	ErrVoucherUsageNotFound    = errors.New("voucher usage not found")
	ErrVoucherCodeExists       = errors.New("voucher code already exists")
	// ErrUsageLimitReached means the conditional increment matched no row.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
)

// PostgreSQL error codes.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// isCheckViolation reports whether err is a CHECK constraint violation.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}
