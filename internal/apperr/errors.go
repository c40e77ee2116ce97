// Package apperr holds the sentinel errors shared by repositories, services
// and handlers. Callers wrap them with fmt.Errorf("...: %w", ErrX) and match
// with errors.Is.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound             = errors.New("resource not found")
	ErrValidation           = errors.New("validation error")
	ErrDuplicate            = errors.New("resource already exists")
	ErrConflict             = errors.New("conflict")
	ErrNoTenant             = errors.New("no tenant assigned")
	ErrForbidden            = errors.New("forbidden")
	ErrLimitReached         = errors.New("limit reached")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// Postgres SQLSTATE codes we classify.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// FromPg wraps err with the matching sentinel when it is a Postgres
// constraint error, keeping the original in the chain. Other errors are
// returned unchanged.
func FromPg(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case pgForeignKeyViolation, pgCheckViolation, pgInvalidText:
		return fmt.Errorf("%w: %s", ErrValidation, pgErr.Message)
	}
	return err
}

// Validation is shorthand for a wrapped ErrValidation with a reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
