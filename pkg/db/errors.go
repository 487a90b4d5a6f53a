package db

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"log/slog"
	"strings"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Codes for database failures surfaced to clients
const (
	ErrCodeConstraintViolation = "CONSTRAINT_VIOLATION"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
)

// MapError classifies a driver error as an AppError. The client message is
// always generic; the driver error stays in Err for logging.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := pkgerrors.As(err); ok {
		return appErr
	}

	if stderrors.Is(err, pgx.ErrNoRows) {
		e := pkgerrors.NewNotFoundError("Resource not found")
		e.Err = err
		return e
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		slog.Debug("database error",
			"sqlstate", pgErr.Code,
			"table", pgErr.TableName,
			"constraint", pgErr.ConstraintName,
		)

		switch pgErr.Code {
		case "23505": // unique violation
			e := pkgerrors.NewConflictError(ErrCodeAlreadyExists, "Resource already exists")
			e.Err = err
			return e
		case "23503", "23502", "23514": // foreign key, not null, check
			e := pkgerrors.NewValidationError(ErrCodeConstraintViolation, "Request failed validation")
			e.Err = err
			return e
		}
	}

	if isConnectionError(err) {
		return pkgerrors.NewUnavailableError(err)
	}

	return pkgerrors.NewInternalError(err)
}

// isConnectionError checks if error is a connection-related error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, driver.ErrBadConn) {
		return true
	}

	// timeouts and cancellations while waiting on the pool or the server
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return true
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		// class 08: connection exception, class 53: insufficient resources
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "53")
	}

	var connectErr *pgconn.ConnectError
	return stderrors.As(err, &connectErr) || pgconn.Timeout(err)
}
