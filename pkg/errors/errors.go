// Package errors provides the application error taxonomy shared by goRestKit services.
// Every error written to a client has the shape {"code": "...", "message": "..."}.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError. The kind fixes the HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUnprocessable
	KindTooManyRequests
	KindUnavailable
	KindMethodNotAllowed
)

// Default machine-readable codes, one per kind
const (
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeUnprocessable    = "UNPROCESSABLE_ENTITY"
	ErrCodeTooManyRequests  = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// InternalMessage replaces the message of every Internal error on the wire
const InternalMessage = "Internal server error"

var kindInfo = map[Kind]struct {
	name   string
	status int
	code   string
}{
	KindInternal:         {"internal", http.StatusInternalServerError, ErrCodeInternal},
	KindValidation:       {"validation", http.StatusBadRequest, ErrCodeValidation},
	KindNotFound:         {"not_found", http.StatusNotFound, ErrCodeNotFound},
	KindConflict:         {"conflict", http.StatusConflict, ErrCodeConflict},
	KindUnauthorized:     {"unauthorized", http.StatusUnauthorized, ErrCodeUnauthorized},
	KindForbidden:        {"forbidden", http.StatusForbidden, ErrCodeForbidden},
	KindUnprocessable:    {"unprocessable", http.StatusUnprocessableEntity, ErrCodeUnprocessable},
	KindTooManyRequests:  {"too_many_requests", http.StatusTooManyRequests, ErrCodeTooManyRequests},
	KindUnavailable:      {"unavailable", http.StatusServiceUnavailable, ErrCodeUnavailable},
	KindMethodNotAllowed: {"method_not_allowed", http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed},
}

// Kinds lists every declared kind.
func Kinds() []Kind {
	return []Kind{
		KindInternal, KindValidation, KindNotFound, KindConflict, KindUnauthorized,
		KindForbidden, KindUnprocessable, KindTooManyRequests, KindUnavailable, KindMethodNotAllowed,
	}
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return kindInfo[KindInternal].name
}

// HTTPStatus returns the status code for the kind. Unknown kinds are Internal.
func (k Kind) HTTPStatus() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// DefaultCode returns the code used when a constructor is not given one.
func (k Kind) DefaultCode() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return ErrCodeInternal
}

// FieldError describes one failed check on a single input field
type FieldError struct {
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// AppError is the error type every handler returns to the HTTP layer
type AppError struct {
	Kind    Kind                    `json:"-"`
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  map[string][]FieldError `json:"field_errors,omitempty"`
	Err     error                   `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same kind and code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// HTTPStatus returns the HTTP status code for the error
func (e *AppError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// WithField attaches a field level detail and returns the same error.
func (e *AppError) WithField(field string, fe FieldError) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string][]FieldError)
	}
	e.Fields[field] = append(e.Fields[field], fe)
	return e
}

func newError(kind Kind, code, message string) *AppError {
	if code == "" {
		code = kind.DefaultCode()
	}
	return &AppError{Kind: kind, Code: code, Message: message}
}

// New creates an error of the given kind. An empty code falls back to the kind default.
func New(kind Kind, code, message string) *AppError {
	return newError(kind, code, message)
}

// NewValidationError creates validation errors (400 Bad Request)
func NewValidationError(errCode, message string) *AppError {
	return newError(KindValidation, errCode, message)
}

// NewFieldValidationError creates a validation error carrying detail for one field
func NewFieldValidationError(field, errCode, message string) *AppError {
	return newError(KindValidation, errCode, message).
		WithField(field, FieldError{Code: errCode, Message: message})
}

// NewNotFoundError creates not found errors (404 Not Found)
func NewNotFoundError(message string) *AppError {
	if message == "" {
		message = "Resource not found"
	}
	return newError(KindNotFound, "", message)
}

// NewResourceNotFoundError creates a not found error naming the lookup that failed
func NewResourceNotFoundError(resource, attribute, value string) *AppError {
	return newError(KindNotFound, "", fmt.Sprintf("%s with %s equals to %q not found or was removed", resource, attribute, value))
}

// NewConflictError creates conflict errors (409 Conflict)
func NewConflictError(errCode, message string) *AppError {
	return newError(KindConflict, errCode, message)
}

// NewUnauthorizedError creates unauthorized errors (401 Unauthorized)
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "Authentication required"
	}
	return newError(KindUnauthorized, "", message)
}

// NewForbiddenError creates forbidden errors (403 Forbidden)
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "Access denied"
	}
	return newError(KindForbidden, "", message)
}

// NewUnprocessableError creates errors for syntactically broken payloads (422)
func NewUnprocessableError(errCode, message string) *AppError {
	return newError(KindUnprocessable, errCode, message)
}

// NewTooManyRequestsError creates rate limit errors (429 Too Many Requests)
func NewTooManyRequestsError() *AppError {
	return newError(KindTooManyRequests, "", "Too many requests")
}

// NewUnavailableError creates errors for dependencies that cannot be reached (503)
func NewUnavailableError(err error) *AppError {
	e := newError(KindUnavailable, "", "Service temporarily unavailable")
	e.Err = err
	return e
}

// NewMethodNotAllowedError creates errors for unsupported HTTP methods (405)
func NewMethodNotAllowedError(method string) *AppError {
	return newError(KindMethodNotAllowed, "", fmt.Sprintf("Method %s not allowed", method))
}

// NewInternalError wraps an unexpected failure (500). The message of err is
// kept for logs only.
func NewInternalError(err error) *AppError {
	msg := InternalMessage
	if err != nil {
		msg = err.Error()
	}
	return &AppError{Kind: KindInternal, Code: ErrCodeInternal, Message: msg, Err: err}
}

// Wrap turns err into an AppError. AppErrors pass through; anything else
// becomes Internal with msg prepended to the cause.
func Wrap(err error, msg string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	if msg == "" {
		return NewInternalError(err)
	}
	return NewInternalError(fmt.Errorf("%s: %w", msg, err))
}

// From classifies any error. It is total: nil yields nil, an AppError found
// anywhere in the chain is returned as is, everything else is Internal.
func From(err error) *AppError {
	return Wrap(err, "")
}

// As extracts an AppError from the error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err classifies as kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return From(err).Kind == kind
}
