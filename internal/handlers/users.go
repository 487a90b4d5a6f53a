// Package handlers provides the HTTP handlers of the reference service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chybatronik/goRestKit/internal/logging"
	"github.com/chybatronik/goRestKit/internal/middleware"
	"github.com/chybatronik/goRestKit/internal/store"
	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/chybatronik/goRestKit/pkg/page"
	"github.com/chybatronik/goRestKit/pkg/query"
	"github.com/chybatronik/goRestKit/pkg/response"
	"github.com/go-chi/chi/v5"
)

const (
	maxNameLength = 100
	// MaxBatchSize caps the users accepted by one batch request
	MaxBatchSize = 100
)

// Field error codes for user input
const (
	ErrCodeMissingField  = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidName   = "INVALID_NAME"
	ErrCodeInvalidLength = "INVALID_FIELD_LENGTH"
	ErrCodeInvalidAge    = "INVALID_AGE_RANGE"
	ErrCodeInvalidBatch  = "INVALID_BATCH_SIZE"
)

// UserStore is the persistence the user handlers need. *store.Users implements it.
type UserStore interface {
	List(ctx context.Context, p *query.Params, f store.Filter) ([]store.User, *int64, error)
	Get(ctx context.Context, id string) (*store.User, error)
	Create(ctx context.Context, users ...store.NewUser) ([]store.User, error)
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
}

// UserHandler serves the /users endpoints
type UserHandler struct {
	store        UserStore
	logger       *logging.Logger
	errors       *pkgerrors.Responder
	listOptions  query.Options
	maxBodyBytes int64
}

// NewUserHandler creates a UserHandler. opts configures list paging; its
// sort and filter keys are set here.
func NewUserHandler(s UserStore, logger *logging.Logger, opts query.Options, maxBodyBytes int64) *UserHandler {
	opts.AllowedSort = store.SortFields
	opts.DefaultSort = store.DefaultSort
	opts.FilterKeys = store.FilterKeys

	return &UserHandler{
		store:        s,
		logger:       logger,
		errors:       pkgerrors.NewResponder(logger.Logger),
		listOptions:  opts,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes mounts the handlers on a fresh router
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListUsers)
	r.Post("/", h.CreateUser)
	r.Post("/batch", h.CreateUsers)
	r.Get("/{id}", h.GetUser)
	return r
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithRequestID(middleware.GetRequestID(r.Context()))

	params, err := query.ParseRequest(r, h.listOptions)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	filter, err := store.ParseFilter(params)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	users, total, err := h.store.List(r.Context(), params, filter)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	result := page.New(users, params.Pagination, total)
	if len(users) == 0 && params.Page > 1 {
		result.WithWarning(fmt.Sprintf("Page %d is past the last page", params.Page))
	}

	logger.Debug("users listed",
		"count", len(users),
		"page", params.Page,
		"size", params.Size,
		"sort", params.Values().Get(query.ParamSort),
	)

	if err := response.JSONWithETag(w, r, http.StatusOK, result); err != nil {
		logger.WithError(err).Error("failed to write users response")
	}
}

// GetUser handles GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := response.JSONWithETag(w, r, http.StatusOK, user); err != nil {
		h.logger.WithRequestID(middleware.GetRequestID(r.Context())).
			WithError(err).Error("failed to write user response")
	}
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithRequestID(middleware.GetRequestID(r.Context()))

	var req CreateUserRequest
	if err := response.DecodeJSON(r, &req, h.maxBodyBytes); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	user, err := validateUser(req, "")
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	created, err := h.store.Create(r.Context(), user)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	logger.Info("user created", "user_id", created[0].ID)
	if err := response.JSON(w, http.StatusCreated, created[0]); err != nil {
		logger.WithError(err).Error("failed to write user response")
	}
}

// CreateUsers handles POST /users/batch. The users are stored in a single
// transaction; one failure stores none of them.
func (h *UserHandler) CreateUsers(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithRequestID(middleware.GetRequestID(r.Context()))

	var reqs []CreateUserRequest
	if err := response.DecodeJSON(r, &reqs, h.maxBodyBytes); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if len(reqs) == 0 || len(reqs) > MaxBatchSize {
		h.errors.Write(w, r, pkgerrors.NewValidationError(ErrCodeInvalidBatch,
			fmt.Sprintf("Batch must contain between 1 and %d users", MaxBatchSize)))
		return
	}

	users := make([]store.NewUser, 0, len(reqs))
	var invalid *pkgerrors.AppError
	for i, req := range reqs {
		user, err := validateUser(req, fmt.Sprintf("[%d].", i))
		if err != nil {
			invalid = mergeFieldErrors(invalid, err)
			continue
		}
		users = append(users, user)
	}
	if invalid != nil {
		h.errors.Write(w, r, invalid)
		return
	}

	created, err := h.store.Create(r.Context(), users...)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	logger.Info("users created", "count", len(created))
	if err := response.JSON(w, http.StatusCreated, page.FromSlice(created)); err != nil {
		logger.WithError(err).Error("failed to write users response")
	}
}

// validateUser checks every field and reports all failures at once. prefix
// qualifies field names inside a batch.
func validateUser(req CreateUserRequest, prefix string) (store.NewUser, error) {
	appErr := pkgerrors.NewValidationError("", "User input validation failed")

	firstName := checkName(appErr, prefix+"first_name", req.FirstName)
	lastName := checkName(appErr, prefix+"last_name", req.LastName)
	if req.Age < store.MinAge || req.Age > store.MaxAge {
		appErr.WithField(prefix+"age", pkgerrors.FieldError{
			Code:    ErrCodeInvalidAge,
			Message: fmt.Sprintf("Age must be between %d and %d", store.MinAge, store.MaxAge),
			Params:  map[string]any{"min": store.MinAge, "max": store.MaxAge, "value": req.Age},
		})
	}

	if len(appErr.Fields) > 0 {
		return store.NewUser{}, appErr
	}
	return store.NewUser{FirstName: firstName, LastName: lastName, Age: req.Age}, nil
}

func checkName(appErr *pkgerrors.AppError, field, value string) string {
	name, err := query.CleanText(value, maxNameLength)
	switch {
	case errors.Is(err, query.ErrTextTooLong):
		appErr.WithField(field, pkgerrors.FieldError{
			Code:    ErrCodeInvalidLength,
			Message: fmt.Sprintf("%s cannot exceed %d characters", field, maxNameLength),
			Params:  map[string]any{"max": maxNameLength},
		})
	case err != nil:
		appErr.WithField(field, pkgerrors.FieldError{
			Code:    ErrCodeInvalidName,
			Message: fmt.Sprintf("Invalid characters in %s", field),
		})
	case name == "":
		appErr.WithField(field, pkgerrors.FieldError{
			Code:    ErrCodeMissingField,
			Message: fmt.Sprintf("Missing required field: %s", field),
		})
	}
	return name
}

func mergeFieldErrors(dst *pkgerrors.AppError, err error) *pkgerrors.AppError {
	src, ok := pkgerrors.As(err)
	if !ok {
		return dst
	}
	if dst == nil {
		return src
	}
	for field, fes := range src.Fields {
		for _, fe := range fes {
			dst.WithField(field, fe)
		}
	}
	return dst
}
