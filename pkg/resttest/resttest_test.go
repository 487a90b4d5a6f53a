package resttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingT captures failures instead of failing the enclosing test
type recordingT struct {
	testing.TB
	failed bool
	msgs   []string
}

func (r *recordingT) Errorf(format string, args ...any) {
	r.failed = true
	r.msgs = append(r.msgs, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() {
	r.failed = true
}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.Errorf(format, args...)
}

func record(t *testing.T) *recordingT {
	return &recordingT{TB: t}
}

func TestAssertStatus(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		pkgerrors.Write(w, r, pkgerrors.NewNotFoundError(""))
	}

	t.Run("match returns body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))

		body := AssertRecorder(t, rec, http.StatusNotFound)
		assert.JSONEq(t, `{"code":"NOT_FOUND","message":"Resource not found"}`, string(body))
	})

	t.Run("mismatch prints body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))

		rt := record(t)
		AssertRecorder(rt, rec, http.StatusOK)
		require.True(t, rt.failed)
		assert.Contains(t, rt.msgs[0], "Response Body:")
		assert.Contains(t, rt.msgs[0], "NOT_FOUND")
	})

	t.Run("nil response", func(t *testing.T) {
		rt := record(t)
		assert.Nil(t, AssertStatus(rt, nil, http.StatusOK))
		assert.True(t, rt.failed)
	})
}

func TestAssertErrorBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   string
		failed bool
	}{
		{"valid", `{"code":"NOT_FOUND","message":"gone"}`, "NOT_FOUND", false},
		{"any code", `{"code":"CONFLICT","message":"taken"}`, "", false},
		{"with field errors", `{"code":"VALIDATION_ERROR","message":"bad","field_errors":{"page":[{"code":"INVALID_PAGE_PARAMETER","message":"bad"}]}}`, "VALIDATION_ERROR", false},
		{"empty message allowed", `{"code":"X","message":""}`, "X", false},
		{"wrong code", `{"code":"NOT_FOUND","message":"gone"}`, "CONFLICT", true},
		{"missing message", `{"code":"NOT_FOUND"}`, "", true},
		{"extra key", `{"code":"NOT_FOUND","message":"gone","stack":"main.go:12"}`, "", true},
		{"numeric code", `{"code":404,"message":"gone"}`, "", true},
		{"empty code", `{"code":"","message":"gone"}`, "", true},
		{"not an object", `["code","message"]`, "", true},
		{"not json", `Internal Server Error`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := record(t)
			AssertErrorBody(rt, []byte(tt.body), tt.code)
			assert.Equal(t, tt.failed, rt.failed, "messages: %v", rt.msgs)
		})
	}
}

func TestAssertErrorBodyMatchesResponder(t *testing.T) {
	errs := []*pkgerrors.AppError{
		pkgerrors.NewValidationError("INVALID_SIZE_PARAMETER", "size must be between 1 and 100"),
		pkgerrors.NewFieldValidationError("sort", "INVALID_SORT_FIELD", "unknown sort field"),
		pkgerrors.NewResourceNotFoundError("User", "id", "7"),
		pkgerrors.NewTooManyRequestsError(),
		pkgerrors.NewInternalError(fmt.Errorf("pq: relation \"users\" does not exist")),
	}

	for _, e := range errs {
		rec := httptest.NewRecorder()
		pkgerrors.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), e)

		body := AssertRecorder(t, rec, e.HTTPStatus())
		resp := AssertErrorBody(t, body, e.Code)
		assert.Equal(t, e.Response().Message, resp.Message)
	}
}

func TestAssertInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	pkgerrors.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("dial tcp 10.0.0.5:5432: refused"))
	AssertInternalError(t, AssertRecorder(t, rec, http.StatusInternalServerError))

	rt := record(t)
	AssertInternalError(rt, []byte(`{"code":"INTERNAL_ERROR","message":"dial tcp 10.0.0.5:5432: refused"}`))
	assert.True(t, rt.failed)
}

func TestDecodeJSON(t *testing.T) {
	type user struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	u := DecodeJSON[user](t, []byte(`{"id":3,"name":"Ada"}`))
	assert.Equal(t, user{ID: 3, Name: "Ada"}, u)

	rt := record(t)
	DecodeJSON[user](rt, []byte(`{"id":`))
	assert.True(t, rt.failed)
}
