package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chybatronik/goRestKit/internal/store"
	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/chybatronik/goRestKit/pkg/page"
	"github.com/chybatronik/goRestKit/pkg/query"
	"github.com/chybatronik/goRestKit/pkg/resttest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users   []store.User
	total   *int64
	err     error
	params  *query.Params
	filter  store.Filter
	created []store.NewUser
}

func (f *fakeStore) List(_ context.Context, p *query.Params, filter store.Filter) ([]store.User, *int64, error) {
	f.params = p
	f.filter = filter
	return f.users, f.total, f.err
}

func (f *fakeStore) Get(_ context.Context, id string) (*store.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, pkgerrors.NewResourceNotFoundError("User", "id", id)
}

func (f *fakeStore) Create(_ context.Context, users ...store.NewUser) ([]store.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, users...)
	out := make([]store.User, len(users))
	for i, u := range users {
		out[i] = store.User{
			ID:            fmt.Sprintf("id-%d", i+1),
			FirstName:     u.FirstName,
			LastName:      u.LastName,
			Age:           u.Age,
			RecordingDate: 1700000000,
		}
	}
	return out, nil
}

func newRouter(s UserStore) http.Handler {
	h := NewUserHandler(s, quietLogger(), query.Options{DefaultSize: 20, MaxSize: 100}, 1024)
	r := chi.NewRouter()
	r.Mount("/users", h.Routes())
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sampleUsers(n int) []store.User {
	users := make([]store.User, n)
	for i := range users {
		users[i] = store.User{
			ID:        fmt.Sprintf("u%d", i+1),
			FirstName: "User",
			LastName:  fmt.Sprintf("N%d", i+1),
			Age:       20 + i,
		}
	}
	return users
}

func TestListUsers(t *testing.T) {
	total := int64(45)
	fs := &fakeStore{users: sampleUsers(20), total: &total}
	router := newRouter(fs)

	w := serve(router, http.MethodGet, "/users?page=2&size=20&sort=-age,last_name&min_age=18&q=ann&include_total=true", "")

	body := resttest.AssertRecorder(t, w, http.StatusOK)
	got := resttest.DecodeJSON[page.Page[store.User]](t, body)
	assert.Len(t, got.Data, 20)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 20, got.Offset)
	assert.Equal(t, 20, got.PageSize)
	require.NotNil(t, got.Total)
	assert.Equal(t, int64(45), *got.Total)
	assert.True(t, got.HasMore)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	require.NotNil(t, fs.params)
	assert.Equal(t, "age DESC, last_name", fs.params.OrderBy(""))
	assert.True(t, fs.params.IncludeTotal)
	require.NotNil(t, fs.filter.MinAge)
	assert.Equal(t, 18, *fs.filter.MinAge)
	assert.Equal(t, "ann", fs.filter.Name)
}

func TestListUsersDefaults(t *testing.T) {
	fs := &fakeStore{}
	w := serve(newRouter(fs), http.MethodGet, "/users", "")

	body := resttest.AssertRecorder(t, w, http.StatusOK)
	assert.JSONEq(t, `{"data":[],"offset":0,"page":1,"page_size":0,"has_more":false}`, string(body))

	assert.Equal(t, 1, fs.params.Page)
	assert.Equal(t, 20, fs.params.Size)
	assert.Equal(t, "recording_date DESC", fs.params.OrderBy(""))
}

func TestListUsersPastLastPage(t *testing.T) {
	zero := int64(0)
	w := serve(newRouter(&fakeStore{total: &zero}), http.MethodGet, "/users?page=9", "")

	body := resttest.AssertRecorder(t, w, http.StatusOK)
	got := resttest.DecodeJSON[page.Page[store.User]](t, body)
	assert.Equal(t, "Page 9 is past the last page", got.Warning)
}

func TestListUsersNotModified(t *testing.T) {
	router := newRouter(&fakeStore{users: sampleUsers(2)})

	first := serve(router, http.MethodGet, "/users", "")
	resttest.AssertRecorder(t, first, http.StatusOK)
	tag := first.Header().Get("ETag")
	require.NotEmpty(t, tag)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("If-None-Match", tag)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestListUsersInvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "page not numeric", query: "page=abc", field: query.ParamPage},
		{name: "page zero", query: "page=0", field: query.ParamPage},
		{name: "size too large", query: "size=101", field: query.ParamSize},
		{name: "sort not allowed", query: "sort=password", field: query.ParamSort},
		{name: "bad order", query: "order=sideways", field: query.ParamOrder},
		{name: "bad include_total", query: "include_total=maybe", field: query.ParamIncludeTotal},
		{name: "bad age filter", query: "min_age=200", field: store.FilterMinAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{}
			w := serve(newRouter(fs), http.MethodGet, "/users?"+tt.query, "")

			body := resttest.AssertRecorder(t, w, http.StatusBadRequest)
			resp := resttest.AssertErrorBody(t, body, "")
			assert.Contains(t, resp.FieldErrors, tt.field)
			assert.Nil(t, fs.params, "store must not be called")
		})
	}
}

func TestListUsersStoreFailure(t *testing.T) {
	fs := &fakeStore{err: pkgerrors.NewInternalError(errors.New("relation \"users\" does not exist"))}
	w := serve(newRouter(fs), http.MethodGet, "/users", "")

	body := resttest.AssertRecorder(t, w, http.StatusInternalServerError)
	resttest.AssertInternalError(t, body)
	assert.NotContains(t, string(body), "relation")
}

func TestGetUser(t *testing.T) {
	router := newRouter(&fakeStore{users: sampleUsers(3)})

	t.Run("found", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/users/u2", "")
		body := resttest.AssertRecorder(t, w, http.StatusOK)
		got := resttest.DecodeJSON[store.User](t, body)
		assert.Equal(t, "N2", got.LastName)
	})

	t.Run("missing", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/users/nope", "")
		body := resttest.AssertRecorder(t, w, http.StatusNotFound)
		resp := resttest.AssertErrorBody(t, body, pkgerrors.ErrCodeNotFound)
		assert.Equal(t, `User with id equals to "nope" not found or was removed`, resp.Message)
	})
}

func TestCreateUser(t *testing.T) {
	fs := &fakeStore{}
	w := serve(newRouter(fs), http.MethodPost, "/users", `{"first_name":"  Ann ","last_name":"Lee","age":30}`)

	body := resttest.AssertRecorder(t, w, http.StatusCreated)
	got := resttest.DecodeJSON[store.User](t, body)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Ann", got.FirstName)

	require.Len(t, fs.created, 1)
	assert.Equal(t, store.NewUser{FirstName: "Ann", LastName: "Lee", Age: 30}, fs.created[0])
}

func TestCreateUserValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantFields []string
	}{
		{
			name:       "all fields invalid",
			body:       `{"first_name":"","last_name":"   ","age":0}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   pkgerrors.ErrCodeValidation,
			wantFields: []string{"first_name", "last_name", "age"},
		},
		{
			name:       "control characters",
			body:       `{"first_name":"A\u0000nn","last_name":"Lee","age":30}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   pkgerrors.ErrCodeValidation,
			wantFields: []string{"first_name"},
		},
		{
			name:       "name too long",
			body:       `{"first_name":"` + strings.Repeat("a", 101) + `","last_name":"Lee","age":30}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   pkgerrors.ErrCodeValidation,
			wantFields: []string{"first_name"},
		},
		{
			name:       "age too high",
			body:       `{"first_name":"Ann","last_name":"Lee","age":121}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   pkgerrors.ErrCodeValidation,
			wantFields: []string{"age"},
		},
		{
			name:       "unknown field",
			body:       `{"first_name":"Ann","last_name":"Lee","age":30,"admin":true}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "malformed json",
			body:       `{"first_name":`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "body too large",
			body:       `{"first_name":"` + strings.Repeat("a", 2000) + `"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "REQUEST_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{}
			w := serve(newRouter(fs), http.MethodPost, "/users", tt.body)

			body := resttest.AssertRecorder(t, w, tt.wantStatus)
			resp := resttest.AssertErrorBody(t, body, tt.wantCode)
			for _, field := range tt.wantFields {
				assert.Contains(t, resp.FieldErrors, field)
			}
			assert.Empty(t, fs.created)
		})
	}
}

func TestCreateUserMissingContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	newRouter(&fakeStore{}).ServeHTTP(w, req)

	body := resttest.AssertRecorder(t, w, http.StatusBadRequest)
	resttest.AssertErrorBody(t, body, "INVALID_CONTENT_TYPE")
}

func TestCreateUserConflict(t *testing.T) {
	fs := &fakeStore{err: pkgerrors.NewConflictError("ALREADY_EXISTS", "Resource already exists")}
	w := serve(newRouter(fs), http.MethodPost, "/users", `{"first_name":"Ann","last_name":"Lee","age":30}`)

	body := resttest.AssertRecorder(t, w, http.StatusConflict)
	resttest.AssertErrorBody(t, body, "ALREADY_EXISTS")
}

func TestCreateUsersBatch(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		fs := &fakeStore{}
		w := serve(newRouter(fs), http.MethodPost, "/users/batch",
			`[{"first_name":"Ann","last_name":"Lee","age":30},{"first_name":"Bob","last_name":"Ray","age":40}]`)

		body := resttest.AssertRecorder(t, w, http.StatusCreated)
		got := resttest.DecodeJSON[page.Page[store.User]](t, body)
		assert.Len(t, got.Data, 2)
		require.NotNil(t, got.Total)
		assert.Equal(t, int64(2), *got.Total)
		assert.Len(t, fs.created, 2)
	})

	t.Run("one invalid stores nothing", func(t *testing.T) {
		fs := &fakeStore{}
		w := serve(newRouter(fs), http.MethodPost, "/users/batch",
			`[{"first_name":"Ann","last_name":"Lee","age":30},{"first_name":"","last_name":"Ray","age":400}]`)

		body := resttest.AssertRecorder(t, w, http.StatusBadRequest)
		resp := resttest.AssertErrorBody(t, body, pkgerrors.ErrCodeValidation)
		assert.Contains(t, resp.FieldErrors, "[1].first_name")
		assert.Contains(t, resp.FieldErrors, "[1].age")
		assert.NotContains(t, resp.FieldErrors, "[0].first_name")
		assert.Empty(t, fs.created)
	})

	t.Run("empty batch", func(t *testing.T) {
		w := serve(newRouter(&fakeStore{}), http.MethodPost, "/users/batch", `[]`)
		body := resttest.AssertRecorder(t, w, http.StatusBadRequest)
		resttest.AssertErrorBody(t, body, ErrCodeInvalidBatch)
	})
}
