// Package resttest holds assertions for HTTP handler tests. Failures are
// reported through testify so they read like the rest of the suite.
package resttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/chybatronik/goRestKit/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatus reads and closes the body of resp and checks its status code.
// The body is printed when the status does not match. It returns the body so
// the caller can decode it.
func AssertStatus(t testing.TB, resp *http.Response, want int) []byte {
	t.Helper()
	require.NotNil(t, resp, "response is nil")
	if resp == nil {
		return nil
	}

	var body []byte
	if resp.Body != nil {
		defer resp.Body.Close()
		var err error
		body, err = stream.ReadAll(resp.Body, 0)
		require.NoError(t, err, "failed to read response body")
	}

	assert.Equal(t, want, resp.StatusCode, "Response Body: %s", body)
	return body
}

// AssertRecorder is AssertStatus for an httptest.ResponseRecorder
func AssertRecorder(t testing.TB, rec *httptest.ResponseRecorder, want int) []byte {
	t.Helper()
	return AssertStatus(t, rec.Result(), want)
}

// AssertErrorBody checks that body is an error response: a JSON object with
// exactly "code" and "message" (plus optional "field_errors"), both strings,
// with a non-empty code. When code is not empty it must match.
func AssertErrorBody(t testing.TB, body []byte, code string) pkgerrors.ErrorResponse {
	t.Helper()

	var raw map[string]json.RawMessage
	if !assert.NoError(t, json.Unmarshal(body, &raw), "error body is not a JSON object: %s", body) {
		return pkgerrors.ErrorResponse{}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := raw["field_errors"]; ok {
		assert.Equal(t, []string{"code", "field_errors", "message"}, keys, "unexpected keys in error body: %s", body)
	} else {
		assert.Equal(t, []string{"code", "message"}, keys, "unexpected keys in error body: %s", body)
	}

	var resp pkgerrors.ErrorResponse
	var s string
	if assert.NoError(t, json.Unmarshal(raw["code"], &s), "code must be a string: %s", body) {
		resp.Code = s
	}
	s = ""
	if assert.NoError(t, json.Unmarshal(raw["message"], &s), "message must be a string: %s", body) {
		resp.Message = s
	}
	if fe, ok := raw["field_errors"]; ok {
		assert.NoError(t, json.Unmarshal(fe, &resp.FieldErrors), "field_errors must map fields to error lists: %s", body)
	}

	assert.NotEmpty(t, resp.Code, "error code is empty: %s", body)
	if code != "" {
		assert.Equal(t, code, resp.Code, "Response Body: %s", body)
	}
	return resp
}

// AssertInternalError checks that body is the generic internal error response
func AssertInternalError(t testing.TB, body []byte) {
	t.Helper()
	resp := AssertErrorBody(t, body, pkgerrors.ErrCodeInternal)
	assert.Equal(t, pkgerrors.InternalMessage, resp.Message, "internal error message leaked")
	assert.Empty(t, resp.FieldErrors)
}

// DecodeJSON unmarshals body into a T, failing the test on malformed input
func DecodeJSON[T any](t testing.TB, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), "failed to decode body: %s", body)
	return v
}
