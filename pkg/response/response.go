// Package response writes JSON responses and decodes JSON request bodies,
// reporting problems as pkg/errors AppErrors.
package response

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
	"github.com/chybatronik/goRestKit/pkg/stream"
)

// DefaultMaxBodyBytes limits request bodies read by DecodeJSON (1MB)
const DefaultMaxBodyBytes = 1 << 20

const (
	ErrCodeInvalidContentType = "INVALID_CONTENT_TYPE"
	ErrCodeEmptyRequestBody   = "EMPTY_REQUEST_BODY"
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	ErrCodeInvalidJSON        = "INVALID_JSON"
)

// JSON encodes v with status code and security headers
func JSON(w http.ResponseWriter, status int, v any) error {
	body, err := encode(v)
	if err != nil {
		return err
	}
	return write(w, status, body)
}

// JSONWithETag writes v like JSON and tags it with a weak ETag derived from
// the encoded body. A 200 response whose tag matches the request's
// If-None-Match header becomes 304 Not Modified without a body.
func JSONWithETag(w http.ResponseWriter, r *http.Request, status int, v any) error {
	body, err := encode(v)
	if err != nil {
		return err
	}

	tag := ETag(body)
	w.Header().Set("ETag", tag)
	if status == http.StatusOK && etagMatches(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}
	return write(w, status, body)
}

// ETag returns the weak entity tag of body
func ETag(body []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body))
}

// etagMatches uses the weak comparison If-None-Match calls for
func etagMatches(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return buf.Bytes(), nil
}

func write(w http.ResponseWriter, status int, body []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// DecodeJSON decodes the request body into dst. Wrong or missing content
// type and empty bodies are validation errors; bodies that are not valid JSON
// for dst are unprocessable. maxBytes <= 0 uses DefaultMaxBodyBytes.
func DecodeJSON(r *http.Request, dst any, maxBytes int64) error {
	if err := checkContentType(r); err != nil {
		return err
	}
	if r.Body == nil {
		return pkgerrors.NewValidationError(ErrCodeEmptyRequestBody, "Request body cannot be empty")
	}
	defer r.Body.Close()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := stream.ReadAll(r.Body, maxBytes)
	if stderrors.Is(err, stream.ErrTooLarge) {
		return pkgerrors.NewValidationError(ErrCodeRequestTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", maxBytes))
	}
	if err != nil {
		return pkgerrors.NewValidationError(ErrCodeEmptyRequestBody, "Failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return pkgerrors.NewValidationError(ErrCodeEmptyRequestBody, "Request body cannot be empty")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return pkgerrors.NewUnprocessableError(ErrCodeInvalidJSON, describeJSONError(err))
	}
	// a second value, or a stray } or ], must not follow
	if err := dec.Decode(&struct{}{}); !stderrors.Is(err, io.EOF) {
		return pkgerrors.NewUnprocessableError(ErrCodeInvalidJSON, "Request body must contain a single JSON value")
	}
	return nil
}

func checkContentType(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return pkgerrors.NewValidationError(ErrCodeInvalidContentType, "Content-Type header is required")
	}

	// handles "application/json; charset=utf-8"
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return pkgerrors.NewValidationError(ErrCodeInvalidContentType, "Invalid Content-Type header format")
	}
	if mediaType != "application/json" {
		return pkgerrors.NewValidationError(ErrCodeInvalidContentType, "Content-Type must be application/json")
	}
	return nil
}

func describeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case stderrors.As(err, &syntaxErr):
		return fmt.Sprintf("Invalid JSON format at offset %d", syntaxErr.Offset)
	case stderrors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("Invalid value for field %s", typeErr.Field)
		}
		return "Invalid JSON value type"
	case stderrors.Is(err, io.ErrUnexpectedEOF):
		return "Invalid JSON format"
	}
	// json reports unknown fields as `json: unknown field "x"`
	return "Invalid JSON: " + err.Error()
}
