package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
)

// Recoverer turns a handler panic into an Internal error response. When the
// handler already sent its status line only the log record is written.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Recoverer(responder *pkgerrors.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := NewResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := pkgerrors.NewInternalError(fmt.Errorf("panic: %v\n%s", rec, debug.Stack()))
				if wrapped.HeaderWritten() {
					// too late for a body, the responder still logs it
					responder.Write(discardWriter{header: http.Header{}}, r, err)
					return
				}
				responder.Write(wrapped, r, err)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// NotFound answers unknown routes with a NOT_FOUND error body
func NotFound(responder *pkgerrors.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder.Write(w, r, pkgerrors.NewNotFoundError(""))
	}
}

// MethodNotAllowed answers known routes hit with the wrong method
func MethodNotAllowed(responder *pkgerrors.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder.Write(w, r, pkgerrors.NewMethodNotAllowedError(r.Method))
	}
}

type discardWriter struct {
	header http.Header
}

func (d discardWriter) Header() http.Header         { return d.header }
func (d discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (d discardWriter) WriteHeader(int)             {}
