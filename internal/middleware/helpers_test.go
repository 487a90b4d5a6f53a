package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
)

func quietResponder() *pkgerrors.Responder {
	return pkgerrors.NewResponder(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func bufferedResponder(buf *bytes.Buffer) *pkgerrors.Responder {
	return pkgerrors.NewResponder(slog.New(slog.NewJSONHandler(buf, nil)))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
})
