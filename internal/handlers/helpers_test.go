package handlers

import (
	"bytes"
	"io"

	"github.com/chybatronik/goRestKit/internal/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(io.Discard, "debug", "json", "test-service", "1.0.0")
}

func bufferedLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.New(buf, "debug", "json", "test-service", "1.0.0")
}
