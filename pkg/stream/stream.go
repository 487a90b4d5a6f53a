// Package stream collects request and response bodies into memory.
package stream

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"unicode/utf8"

	pkgerrors "github.com/chybatronik/goRestKit/pkg/errors"
)

// DefaultChunkSize is used by Chunks when size is not positive
const DefaultChunkSize = 32 * 1024

// ErrTooLarge is returned by ReadAll when the body exceeds its limit
var ErrTooLarge = stderrors.New("body exceeds size limit")

// Collect concatenates the chunks of seq in order. The first error stops the
// iteration and is returned along with the bytes collected so far.
func Collect(seq iter.Seq2[[]byte, error]) ([]byte, error) {
	var buf bytes.Buffer
	for chunk, err := range seq {
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// Chunks yields r in pieces of at most size bytes. Each yielded slice is a
// fresh copy and may be retained by the caller. io.EOF ends the sequence
// without an error.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !yield(chunk, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// ReadAll reads r to the end. A limit above zero caps the number of bytes
// accepted; a longer body fails with ErrTooLarge.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return Collect(Chunks(r, 0))
	}

	data, err := Collect(Chunks(io.LimitReader(r, limit+1), 0))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > limit {
		return data[:limit], fmt.Errorf("%w: %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// ReadBody reads r as UTF-8 text. Invalid UTF-8 is an Internal AppError.
func ReadBody(r io.Reader) (string, error) {
	data, err := ReadAll(r, 0)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to read body")
	}
	if !utf8.Valid(data) {
		return "", pkgerrors.NewInternalError(fmt.Errorf("body is not valid UTF-8 (%d bytes)", len(data)))
	}
	return string(data), nil
}

// ReadResponse reads and closes the body of resp as UTF-8 text
func ReadResponse(resp *http.Response) (string, error) {
	if resp == nil || resp.Body == nil {
		return "", nil
	}
	defer resp.Body.Close()
	return ReadBody(resp.Body)
}
