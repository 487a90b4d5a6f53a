package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"plain", "john", "john", nil},
		{"trimmed", "  john  ", "john", nil},
		{"cyrillic", "\u0418\u0432\u0430\u043d", "\u0418\u0432\u0430\u043d", nil},
		{"fullwidth normalised", "\uff4a\uff4f\uff48\uff4e", "john", nil},
		{"ligature normalised", "\ufb01le", "file", nil},
		{"null byte", "jo\x00hn", "", ErrInvalidText},
		{"escape", "jo\x1bhn", "", ErrInvalidText},
		{"zero width space", "jo\u200bhn", "", ErrInvalidText},
		{"bidi override", "\u202eevil", "", ErrInvalidText},
		{"private use", "\ue000", "", ErrInvalidText},
		{"invalid utf8", "\xff\xfe", "", ErrInvalidText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanText(tt.input, 50)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCleanTextLength(t *testing.T) {
	_, err := CleanText(strings.Repeat("a", 11), 10)
	assert.ErrorIs(t, err, ErrTextTooLong)

	// runes, not bytes
	got, err := CleanText(strings.Repeat("\u044f", 10), 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("\u044f", 10), got)

	_, err = CleanText(strings.Repeat("a", 1000), 0)
	assert.NoError(t, err)
}
