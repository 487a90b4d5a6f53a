package query

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidText = errors.New("text contains invalid characters")
	ErrTextTooLong = errors.New("text exceeds maximum length")
)

// Control, format, surrogate and private use characters are never accepted
var blockedCategories = []*unicode.RangeTable{
	unicode.Cc,
	unicode.Cf,
	unicode.Cs,
	unicode.Co,
}

// CleanText trims and NFKC-normalises s and rejects control or invisible
// characters. maxLen counts runes after normalisation; zero disables the check.
func CleanText(s string, maxLen int) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidText
	}

	normalized := strings.TrimSpace(norm.NFKC.String(s))
	for _, r := range normalized {
		if r == utf8.RuneError || unicode.IsOneOf(blockedCategories, r) {
			return "", ErrInvalidText
		}
	}

	if maxLen > 0 && utf8.RuneCountInString(normalized) > maxLen {
		return "", ErrTextTooLong
	}
	return normalized, nil
}
