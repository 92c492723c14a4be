package fits

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeMetadataPair packs a key and value into one printable-ASCII string. Both halves
// are Go-quoted, so newlines, tabs, '=' and quotes survive unchanged.
func EncodeMetadataPair(key, value string) string {
	return strconv.QuoteToASCII(key) + "=" + strconv.QuoteToASCII(value)
}

// DecodeMetadataPair inverts EncodeMetadataPair.
func DecodeMetadataPair(s string) (key, value string, err error) {
	kq, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", fmt.Errorf("metadata pair %q: key: %w", s, ErrFormat)
	}
	rest, ok := strings.CutPrefix(s[len(kq):], "=")
	if !ok {
		return "", "", fmt.Errorf("metadata pair %q: missing '=': %w", s, ErrFormat)
	}
	vq, err := strconv.QuotedPrefix(rest)
	if err != nil || len(vq) != len(rest) {
		return "", "", fmt.Errorf("metadata pair %q: value: %w", s, ErrFormat)
	}
	if key, err = strconv.Unquote(kq); err != nil {
		return "", "", fmt.Errorf("metadata pair %q: key: %w", s, ErrFormat)
	}
	if value, err = strconv.Unquote(vq); err != nil {
		return "", "", fmt.Errorf("metadata pair %q: value: %w", s, ErrFormat)
	}
	return key, value, nil
}
