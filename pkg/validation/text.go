package validation

import (
	"strings"
	"unicode/utf8"
)

// SecureScheme is the only URL scheme accepted for ad content.
const SecureScheme = "https://"

// WithinLength reports whether s is non-empty and at most max bytes long.
func WithinLength(s string, max int) bool {
	return s != "" && len(s) <= max && utf8.ValidString(s)
}

// HasSecureScheme reports whether url starts with the https scheme marker.
func HasSecureScheme(url string) bool {
	return strings.HasPrefix(url, SecureScheme) && len(url) > len(SecureScheme)
}
