package core

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"assistbackend/utils"
)

// Prefixes used for generated identifiers
const (
	PrefixConnection = "ic"
	PrefixInbound    = "in"
	PrefixRequest    = "req"
)

// NewID generates a new ULID with the given prefix.
// The format is: prefix_ULID
// Example: core.NewID("ic") returns "ic_01G0EZ1XTM37C5X11SQTDNCTM1"
func NewID(prefix string) string {
	utils.AssertInvariant(strings.TrimSpace(prefix) != "", "prefix cannot be empty")

	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)

	return strings.ToLower(strings.TrimSpace(prefix)) + "_" + id.String()
}

// IsValidULID checks if the given string is a prefixed ULID (prefix_ULID).
// The prefix must be lowercase alphanumeric and the ULID part upper-case Crockford base32.
func IsValidULID(id string) bool {
	prefix, ulidPart, found := strings.Cut(id, "_")
	if !found || prefix == "" || strings.Contains(ulidPart, "_") {
		return false
	}
	for _, r := range prefix {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	if len(ulidPart) != ulid.EncodedSize || strings.ToUpper(ulidPart) != ulidPart {
		return false
	}
	if strings.ContainsAny(ulidPart, "ILOU") {
		return false
	}

	_, err := ulid.ParseStrict(ulidPart)
	return err == nil
}

// IDTime returns the creation time encoded in a prefixed ULID
func IDTime(id string) (time.Time, bool) {
	if !IsValidULID(id) {
		return time.Time{}, false
	}
	_, ulidPart, _ := strings.Cut(id, "_")
	parsed := ulid.MustParseStrict(ulidPart)
	return ulid.Time(parsed.Time()), true
}
