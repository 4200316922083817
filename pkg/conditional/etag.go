package conditional

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ETagFor derives a strong ETag value from an opaque version marker
// (watermark, content hash, monotonic counter). The same version always
// yields the same ETag.
func ETagFor(version string) string {
	sum := sha256.Sum256([]byte(version))
	return `"` + hex.EncodeToString(sum[:])[:32] + `"`
}

// MatchesIfNoneMatch reports whether an If-None-Match header value
// matches the given ETag. The surrounding HTTP layer decides what to do
// with a match; this package never touches status codes.
func MatchesIfNoneMatch(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		// Weak comparison: a W/ prefix on either side is ignored
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
