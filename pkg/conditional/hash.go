package conditional

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RequestContext carries the request-shaping fields that are allowed to
// fragment the entity ETag cache. Only semantically relevant fields are
// included so header noise never multiplies cache entries.
type RequestContext struct {
	// Roles of the requesting user, order-insensitive.
	Roles []string

	// IncludeRelations reports whether related records are embedded in
	// the representation.
	IncludeRelations bool

	// Location is the user's coarse location, when representations are
	// localized.
	Location string

	// Personalized reports whether the representation is personalized.
	Personalized bool
}

// hashQueryParams computes a stable hash of query parameters: keys
// sorted, multi-values joined in order.
func hashQueryParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
		b.WriteByte('&')
	}

	return shortHash(b.String())
}

// hashContext computes a stable hash of the request context.
func hashContext(rc RequestContext) string {
	roles := append([]string(nil), rc.Roles...)
	sort.Strings(roles)

	return shortHash(fmt.Sprintf("roles=%s;rel=%t;loc=%s;pers=%t",
		strings.Join(roles, ","), rc.IncludeRelations, rc.Location, rc.Personalized))
}

// shortHash returns the first 16 hex characters of a SHA-256, plenty for
// cache key dispersion.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
