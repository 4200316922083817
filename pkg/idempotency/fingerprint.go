package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Fingerprint computes a deterministic hash of the parts of a request
// that define its identity: method, path, sorted query parameters, the
// content-negotiation headers and the body. Authorization, cookies and
// hop-by-hop headers are deliberately excluded so that credential
// rotation or proxy hops do not change a request's identity.
//
// A JSON body is canonicalized (re-marshaled with sorted keys) before
// hashing, so semantically identical JSON with different key order or
// whitespace fingerprints the same. Non-JSON bodies are hashed as raw
// bytes. The request body is restored for the caller.
func Fingerprint(r *http.Request) (string, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return "", fmt.Errorf("read request body: %w", err)
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('\n')
	b.WriteString(r.URL.Path)
	b.WriteByte('\n')
	b.WriteString(canonicalQuery(r))
	b.WriteByte('\n')
	b.WriteString(canonicalHeaders(r.Header))
	b.WriteByte('\n')
	b.WriteString(canonicalBody(body))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

func canonicalQuery(r *http.Request) string {
	params := r.URL.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(params[k], ","))
	}
	return strings.Join(parts, "&")
}

// canonicalHeaders keeps only the content-type/accept family. Anything
// else (authorization, cookies, tracing, hop-by-hop) is identity noise.
func canonicalHeaders(h http.Header) string {
	var kept []string
	for name, values := range h {
		lower := strings.ToLower(name)
		if lower == "content-type" || strings.HasPrefix(lower, "accept") {
			kept = append(kept, lower+":"+strings.Join(values, ","))
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, "\n")
}

func canonicalBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		// encoding/json marshals map keys sorted, which canonicalizes
		// key order and whitespace
		if canonical, err := json.Marshal(parsed); err == nil {
			return string(canonical)
		}
	}

	sum := sha256.Sum256(body)
	return "raw:" + hex.EncodeToString(sum[:])
}
