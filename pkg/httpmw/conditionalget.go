package httpmw

import (
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/cachegate/cachegate/pkg/conditional"
)

// EntityTypeFunc maps a request to the entity type whose collection
// ETag governs it. Returning an empty string skips conditional
// handling for the request.
type EntityTypeFunc func(r *http.Request) string

type conditionalMW struct {
	cache  *conditional.Cache
	typeFn EntityTypeFunc
	group  singleflight.Group
	next   http.Handler
}

// ConditionalGet answers GET and HEAD requests with 304 Not Modified
// when the client's If-None-Match header matches the cached collection
// ETag. On a cache miss the handler response is computed once per
// entity type and query shape even under concurrent misses, and its
// ETag stored for subsequent requests.
func ConditionalGet(cache *conditional.Cache, typeFn EntityTypeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &conditionalMW{cache: cache, typeFn: typeFn, next: next}
	}
}

type conditionalResult struct {
	status int
	header http.Header
	body   []byte
}

func (m *conditionalMW) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		m.next.ServeHTTP(w, r)
		return
	}
	entityType := ""
	if m.typeFn != nil {
		entityType = m.typeFn(r)
	}
	if entityType == "" {
		m.next.ServeHTTP(w, r)
		return
	}

	query := r.URL.Query()

	if etag, ok := m.cache.GetCollectionETag(r.Context(), entityType, query); ok {
		w.Header().Set("ETag", etag)
		if conditional.MatchesIfNoneMatch(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	// Collapse concurrent misses for the same collection view
	flightKey := entityType + ":" + r.URL.RequestURI()
	v, _, _ := m.group.Do(flightKey, func() (interface{}, error) {
		rec := newBufferRecorder()
		m.next.ServeHTTP(rec, r)
		return &conditionalResult{
			status: rec.Status(),
			header: rec.Header().Clone(),
			body:   rec.Body(),
		}, nil
	})
	res := v.(*conditionalResult)

	if res.status == http.StatusOK {
		etag := conditional.ETagFor(string(res.body))
		m.cache.SetCollectionETag(r.Context(), entityType, query, etag)
		w.Header().Set("ETag", etag)
	} else {
		// A cached ETag may already be on the response from the lookup
		// above; it describes a body this response does not carry.
		w.Header().Del("ETag")
	}
	for name, values := range res.header {
		for _, val := range values {
			w.Header().Add(name, val)
		}
	}
	w.WriteHeader(res.status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(res.body)
	}
}
