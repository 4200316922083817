package testutil

import (
	"net/http"
	"sync"
)

// Upstream is a configurable stand-in for the application handler behind
// the middleware stack. It tracks how often it was actually invoked, so
// tests can tell a replayed response from a recomputed one.
type Upstream struct {
	mu sync.Mutex

	// Status and Body are written on every invocation.
	Status int
	Body   string
	// Headers are added to every response.
	Headers map[string]string

	calls int
}

// NewUpstream returns an upstream that answers 200 with the given body.
func NewUpstream(body string) *Upstream {
	return &Upstream{
		Status: http.StatusOK,
		Body:   body,
	}
}

// ServeHTTP implements http.Handler.
func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.calls++
	status := u.Status
	body := u.Body
	headers := u.Headers
	u.mu.Unlock()

	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Calls returns how many times the upstream handler actually ran.
func (u *Upstream) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}
