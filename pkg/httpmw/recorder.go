// Package httpmw adapts the caching substrate to net/http middleware.
// The middlewares are router-agnostic: anything that accepts a
// func(http.Handler) http.Handler can mount them.
package httpmw

import (
	"bytes"
	"net/http"
)

// recorder captures the status, headers and body a handler writes.
// When tee is set the response is forwarded to the client while being
// recorded; otherwise it is only buffered, for callers that decide
// afterwards what to send.
type recorder struct {
	tee         http.ResponseWriter
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newTeeRecorder(w http.ResponseWriter) *recorder {
	return &recorder{tee: w, header: w.Header(), status: http.StatusOK}
}

func newBufferRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

// Header implements http.ResponseWriter.
func (r *recorder) Header() http.Header {
	return r.header
}

// WriteHeader implements http.ResponseWriter.
func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	if r.tee != nil {
		r.tee.WriteHeader(status)
	}
}

// Write implements http.ResponseWriter.
func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	if r.tee != nil {
		return r.tee.Write(p)
	}
	return len(p), nil
}

// Status returns the recorded status code.
func (r *recorder) Status() int {
	return r.status
}

// Body returns a copy of the recorded body.
func (r *recorder) Body() []byte {
	return append([]byte(nil), r.body.Bytes()...)
}
