package cachestore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// In-band markers distinguishing compressed from plain payloads. Plain
// envelopes are JSON and can never start with either marker, but writing
// the raw marker explicitly keeps the on-wire format self-describing.
var (
	markerGzip = []byte("gz:")
	markerRaw  = []byte("raw:")
)

// maybeCompress applies gzip when requested and worthwhile. The
// compressed form is kept only if it is smaller than the original
// including the marker overhead.
func (s *Store) maybeCompress(data []byte, compress bool) []byte {
	if !compress || !s.cfg.CompressionEnabled || len(data) <= s.cfg.CompressionThreshold {
		return append(append([]byte{}, markerRaw...), data...)
	}

	var buf bytes.Buffer
	buf.Write(markerGzip)

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		compressOps.WithLabelValues("skipped").Inc()
		return append(append([]byte{}, markerRaw...), data...)
	}
	if err := w.Close(); err != nil {
		compressOps.WithLabelValues("skipped").Inc()
		return append(append([]byte{}, markerRaw...), data...)
	}

	if buf.Len() >= len(data)+len(markerRaw) {
		// Compression did not shrink the payload
		compressOps.WithLabelValues("skipped").Inc()
		return append(append([]byte{}, markerRaw...), data...)
	}

	compressOps.WithLabelValues("compressed").Inc()
	s.compressedWrites.Add(1)
	return buf.Bytes()
}

// decompress detects and strips the in-band marker, inflating the
// payload when it was stored compressed.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, markerGzip):
		r, err := gzip.NewReader(bytes.NewReader(data[len(markerGzip):]))
		if err != nil {
			return nil, fmt.Errorf("open gzip payload: %w", err)
		}
		defer r.Close()

		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("inflate payload: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, markerRaw):
		return data[len(markerRaw):], nil
	default:
		// Legacy unmarked payload, treat as plain
		return data, nil
	}
}
