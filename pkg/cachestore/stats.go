package cachestore

import (
	"context"
	"time"
)

// Stats is a point-in-time snapshot of store activity, used for
// observability only.
type Stats struct {
	Hits             int64  `json:"hits"`
	Misses           int64  `json:"misses"`
	Sets             int64  `json:"sets"`
	Deletes          int64  `json:"deletes"`
	BytesRead        int64  `json:"bytes_read"`
	BytesWritten     int64  `json:"bytes_written"`
	CompressedWrites int64  `json:"compressed_writes"`
	Degraded         bool   `json:"degraded"`
	Backend          string `json:"backend"`
	Connected        bool   `json:"connected"`
}

// Stats returns current counters plus backend connectivity. The
// connectivity probe is bounded so a degraded backend cannot hang the
// caller.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{
		Hits:             s.hits.Load(),
		Misses:           s.misses.Load(),
		Sets:             s.sets.Load(),
		Deletes:          s.deletes.Load(),
		BytesRead:        s.bytesRead.Load(),
		BytesWritten:     s.bytesWritten.Load(),
		CompressedWrites: s.compressedWrites.Load(),
		Degraded:         s.degraded.Load(),
	}

	if s.client == nil {
		return st
	}

	st.Backend = s.client.Options().Addr

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st.Connected = s.client.Ping(pingCtx).Err() == nil

	return st
}
