package cachestore

import (
	"context"
	"encoding/json"
	"time"
)

// MGet fetches multiple keys in one round trip. The result maps each
// found key (without category prefix) to its raw JSON value; absent keys
// and undecodable payloads are simply omitted.
func (s *Store) MGet(ctx context.Context, cat Category, keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))

	if len(keys) == 0 {
		return out
	}
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return out
	}

	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = cat.Key(k)
	}

	values, err := s.client.MGet(ctx, namespaced...).Result()
	if err != nil {
		cacheErrors.WithLabelValues("mget").Inc()
		s.logger.Warn().Err(err).Int("keys", len(keys)).Msg("Backend mget failed")
		return out
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.misses.Add(1)
			continue
		}

		payload, err := decompress([]byte(raw))
		if err != nil {
			s.misses.Add(1)
			continue
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.misses.Add(1)
			continue
		}

		out[keys[i]] = env.Raw
		s.hits.Add(1)
		s.bytesRead.Add(int64(len(raw)))
	}

	return out
}

// MSet stores multiple values. The value writes go out as a single
// atomic MSET; when a ttl is requested the expiries fan out as a second
// pipelined stage. The two stages are not atomic together: a crash
// between them leaves values without expiry, which is why every consumer
// in this module also tolerates stale reads.
func (s *Store) MSet(ctx context.Context, cat Category, values map[string]any, ttl time.Duration, compress bool) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return true
	}
	if len(values) == 0 {
		return true
	}

	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		payload, err := encodeValue(v)
		if err != nil {
			cacheErrors.WithLabelValues("mset").Inc()
			s.logger.Error().Err(err).Str("key", k).Msg("Failed to encode batch value")
			return false
		}
		data := s.maybeCompress(payload, compress)
		pairs = append(pairs, cat.Key(k), data)
		s.bytesWritten.Add(int64(len(data)))
	}

	if err := s.client.MSet(ctx, pairs...).Err(); err != nil {
		cacheErrors.WithLabelValues("mset").Inc()
		s.logger.Warn().Err(err).Int("keys", len(values)).Msg("Backend mset failed")
		return false
	}

	if ttl > 0 {
		pipe := s.client.Pipeline()
		for k := range values {
			pipe.Expire(ctx, cat.Key(k), ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			cacheErrors.WithLabelValues("mset").Inc()
			s.logger.Warn().Err(err).Msg("Backend mset expiry stage failed")
			return false
		}
	}

	s.sets.Add(int64(len(values)))
	return true
}
