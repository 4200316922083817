package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PushQueue appends a value to the tail of the named FIFO queue.
func (s *Store) PushQueue(ctx context.Context, queue string, value any) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return true
	}

	data, err := json.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues("push").Inc()
		s.logger.Error().Err(err).Str("queue", queue).Msg("Failed to encode queue value")
		return false
	}

	if err := s.client.RPush(ctx, CategoryQueues.Key(queue), data).Err(); err != nil {
		cacheErrors.WithLabelValues("push").Inc()
		s.logger.Warn().Err(err).Str("queue", queue).Msg("Backend push failed")
		return false
	}

	return true
}

// PopQueue removes the head of the named queue into dest. When blocking,
// the pop waits up to timeout for a value before reporting empty; a
// non-blocking pop returns immediately.
func (s *Store) PopQueue(ctx context.Context, queue string, blocking bool, timeout time.Duration, dest any) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return false
	}

	// BLPOP treats a zero timeout as "block forever"; a caller asking
	// for a zero wait gets a single non-blocking pop instead so an
	// empty queue can never hang the goroutine.
	if blocking && timeout <= 0 {
		blocking = false
	}

	var raw string
	if blocking {
		res, err := s.client.BLPop(ctx, timeout, CategoryQueues.Key(queue)).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				cacheErrors.WithLabelValues("pop").Inc()
				s.logger.Warn().Err(err).Str("queue", queue).Msg("Backend blocking pop failed")
			}
			return false
		}
		// BLPOP returns [queue, value]
		raw = res[1]
	} else {
		res, err := s.client.LPop(ctx, CategoryQueues.Key(queue)).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				cacheErrors.WithLabelValues("pop").Inc()
				s.logger.Warn().Err(err).Str("queue", queue).Msg("Backend pop failed")
			}
			return false
		}
		raw = res
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		cacheErrors.WithLabelValues("pop").Inc()
		s.logger.Warn().Err(err).Str("queue", queue).Msg("Discarding undecodable queue value")
		return false
	}

	return true
}

// QueueLen returns the current length of the named queue.
func (s *Store) QueueLen(ctx context.Context, queue string) int64 {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return 0
	}

	n, err := s.client.LLen(ctx, CategoryQueues.Key(queue)).Result()
	if err != nil {
		cacheErrors.WithLabelValues("queue_len").Inc()
		return 0
	}
	return n
}
