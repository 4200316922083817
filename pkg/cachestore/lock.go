package cachestore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired indicates the lock was still held by another
	// owner when the blocking timeout elapsed.
	ErrLockNotAcquired = errors.New("lock not acquired")
)

const (
	// lockRetryBase is the base wait between acquisition attempts. A
	// random jitter of up to the same amount is added so competing
	// instances do not retry in lockstep.
	lockRetryBase = 50 * time.Millisecond
)

// Lock is a handle to an acquired advisory lock. The lock auto-expires
// after its timeout even if never released, so a crashed holder cannot
// deadlock other instances.
//
// Locks are advisory and timeout-bound: every section they protect must
// remain correct, if slower, without them.
type Lock struct {
	store *Store
	key   string
	token string
}

// AcquireLock attempts to take the named lock, retrying with jitter
// until blockingTimeout elapses. timeout is the lock's own expiry once
// held. Returns ErrLockNotAcquired when the wait is exhausted and
// ErrBackendUnavailable in degraded mode.
func (s *Store) AcquireLock(ctx context.Context, key string, timeout, blockingTimeout time.Duration) (*Lock, error) {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return nil, ErrBackendUnavailable
	}

	token := uuid.NewString()
	deadline := time.Now().Add(blockingTimeout)

	for {
		ok, err := s.client.SetNX(ctx, CategoryLocks.Key(key), token, timeout).Result()
		if err != nil {
			cacheErrors.WithLabelValues("lock").Inc()
			return nil, fmt.Errorf("backend setnx: %w", err)
		}
		if ok {
			s.logger.Debug().Str("lock", key).Dur("timeout", timeout).Msg("Lock acquired")
			return &Lock{store: s, key: key, token: token}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}

		wait := lockRetryBase + time.Duration(rand.Int63n(int64(lockRetryBase)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Release frees the lock if this handle still owns it. The get-then-del
// pair is not atomic: a lock that expired between the two steps can
// briefly be deleted out from under a new holder. That window is bounded
// by one round trip and accepted, consistent with locks being advisory.
func (l *Lock) Release(ctx context.Context) error {
	held, err := l.store.client.Get(ctx, CategoryLocks.Key(l.key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Already expired
			return nil
		}
		return fmt.Errorf("check lock owner: %w", err)
	}
	if held != l.token {
		// Expired and re-acquired by someone else, nothing to release
		return nil
	}

	if err := l.store.client.Del(ctx, CategoryLocks.Key(l.key)).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}

	l.store.logger.Debug().Str("lock", l.key).Msg("Lock released")
	return nil
}
