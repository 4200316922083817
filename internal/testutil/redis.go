// Package testutil provides testing utilities for the caching substrate.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewRedis starts an in-process miniredis server and returns a client
// connected to it. Both are cleaned up with the test.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
	})

	return mr, client
}

// NewDeadRedis returns a client pointing at a server that has already
// been shut down, for exercising fail-open paths.
func NewDeadRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	t.Cleanup(func() {
		client.Close()
	})

	return client
}
