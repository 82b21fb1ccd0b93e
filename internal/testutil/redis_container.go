// Package testutil provides shared fixtures for integration tests that
// need real backing services.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// One Redis serves the whole test binary; journal suites isolate
// themselves with key prefixes instead of separate containers.
var redisFixture struct {
	once sync.Once
	addr string
	err  error
}

// RedisAddr starts the shared Redis container on first use and returns
// its host:port. Tests that cannot reach a Docker daemon fail here
// instead of timing out inside the client.
func RedisAddr(t *testing.T) string {
	t.Helper()

	redisFixture.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		c, err := testcontainers.Run(
			ctx, "redis:7-alpine",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")),
		)
		if err != nil {
			redisFixture.err = err
			return
		}
		t.Cleanup(func() {
			testcontainers.CleanupContainer(t, c)
		})

		redisFixture.addr, redisFixture.err = c.Endpoint(ctx, "")
	})

	if redisFixture.err != nil {
		t.Fatalf("redis fixture: %v", redisFixture.err)
	}
	return redisFixture.addr
}
