package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	counts  map[string]int64
	lastCtx context.Context
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.lastCtx = ctx
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func TestRateLimiterFixedWindow(t *testing.T) {
	counter := &fakeCounter{counts: make(map[string]int64)}
	limiter := NewRateLimiter(counter, "test:ratelimit", 3, time.Minute)

	app := fiber.New()
	app.Get("/", limiter.MiddlewareByKey(func(*fiber.Ctx) string { return "client" }), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: status %d", i+1, resp.StatusCode)
		}
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("over-limit request: status %d, want 429", resp.StatusCode)
	}
	if counter.lastCtx == context.Background() {
		t.Error("limiter used a detached context instead of the request's")
	}
}

func TestViewerIsMember(t *testing.T) {
	if !viewerIsMember("alice", "alice+bob") || !viewerIsMember("bob", "alice+bob") {
		t.Error("member rejected")
	}
	if viewerIsMember("mallory", "alice+bob") {
		t.Error("non-member accepted")
	}
	if viewerIsMember("alice", "not-a-pair-id") {
		t.Error("malformed conversation id accepted")
	}
	if viewerIsMember("", "alice+bob") {
		t.Error("empty viewer accepted")
	}
}
