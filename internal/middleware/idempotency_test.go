package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cryptoearn/cryptoearn/internal/logging"
)

func setupIdempotencyApp(t *testing.T, calls *int32, status int) (*fiber.App, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(accountIDKey, c.Get("X-Test-Account"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/claim", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(calls, 1)
		return c.Status(status).JSON(fiber.Map{"call": n})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, mr, cleanup
}

func postClaim(t *testing.T, app *fiber.App, account, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/claim", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-Account", account)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	var calls int32
	app, _, cleanup := setupIdempotencyApp(t, &calls, fiber.StatusOK)
	defer cleanup()

	postClaim(t, app, "acct-1", "")
	postClaim(t, app, "acct-1", "")
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	var calls int32
	app, _, cleanup := setupIdempotencyApp(t, &calls, fiber.StatusOK)
	defer cleanup()

	status, first := postClaim(t, app, "acct-1", "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected status %d got %d", fiber.StatusOK, status)
	}

	status, second := postClaim(t, app, "acct-1", "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected cached status %d got %d", fiber.StatusOK, status)
	}
	if second != first {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d", calls)
	}
}

func TestIdempotencyKeysAreScopedToAccount(t *testing.T) {
	var calls int32
	app, _, cleanup := setupIdempotencyApp(t, &calls, fiber.StatusOK)
	defer cleanup()

	postClaim(t, app, "acct-1", "same-key")
	postClaim(t, app, "acct-2", "same-key")
	if calls != 2 {
		t.Fatalf("expected separate executions per account, got %d", calls)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	var calls int32
	app, mr, cleanup := setupIdempotencyApp(t, &calls, fiber.StatusBadRequest)
	defer cleanup()

	postClaim(t, app, "acct-1", "retry-me")
	if mr.Exists(idempotencyPrefix + "acct-1:retry-me") {
		t.Fatalf("failed response should release the key")
	}
	postClaim(t, app, "acct-1", "retry-me")
	if calls != 2 {
		t.Fatalf("expected retry to execute, got %d calls", calls)
	}
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	var calls int32
	app, mr, cleanup := setupIdempotencyApp(t, &calls, fiber.StatusOK)
	defer cleanup()

	if err := mr.Set(idempotencyPrefix+"acct-1:busy", inProgressMarker); err != nil {
		t.Fatalf("seed: %v", err)
	}
	status, _ := postClaim(t, app, "acct-1", "busy")
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
	if calls != 0 {
		t.Fatalf("handler must not run for in-flight duplicates")
	}
}
