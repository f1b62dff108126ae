package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptoearn/cryptoearn/internal/clock"
	"github.com/cryptoearn/cryptoearn/internal/config"
	"github.com/cryptoearn/cryptoearn/internal/logging"
	"github.com/cryptoearn/cryptoearn/internal/notification"
	"github.com/cryptoearn/cryptoearn/internal/routes"
)

type harness struct {
	t     *testing.T
	srv   *Server
	clock *clock.Fake
	notes *notification.Recorder
}

func testConfig() config.Config {
	return config.Config{
		AppName:           "cryptoearn-test",
		AppEnv:            "test",
		JWTSecret:         "test-secret",
		JWTIssuer:         "cryptoearn",
		TokenTTL:          time.Hour,
		IdempotencyTTL:    time.Minute,
		SettlementDelay:   5 * time.Second,
		PriceTickInterval: 30 * time.Second,
		CooldownEnforced:  true,
		LoginPerMinute:    5,
	}
}

func newHarness(t *testing.T, cache *redis.Client) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	notes := &notification.Recorder{}
	srv, err := NewWithDeps(routes.Deps{
		Cfg:      testConfig(),
		Cache:    cache,
		Logger:   logging.Discard(),
		Clock:    clk,
		Notifier: notes,
	})
	require.NoError(t, err)
	return &harness{t: t, srv: srv, clock: clk, notes: notes}
}

func (h *harness) do(method, path, token, body string, headers ...string) (int, map[string]any) {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 && raw[0] == '[' {
		var list []any
		require.NoError(h.t, json.Unmarshal(raw, &list))
		out["items"] = list
	}
	return resp.StatusCode, out
}

func (h *harness) register(email string) string {
	h.t.Helper()
	status, body := h.do(http.MethodPost, "/api/register", "", `{"email":"`+email+`","password":"hunter22","name":"Test"}`)
	require.Equal(h.t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(h.t, token)
	return token
}

func num(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var f float64
		require.NoError(t, json.Unmarshal([]byte(n), &f))
		return f
	}
	t.Fatalf("not a number: %#v", v)
	return 0
}

func TestEarnAndWithdrawFlow(t *testing.T) {
	h := newHarness(t, nil)
	token := h.register("ada@example.com")

	status, body := h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"staking","amount":30}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 30.0, num(t, body["newBalance"]))
	assert.Equal(t, 30.0, num(t, body["totalEarned"]))

	status, body = h.do(http.MethodPost, "/api/withdraw", token, `{"amount":12,"address":"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 18.0, num(t, body["newBalance"]))
	withdrawal := body["withdrawal"].(map[string]any)
	assert.Equal(t, "pending", withdrawal["status"])

	h.clock.Advance(5 * time.Second)

	status, body = h.do(http.MethodGet, "/api/withdrawals", token, "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "completed", items[0].(map[string]any)["status"])
	require.Len(t, h.notes.Messages(), 1)

	status, body = h.do(http.MethodGet, "/api/stats", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["totalUsers"])
	user := body["userStats"].(map[string]any)
	assert.Equal(t, 18.0, num(t, user["balance"]))
	assert.Equal(t, 30.0, num(t, user["totalEarned"]))
	assert.Equal(t, 12.0, num(t, user["totalWithdrawn"]))
	assert.Equal(t, 1.0, user["earningsCount"])
	assert.Equal(t, 1.0, user["withdrawalsCount"])

	status, body = h.do(http.MethodGet, "/api/profile", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, body, "PasswordHash")
}

func TestClaimErrorsRenderTaxonomy(t *testing.T) {
	h := newHarness(t, nil)
	token := h.register("bob@example.com")

	status, body := h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"mining","amount":150}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid amount", body["error"])
	assert.Equal(t, "invalid_amount", body["code"])
	assert.Equal(t, "validation", body["kind"])

	status, body = h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"gambling","amount":5}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_method", body["code"])

	status, _ = h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"mining","amount":10}`)
	require.Equal(t, http.StatusOK, status)
	status, body = h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"mining","amount":10}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "cooldown", body["kind"])

	status, body = h.do(http.MethodPost, "/api/withdraw", token, `{"amount":50,"address":"short"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "insufficient_balance", body["code"])
}

func TestAuthFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.register("carol@example.com")

	status, body := h.do(http.MethodGet, "/api/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", body["kind"])

	status, body = h.do(http.MethodGet, "/api/profile", "not-a-jwt", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["kind"])

	status, body = h.do(http.MethodPost, "/api/register", "", `{"email":"carol@example.com","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists", body["error"])

	status, body = h.do(http.MethodPost, "/api/login", "", `{"email":"carol@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = h.do(http.MethodPost, "/api/login", "", `{"email":"carol@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])
}

func TestLoginRateLimitKind(t *testing.T) {
	h := newHarness(t, nil)
	h.register("dave@example.com")

	for i := 0; i < 5; i++ {
		status, _ := h.do(http.MethodPost, "/api/login", "", `{"email":"dave@example.com","password":"wrong"}`)
		require.Equal(t, http.StatusBadRequest, status)
	}
	status, body := h.do(http.MethodPost, "/api/login", "", `{"email":"dave@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", body["kind"])
	assert.Equal(t, "rate_limited", body["code"])
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	status, body := h.do(http.MethodGet, "/api/crypto-prices", "", "")
	require.Equal(t, http.StatusOK, status)
	btc := body["bitcoin"].(map[string]any)
	assert.Equal(t, 45000.0, btc["price"])

	status, _ = h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = h.do(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "route_not_found", body["code"])
}

func TestMethodsAndHistory(t *testing.T) {
	h := newHarness(t, nil)
	token := h.register("dan@example.com")

	for _, m := range []string{"mining", "trading"} {
		status, _ := h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"`+m+`","amount":20}`)
		require.Equal(t, http.StatusOK, status)
		h.clock.Advance(time.Second)
	}

	status, body := h.do(http.MethodGet, "/api/earnings-history", token, "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "trading", items[0].(map[string]any)["method"])

	status, body = h.do(http.MethodGet, "/api/earning-methods", token, "")
	require.Equal(t, http.StatusOK, status)
	methods := body["items"].([]any)
	require.Len(t, methods, 4)
	mining := methods[0].(map[string]any)
	assert.Equal(t, "mining", mining["id"])
	assert.Equal(t, 300.0, mining["cooldown"])
	assert.NotNil(t, mining["cooldownEndsAt"])
	assert.Nil(t, methods[3].(map[string]any)["cooldownEndsAt"])
}

func TestIdempotentClaimWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	h := newHarness(t, cache)
	token := h.register("erin@example.com")

	first, body1 := h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"referral","amount":8}`, "Idempotency-Key", "claim-1")
	second, body2 := h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"referral","amount":8}`, "Idempotency-Key", "claim-1")
	require.Equal(t, http.StatusOK, first)
	require.Equal(t, http.StatusOK, second)
	assert.Equal(t, body1, body2)

	status, body := h.do(http.MethodGet, "/api/profile", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 8.0, num(t, body["balance"]))
}

func TestShutdownCancelsSettlement(t *testing.T) {
	h := newHarness(t, nil)
	token := h.register("fay@example.com")
	status, _ := h.do(http.MethodPost, "/api/claim-earning", token, `{"method":"mining","amount":10}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPost, "/api/withdraw", token, `{"amount":5,"address":"0x1234567890abcdef"}`)
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, 1, h.srv.Services().Withdrawals.Pending())
	require.NoError(t, h.srv.Services().Withdrawals.Shutdown(context.Background()))
	assert.Equal(t, 0, h.clock.Pending())
}
