package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/internal/webhooks"
	pkgAuth "github.com/angelmondragon/payflow-backend/pkg/auth"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key], _ = value.(string)
	return nil
}

func (f *fakeCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (f *fakeCache) WebhookKey(kind, id string) string {
	return "webhook:" + kind + ":" + id
}

func (f *fakeCache) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func (f *fakeCache) Ping(context.Context) error {
	return nil
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"*"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "payflow", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{
			CheckoutWindow:    time.Minute,
			CheckoutUserLimit: 1,
			WebhookWindow:     time.Minute,
			WebhookIPLimit:    100,
		},
	}
}

func newTestRouter(t *testing.T, cache *fakeCache) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewPaymentMetrics(reg)
	guard, err := webhooks.NewReplayGuard(cache, time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	return NewRouter(
		testConfig(),
		logger.Nop(),
		stubPinger{},
		cache,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		nil, // checkout
		nil, // collections
		nil, // orders
		nil, // disbursements
		nil, // sweeper
		nil, // contacts
		stubNotifications{},
		guard,
	)
}

func bearer(t *testing.T, role enums.UserRole) string {
	t.Helper()
	cfg := testConfig()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(router http.Handler, method, path, auth, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(t, newFakeCache())

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		if rec := serve(router, http.MethodGet, path, "", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
}

func TestPrivateRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(t, newFakeCache())
	rec := serve(router, http.MethodGet, "/api/v1/notifications", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPrivateRoutesSucceedWithJWT(t *testing.T) {
	router := newTestRouter(t, newFakeCache())
	rec := serve(router, http.MethodGet, "/api/v1/notifications", bearer(t, enums.UserRoleSeller), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestRoleGates(t *testing.T) {
	router := newTestRouter(t, newFakeCache())
	itemPath := "/api/v1/items/" + uuid.NewString()
	cases := []struct {
		name   string
		method string
		path   string
		role   enums.UserRole
	}{
		{"seller cannot checkout", http.MethodPost, "/api/v1/checkout", enums.UserRoleSeller},
		{"seller cannot confirm", http.MethodPost, itemPath + "/confirm", enums.UserRoleSeller},
		{"buyer cannot move fulfillment", http.MethodPost, "/api/v1/seller/items/" + uuid.NewString() + "/status", enums.UserRoleBuyer},
		{"admin cannot cancel items", http.MethodPost, itemPath + "/cancel", enums.UserRoleAdmin},
		{"buyer cannot sweep", http.MethodPost, "/api/admin/v1/disbursements/sweep", enums.UserRoleBuyer},
		{"seller cannot disburse", http.MethodPost, "/api/admin/v1/items/" + uuid.NewString() + "/disburse", enums.UserRoleSeller},
	}
	for _, tc := range cases {
		rec := serve(router, tc.method, tc.path, bearer(t, tc.role), `{}`, map[string]string{"Idempotency-Key": uuid.NewString()})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 got %d", tc.name, rec.Code)
		}
	}
}

func TestIdempotencyKeyRequiredOnCheckout(t *testing.T) {
	router := newTestRouter(t, newFakeCache())
	rec := serve(router, http.MethodPost, "/api/v1/checkout", bearer(t, enums.UserRoleBuyer), `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCheckoutRateLimited(t *testing.T) {
	cache := newFakeCache()
	router := newTestRouter(t, cache)
	token := bearer(t, enums.UserRoleBuyer)

	first := serve(router, http.MethodPost, "/api/v1/checkout", token, `{}`, map[string]string{"Idempotency-Key": "a"})
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first checkout should not be limited")
	}
	second := serve(router, http.MethodPost, "/api/v1/checkout", token, `{"x":1}`, map[string]string{"Idempotency-Key": "b"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", second.Code)
	}
}

func TestWebhooksAlwaysAcknowledge(t *testing.T) {
	router := newTestRouter(t, newFakeCache())
	for _, path := range []string{"/api/v1/webhooks/mpesa/stk", "/api/v1/webhooks/mpesa/b2c/result", "/api/v1/webhooks/mpesa/b2c/timeout"} {
		rec := serve(router, http.MethodPost, path, "", `{}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"ResultDesc":"Accepted"`) {
			t.Fatalf("%s: unexpected body %s", path, rec.Body.String())
		}
	}
}
