package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/esched/internal/store/redis"
)

type fakeJobs struct {
	mu      sync.Mutex
	names   []string
	pending map[string]bool
	running map[string]bool
	status  []scheduler.Status
}

func (f *fakeJobs) Jobs() []string { return f.names }

func (f *fakeJobs) Trigger(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := false
	for _, n := range f.names {
		known = known || n == name
	}
	if !known {
		return scheduler.ErrUnknownJob
	}
	if f.running[name] {
		return scheduler.ErrAlreadyRunning
	}
	if f.pending[name] {
		return scheduler.ErrTriggerPending
	}
	f.pending[name] = true
	return nil
}

func (f *fakeJobs) Status() []scheduler.Status { return f.status }

type fixture struct {
	handler http.Handler
	mr      *miniredis.Miniredis
	store   *redisstore.Store
	jobs    *fakeJobs
}

func newFixture(t *testing.T, token string, cidrs []string) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewStore(client)
	jobs := &fakeJobs{
		names:   []string{"template", "subscription"},
		pending: map[string]bool{},
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := deps.Deps{
		Logger:     logger.Nop(),
		StartTime:  start,
		Version:    "v1.2.3",
		TimeNow:    func() time.Time { return start.Add(90 * time.Second) },
		AdminToken: token,
		AdminCIDRs: cidrs,
		Cache:      store,
		Jobs:       jobs,
	}
	return &fixture{handler: NewRouter(logger.Nop(), d), mr: mr, store: store, jobs: jobs}
}

func (f *fixture) do(method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "", nil)
	rec := f.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Version       string  `json:"version"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.UptimeSeconds != 90 || body.Version != "v1.2.3" {
		t.Errorf("body = %+v", body)
	}
}

func TestReadyzFollowsRedis(t *testing.T) {
	f := newFixture(t, "", nil)
	if rec := f.do(http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("status with redis up = %d", rec.Code)
	}
	f.mr.Close()
	if rec := f.do(http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status with redis down = %d", rec.Code)
	}
}

func TestSubscriptionEndpoint(t *testing.T) {
	f := newFixture(t, "s3cret", nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		target     string
		header     map[string]string
		seed       bool
		wantStatus int
	}{
		{"missing token", "/subscription/clash", nil, true, http.StatusUnauthorized},
		{"wrong token", "/subscription/clash?token=nope", nil, true, http.StatusUnauthorized},
		{"nothing cached", "/subscription/clash?token=s3cret", nil, false, http.StatusNotFound},
		{"query token", "/subscription/clash?token=s3cret", nil, true, http.StatusOK},
		{"bearer token", "/subscription/clash", map[string]string{"Authorization": "Bearer s3cret"}, true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.mr.FlushAll()
			if tt.seed {
				if err := f.store.SetClashConfig(ctx, []byte("mixed-port: 7890\n")); err != nil {
					t.Fatal(err)
				}
				if err := f.store.SetUserInfo(ctx, "upload=1; download=2; total=3; expire=4"); err != nil {
					t.Fatal(err)
				}
			}

			rec := f.do(http.MethodGet, tt.target, tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if rec.Body.String() != "mixed-port: 7890\n" {
				t.Errorf("body = %q", rec.Body.String())
			}
			if got := rec.Header().Get("subscription-userinfo"); got != "upload=1; download=2; total=3; expire=4" {
				t.Errorf("subscription-userinfo = %q", got)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/yaml") {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestSubscriptionWithoutUserInfo(t *testing.T) {
	f := newFixture(t, "", nil)
	if err := f.store.SetClashConfig(context.Background(), []byte("rules: []\n")); err != nil {
		t.Fatal(err)
	}
	rec := f.do(http.MethodGet, "/subscription/clash", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := rec.Header()["Subscription-Userinfo"]; ok {
		t.Error("user info header set without cached info")
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t, "s3cret", nil)
	auth := map[string]string{"Authorization": "Bearer s3cret"}

	if rec := f.do(http.MethodPost, "/reload", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("reload without token = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/reload?job=nope", auth); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job = %d", rec.Code)
	}

	rec := f.do(http.MethodPost, "/reload?job=subscription", auth)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first reload = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/reload?job=subscription", auth); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second reload = %d, want 429", rec.Code)
	}

	rec = f.do(http.MethodPost, "/reload", auth)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("reload all = %d", rec.Code)
	}
	var body struct {
		Triggered []string `json:"triggered"`
		Pending   []string `json:"pending"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Triggered) != 1 || body.Triggered[0] != "template" {
		t.Errorf("triggered = %v", body.Triggered)
	}
	if len(body.Pending) != 1 || body.Pending[0] != "subscription" {
		t.Errorf("pending = %v", body.Pending)
	}
}

func TestReloadRunningJob(t *testing.T) {
	f := newFixture(t, "", nil)
	f.jobs.running = map[string]bool{"template": true}

	rec := f.do(http.MethodPost, "/reload?job=template", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("reload of running job = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pending":["template"]`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestInfra(t *testing.T) {
	f := newFixture(t, "", nil)
	f.jobs.status = []scheduler.Status{
		{Name: "template", Runs: 1},
		{Name: "subscription", Runs: 2, Failures: 1, LastError: "upstream down"},
	}

	rec := f.do(http.MethodGet, "/infra", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status     string `json:"status"`
		Components map[string]struct {
			OK bool `json:"ok"`
		} `json:"components"`
		Jobs []scheduler.Status `json:"jobs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || !body.Components["redis"].OK || len(body.Jobs) != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestInfraHealthy(t *testing.T) {
	f := newFixture(t, "", nil)
	f.jobs.status = []scheduler.Status{{Name: "subscription", Runs: 1}}
	if err := f.store.SetClashConfig(context.Background(), []byte("rules: []\n")); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodGet, "/infra", nil)
	var body struct {
		Status     string `json:"status"`
		Components map[string]struct {
			OK        bool   `json:"ok"`
			ExpiresIn string `json:"expires_in"`
		} `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if c := body.Components["cache"]; !c.OK || c.ExpiresIn != "1h0m0s" {
		t.Errorf("cache component = %+v", c)
	}
}

func TestInvalidateCache(t *testing.T) {
	f := newFixture(t, "s3cret", nil)
	ctx := context.Background()
	if err := f.store.SetClashConfig(ctx, []byte("rules: []\n")); err != nil {
		t.Fatal(err)
	}

	if rec := f.do(http.MethodDelete, "/subscription/cache", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token = %d", rec.Code)
	}
	rec := f.do(http.MethodDelete, "/subscription/cache", map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := f.store.ClashConfig(ctx); !errors.Is(err, redisstore.ErrNotFound) {
		t.Errorf("ClashConfig() after invalidate error = %v", err)
	}
}

func TestAdminRoutesRespectCIDRs(t *testing.T) {
	f := newFixture(t, "", []string{"10.0.0.0/8"})

	// httptest requests come from 192.0.2.1
	for _, path := range []string{"/infra", "/metrics"} {
		if rec := f.do(http.MethodGet, path, nil); rec.Code != http.StatusForbidden {
			t.Errorf("GET %s from outside = %d, want 403", path, rec.Code)
		}
	}
	if rec := f.do(http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz must stay open, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, "", nil)
	rec := f.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}
