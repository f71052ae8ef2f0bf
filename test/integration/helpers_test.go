package integration

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"go-verification-gateway/internal/http/handler"
	"go-verification-gateway/internal/http/middleware"
	"go-verification-gateway/internal/http/router"
	"go-verification-gateway/internal/notify"
	"go-verification-gateway/internal/session"
)

const testSecret = "integration-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (w *webhookRecorder) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		w.mu.Lock()
		w.payloads = append(w.payloads, payload)
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	}
}

func (w *webhookRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.payloads)
}

type gateway struct {
	baseURL string
	client  *http.Client
	clock   *testClock
	webhook *webhookRecorder
}

// newGateway stands up the full route tree against a memory store with a
// recorded Discord webhook behind it.
func newGateway(t *testing.T) *gateway {
	t.Helper()

	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	webhook := &webhookRecorder{}
	webhookSrv := httptest.NewServer(webhook.handler())
	t.Cleanup(webhookSrv.Close)

	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notify.NewDiscordNotifier(webhookSrv.URL, "Integration Guild", webhookSrv.Client())
	mgr := session.NewManager(store, notifier, clock, session.ManagerConfig{
		Window:         30 * time.Minute,
		Checkpoint1URL: "https://links.example/one",
		Checkpoint2URL: "https://links.example/two",
	}, logger)

	dep := router.Dependencies{
		Issue:        handler.NewIssueHandler(testSecret, "https://verify.example", clock),
		Sessions:     handler.NewSessionHandler(mgr, clock, "https://discord.gg/gateway"),
		Verify:       handler.NewVerifyHandler(mgr, "https://verify.example"),
		Health:       handler.NewHealthHandler(nil),
		Stats:        handler.NewStatsHandler(),
		CORSOrigins:  []string{"*"},
		SecureCookie: false,
		IssueLimiter: middleware.NewRateLimiter(1000, time.Minute),
		APILimiter:   middleware.NewRateLimiter(1000, time.Minute),
	}
	srv := httptest.NewServer(router.New(dep))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &gateway{
		baseURL: srv.URL,
		client:  &http.Client{Jar: jar, Timeout: 5 * time.Second},
		clock:   clock,
		webhook: webhook,
	}
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *gateway) do(t *testing.T, method, path string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, g.baseURL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode %s %s: %v body=%q", method, path, err, body)
	}
	return resp, env
}

// issueToken mints a token through the API and returns it.
func (g *gateway) issueToken(t *testing.T, uid string) string {
	t.Helper()
	q := url.Values{"key": {testSecret}, "uid": {uid}, "name": {"Tester"}, "plan": {"Free"}}
	resp, env := g.do(t, http.MethodGet, "/api/generate?"+q.Encode(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d", resp.StatusCode)
	}
	tok, _ := env.Data["token"].(string)
	if tok == "" {
		t.Fatalf("no token in response: %+v", env.Data)
	}
	return tok
}
