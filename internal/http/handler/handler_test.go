package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"go-verification-gateway/internal/http/middleware"
	"go-verification-gateway/internal/notify"
	"go-verification-gateway/internal/session"
	"go-verification-gateway/internal/token"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notify.CompletionEvent
	err    error
}

func (n *stubNotifier) NotifyCompletion(_ context.Context, e notify.CompletionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

const testSecret = "issuance-secret"

func newTestRouter(t *testing.T) (*chi.Mux, *fakeClock, *stubNotifier) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	notifier := &stubNotifier{}
	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := session.NewManager(store, notifier, clock, session.ManagerConfig{
		Window:         30 * time.Minute,
		Checkpoint1URL: "https://links.example/one",
		Checkpoint2URL: "https://links.example/two",
	}, logger)

	issue := NewIssueHandler(testSecret, "https://verify.example", clock)
	sessions := NewSessionHandler(mgr, clock, "https://discord.gg/test-invite")
	verify := NewVerifyHandler(mgr, "https://verify.example")
	health := NewHealthHandler(nil)
	stats := NewStatsHandler()

	r := chi.NewRouter()
	r.Use(middleware.DeviceID(false))
	r.Get("/api/generate", issue.Generate)
	r.Get("/v/{token}", sessions.View)
	r.Post("/v/{token}/checkpoints/{step}", sessions.Launch)
	r.Get("/verify", verify.Confirm)
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Get("/api/stats", stats.Stats)
	return r, clock, notifier
}

func doRequest(t *testing.T, router *chi.Mux, method, target string, cookies []*http.Cookie) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	merged := cookies
	for _, c := range rr.Result().Cookies() {
		merged = append(merged, c)
	}
	return rr, merged
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Error   map[string]any `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success {
		t.Fatalf("expected success envelope, got error %+v", body.Error)
	}
	return body.Data
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Success {
		t.Fatal("expected error envelope")
	}
	return body.Error.Code
}

func mintToken(clock *fakeClock, uid string) string {
	return token.Encode(token.Token{
		SubjectID:    uid,
		ServiceLabel: "Verification",
		IssuedAtMS:   clock.Now().UnixMilli(),
		DisplayName:  "Tester",
		PlanLabel:    "Free",
		AvatarURL:    "https://cdn.example/a.png",
	})
}

func TestGenerateRejectsBadKey(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr, _ := doRequest(t, router, http.MethodGet, "/api/generate?key=wrong&uid=42", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "UNAUTHORIZED" {
		t.Fatalf("code = %q", code)
	}
}

func TestGenerateRequiresSubject(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr, _ := doRequest(t, router, http.MethodGet, "/api/generate?key="+testSecret, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGenerateMintsDecodableToken(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	rr, _ := doRequest(t, router, http.MethodGet,
		"/api/generate?key="+testSecret+"&uid=42&name=Ada&plan=Premium&avatar=https://cdn.example/a.png", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	raw, _ := data["token"].(string)
	decoded, err := token.Decode(raw, clock.Now())
	if err != nil {
		t.Fatalf("decode minted token: %v", err)
	}
	if decoded.SubjectID != "42" || decoded.PlanLabel != "Premium" || decoded.DisplayName != "Ada" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.IssuedAtMS != clock.Now().UnixMilli() {
		t.Fatalf("issued at %d, want %d", decoded.IssuedAtMS, clock.Now().UnixMilli())
	}
	wantURL := "https://verify.example/v/" + raw
	if data["verification_url"] != wantURL {
		t.Fatalf("verification_url = %v, want %s", data["verification_url"], wantURL)
	}
}

func TestViewUnknownTokenIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr, _ := doRequest(t, router, http.MethodGet, "/v/not-ours", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "INVALID_LINK" {
		t.Fatalf("code = %q", code)
	}
}

func TestViewReportsFreshSession(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	rr, _ := doRequest(t, router, http.MethodGet, "/v/"+tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["state"] != string(session.StateAwaitingCheckpoint1) {
		t.Fatalf("state = %v", data["state"])
	}
	if data["next_step"] != float64(1) {
		t.Fatalf("next_step = %v", data["next_step"])
	}
	if data["remaining_ms"] != float64((30 * time.Minute).Milliseconds()) {
		t.Fatalf("remaining_ms = %v", data["remaining_ms"])
	}
}

func TestViewReportsExpiredSession(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")
	clock.Advance(31 * time.Minute)

	rr, _ := doRequest(t, router, http.MethodGet, "/v/"+tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	data := decodeData(t, rr)
	if data["state"] != string(session.StateExpired) {
		t.Fatalf("state = %v", data["state"])
	}
	if data["remaining_ms"] != float64(0) {
		t.Fatalf("remaining_ms = %v", data["remaining_ms"])
	}
}

func TestLaunchReturnsCheckpointURL(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	rr, _ := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["redirect_url"] != "https://links.example/one" {
		t.Fatalf("redirect_url = %v", data["redirect_url"])
	}
}

func TestLaunchRejectsSecondStepFirst(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	rr, _ := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/2", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "OUT_OF_ORDER" {
		t.Fatalf("code = %q", code)
	}
}

func TestLaunchRejectsBadStep(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	rr, _ := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/9", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestConfirmWithoutLaunchIsStale(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	_, cookies := doRequest(t, router, http.MethodGet, "/v/"+tok, nil)
	rr, _ := doRequest(t, router, http.MethodGet, "/verify?slug="+tok+"&step=1", cookies)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "STALE_HANDSHAKE" {
		t.Fatalf("code = %q", code)
	}
}

func TestConfirmAfterLaunchSucceeds(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	_, cookies := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/1", nil)
	rr, _ := doRequest(t, router, http.MethodGet, "/verify?slug="+tok+"&step=1", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["completed"] != false {
		t.Fatalf("completed = %v", data["completed"])
	}
	if data["status"] != "checkpoint_confirmed" {
		t.Fatalf("status = %v", data["status"])
	}
	if data["redirect_to"] != "https://verify.example/v/"+tok {
		t.Fatalf("redirect_to = %v", data["redirect_to"])
	}
}

func TestConfirmFallsBackToActiveSession(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	// Same device launches, then returns without the slug.
	_, cookies := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/1", nil)
	rr, _ := doRequest(t, router, http.MethodGet, "/verify?step=1", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestConfirmWithoutAnyContextIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr, _ := doRequest(t, router, http.MethodGet, "/verify?step=1", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "INVALID_LINK" {
		t.Fatalf("code = %q", code)
	}
}

func TestFullFlowNotifiesOnCompletion(t *testing.T) {
	router, clock, notifier := newTestRouter(t)
	tok := mintToken(clock, "777")

	_, cookies := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/1", nil)
	if rr, _ := doRequest(t, router, http.MethodGet, "/verify?slug="+tok+"&step=1", cookies); rr.Code != http.StatusOK {
		t.Fatalf("confirm step 1: %d", rr.Code)
	}
	if rr, _ := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/2", cookies); rr.Code != http.StatusOK {
		t.Fatalf("launch step 2: %d", rr.Code)
	}
	rr, _ := doRequest(t, router, http.MethodGet, "/verify?slug="+tok+"&step=2", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm step 2: %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["completed"] != true {
		t.Fatalf("completed = %v", data["completed"])
	}
	if data["status"] != "complete" {
		t.Fatalf("status = %v", data["status"])
	}

	view, _ := doRequest(t, router, http.MethodGet, "/v/"+tok, cookies)
	viewData := decodeData(t, view)
	if viewData["state"] != "complete" {
		t.Fatalf("state = %v", viewData["state"])
	}
	if viewData["invite_url"] != "https://discord.gg/test-invite" {
		t.Fatalf("invite_url = %v", viewData["invite_url"])
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.events))
	}
	if notifier.events[0].SubjectID != "777" {
		t.Fatalf("notified subject %q", notifier.events[0].SubjectID)
	}
}

func TestExpiredConfirmIsGone(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")

	_, cookies := doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/1", nil)
	clock.Advance(31 * time.Minute)
	rr, _ := doRequest(t, router, http.MethodGet, "/verify?slug="+tok+"&step=1", cookies)
	if rr.Code != http.StatusGone {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "SESSION_EXPIRED" {
		t.Fatalf("code = %q", code)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)
	if rr, _ := doRequest(t, router, http.MethodGet, "/health/live", nil); rr.Code != http.StatusOK {
		t.Fatalf("live status = %d", rr.Code)
	}
	if rr, _ := doRequest(t, router, http.MethodGet, "/health/ready", nil); rr.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rr.Code)
	}

	unhealthy := NewHealthHandler(failingPinger{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	unhealthy.Ready(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d", rr.Code)
	}
}

func TestStatsExposesCounters(t *testing.T) {
	router, clock, _ := newTestRouter(t)
	tok := mintToken(clock, "42")
	doRequest(t, router, http.MethodPost, "/v/"+tok+"/checkpoints/1", nil)

	rr, _ := doRequest(t, router, http.MethodGet, "/api/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	data := decodeData(t, rr)
	counters, ok := data["counters"].(map[string]any)
	if !ok {
		t.Fatalf("counters missing: %v", data)
	}
	if counters["checkpoint.launch.success"] == nil {
		t.Fatalf("expected launch counter, got %v", counters)
	}
}
