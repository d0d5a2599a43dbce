package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/internal/webhook"
)

type stubEngine struct {
	prompts []string
}

func (s *stubEngine) HandleMessage(_ context.Context, rec session.Record, text string) (session.Record, error) {
	s.prompts = append(s.prompts, text)
	return rec, nil
}

type stubSessions struct{}

func (stubSessions) Get(_ context.Context, identity string) (session.Record, error) {
	return session.NewRecord(identity), nil
}
func (stubSessions) Put(context.Context, string, session.Record) error   { return nil }
func (stubSessions) AppendLog(context.Context, string, session.LogEntry) {}

func newTestRouter(t *testing.T) (http.Handler, *stubEngine) {
	t.Helper()
	eng := &stubEngine{}
	wh := webhook.NewHandler(eng, stubSessions{}, nil, "verify-me", nil, nil)
	return New(&Config{Webhook: wh}), eng
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestWebhookVerificationRoute(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=777", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "777", rr.Body.String())
}

func TestWebhookPostRoute(t *testing.T) {
	r, eng := newTestRouter(t)

	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"263771234567","id":"wamid.1","type":"text","text":{"body":"hi"}}
	]}}]}]}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"hi"}, eng.prompts)
}

func TestWebhookRateLimit(t *testing.T) {
	eng := &stubEngine{}
	wh := webhook.NewHandler(eng, stubSessions{}, nil, "verify-me", nil, nil)
	r := New(&Config{Webhook: wh, WebhookRate: 1, WebhookBurst: 1})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.RemoteAddr = "203.0.113.9:40000"

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.RemoteAddr = "203.0.113.9:40001"
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
