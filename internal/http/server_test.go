package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"kmbot/internal/core"
	"kmbot/internal/format"
	"kmbot/internal/ledger/memory"
	"kmbot/internal/middleware/ratelimit"
	"kmbot/internal/notify"
	"kmbot/internal/services"
)

const driver = "whatsapp:+5511999990000"

var brt = time.FixedZone("BRT", -3*60*60)

func newBot() *services.ReplyRouter {
	clock := core.NewFixedClock(time.Date(2024, 5, 10, 15, 0, 0, 0, brt), brt)
	return services.NewReplyRouter(memory.New(), format.BrazilianPortuguese, clock)
}

func postMessage(t *testing.T, h http.Handler, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if from != "" {
		form.Set("From", from)
	}
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func twimlMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp twimlResponse
	if err := xml.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid TwiML %q: %v", rr.Body.String(), err)
	}
	return resp.Message
}

func TestHealthAndReady(t *testing.T) {
	srv := NewServer(Options{Addr: ":0", Bot: newBot()})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := NewServer(Options{Bot: newBot(), Ready: pinger{err: errors.New("db locked")}})
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestWebhookConversation(t *testing.T) {
	srv := NewServer(Options{Bot: newBot()})

	rr := postMessage(t, srv.Handler, driver, "km inicio 32000")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type %q", ct)
	}
	if got := twimlMessage(t, rr); got != "✅ KM inicial salvo: 32000" {
		t.Fatalf("reply %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing request id or security headers: %v", rr.Header())
	}

	postMessage(t, srv.Handler, driver, "corrida 25")
	got := twimlMessage(t, postMessage(t, srv.Handler, driver, "resumo"))
	if !strings.HasPrefix(got, "📊 Resumo de 2024-05-10\n") || !strings.Contains(got, "R$ 25,00") {
		t.Fatalf("unexpected summary:\n%s", got)
	}
}

func TestWebhookMissingSender(t *testing.T) {
	srv := NewServer(Options{Bot: newBot()})
	rr := postMessage(t, srv.Handler, "", "km inicio 1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	srv := NewServer(Options{Bot: newBot()})
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/whatsapp", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

type failingBot struct{ *services.ReplyRouter }

func (failingBot) Handle(context.Context, string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestWebhookStoreFailure(t *testing.T) {
	srv := NewServer(Options{Bot: failingBot{newBot()}})
	rr := postMessage(t, srv.Handler, driver, "corrida 10")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func sign(token, u string, form url.Values) string {
	s := u
	for _, k := range []string{"Body", "From"} {
		s += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignature(t *testing.T) {
	const public = "https://bot.example.com/whatsapp"
	srv := NewServer(Options{Bot: newBot(), SignatureToken: "secret", PublicURL: public})

	form := url.Values{"From": {driver}, "Body": {"ajuda"}}
	tests := []struct {
		name string
		sig  string
		want int
	}{
		{"valid", sign("secret", public, form), http.StatusOK},
		{"wrong key", sign("other", public, form), http.StatusForbidden},
		{"missing", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.sig != "" {
				req.Header.Set("X-Twilio-Signature", tt.sig)
			}
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d", rr.Code, tt.want)
			}
		})
	}
}

type countingMetrics struct {
	mu      sync.Mutex
	limited int
	routes  map[string]int
}

func (m *countingMetrics) Message(string, bool) {}
func (m *countingMetrics) StoreError(string)    {}
func (m *countingMetrics) Synced(string, bool)  {}

func (m *countingMetrics) RateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limited++
}

func (m *countingMetrics) HTTPRequest(route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.routes == nil {
		m.routes = map[string]int{}
	}
	m.routes[route]++
}

func TestWebhookRateLimitPerSender(t *testing.T) {
	rec := &countingMetrics{}
	srv := NewServer(Options{Bot: newBot(), Limiter: ratelimit.NewLimiter(2), Metrics: rec})

	for i := 0; i < 2; i++ {
		if rr := postMessage(t, srv.Handler, driver, "ajuda"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := postMessage(t, srv.Handler, driver, "ajuda")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", rr.Code)
	}
	if rr := postMessage(t, srv.Handler, "whatsapp:+5521988887777", "ajuda"); rr.Code != http.StatusOK {
		t.Fatalf("other sender must not be limited, got %d", rr.Code)
	}
	if rec.limited != 1 || rec.routes["whatsapp"] != 4 {
		t.Fatalf("metrics limited=%d routes=%v", rec.limited, rec.routes)
	}
}

func TestCronDaily(t *testing.T) {
	bot := newBot()
	if _, err := bot.Handle(context.Background(), driver, "corrida 30"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := NewServer(Options{Bot: bot})

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{"missing user", "", http.StatusBadRequest, MissingUserReply},
		{"invalid date", "?user=" + url.QueryEscape(driver) + "&date=2024-02-30", http.StatusBadRequest, invalidDateReply},
		{"today", "?user=" + url.QueryEscape(driver), http.StatusOK, "📊 Resumo de 2024-05-10"},
		{"explicit date", "?user=" + url.QueryEscape(driver) + "&date=2024-05-09", http.StatusOK, "📊 Resumo de 2024-05-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cron/daily"+tt.query, nil))
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d", rr.Code, tt.wantCode)
			}
			if !strings.HasPrefix(rr.Body.String(), tt.wantBody) {
				t.Fatalf("body %q, want prefix %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCronToken(t *testing.T) {
	srv := NewServer(Options{Bot: newBot(), CronToken: "s3cret"})
	target := "/cron/daily?user=" + url.QueryEscape(driver)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "Basic s3cret", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestCronSendDaily(t *testing.T) {
	target := "/cron/send_daily?user=" + url.QueryEscape(driver)

	t.Run("sent", func(t *testing.T) {
		rec := &notify.Recorder{}
		srv := NewServer(Options{Bot: newBot(), Notifier: rec})
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusOK || rr.Body.String() != "Enviado" {
			t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
		}
		if len(rec.Sent) != 1 || rec.Sent[0].To != driver || !strings.HasPrefix(rec.Sent[0].Body, "📊 Resumo") {
			t.Fatalf("unexpected sent messages %+v", rec.Sent)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		srv := NewServer(Options{Bot: newBot()})
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusInternalServerError || rr.Body.String() != "Falha envio: Twilio não configurado" {
			t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
		}
	})

	t.Run("provider error", func(t *testing.T) {
		srv := NewServer(Options{Bot: newBot(), Notifier: &notify.Recorder{Err: errors.New("21211 invalid number")}})
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusInternalServerError || !strings.HasPrefix(rr.Body.String(), "Falha envio: 21211") {
			t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  corrida\x00 25\n "); got != "corrida 25" {
		t.Fatalf("got %q", got)
	}
}
