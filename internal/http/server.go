package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/twilio/twilio-go/client"

	"kmbot/internal/core"
	"kmbot/internal/log"
	"kmbot/internal/metrics"
	"kmbot/internal/middleware/ratelimit"
	"kmbot/internal/middleware/security"
	"kmbot/internal/middleware/trace"
	"kmbot/internal/notify"
)

// Bot answers inbound messages and renders daily reports.
type Bot interface {
	Handle(ctx context.Context, sender, text string) (string, error)
	Summary(ctx context.Context, sender string, date core.Date) (string, error)
	Today() core.Date
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Bot is required; everything else is optional.
type Options struct {
	Addr           string
	Bot            Bot
	Notifier       notify.Notifier
	Logger         *log.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	Limiter        *ratelimit.Limiter
	Ready          Pinger

	// CronToken, when set, must be sent as a bearer token to /cron routes.
	CronToken string

	// SignatureToken enables X-Twilio-Signature checks on the webhook.
	// PublicURL is the URL Twilio posts to; when empty it is rebuilt
	// from the request.
	SignatureToken string
	PublicURL      string
}

type Server struct {
	http.Server
	bot       Bot
	notifier  notify.Notifier
	metrics   metrics.Recorder
	ready     Pinger
	cronToken string
	validator *client.RequestValidator
	publicURL string
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(o Options) *Server {
	s := &Server{
		bot:       o.Bot,
		notifier:  o.Notifier,
		metrics:   o.Metrics,
		ready:     o.Ready,
		cronToken: o.CronToken,
		publicURL: o.PublicURL,
	}
	if s.notifier == nil {
		s.notifier = notify.Disabled{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if o.SignatureToken != "" {
		v := client.NewRequestValidator(o.SignatureToken)
		s.validator = &v
	}
	logger := o.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	mux := http.NewServeMux()

	var webhook http.Handler = http.HandlerFunc(s.handleWebhook)
	if o.Limiter != nil {
		webhook = o.Limiter.Middleware(senderKey, s.handleRateLimited)(webhook)
	}
	mux.Handle("POST /whatsapp", s.instrument("whatsapp", webhook))
	mux.Handle("GET /cron/daily", s.instrument("cron_daily", http.HandlerFunc(s.handleCronDaily)))
	mux.Handle("GET /cron/send_daily", s.instrument("cron_send_daily", http.HandlerFunc(s.handleCronSendDaily)))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if o.MetricsHandler != nil {
		mux.Handle("GET /metrics", o.MetricsHandler)
	}

	var handler http.Handler = security.Headers(security.DefaultHeadersConfig())(mux)
	handler = log.Middleware(logger, trace.FromRequest)(handler)
	handler = trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              o.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// instrument records the status and latency of route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.metrics.HTTPRequest(route, rw.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.NewFields().WithError(err)...)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().With(log.FieldSender, senderKey(r))...)
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validSignature(r) {
		logger.WarnContext(ctx, "Rejected webhook with bad signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	sender := sanitizeInput(r.PostForm.Get("From"))
	if sender == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	reply, err := s.bot.Handle(ctx, sender, sanitizeInput(r.PostForm.Get("Body")))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to handle message",
			log.NewFields().With(log.FieldSender, sender).WithError(err)...)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := writeTwiML(w, reply); err != nil {
		logger.ErrorContext(ctx, "Failed to write reply", log.NewFields().WithError(err)...)
	}
}

func (s *Server) validSignature(r *http.Request) bool {
	sig := r.Header.Get("X-Twilio-Signature")
	if sig == "" {
		return false
	}
	url := s.publicURL
	if url == "" {
		url = requestURL(r)
	}
	return s.validator.Validate(url, formParams(r), sig)
}

func (s *Server) handleCronDaily(w http.ResponseWriter, r *http.Request) {
	_, report, ok := s.cronReport(w, r)
	if !ok {
		return
	}
	writeText(w, http.StatusOK, report)
}

func (s *Server) handleCronSendDaily(w http.ResponseWriter, r *http.Request) {
	user, report, ok := s.cronReport(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := s.notifier.Send(ctx, user, report); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to send daily summary",
			log.NewFields().WithOperation(log.OpSend).With(log.FieldSender, user).WithError(err)...)
		reason := err.Error()
		if errors.Is(err, notify.ErrNotConfigured) {
			reason = "Twilio não configurado"
		}
		writeText(w, http.StatusInternalServerError, "Falha envio: "+reason)
		return
	}
	writeText(w, http.StatusOK, "Enviado")
}

// cronReport authorizes the request and renders the report it names. On
// failure the response has been written and ok is false.
func (s *Server) cronReport(w http.ResponseWriter, r *http.Request) (user, report string, ok bool) {
	if !authorized(r, s.cronToken) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}
	q := r.URL.Query()
	user = sanitizeInput(q.Get("user"))
	if user == "" {
		writeText(w, http.StatusBadRequest, MissingUserReply)
		return "", "", false
	}
	date, err := parseDate(q.Get("date"), s.bot.Today())
	if err != nil {
		writeText(w, http.StatusBadRequest, invalidDateReply)
		return "", "", false
	}

	ctx := r.Context()
	report, err = s.bot.Summary(ctx, user, date)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to render summary",
			log.NewFields().WithDay(user, date.String()).WithError(err)...)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return "", "", false
	}
	return user, report, true
}
