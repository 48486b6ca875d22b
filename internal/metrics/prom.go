// Package metrics exposes bot counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the services and handlers report to. Nop satisfies it
// when metrics are not wanted.
type Recorder interface {
	Message(intent string, ok bool)
	StoreError(op string)
	Synced(kind string, ok bool)
	HTTPRequest(route string, status int, d time.Duration)
	RateLimited()
}

type Nop struct{}

func (Nop) Message(string, bool) {}
func (Nop) StoreError(string) {}
func (Nop) Synced(string, bool) {}
func (Nop) HTTPRequest(string, int, time.Duration) {}
func (Nop) RateLimited() {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*PromSink)(nil)
)

type PromSink struct {
	messages    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	synced      *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

// NewPromSink registers the bot collectors on reg, or on the default
// registerer when reg is nil. Collectors already registered are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmbot_messages_total",
			Help: "Inbound chat messages by interpreted intent",
		}, []string{"intent", "ok"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmbot_store_errors_total",
			Help: "Failed record store operations",
		}, []string{"op"}),
		synced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmbot_sync_entries_total",
			Help: "Entries exported to the spreadsheet",
		}, []string{"kind", "ok"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmbot_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kmbot_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kmbot_rate_limited_total",
			Help: "Messages rejected by the per-sender rate limit",
		}),
	}

	var err error
	if s.messages, err = register(reg, s.messages); err != nil {
		return nil, err
	}
	if s.storeErrors, err = register(reg, s.storeErrors); err != nil {
		return nil, err
	}
	if s.synced, err = register(reg, s.synced); err != nil {
		return nil, err
	}
	if s.requests, err = register(reg, s.requests); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.rateLimited, err = register(reg, s.rateLimited); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) Message(intent string, ok bool) {
	s.messages.WithLabelValues(intent, strconv.FormatBool(ok)).Inc()
}

func (s *PromSink) StoreError(op string) {
	s.storeErrors.WithLabelValues(op).Inc()
}

func (s *PromSink) Synced(kind string, ok bool) {
	s.synced.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
}

func (s *PromSink) HTTPRequest(route string, status int, d time.Duration) {
	s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	s.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (s *PromSink) RateLimited() {
	s.rateLimited.Inc()
}
