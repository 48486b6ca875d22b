package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kmbot/internal/cache"
	"kmbot/internal/command"
	"kmbot/internal/core"
	"kmbot/internal/format"
	"kmbot/internal/ledger"
	"kmbot/internal/metrics"
	"kmbot/internal/summary"
)

// Success replies. Odometer replies take the formatted reading.
const (
	ReplyOdometerStart = "✅ KM inicial salvo: %s"
	ReplyOdometerEnd   = "✅ KM final salvo: %s"
	ReplyRides         = "✅ Corrida(s) registrada(s)."
	ReplyFuel          = "✅ Abastecimento salvo."
)

// ReplyRouter turns one inbound message into exactly one reply.
type ReplyRouter struct {
	store   ledger.Store
	format  format.Formatter
	clock   *core.Clock
	reports cache.Cache[string]
	metrics metrics.Recorder
}

type RouterOption func(*ReplyRouter)

// versionedCache is implemented by cache.Versioned.
type versionedCache interface {
	Version(key string) uint64
	SetIfVersion(key string, version uint64, data string) bool
}

// WithReportCache caches rendered summaries by day key. The same cache must
// be handed to the LedgerService so mutations invalidate it. A
// cache.Versioned also keeps a report read before a concurrent write from
// being stored.
func WithReportCache(c cache.Cache[string]) RouterOption {
	return func(r *ReplyRouter) { r.reports = c }
}

func WithMetrics(rec metrics.Recorder) RouterOption {
	return func(r *ReplyRouter) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

func NewReplyRouter(store ledger.Store, f format.Formatter, clock *core.Clock, opts ...RouterOption) *ReplyRouter {
	r := &ReplyRouter{store: store, format: f, clock: clock, metrics: metrics.Nop{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Today is the current calendar day in the configured timezone.
func (r *ReplyRouter) Today() core.Date {
	return r.clock.Today()
}

// Handle interprets text from sender and performs the command. Usage and
// date problems are answered, not returned; store failures are returned.
func (r *ReplyRouter) Handle(ctx context.Context, sender, text string) (string, error) {
	cmd := command.Interpret(text)
	reply, err := r.dispatch(ctx, sender, cmd)
	r.metrics.Message(cmd.Intent.String(), err == nil && cmd.Err == nil)
	if err != nil {
		return "", err
	}
	slog.DebugContext(ctx, "Message handled", "sender", sender, "intent", cmd.Intent.String())
	return reply, nil
}

func (r *ReplyRouter) dispatch(ctx context.Context, sender string, cmd command.Command) (string, error) {
	if cmd.Err != nil {
		if hint, ok := command.IsUsage(cmd.Err); ok {
			return hint, nil
		}
		if errors.Is(cmd.Err, command.ErrInvalidDate) {
			return command.InvalidDateReply, nil
		}
		return "", cmd.Err
	}

	today := r.clock.Today()
	switch cmd.Intent {
	case command.SetOdometerStart:
		v := cmd.Odometer()
		if err := r.store.UpsertOdometer(ctx, sender, today, core.Float(v), nil); err != nil {
			return "", fmt.Errorf("odometer start: %w", err)
		}
		return fmt.Sprintf(ReplyOdometerStart, r.format.Odometer(v)), nil

	case command.SetOdometerEnd:
		v := cmd.Odometer()
		if err := r.store.UpsertOdometer(ctx, sender, today, nil, core.Float(v)); err != nil {
			return "", fmt.Errorf("odometer end: %w", err)
		}
		return fmt.Sprintf(ReplyOdometerEnd, r.format.Odometer(v)), nil

	case command.RecordRides:
		for _, amount := range cmd.Values {
			if _, err := r.store.AppendRide(ctx, sender, today, amount); err != nil {
				return "", fmt.Errorf("record rides: %w", err)
			}
		}
		return ReplyRides, nil

	case command.RecordFuel:
		if _, err := r.store.AppendFuel(ctx, sender, today, cmd.FuelType, cmd.Amount, cmd.Liters); err != nil {
			return "", fmt.Errorf("record fuel: %w", err)
		}
		return ReplyFuel, nil

	case command.Summarize:
		date := cmd.Date
		if date.IsZero() {
			date = today
		}
		return r.Summary(ctx, sender, date)

	case command.Help:
		return command.HelpText, nil
	}
	return command.NotUnderstood, nil
}

// Summary renders the report of sender on date.
func (r *ReplyRouter) Summary(ctx context.Context, sender string, date core.Date) (string, error) {
	key, err := core.NewDayKey(sender, date)
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	k := key.String()
	var version uint64
	vc, versioned := r.reports.(versionedCache)
	if r.reports != nil {
		if s, ok := r.reports.Get(k); ok {
			return s, nil
		}
		if versioned {
			version = vc.Version(k)
		}
	}

	l, err := r.store.ReadDay(ctx, key.User, key.Date)
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	report := summary.Report(l, r.format)
	switch {
	case versioned:
		// A write during ReadDay bumped the version; the report may be stale.
		vc.SetIfVersion(k, version, report)
	case r.reports != nil:
		r.reports.Set(k, report)
	}
	return report, nil
}
