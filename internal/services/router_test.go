package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kmbot/internal/cache"
	"kmbot/internal/command"
	"kmbot/internal/core"
	"kmbot/internal/format"
	"kmbot/internal/ledger"
	"kmbot/internal/ledger/memory"
)

const driver = "whatsapp:+5511999990000"

var brt = time.FixedZone("BRT", -3*60*60)

func fixedClock() *core.Clock {
	return core.NewFixedClock(time.Date(2024, 5, 10, 15, 0, 0, 0, brt), brt)
}

func newRouter(store ledger.Store, opts ...RouterOption) *ReplyRouter {
	return NewReplyRouter(store, format.BrazilianPortuguese, fixedClock(), opts...)
}

func TestRouterScenario(t *testing.T) {
	ctx := context.Background()
	r := newRouter(memory.New())

	steps := []struct {
		in, want string
	}{
		{"km inicio 32000", "✅ KM inicial salvo: 32000"},
		{"KM FINAL 32210", "✅ KM final salvo: 32210"},
		{"corrida 25", ReplyRides},
		// "12,18" would be one ride of 12.18; the space makes two rides.
		{"corrida 12, 18", ReplyRides},
		{"abasteci etanol 120 28", ReplyFuel},
	}
	for _, s := range steps {
		got, err := r.Handle(ctx, driver, s.in)
		if err != nil {
			t.Fatalf("%q: %v", s.in, err)
		}
		if got != s.want {
			t.Fatalf("%q: reply %q, want %q", s.in, got, s.want)
		}
	}

	got, err := r.Handle(ctx, driver, "resumo")
	if err != nil {
		t.Fatalf("resumo: %v", err)
	}
	want := strings.Join([]string{
		"📊 Resumo de 2024-05-10",
		"• KM: 32000 → 32210 (rodou 210.0 km)",
		"• Ganhos (corridas): R$ 55,00",
		"• Combustível: R$ 120,00",
		"  └ Preço médio/L: R$ 4,29",
		"• Custo por km: R$ 0,57",
		"• 💰 Lucro do dia: R$ -65,00",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected summary:\n%s\nwant:\n%s", got, want)
	}

	explicit, _ := r.Handle(ctx, driver, "resumo 2024-05-10")
	if explicit != want {
		t.Fatalf("explicit date must match today's report")
	}
}

func TestRouterRepliesWithoutMutation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := newRouter(store)

	tests := []struct {
		name, in, want string
	}{
		{"fuel missing liters", "abasteci etanol 120", command.UsageFuelShort},
		{"fuel missing numbers", "abasteci etanol cento vinte", command.UsageFuelNumbers},
		{"odometer without number", "km inicio", command.UsageOdometerStart},
		{"ride without number", "corrida", command.UsageRides},
		{"invalid date", "resumo 2024-13-40", command.InvalidDateReply},
		{"help", "ajuda", command.HelpText},
		{"unknown", "bom dia", command.NotUnderstood},
		{"empty", "   ", command.NotUnderstood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Handle(ctx, driver, tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("reply %q, want %q", got, tt.want)
			}
		})
	}

	l, _ := store.ReadDay(ctx, driver, core.NewDate(2024, 5, 10))
	if len(l.Rides)+len(l.Fuels) != 0 || l.Day.OdometerStart != nil {
		t.Fatalf("usage replies must not mutate state: %+v", l)
	}
}

func TestRouterEmptyDaySummary(t *testing.T) {
	got, err := newRouter(memory.New()).Summary(context.Background(), driver, core.NewDate(2024, 1, 2))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(got, "• KM: —") || !strings.HasSuffix(got, "R$ 0,00") {
		t.Fatalf("unexpected empty report:\n%s", got)
	}
}

type failingStore struct {
	ledger.Store
	err error
}

func (f failingStore) UpsertOdometer(context.Context, string, core.Date, *float64, *float64) error {
	return f.err
}

func (f failingStore) AppendRide(context.Context, string, core.Date, float64) (core.RideEntry, error) {
	return core.RideEntry{}, f.err
}

func (f failingStore) AppendFuel(context.Context, string, core.Date, string, float64, float64) (core.FuelEntry, error) {
	return core.FuelEntry{}, f.err
}

func (f failingStore) ReadDay(context.Context, string, core.Date) (core.DayLedger, error) {
	return core.DayLedger{}, f.err
}

func TestRouterPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	r := newRouter(failingStore{err: boom})

	for _, in := range []string{"km inicio 1", "km final 2", "corrida 10", "abasteci gasolina 200 33.5", "resumo"} {
		t.Run(in, func(t *testing.T) {
			reply, err := r.Handle(context.Background(), driver, in)
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped store error, got %v", err)
			}
			if reply != "" {
				t.Fatalf("no reply expected on failure, got %q", reply)
			}
		})
	}
}

// racingStore runs write once, after ReadDay has read and before it
// returns, so the returned ledger is already out of date.
type racingStore struct {
	ledger.Store
	write func()
}

func (s *racingStore) ReadDay(ctx context.Context, user string, date core.Date) (core.DayLedger, error) {
	l, err := s.Store.ReadDay(ctx, user, date)
	if s.write != nil {
		w := s.write
		s.write = nil
		w()
	}
	return l, err
}

func TestRouterSkipsCachingReportRacedByWrite(t *testing.T) {
	ctx := context.Background()
	reports := cache.NewVersioned[string](cache.NewLRUCache[string](16, time.Hour))
	racing := &racingStore{Store: memory.New()}
	svc := NewLedgerService(racing, nil, reports, nil)
	racing.write = func() {
		if _, err := svc.AppendRide(ctx, driver, core.NewDate(2024, 5, 10), 40); err != nil {
			t.Errorf("concurrent ride: %v", err)
		}
	}
	r := newRouter(svc, WithReportCache(reports))

	first, err := r.Handle(ctx, driver, "resumo")
	if err != nil {
		t.Fatalf("resumo: %v", err)
	}
	if !strings.Contains(first, "R$ 0,00") {
		t.Fatalf("first report should predate the ride:\n%s", first)
	}
	if reports.Size() != 0 {
		t.Fatalf("report read before a write must not be cached")
	}

	second, _ := r.Handle(ctx, driver, "resumo")
	if !strings.Contains(second, "R$ 40,00") {
		t.Fatalf("stale report served:\n%s", second)
	}
	if reports.Size() != 1 {
		t.Fatalf("fresh report should be cached")
	}
}

func TestRouterLargeRideAmount(t *testing.T) {
	ctx := context.Background()
	r := newRouter(memory.New())
	if _, err := r.Handle(ctx, driver, "corrida 99999999999999999999"); err != nil {
		t.Fatalf("ride: %v", err)
	}
	got, err := r.Handle(ctx, driver, "resumo")
	if err != nil {
		t.Fatalf("resumo: %v", err)
	}
	for _, line := range []string{
		"• Ganhos (corridas): R$ 100.000.000.000.000.000.000,00",
		"• 💰 Lucro do dia: R$ 100.000.000.000.000.000.000,00",
	} {
		if !strings.Contains(got, line) {
			t.Fatalf("missing %q in:\n%s", line, got)
		}
	}
}

func TestRouterReportCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	reports := cache.NewLRUCache[string](16, time.Hour)
	svc := NewLedgerService(memory.New(), nil, reports, nil)
	r := newRouter(svc, WithReportCache(reports))

	first, _ := r.Handle(ctx, driver, "resumo")
	if reports.Size() != 1 {
		t.Fatalf("report should be cached")
	}
	if _, err := r.Handle(ctx, driver, "corrida 40"); err != nil {
		t.Fatalf("ride: %v", err)
	}
	if reports.Size() != 0 {
		t.Fatalf("mutation must invalidate the cached report")
	}
	second, _ := r.Handle(ctx, driver, "resumo")
	if first == second || !strings.Contains(second, "R$ 40,00") {
		t.Fatalf("stale report served:\n%s", second)
	}
}
