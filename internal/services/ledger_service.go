// Package services wires the interpreter, the record store and the summary
// engine into the chat bot.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kmbot/internal/core"
	"kmbot/internal/ledger"
	"kmbot/internal/metrics"
)

// Publisher announces stored entries to the export pipeline.
type Publisher interface {
	PublishEntrySync(ctx context.Context, kind core.EntryKind, id int64) error
}

// Invalidator drops cached data for a ledger key.
type Invalidator interface {
	Delete(key string)
}

var _ ledger.Store = (*LedgerService)(nil)

// LedgerService decorates a Store. After every successful mutation it drops
// the cached summary of that day and, for entries, publishes a sync message.
// Both side effects are best effort: the write is already durable.
type LedgerService struct {
	store     ledger.Store
	publisher Publisher
	cache     Invalidator
	metrics   metrics.Recorder
}

// NewLedgerService accepts nil for publisher, cache and rec.
func NewLedgerService(store ledger.Store, publisher Publisher, cache Invalidator, rec metrics.Recorder) *LedgerService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &LedgerService{store: store, publisher: publisher, cache: cache, metrics: rec}
}

func (s *LedgerService) UpsertOdometer(ctx context.Context, user string, date core.Date, start, end *float64) error {
	if err := s.store.UpsertOdometer(ctx, user, date, start, end); err != nil {
		s.metrics.StoreError("upsert_odometer")
		return fmt.Errorf("save odometer: %w", err)
	}
	s.invalidate(user, date)
	return nil
}

func (s *LedgerService) AppendRide(ctx context.Context, user string, date core.Date, amount float64) (core.RideEntry, error) {
	e, err := s.store.AppendRide(ctx, user, date, amount)
	if err != nil {
		s.metrics.StoreError("append_ride")
		return core.RideEntry{}, fmt.Errorf("save ride: %w", err)
	}
	s.invalidate(user, date)
	s.publish(ctx, core.KindRide, e.ID)
	return e, nil
}

func (s *LedgerService) AppendFuel(ctx context.Context, user string, date core.Date, fuelType string, amount, liters float64) (core.FuelEntry, error) {
	e, err := s.store.AppendFuel(ctx, user, date, fuelType, amount, liters)
	if err != nil {
		s.metrics.StoreError("append_fuel")
		return core.FuelEntry{}, fmt.Errorf("save fuel: %w", err)
	}
	s.invalidate(user, date)
	s.publish(ctx, core.KindFuel, e.ID)
	return e, nil
}

func (s *LedgerService) ReadDay(ctx context.Context, user string, date core.Date) (core.DayLedger, error) {
	l, err := s.store.ReadDay(ctx, user, date)
	if err != nil {
		s.metrics.StoreError("read_day")
		return core.DayLedger{}, fmt.Errorf("read day: %w", err)
	}
	return l, nil
}

func (s *LedgerService) invalidate(user string, date core.Date) {
	if s.cache == nil {
		return
	}
	if key, err := core.NewDayKey(user, date); err == nil {
		s.cache.Delete(key.String())
	}
}

func (s *LedgerService) publish(ctx context.Context, kind core.EntryKind, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntrySync(ctx, kind, id); err != nil {
		// The worker's pending sweep picks the entry up later
		slog.ErrorContext(ctx, "Failed to publish sync message", "kind", kind, "id", id, "error", err)
	}
}

// Close releases the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(ledger.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(ledger.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
