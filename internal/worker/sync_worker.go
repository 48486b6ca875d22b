// Package worker exports stored ledger entries to the spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kmbot/internal/amqp"
	"kmbot/internal/core"
	"kmbot/internal/metrics"
	"kmbot/internal/sheets"
	"kmbot/internal/storage"
)

// SyncStore is the slice of the SQLite repository the worker needs.
type SyncStore interface {
	GetRide(ctx context.Context, id int64) (core.RideEntry, error)
	GetFuel(ctx context.Context, id int64) (core.FuelEntry, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingEntry, error)
	MarkSynced(ctx context.Context, kind core.EntryKind, id int64) error
	MarkSyncError(ctx context.Context, kind core.EntryKind, id int64) error
}

var _ SyncStore = (*storage.SQLiteRepository)(nil)

// SyncWorker copies entries from SQLite to the spreadsheet. It is driven by
// AMQP messages and by a periodic sweep of entries that are still pending.
type SyncWorker struct {
	store     SyncStore
	sheets    sheets.EntryWriter
	metrics   metrics.Recorder
	batchSize int
}

func NewSyncWorker(store SyncStore, w sheets.EntryWriter, rec metrics.Recorder, batchSize int) *SyncWorker {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{store: store, sheets: w, metrics: rec, batchSize: batchSize}
}

// HandleSyncMessage exports the entry referenced by msg.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"event_id", msg.EventID,
		"kind", msg.Kind,
		"id", msg.ID)

	if err := w.syncEntry(ctx, msg.Kind, msg.ID); err != nil {
		return fmt.Errorf("sync %s %d: %w", msg.Kind, msg.ID, err)
	}
	return nil
}

// ProcessPending exports up to limit entries still waiting for sync. It is
// the fallback for lost messages and for worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.syncEntry(ctx, p.Kind, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry", "kind", p.Kind, "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// StartupSyncCheck drains a larger backlog once when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced, "errors", failed)
	return nil
}

// RunPeriodic re-processes pending entries every interval until ctx ends.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, _, err := w.ProcessPending(ctx, w.batchSize); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) syncEntry(ctx context.Context, kind core.EntryKind, id int64) error {
	var (
		ref string
		err error
	)
	switch kind {
	case core.KindRide:
		var e core.RideEntry
		if e, err = w.store.GetRide(ctx, id); err != nil {
			return fmt.Errorf("get ride from storage: %w", err)
		}
		ref, err = w.sheets.AppendRide(ctx, e)
	case core.KindFuel:
		var e core.FuelEntry
		if e, err = w.store.GetFuel(ctx, id); err != nil {
			return fmt.Errorf("get fuel from storage: %w", err)
		}
		ref, err = w.sheets.AppendFuel(ctx, e)
	default:
		return fmt.Errorf("unsupported entry kind %q", kind)
	}

	if err != nil {
		w.metrics.Synced(string(kind), false)
		if markErr := w.store.MarkSyncError(ctx, kind, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "kind", kind, "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.metrics.Synced(string(kind), true)
	// The row exists now; a failed mark only means it may be exported twice.
	if err := w.store.MarkSynced(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "kind", kind, "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Entry synced", "kind", kind, "id", id, "sheets_ref", ref)
	return nil
}
