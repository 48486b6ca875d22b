package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kmbot/internal/core"
	"kmbot/internal/ledger"

	_ "modernc.org/sqlite"
)

var (
	_ ledger.Store  = (*SQLiteRepository)(nil)
	_ ledger.Closer = (*SQLiteRepository)(nil)
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("entry not found")

const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// PendingEntry is the minimal data needed to enqueue an export.
type PendingEntry struct {
	Kind      core.EntryKind
	ID        int64
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// DSN builds the connection string used for both the pool and migrations.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// WithClock sets the source of entry timestamps.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// UpsertOdometer implements ledger.Store. The merge happens inside a single
// statement so concurrent writers to the same day cannot drop a bound.
func (r *SQLiteRepository) UpsertOdometer(ctx context.Context, user string, date core.Date, start, end *float64) error {
	key, err := core.NewDayKey(user, date)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO day_km (user_phone, d, km_start, km_end) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_phone, d) DO UPDATE SET
			km_start = COALESCE(excluded.km_start, day_km.km_start),
			km_end   = COALESCE(excluded.km_end, day_km.km_end)`,
		key.User, key.Date.String(), nullable(start), nullable(end))
	if err != nil {
		return fmt.Errorf("upsert odometer: %w", err)
	}

	slog.DebugContext(ctx, "Odometer saved", "user", key.User, "date", key.Date.String())
	return nil
}

// AppendRide implements ledger.Store.
func (r *SQLiteRepository) AppendRide(ctx context.Context, user string, date core.Date, amount float64) (core.RideEntry, error) {
	e := core.RideEntry{User: strings.TrimSpace(user), Date: date, Timestamp: r.now().UTC(), Amount: amount}
	if err := e.Validate(); err != nil {
		return core.RideEntry{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rides (user_phone, d, ts, amount) VALUES (?, ?, ?, ?)`,
		e.User, e.Date.String(), formatTimestamp(e.Timestamp), e.Amount)
	if err != nil {
		return core.RideEntry{}, fmt.Errorf("insert ride: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.RideEntry{}, fmt.Errorf("ride id: %w", err)
	}

	slog.InfoContext(ctx, "Ride saved to SQLite", "id", e.ID, "user", e.User, "amount", e.Amount)
	return e, nil
}

// AppendFuel implements ledger.Store.
func (r *SQLiteRepository) AppendFuel(ctx context.Context, user string, date core.Date, fuelType string, amount, liters float64) (core.FuelEntry, error) {
	e := core.FuelEntry{
		User:      strings.TrimSpace(user),
		Date:      date,
		Timestamp: r.now().UTC(),
		FuelType:  strings.ToLower(strings.TrimSpace(fuelType)),
		Liters:    liters,
		Amount:    amount,
	}
	if err := e.Validate(); err != nil {
		return core.FuelEntry{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fuels (user_phone, d, ts, fuel_type, liters, amount) VALUES (?, ?, ?, ?, ?, ?)`,
		e.User, e.Date.String(), formatTimestamp(e.Timestamp), e.FuelType, e.Liters, e.Amount)
	if err != nil {
		return core.FuelEntry{}, fmt.Errorf("insert fuel: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.FuelEntry{}, fmt.Errorf("fuel id: %w", err)
	}

	slog.InfoContext(ctx, "Fuel saved to SQLite", "id", e.ID, "user", e.User, "fuel_type", e.FuelType, "amount", e.Amount)
	return e, nil
}

// ReadDay implements ledger.Store. The three reads share one transaction
// so the ledger is a consistent snapshot.
func (r *SQLiteRepository) ReadDay(ctx context.Context, user string, date core.Date) (core.DayLedger, error) {
	key, err := core.NewDayKey(user, date)
	if err != nil {
		return core.DayLedger{}, err
	}
	out := core.DayLedger{Key: key, Rides: []core.RideEntry{}, Fuels: []core.FuelEntry{}}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	d := key.Date.String()
	var start, end sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT km_start, km_end FROM day_km WHERE user_phone = ? AND d = ?`, key.User, d).
		Scan(&start, &end)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return out, fmt.Errorf("read odometer: %w", err)
	default:
		if start.Valid {
			out.Day.OdometerStart = core.Float(start.Float64)
		}
		if end.Valid {
			out.Day.OdometerEnd = core.Float(end.Float64)
		}
	}

	rides, err := tx.QueryContext(ctx,
		`SELECT id, ts, amount FROM rides WHERE user_phone = ? AND d = ? ORDER BY id`, key.User, d)
	if err != nil {
		return out, fmt.Errorf("read rides: %w", err)
	}
	for rides.Next() {
		e := core.RideEntry{User: key.User, Date: key.Date}
		var ts string
		if err := rides.Scan(&e.ID, &ts, &e.Amount); err != nil {
			rides.Close()
			return out, fmt.Errorf("scan ride: %w", err)
		}
		e.Timestamp = parseTimestamp(ts)
		out.Rides = append(out.Rides, e)
	}
	if err := rides.Close(); err != nil {
		return out, fmt.Errorf("close rides: %w", err)
	}
	if err := rides.Err(); err != nil {
		return out, fmt.Errorf("iterate rides: %w", err)
	}

	fuels, err := tx.QueryContext(ctx,
		`SELECT id, ts, fuel_type, liters, amount FROM fuels WHERE user_phone = ? AND d = ? ORDER BY id`, key.User, d)
	if err != nil {
		return out, fmt.Errorf("read fuels: %w", err)
	}
	defer fuels.Close()
	for fuels.Next() {
		e := core.FuelEntry{User: key.User, Date: key.Date}
		var ts string
		if err := fuels.Scan(&e.ID, &ts, &e.FuelType, &e.Liters, &e.Amount); err != nil {
			return out, fmt.Errorf("scan fuel: %w", err)
		}
		e.Timestamp = parseTimestamp(ts)
		out.Fuels = append(out.Fuels, e)
	}
	if err := fuels.Err(); err != nil {
		return out, fmt.Errorf("iterate fuels: %w", err)
	}

	return out, nil
}

// timestampLayout is fixed width so that ts sorts chronologically as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp also reads rows written with variable-width fractions.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func table(kind core.EntryKind) (string, error) {
	switch kind {
	case core.KindRide:
		return "rides", nil
	case core.KindFuel:
		return "fuels", nil
	}
	return "", fmt.Errorf("unsupported entry kind: %q", kind)
}

// GetPendingSync returns entries not yet exported, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, ts FROM (
			SELECT 'ride' AS kind, id, ts FROM rides WHERE sync_status != ?
			UNION ALL
			SELECT 'fuel' AS kind, id, ts FROM fuels WHERE sync_status != ?
		) ORDER BY ts, kind, id LIMIT ?`, SyncDone, SyncDone, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var (
			p    PendingEntry
			kind string
			ts   string
		)
		if err := rows.Scan(&kind, &p.ID, &ts); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		p.Kind = core.EntryKind(kind)
		p.CreatedAt = parseTimestamp(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetRide retrieves a single ride by id.
func (r *SQLiteRepository) GetRide(ctx context.Context, id int64) (core.RideEntry, error) {
	e := core.RideEntry{ID: id}
	var d, ts string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_phone, d, ts, amount FROM rides WHERE id = ?`, id).
		Scan(&e.User, &d, &ts, &e.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RideEntry{}, fmt.Errorf("ride %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.RideEntry{}, fmt.Errorf("get ride by id: %w", err)
	}
	if e.Date, err = core.ParseDate(d); err != nil {
		return core.RideEntry{}, fmt.Errorf("ride %d date %q: %w", id, d, err)
	}
	e.Timestamp = parseTimestamp(ts)
	return e, nil
}

// GetFuel retrieves a single fuel entry by id.
func (r *SQLiteRepository) GetFuel(ctx context.Context, id int64) (core.FuelEntry, error) {
	e := core.FuelEntry{ID: id}
	var d, ts string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_phone, d, ts, fuel_type, liters, amount FROM fuels WHERE id = ?`, id).
		Scan(&e.User, &d, &ts, &e.FuelType, &e.Liters, &e.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FuelEntry{}, fmt.Errorf("fuel %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.FuelEntry{}, fmt.Errorf("get fuel by id: %w", err)
	}
	if e.Date, err = core.ParseDate(d); err != nil {
		return core.FuelEntry{}, fmt.Errorf("fuel %d date %q: %w", id, d, err)
	}
	e.Timestamp = parseTimestamp(ts)
	return e, nil
}

// MarkSynced marks an entry as successfully exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind core.EntryKind, id int64) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE `+t+` SET sync_status = ?, synced_at = ? WHERE id = ?`,
		SyncDone, formatTimestamp(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", kind, err)
	}

	slog.InfoContext(ctx, "Entry marked as synced", "kind", kind, "id", id)
	return nil
}

// MarkSyncError flags an entry whose export failed. It stays eligible for retry.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, kind core.EntryKind, id int64) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE `+t+` SET sync_status = ? WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark %s sync error: %w", kind, err)
	}

	slog.WarnContext(ctx, "Entry marked with sync error", "kind", kind, "id", id)
	return nil
}
