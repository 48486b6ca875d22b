package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"kmbot/internal/core"
	"kmbot/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps ledgers in process memory. The map lock is only held to
// find or create a day bucket; each bucket has its own lock so different
// keys never wait on each other.
type Store struct {
	mu     sync.Mutex
	days   map[core.DayKey]*bucket
	now    func() time.Time
	idMu   sync.Mutex
	lastID int64
}

type bucket struct {
	mu    sync.Mutex
	day   core.DayRecord
	rides []core.RideEntry
	fuels []core.FuelEntry
}

func New() *Store {
	return &Store{days: make(map[core.DayKey]*bucket), now: time.Now}
}

// WithClock sets the source of entry timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// bucket returns the bucket of key, or nil when it does not exist and
// create is false.
func (s *Store) bucket(key core.DayKey, create bool) *bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.days[key]
	if !ok && create {
		b = &bucket{}
		s.days[key] = b
	}
	return b
}

func (s *Store) nextID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.lastID++
	return s.lastID
}

func (s *Store) UpsertOdometer(_ context.Context, user string, date core.Date, start, end *float64) error {
	key, err := core.NewDayKey(user, date)
	if err != nil {
		return err
	}
	b := s.bucket(key, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.day = b.day.Merge(core.DayRecord{OdometerStart: start, OdometerEnd: end})
	return nil
}

func (s *Store) AppendRide(_ context.Context, user string, date core.Date, amount float64) (core.RideEntry, error) {
	e := core.RideEntry{User: strings.TrimSpace(user), Date: date, Timestamp: s.now(), Amount: amount}
	if err := e.Validate(); err != nil {
		return core.RideEntry{}, err
	}
	key, err := core.NewDayKey(user, date)
	if err != nil {
		return core.RideEntry{}, err
	}
	b := s.bucket(key, true)
	e.ID = s.nextID()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rides = append(b.rides, e)
	return e, nil
}

func (s *Store) AppendFuel(_ context.Context, user string, date core.Date, fuelType string, amount, liters float64) (core.FuelEntry, error) {
	e := core.FuelEntry{
		User:      strings.TrimSpace(user),
		Date:      date,
		Timestamp: s.now(),
		FuelType:  strings.ToLower(strings.TrimSpace(fuelType)),
		Liters:    liters,
		Amount:    amount,
	}
	if err := e.Validate(); err != nil {
		return core.FuelEntry{}, err
	}
	key, err := core.NewDayKey(user, date)
	if err != nil {
		return core.FuelEntry{}, err
	}
	b := s.bucket(key, true)
	e.ID = s.nextID()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fuels = append(b.fuels, e)
	return e, nil
}

func (s *Store) ReadDay(_ context.Context, user string, date core.Date) (core.DayLedger, error) {
	key, err := core.NewDayKey(user, date)
	if err != nil {
		return core.DayLedger{}, err
	}
	out := core.DayLedger{Key: key, Rides: []core.RideEntry{}, Fuels: []core.FuelEntry{}}
	b := s.bucket(key, false)
	if b == nil {
		return out, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out.Day = core.DayRecord{}.Merge(b.day)
	out.Rides = append(out.Rides, b.rides...)
	out.Fuels = append(out.Fuels, b.fuels...)
	return out, nil
}
