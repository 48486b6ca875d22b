package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar-date layout used at every boundary.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day with no time-of-day component.
	Date struct {
		time.Time
	}

	// DayKey identifies the ledger of one user on one calendar day.
	DayKey struct {
		User string
		Date Date
	}

	// DayRecord holds the odometer bounds of a user-day. Nil means unset.
	DayRecord struct {
		OdometerStart *float64
		OdometerEnd   *float64
	}

	RideEntry struct {
		ID        int64
		User      string
		Date      Date
		Timestamp time.Time
		Amount    float64
	}

	FuelEntry struct {
		ID        int64
		User      string
		Date      Date
		Timestamp time.Time
		FuelType  string // lower-cased
		Liters    float64
		Amount    float64
	}

	// DayLedger is everything recorded for one user-day.
	DayLedger struct {
		Key   DayKey
		Day   DayRecord
		Rides []RideEntry
		Fuels []FuelEntry
	}
)

var (
	ErrEmptyUser      = errors.New("empty user")
	ErrInvalidDate    = errors.New("invalid date")
	ErrNegativeAmount = errors.New("negative amount")
	ErrEmptyFuelType  = errors.New("empty fuel type")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range values such as
// 2024-13-40 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDayKey builds a validated key.
func NewDayKey(user string, d Date) (DayKey, error) {
	k := DayKey{User: strings.TrimSpace(user), Date: d}
	if err := k.Validate(); err != nil {
		return DayKey{}, err
	}
	return k, nil
}

func (k DayKey) Validate() error {
	if k.User == "" {
		return ErrEmptyUser
	}
	return k.Date.Validate()
}

// String is used as a map and cache key.
func (k DayKey) String() string {
	return k.User + "|" + k.Date.String()
}

// Merge overwrites only the bounds present in upd.
func (r DayRecord) Merge(upd DayRecord) DayRecord {
	if upd.OdometerStart != nil {
		v := *upd.OdometerStart
		r.OdometerStart = &v
	}
	if upd.OdometerEnd != nil {
		v := *upd.OdometerEnd
		r.OdometerEnd = &v
	}
	return r
}

func (e RideEntry) Validate() error {
	if strings.TrimSpace(e.User) == "" {
		return ErrEmptyUser
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (e FuelEntry) Validate() error {
	if strings.TrimSpace(e.User) == "" {
		return ErrEmptyUser
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.FuelType) == "" {
		return ErrEmptyFuelType
	}
	if e.Amount < 0 || e.Liters < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Float returns a pointer to v, handy for optional odometer bounds.
func Float(v float64) *float64 {
	return &v
}

// EntryKind names an append-only ledger table.
type EntryKind string

const (
	KindRide EntryKind = "ride"
	KindFuel EntryKind = "fuel"
)

func (k EntryKind) IsValid() bool {
	return k == KindRide || k == KindFuel
}
