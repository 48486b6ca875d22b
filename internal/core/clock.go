package core

import (
	"fmt"
	"time"
)

// DefaultTimezone anchors "today" for every user regardless of their locale.
const DefaultTimezone = "America/Sao_Paulo"

// Clock resolves the current instant and calendar day in a fixed timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock loads the named timezone. An empty name selects DefaultTimezone.
func NewClock(tz string) (*Clock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixedClock always reports t. Used by tests and replays.
func NewFixedClock(t time.Time, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: func() time.Time { return t }}
}

// Now returns the current instant in the clock's timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar day in the clock's timezone.
func (c *Clock) Today() Date {
	return DateOf(c.now(), c.loc)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}
