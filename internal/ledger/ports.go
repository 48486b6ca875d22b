// Package ledger defines the daily record store used by the bot.
package ledger

import (
	"context"

	"kmbot/internal/core"
)

// Ports for the persistence adapters.
type (
	// Store owns the per-user-per-day records. Every operation is atomic
	// with respect to other operations on the same (user, date) key.
	Store interface {
		// UpsertOdometer merges the supplied bounds into the day record,
		// creating it if needed. Nil bounds keep their previous value.
		UpsertOdometer(ctx context.Context, user string, date core.Date, start, end *float64) error

		// AppendRide stores a new ride entry.
		AppendRide(ctx context.Context, user string, date core.Date, amount float64) (core.RideEntry, error)

		// AppendFuel stores a new fuel entry; the fuel type is lower-cased.
		AppendFuel(ctx context.Context, user string, date core.Date, fuelType string, amount, liters float64) (core.FuelEntry, error)

		// ReadDay returns everything recorded for the key. A day with no
		// records is not an error.
		ReadDay(ctx context.Context, user string, date core.Date) (core.DayLedger, error)
	}

	// Closer is implemented by stores that hold resources.
	Closer interface {
		Close() error
	}
)
