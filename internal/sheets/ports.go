// Package sheets exports ledger entries to an external spreadsheet.
package sheets

import (
	"context"
	"time"

	"kmbot/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter appends one row per entry and returns a reference to it.
	EntryWriter interface {
		AppendRide(ctx context.Context, e core.RideEntry) (rowRef string, err error)
		AppendFuel(ctx context.Context, e core.FuelEntry) (rowRef string, err error)
	}
)

// RideHeader and FuelHeader name the exported columns.
var (
	RideHeader = []any{"ID", "Telefone", "Data", "Horário", "Valor"}
	FuelHeader = []any{"ID", "Telefone", "Data", "Horário", "Combustível", "Litros", "Valor"}
)

// RideRow renders a ride in RideHeader order.
func RideRow(e core.RideEntry) []any {
	return []any{e.ID, e.User, e.Date.String(), e.Timestamp.UTC().Format(time.RFC3339), e.Amount}
}

// FuelRow renders a fuel entry in FuelHeader order.
func FuelRow(e core.FuelEntry) []any {
	return []any{e.ID, e.User, e.Date.String(), e.Timestamp.UTC().Format(time.RFC3339), e.FuelType, e.Liters, e.Amount}
}
