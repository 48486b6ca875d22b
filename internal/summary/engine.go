// Package summary derives the daily financial report from a day ledger.
package summary

import (
	"strings"

	"kmbot/internal/core"
	"kmbot/internal/format"
)

// Summary holds the derived metrics of a user-day. Optional metrics are nil
// when they cannot be computed.
type Summary struct {
	Date          core.Date
	OdometerStart *float64
	OdometerEnd   *float64

	RidesTotal  float64
	RideCount   int
	FuelTotal   float64
	LitersTotal float64
	FuelCount   int

	Distance     *float64 // end - start, only when both bounds exist
	AvgFuelPrice *float64 // fuel total / liters, only when liters > 0
	CostPerKm    *float64 // fuel total / distance, only when distance > 0
	Profit       float64
}

// Compute aggregates a ledger. It is a pure function of its input.
func Compute(l core.DayLedger) Summary {
	s := Summary{
		Date:          l.Key.Date,
		OdometerStart: l.Day.OdometerStart,
		OdometerEnd:   l.Day.OdometerEnd,
		RideCount:     len(l.Rides),
		FuelCount:     len(l.Fuels),
	}
	for _, r := range l.Rides {
		s.RidesTotal += r.Amount
	}
	for _, f := range l.Fuels {
		s.FuelTotal += f.Amount
		s.LitersTotal += f.Liters
	}
	if s.OdometerStart != nil && s.OdometerEnd != nil {
		d := *s.OdometerEnd - *s.OdometerStart
		s.Distance = &d
	}
	if s.LitersTotal > 0 {
		p := s.FuelTotal / s.LitersTotal
		s.AvgFuelPrice = &p
	}
	if s.Distance != nil && *s.Distance > 0 {
		c := s.FuelTotal / *s.Distance
		s.CostPerKm = &c
	}
	s.Profit = s.RidesTotal - s.FuelTotal
	return s
}

// Render formats the report. Undefined metrics are left out entirely.
func Render(s Summary, f format.Formatter) string {
	var b strings.Builder
	b.WriteString("📊 Resumo de " + s.Date.String() + "\n")

	km := "—"
	if s.Distance != nil {
		km = f.Odometer(*s.OdometerStart) + " → " + f.Odometer(*s.OdometerEnd) +
			" (rodou " + f.Distance(*s.Distance) + " km)"
	}
	b.WriteString("• KM: " + km + "\n")
	b.WriteString("• Ganhos (corridas): " + f.Money(s.RidesTotal) + "\n")
	b.WriteString("• Combustível: " + f.Money(s.FuelTotal) + "\n")
	if s.AvgFuelPrice != nil {
		b.WriteString("  └ Preço médio/L: " + f.Money(*s.AvgFuelPrice) + "\n")
	}
	if s.CostPerKm != nil {
		b.WriteString("• Custo por km: " + f.Money(*s.CostPerKm) + "\n")
	}
	b.WriteString("• 💰 Lucro do dia: " + f.Money(s.Profit))
	return b.String()
}

// Report computes and renders in one step.
func Report(l core.DayLedger, f format.Formatter) string {
	return Render(Compute(l), f)
}
