package summary

import (
	"math"
	"strings"
	"testing"

	"kmbot/internal/core"
	"kmbot/internal/format"
)

var key = core.DayKey{User: "whatsapp:+5511999990000", Date: core.NewDate(2024, 5, 10)}

func scenarioLedger() core.DayLedger {
	return core.DayLedger{
		Key: key,
		Day: core.DayRecord{OdometerStart: core.Float(32000), OdometerEnd: core.Float(32210)},
		Rides: []core.RideEntry{
			{Amount: 25}, {Amount: 12}, {Amount: 18},
		},
		Fuels: []core.FuelEntry{
			{FuelType: "etanol", Amount: 120, Liters: 28},
		},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.005 }

func TestComputeScenario(t *testing.T) {
	s := Compute(scenarioLedger())
	if s.Distance == nil || *s.Distance != 210 {
		t.Fatalf("distance = %v", s.Distance)
	}
	if s.RidesTotal != 55 || s.FuelTotal != 120 || s.LitersTotal != 28 {
		t.Fatalf("totals rides=%v fuel=%v liters=%v", s.RidesTotal, s.FuelTotal, s.LitersTotal)
	}
	if s.AvgFuelPrice == nil || !near(*s.AvgFuelPrice, 4.29) {
		t.Fatalf("avg price = %v", s.AvgFuelPrice)
	}
	if s.CostPerKm == nil || !near(*s.CostPerKm, 0.57) {
		t.Fatalf("cost/km = %v", s.CostPerKm)
	}
	if s.Profit != -65 {
		t.Fatalf("profit = %v", s.Profit)
	}
}

func TestRenderScenario(t *testing.T) {
	got := Report(scenarioLedger(), format.BrazilianPortuguese)
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
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderEmptyDay(t *testing.T) {
	s := Compute(core.DayLedger{Key: key})
	if s.Distance != nil || s.AvgFuelPrice != nil || s.CostPerKm != nil {
		t.Fatalf("derived metrics must be undefined: %+v", s)
	}
	got := Render(s, format.BrazilianPortuguese)
	want := strings.Join([]string{
		"📊 Resumo de 2024-05-10",
		"• KM: —",
		"• Ganhos (corridas): R$ 0,00",
		"• Combustível: R$ 0,00",
		"• 💰 Lucro do dia: R$ 0,00",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

func TestOnlyOneOdometerBound(t *testing.T) {
	l := core.DayLedger{Key: key, Day: core.DayRecord{OdometerStart: core.Float(100)}}
	if got := Report(l, format.BrazilianPortuguese); !strings.Contains(got, "• KM: —") {
		t.Fatalf("expected unset km line, got:\n%s", got)
	}
}

func TestInvertedOdometer(t *testing.T) {
	l := core.DayLedger{
		Key:   key,
		Day:   core.DayRecord{OdometerStart: core.Float(500), OdometerEnd: core.Float(400)},
		Fuels: []core.FuelEntry{{Amount: 50, Liters: 10}},
	}
	s := Compute(l)
	if s.Distance == nil || *s.Distance != -100 {
		t.Fatalf("expected distance -100, got %v", s.Distance)
	}
	if s.CostPerKm != nil {
		t.Fatalf("cost per km must be omitted for non-positive distance")
	}
	got := Render(s, format.BrazilianPortuguese)
	if strings.Contains(got, "Custo por km") {
		t.Fatalf("unexpected cost line:\n%s", got)
	}
	if !strings.Contains(got, "(rodou -100.0 km)") {
		t.Fatalf("expected negative distance rendered:\n%s", got)
	}
}

func TestZeroDistanceOmitsCost(t *testing.T) {
	l := core.DayLedger{
		Key:   key,
		Day:   core.DayRecord{OdometerStart: core.Float(10), OdometerEnd: core.Float(10)},
		Fuels: []core.FuelEntry{{Amount: 50, Liters: 10}},
	}
	if s := Compute(l); s.CostPerKm != nil {
		t.Fatalf("cost per km must be omitted for zero distance")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	l := scenarioLedger()
	if Report(l, format.BrazilianPortuguese) != Report(l, format.BrazilianPortuguese) {
		t.Fatalf("report changed between calls")
	}
}
