package format

import "testing"

func TestMoneyBrazilian(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{0, "R$ 0,00"},
		{55, "R$ 55,00"},
		{120, "R$ 120,00"},
		{4.2857142857, "R$ 4,29"},
		{0.5714285714, "R$ 0,57"},
		{-65, "R$ -65,00"},
		{1234.5, "R$ 1.234,50"},
		{1234567.891, "R$ 1.234.567,89"},
		{1e19, "R$ 10.000.000.000.000.000.000,00"},
		{-1e19, "R$ -10.000.000.000.000.000.000,00"},
		{1e20, "R$ 100.000.000.000.000.000.000,00"},
	}
	for _, tc := range cases {
		if got := BrazilianPortuguese.Money(tc.in); got != tc.out {
			t.Errorf("Money(%v) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestMoneyAmerican(t *testing.T) {
	if got := AmericanEnglish.Money(1234.5); got != "$ 1,234.50" {
		t.Fatalf("unexpected %q", got)
	}
	if got := AmericanEnglish.Money(1.5e16); got != "$ 15,000,000,000,000,000.00" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestOdometerAndDistance(t *testing.T) {
	l := BrazilianPortuguese
	if got := l.Odometer(32000); got != "32000" {
		t.Fatalf("Odometer = %q", got)
	}
	if got := l.Distance(210); got != "210.0" {
		t.Fatalf("Distance = %q", got)
	}
	if got := l.Distance(-12.5); got != "-12.5" {
		t.Fatalf("Distance = %q", got)
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		tag    string
		symbol string
		err    bool
	}{
		{"", "R$", false},
		{"pt-BR", "R$", false},
		{"pt", "R$", false},
		{"en-US", "$", false},
		{"es-ES", "€", false},
		{"!!", "R$", true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			l, err := Lookup(tt.tag)
			if (err != nil) != tt.err {
				t.Fatalf("Lookup(%q) err = %v, want err %v", tt.tag, err, tt.err)
			}
			if l.CurrencySymbol != tt.symbol {
				t.Fatalf("Lookup(%q) symbol = %q, want %q", tt.tag, l.CurrencySymbol, tt.symbol)
			}
		})
	}
}
