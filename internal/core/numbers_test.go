package core

import "testing"

func TestExtractNumbers(t *testing.T) {
	cases := []struct {
		in  string
		out []float64
	}{
		{"km inicio 32000", []float64{32000}},
		{"corrida 12, 18, 34", []float64{12, 18, 34}},
		{"corrida 12,18", []float64{12.18}},
		{"abasteci gasolina 200 33.5", []float64{200, 33.5}},
		{"valor 12,", []float64{12}},
		{"3.", []float64{3}},
		{"nada aqui", []float64{}},
		{"", []float64{}},
		{"-5", []float64{5}},
	}
	for _, tc := range cases {
		got := ExtractNumbers(tc.in)
		if got == nil {
			t.Fatalf("%q returned nil slice", tc.in)
		}
		if len(got) != len(tc.out) {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
		for i := range got {
			if got[i] != tc.out[i] {
				t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
			}
		}
	}
}
