// Package format renders currency and quantities for a locale.
//
// Locales are selected by BCP 47 tag and only carry separators and a
// currency symbol, so adding a language never touches the aggregation code.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
)

// Formatter renders the values that appear in a daily report.
type Formatter interface {
	Money(v float64) string
	Odometer(v float64) string
	Distance(v float64) string
}

// Locale is a separator-based Formatter.
type Locale struct {
	Tag            language.Tag
	CurrencySymbol string
	Thousands      string
	Decimal        string
}

var (
	BrazilianPortuguese = Locale{Tag: language.BrazilianPortuguese, CurrencySymbol: "R$", Thousands: ".", Decimal: ","}
	AmericanEnglish     = Locale{Tag: language.AmericanEnglish, CurrencySymbol: "$", Thousands: ",", Decimal: "."}
	EuropeanSpanish     = Locale{Tag: language.EuropeanSpanish, CurrencySymbol: "€", Thousands: ".", Decimal: ","}
)

var (
	supported = []Locale{BrazilianPortuguese, AmericanEnglish, EuropeanSpanish}
	matcher   = language.NewMatcher([]language.Tag{
		BrazilianPortuguese.Tag,
		AmericanEnglish.Tag,
		EuropeanSpanish.Tag,
	})
)

// Lookup returns the closest supported locale for tag. Empty or
// unparseable tags fall back to Brazilian Portuguese.
func Lookup(tag string) (Locale, error) {
	if strings.TrimSpace(tag) == "" {
		return BrazilianPortuguese, nil
	}
	t, err := language.Parse(tag)
	if err != nil {
		return BrazilianPortuguese, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return BrazilianPortuguese, nil
	}
	return supported[idx], nil
}

// humanize.FormatFloat truncates the integer part to int64, so larger
// magnitudes are grouped from the strconv rendering instead.
const humanizeLimit = 1e15

// Money renders v with two decimals, rounded half-up, e.g. "R$ 1.234,50".
func (l Locale) Money(v float64) string {
	if math.Abs(v) < humanizeLimit {
		return l.CurrencySymbol + " " + humanize.FormatFloat(l.moneyPattern(), v)
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return l.CurrencySymbol + " " + s
	}
	return l.CurrencySymbol + " " + l.group(s)
}

// group rewrites a plain "-1234.50" rendering with the locale separators.
func (l Locale) group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	b.WriteString(sign)
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(l.Thousands)
		}
		b.WriteRune(d)
	}
	if frac != "" {
		b.WriteString(l.Decimal)
		b.WriteString(frac)
	}
	return b.String()
}

// Odometer renders a reading with no decimals and no grouping.
func (l Locale) Odometer(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

// Distance renders kilometres with one decimal.
func (l Locale) Distance(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// moneyPattern builds a go-humanize directive such as "#.###,##".
func (l Locale) moneyPattern() string {
	return "#" + l.Thousands + "###" + l.Decimal + "##"
}
