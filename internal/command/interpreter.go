// Package command classifies inbound chat messages into driver ledger
// commands.
package command

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"kmbot/internal/core"
)

// Intent is the classified purpose of a message.
type Intent int

const (
	Unknown Intent = iota
	SetOdometerStart
	SetOdometerEnd
	RecordRides
	RecordFuel
	Summarize
	Help
)

var intentNames = map[Intent]string{
	Unknown:          "unknown",
	SetOdometerStart: "odometer_start",
	SetOdometerEnd:   "odometer_end",
	RecordRides:      "rides",
	RecordFuel:       "fuel",
	Summarize:        "summary",
	Help:             "help",
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return "unknown"
}

// Usage hints returned when arguments are missing.
const (
	UsageOdometerStart = "Use: km inicio 32000"
	UsageOdometerEnd   = "Use: km final 32210"
	UsageRides         = "Use: corrida 25  |  corrida 12, 18, 34"
	UsageFuelShort     = "Use: abasteci etanol 120 28 (tipo valor litros)"
	UsageFuelNumbers   = "Use: abasteci <tipo> <valor> <litros>"
)

// UsageError reports a recognised command with missing or malformed
// arguments. Hint is meant to be sent back verbatim.
type UsageError struct {
	Intent Intent
	Hint   string
}

func (e *UsageError) Error() string {
	return e.Intent.String() + ": " + e.Hint
}

// ErrInvalidDate is returned for a summary request with a bad date token.
var ErrInvalidDate = core.ErrInvalidDate

// Command is the structured result of interpreting one message.
type Command struct {
	Intent Intent

	// Values holds the odometer reading (first element) or every ride amount.
	Values []float64

	FuelType string
	Amount   float64
	Liters   float64

	// Date is zero when the summary should cover today.
	Date core.Date

	// Err is a *UsageError or ErrInvalidDate; the command must not mutate
	// state when it is set.
	Err error
}

// Odometer returns the reading of an odometer command.
func (c Command) Odometer() float64 {
	if len(c.Values) == 0 {
		return 0
	}
	return c.Values[0]
}

type rule struct {
	intent Intent
	match  func(folded string) bool
	parse  func(body string) Command
}

func hasPrefix(p string) func(string) bool {
	return func(s string) bool { return strings.HasPrefix(s, p) }
}

func oneOf(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if s == w {
				return true
			}
		}
		return false
	}
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{SetOdometerStart, hasPrefix("km inicio"), parseOdometer(SetOdometerStart, UsageOdometerStart)},
	{SetOdometerEnd, hasPrefix("km final"), parseOdometer(SetOdometerEnd, UsageOdometerEnd)},
	{RecordRides, hasPrefix("corrida"), parseRides},
	{RecordFuel, hasPrefix("abasteci"), parseFuel},
	{Summarize, hasPrefix("resumo"), parseSummary},
	{Help, oneOf("ajuda", "help", "?"), func(string) Command { return Command{Intent: Help} }},
}

// Interpret classifies text. It never fails: unrecognised input yields
// Unknown, and argument problems are reported through Command.Err.
func Interpret(text string) Command {
	body := cases.Lower(language.BrazilianPortuguese).String(strings.TrimSpace(text))
	folded := foldAccents(body)
	for _, r := range rules {
		if r.match(folded) {
			return r.parse(body)
		}
	}
	return Command{Intent: Unknown}
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func parseOdometer(intent Intent, hint string) func(string) Command {
	return func(body string) Command {
		nums := core.ExtractNumbers(body)
		if len(nums) == 0 {
			return Command{Intent: intent, Err: &UsageError{Intent: intent, Hint: hint}}
		}
		return Command{Intent: intent, Values: nums[:1]}
	}
}

func parseRides(body string) Command {
	nums := core.ExtractNumbers(body)
	if len(nums) == 0 {
		return Command{Intent: RecordRides, Err: &UsageError{Intent: RecordRides, Hint: UsageRides}}
	}
	return Command{Intent: RecordRides, Values: nums}
}

func parseFuel(body string) Command {
	parts := strings.Fields(body)
	if len(parts) < 4 {
		return Command{Intent: RecordFuel, Err: &UsageError{Intent: RecordFuel, Hint: UsageFuelShort}}
	}
	nums := core.ExtractNumbers(strings.Join(parts[2:], " "))
	if len(nums) < 2 {
		return Command{Intent: RecordFuel, Err: &UsageError{Intent: RecordFuel, Hint: UsageFuelNumbers}}
	}
	return Command{
		Intent:   RecordFuel,
		FuelType: parts[1],
		Amount:   nums[0],
		Liters:   nums[1],
	}
}

func parseSummary(body string) Command {
	// Only "resumo <date>" names a day; anything else means today
	parts := strings.Fields(body)
	if len(parts) != 2 {
		return Command{Intent: Summarize}
	}
	d, err := core.ParseDate(parts[1])
	if err != nil {
		return Command{Intent: Summarize, Err: ErrInvalidDate}
	}
	return Command{Intent: Summarize, Date: d}
}

// IsUsage reports whether err carries a usage hint and returns it.
func IsUsage(err error) (string, bool) {
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue.Hint, true
	}
	return "", false
}
