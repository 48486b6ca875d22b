package core

import (
	"regexp"
	"strconv"
	"strings"
)

// Matches 12, 12.5 and 12,50. A trailing separator ("12,") just ends the token.
var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ExtractNumbers returns every decimal number found in text, in order of
// appearance. Text without numbers yields an empty slice.
func ExtractNumbers(text string) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
		if err != nil {
			// only reachable on overflow of absurdly long digit runs
			continue
		}
		out = append(out, v)
	}
	return out
}
