package table

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "29 %", "<1 %", "0.5%"; label tables often separate the sign with a no-break space
	percentPattern = regexp.MustCompile(`^<?(\d+(?:\.\d+)?)[\s\p{Zs}]*%$`)
	// "15", "<1"
	numberPattern = regexp.MustCompile(`^<?(\d+(?:\.\d+)?)$`)
)

// MaxPercent is the upper bound for a Number cell
const MaxPercent = 100.0

// Normalize converts a cell's text content into a Cell.
//
// Percentages ("29 %") and bare numbers ("15") become Number cells; anything
// else is returned as Text with surrounding whitespace removed. A leading "<"
// is accepted and ignored, so "<1 %" yields 1. The match is whole-string:
// "29% of patients" stays Text. Values above 100 stay Text as they cannot be
// percentages.
func Normalize(text string) Cell {
	stripped := strings.TrimSpace(text)

	for _, pattern := range []*regexp.Regexp{percentPattern, numberPattern} {
		m := pattern.FindStringSubmatch(stripped)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil || value > MaxPercent {
			break
		}
		return NumberCell(value)
	}

	return TextCell(stripped)
}
