package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Salary is a parsed compensation range. Min and Max are annualized.
type Salary struct {
	Min      float64
	Max      float64
	Currency string
}

// The grouped alternative requires at least one comma group, otherwise a
// comma-less amount like 150000 would split into 150 and 000.
var amountRe = regexp.MustCompile(`([$£€])?\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*([kK])?`)

var currencyBySymbol = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
}

// ParseSalary extracts an annualized compensation range from free-form
// salary text ("$150,000 - $200,000 a year", "Up to $250K", "$90 an
// hour"). Returns (salary, true) on success; an unrecognized format
// returns (zero, false) and the caller keeps the record undisclosed.
func ParseSalary(text string) (Salary, bool) {
	text = CleanText(text)
	if text == "" {
		return Salary{}, false
	}

	matches := amountRe.FindAllStringSubmatch(text, 2)
	if len(matches) == 0 {
		return Salary{}, false
	}

	currency := "USD"
	var amounts []float64
	for _, m := range matches {
		if sym := m[1]; sym != "" {
			if c, ok := currencyBySymbol[sym]; ok {
				currency = c
			}
		}
		raw := strings.ReplaceAll(m[2], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if m[3] != "" {
			v *= 1000
		}
		amounts = append(amounts, v)
	}
	if len(amounts) == 0 {
		return Salary{}, false
	}

	s := Salary{Min: amounts[0], Max: amounts[0], Currency: currency}
	if len(amounts) > 1 {
		s.Max = amounts[1]
	}
	if s.Min > s.Max {
		s.Min, s.Max = s.Max, s.Min
	}

	// Annualize by pay period.
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hour"):
		s.Min *= 2080
		s.Max *= 2080
	case strings.Contains(lower, "week"):
		s.Min *= 52
		s.Max *= 52
	case strings.Contains(lower, "month"):
		s.Min *= 12
		s.Max *= 12
	}

	// Single bare numbers below a plausible annual wage are noise, not a
	// disclosed executive salary ("3 openings", "5 years experience").
	if s.Max < 10000 {
		return Salary{}, false
	}

	return s, true
}
