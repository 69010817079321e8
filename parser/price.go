// Package parser turns raw registry fields and scraped text into normalized
// search terms and price values.
package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceRange bounds plausible car prices in local currency. Both ends are
// inclusive.
type PriceRange struct {
	Min float64
	Max float64
}

// DefaultRange accepts values from 1.000 to 1.000.000.
var DefaultRange = PriceRange{Min: 1000, Max: 1000000}

// Contains reports whether v lies inside the range.
func (r PriceRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

var numericPrefix = regexp.MustCompile(`^(?:\d+(?:\.\d*)?|\.\d+)`)

// CleanPrice keeps digits, commas and periods, drops every period as a
// thousands separator and turns the first comma into the decimal point.
func CleanPrice(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == ',' {
			b.WriteRune(r)
		}
	}
	return strings.Replace(b.String(), ",", ".", 1)
}

// ParseAmount parses the leading number of the cleaned text. It does not apply
// any range check.
func ParseAmount(text string) (decimal.Decimal, bool) {
	match := numericPrefix.FindString(CleanPrice(text))
	if match == "" {
		return decimal.Zero, false
	}
	match = strings.TrimSuffix(match, ".")
	if strings.HasPrefix(match, ".") {
		match = "0" + match
	}
	amount, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// ParsePrice parses a display-formatted price such as "R$ 25.499,00" and
// reports whether it is a plausible car price.
func ParsePrice(text string, r PriceRange) (float64, bool) {
	amount, ok := ParseAmount(text)
	if !ok {
		return 0, false
	}
	value := amount.InexactFloat64()
	if !r.Contains(value) {
		return 0, false
	}
	return value, true
}
