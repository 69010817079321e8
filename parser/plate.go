package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	legacyPlate   = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)
	mercosulPlate = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z][0-9]{2}$`)
)

// NormalizePlate removes whitespace and upper-cases a license plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, plate))
}

// ValidPlate reports whether a normalized plate uses the legacy (AAA9999) or
// Mercosul (AAA9A99) layout.
func ValidPlate(plate string) bool {
	return legacyPlate.MatchString(plate) || mercosulPlate.MatchString(plate)
}
