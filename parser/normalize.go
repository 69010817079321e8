package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-car-prices/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Ordered key lists for the logical fields of a registry record. The first
// non-empty value wins.
var (
	brandKeys = []string{"MARCA", "marca"}
	modelKeys = []string{"MODELO", "modelo"}
	yearKeys  = []string{"ano", "anoModelo", "extra.ano_modelo"}
	// termKeys feed both the primary model fallback and the alternate terms.
	termKeys = []string{"SUBMODELO", "submodelo", "versao", "VERSAO", "extra.modelo", "extra.grupo", "extra.linha"}
)

// NewDescriptor normalizes a registry record into a search descriptor.
// Missing fields produce empty values; it never fails.
func NewDescriptor(rec models.VehicleRecord) models.Descriptor {
	brand := firstField(rec, brandKeys...)
	model := firstField(rec, modelKeys...)
	year := firstField(rec, yearKeys...)

	candidates := make([]string, 0, len(termKeys)+1)
	candidates = append(candidates, strings.TrimSpace(brand+" "+model))
	for _, key := range termKeys {
		candidates = append(candidates, field(rec, key))
	}

	primary := model
	if primary == "" {
		primary = firstField(rec, termKeys...)
	}

	return models.Descriptor{
		Brand: brand,
		Model: primary,
		Year:  year,
		Terms: uniqueTerms(candidates),
	}
}

// NormalizeTerm strips diacritics, replaces anything other than ASCII letters,
// digits and whitespace with a space, and collapses whitespace.
func NormalizeTerm(term string) string {
	if term == "" {
		return ""
	}
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningMark)))
	decomposed, _, err := transform.String(stripper, term)
	if err != nil {
		decomposed = term
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		default:
			return ' '
		}
	}, decomposed)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Slugify lower-cases the normalized term and joins its words with hyphens.
func Slugify(term string) string {
	normalized := NormalizeTerm(term)
	if normalized == "" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(normalized), " ", "-")
}

func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036f
}

func uniqueTerms(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	terms := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		term := NormalizeTerm(candidate)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

func firstField(rec models.VehicleRecord, keys ...string) string {
	for _, key := range keys {
		if value := field(rec, key); value != "" {
			return value
		}
	}
	return ""
}

// field resolves key in rec. A dotted key reads one level of nesting.
func field(rec models.VehicleRecord, key string) string {
	if rec == nil {
		return ""
	}
	parent, child, nested := strings.Cut(key, ".")
	if !nested {
		return scalarString(rec[key])
	}
	switch inner := rec[parent].(type) {
	case map[string]any:
		return scalarString(inner[child])
	case models.VehicleRecord:
		return scalarString(inner[child])
	default:
		return ""
	}
}

func scalarString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		if value == 0 {
			return ""
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		if value == 0 {
			return ""
		}
		return strconv.Itoa(value)
	case int64:
		if value == 0 {
			return ""
		}
		return strconv.FormatInt(value, 10)
	default:
		return ""
	}
}
