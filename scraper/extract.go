package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-car-prices/parser"
)

// pricePattern matches "R$" followed by 1-3 digits, dot-separated thousands
// groups and optional cents.
var pricePattern = regexp.MustCompile(`(?i)R\$\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)`)

// SampleSet accumulates unique prices in discovery order up to a cap. It is
// owned by a single source collection and is not safe for concurrent use.
type SampleSet struct {
	values []float64
	seen   map[float64]struct{}
	limit  int
}

// NewSampleSet returns an empty set holding at most limit values.
func NewSampleSet(limit int) *SampleSet {
	return &SampleSet{
		values: make([]float64, 0, limit),
		seen:   make(map[float64]struct{}, limit),
		limit:  limit,
	}
}

// Add appends v unless it is already present or the set is full.
func (s *SampleSet) Add(v float64) bool {
	if s.Full() {
		return false
	}
	if _, dup := s.seen[v]; dup {
		return false
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
	return true
}

// Len returns the number of samples held.
func (s *SampleSet) Len() int {
	return len(s.values)
}

// Full reports whether the cap has been reached.
func (s *SampleSet) Full() bool {
	return len(s.values) >= s.limit
}

// Values returns a copy of the samples in insertion order.
func (s *SampleSet) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Extraction counts the samples each strategy contributed for one page.
type Extraction struct {
	Selector int
	Regex    int
	Links    int
}

// Total returns the number of new samples from the page.
func (e Extraction) Total() int {
	return e.Selector + e.Regex + e.Links
}

// Extractor pulls prices out of listing pages with a cascade of strategies:
// CSS selectors, a currency regex over the raw markup, then the text of
// ad-card links. A later strategy runs only while the page has contributed
// fewer than MinNew samples.
type Extractor struct {
	Range  parser.PriceRange
	MinNew int
}

// NewExtractor returns an extractor accepting prices inside r.
func NewExtractor(r parser.PriceRange, minNew int) *Extractor {
	return &Extractor{Range: r, MinNew: minNew}
}

// Extract parses body and adds the prices it finds to set.
func (e *Extractor) Extract(body []byte, src Source, set *SampleSet) (Extraction, error) {
	var result Extraction
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("parse html: %w", err)
	}

	result.Selector = e.fromSelectors(doc, src.Selectors, set)
	if result.Total() < e.MinNew && !set.Full() {
		result.Regex = e.fromRegex(string(body), set)
	}
	if src.LinkSelector != "" && result.Total() < e.MinNew && !set.Full() {
		result.Links = e.fromLinks(doc, src.LinkSelector, set)
	}
	return result, nil
}

func (e *Extractor) fromSelectors(doc *goquery.Document, selectors []string, set *SampleSet) int {
	added := 0
	for _, selector := range selectors {
		if set.Full() {
			break
		}
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if e.add(strings.TrimSpace(sel.Text()), set) {
				added++
			}
			return !set.Full()
		})
	}
	return added
}

func (e *Extractor) fromRegex(html string, set *SampleSet) int {
	added := 0
	for _, match := range pricePattern.FindAllString(html, -1) {
		if set.Full() {
			break
		}
		if e.add(match, set) {
			added++
		}
	}
	return added
}

func (e *Extractor) fromLinks(doc *goquery.Document, selector string, set *SampleSet) int {
	added := 0
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if e.add(sel.Text(), set) {
			added++
		}
		return !set.Full()
	})
	return added
}

func (e *Extractor) add(text string, set *SampleSet) bool {
	value, ok := parser.ParsePrice(text, e.Range)
	if !ok {
		return false
	}
	return set.Add(value)
}
