package scraper

import (
	"net/url"
	"strings"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/parser"
)

// Source is the per-site strategy: how to build candidate URLs and where
// prices live in its markup.
type Source struct {
	Name         string
	Label        string
	ListingURL   string
	YearParam    string
	SearchURL    string
	Selectors    []string
	LinkSelector string
}

// NewSource builds a Source from its configuration.
func NewSource(sc config.SourceConfig) Source {
	label := sc.Label
	if label == "" {
		label = sc.Name
	}
	return Source{
		Name:         sc.Name,
		Label:        label,
		ListingURL:   strings.TrimSuffix(sc.ListingURL, "/"),
		YearParam:    sc.YearParam,
		SearchURL:    sc.SearchURL,
		Selectors:    append([]string(nil), sc.Selectors...),
		LinkSelector: sc.LinkSelector,
	}
}

// SourcesFromConfig builds every configured source in order.
func SourcesFromConfig(cfg *config.Config) []Source {
	sources := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sources = append(sources, NewSource(sc))
	}
	return sources
}

// DirectURLs returns listing URLs from most to least specific:
// brand/model/year, brand/model, brand. Positions with an empty slug are
// skipped.
func (s Source) DirectURLs(brand, model, year string) []string {
	brandSlug := parser.Slugify(brand)
	modelSlug := parser.Slugify(model)
	year = strings.TrimSpace(year)

	var candidates []string
	if brandSlug != "" && modelSlug != "" && year != "" {
		candidates = append(candidates, s.withYear(s.ListingURL+"/"+brandSlug+"/"+modelSlug, year))
	}
	if brandSlug != "" && modelSlug != "" {
		candidates = append(candidates, s.ListingURL+"/"+brandSlug+"/"+modelSlug)
	}
	if brandSlug != "" {
		candidates = append(candidates, s.ListingURL+"/"+brandSlug)
	}
	return unique(candidates)
}

// SearchURLs returns free-text search URLs for the queries built from terms.
func (s Source) SearchURLs(terms []string, year string, limit int) []string {
	if s.SearchURL == "" {
		return nil
	}
	queries := SearchQueries(terms, year, limit)
	urls := make([]string, 0, len(queries))
	for _, query := range queries {
		urls = append(urls, s.SearchURL+encodeComponent(query))
	}
	return urls
}

// SearchQueries returns each term alone and followed by the year, in order,
// deduplicated and capped at limit. Years shorter than four characters are
// not appended.
func SearchQueries(terms []string, year string, limit int) []string {
	year = strings.TrimSpace(year)
	if len(year) < 4 {
		year = ""
	}
	var queries []string
	for _, term := range terms {
		if term == "" {
			continue
		}
		queries = append(queries, term)
		if year != "" {
			queries = append(queries, term+" "+year)
		}
	}
	queries = unique(queries)
	if limit >= 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	return queries
}

func (s Source) withYear(path, year string) string {
	if s.YearParam == "" {
		return path + "/" + url.PathEscape(year)
	}
	return path + "?" + url.QueryEscape(s.YearParam) + "=" + url.QueryEscape(year)
}

// encodeComponent percent-encodes a query value with %20 for spaces.
func encodeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
