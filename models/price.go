package models

// Provenance labels where the final statistics came from.
type Provenance string

const (
	ProvenanceLive      Provenance = "OLX/Webmotors"
	ProvenanceReference Provenance = "FIPE"
)

// Source names used in per-source breakdowns.
const (
	SourceOLX       = "olx"
	SourceWebmotors = "webmotors"
)

// PriceStatistics summarizes a sample sequence. Derived values are rounded to
// two decimal places.
type PriceStatistics struct {
	Count  int     `json:"quantidade"`
	Mean   float64 `json:"media"`
	Median float64 `json:"mediana"`
	Min    float64 `json:"minimo"`
	Max    float64 `json:"maximo"`
	StdDev float64 `json:"desvioPadrao"`
}

// Warning is a soft failure observed during collection. It never aborts an
// aggregation.
type Warning struct {
	Source   string `json:"fonte"`
	URL      string `json:"url,omitempty"`
	Category string `json:"categoria"`
	Message  string `json:"mensagem"`
}

// SourceResult holds the samples collected from one source, in discovery
// order, without duplicates.
type SourceResult struct {
	Source   string
	Samples  []float64
	Fetches  int
	Warnings []Warning
}

// Prices is the per-source breakdown reported to callers.
type Prices struct {
	OLX       []float64 `json:"olx"`
	Webmotors []float64 `json:"webmotors"`
	Reference []float64 `json:"fipe"`
	All       []float64 `json:"todos"`
}

// NewPrices returns a breakdown with every sequence non-nil so it encodes as
// empty JSON arrays.
func NewPrices() Prices {
	return Prices{
		OLX:       []float64{},
		Webmotors: []float64{},
		Reference: []float64{},
		All:       []float64{},
	}
}

// SetSource stores samples under the named source. Unknown sources are only
// reflected in All.
func (p *Prices) SetSource(source string, samples []float64) {
	if samples == nil {
		samples = []float64{}
	}
	switch source {
	case SourceOLX:
		p.OLX = samples
	case SourceWebmotors:
		p.Webmotors = samples
	}
}

// AggregationResult is the final answer of one aggregation call.
type AggregationResult struct {
	Success    bool             `json:"success"`
	Provenance Provenance       `json:"fonte,omitempty"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`
	Prices     Prices           `json:"precos"`
	Statistics *PriceStatistics `json:"estatisticas"`
	Warnings   []Warning        `json:"avisos,omitempty"`
}
