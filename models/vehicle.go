// Package models defines data structures for the price pipeline.
package models

// VehicleRecord is a registry payload as decoded from JSON. Key casing is not
// consistent across registry responses, so fields are resolved by the parser
// package through explicit key lists.
type VehicleRecord map[string]any

// Descriptor is the normalized search subject for one aggregation call.
type Descriptor struct {
	Brand string
	Model string
	Year  string
	// Terms are alternate free-text search terms, accent-stripped, non-empty
	// and deduplicated in first-seen order.
	Terms []string
}

// ReferenceItem is one row of the official reference table (FIPE).
type ReferenceItem struct {
	Model string `json:"texto_modelo,omitempty"`
	Brand string `json:"texto_marca,omitempty"`
	Value string `json:"texto_valor"`
}

// ReferenceTable is the reference price schedule attached to a vehicle record.
type ReferenceTable struct {
	Items []ReferenceItem `json:"dados"`
}

// LookupResult is the registry client's answer for a plate.
type LookupResult struct {
	Success    bool          `json:"success"`
	Data       VehicleRecord `json:"data,omitempty"`
	Error      string        `json:"error,omitempty"`
	Message    string        `json:"message,omitempty"`
	StatusCode int           `json:"-"`
}
