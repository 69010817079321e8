package models

import "time"

// Estimate is the valuation of one vehicle, identified by plate or by a
// brand/model/year triple.
type Estimate struct {
	Plate       string             `json:"placa,omitempty"`
	Brand       string             `json:"marca"`
	Model       string             `json:"modelo"`
	Year        string             `json:"ano"`
	Vehicle     VehicleRecord      `json:"veiculo,omitempty"`
	Prices      *AggregationResult `json:"precosMedio,omitempty"`
	EstimatedAt time.Time          `json:"estimado_em"`
	Error       string             `json:"error,omitempty"`
}
