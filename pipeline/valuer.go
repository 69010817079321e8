package pipeline

import (
	"context"
	"time"

	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/parser"
)

// Lookuper resolves a plate to a registry record.
type Lookuper interface {
	Lookup(ctx context.Context, plate string) (*models.LookupResult, error)
}

// PriceAggregator estimates prices for a vehicle record.
type PriceAggregator interface {
	Aggregate(ctx context.Context, rec models.VehicleRecord) *models.AggregationResult
}

// Valuer combines a registry lookup with price aggregation.
type Valuer struct {
	registry   Lookuper
	aggregator PriceAggregator
	now        func() time.Time
}

// NewValuer builds a valuer. registry may be nil when only records are
// valued.
func NewValuer(registry Lookuper, aggregator PriceAggregator) *Valuer {
	return &Valuer{
		registry:   registry,
		aggregator: aggregator,
		now:        time.Now,
	}
}

// ValuePlate looks plate up and aggregates prices for the vehicle found.
// Lookup failures are reported in Estimate.Error.
func (v *Valuer) ValuePlate(ctx context.Context, plate string) *models.Estimate {
	est := &models.Estimate{Plate: parser.NormalizePlate(plate), EstimatedAt: v.now().UTC()}
	if v.registry == nil {
		est.Error = "registry lookup is not configured"
		return est
	}

	res, err := v.registry.Lookup(ctx, plate)
	if err != nil {
		est.Error = err.Error()
		return est
	}
	if !res.Success {
		est.Error = res.Error
		if est.Error == "" {
			est.Error = res.Message
		}
		return est
	}

	v.fill(ctx, est, res.Data)
	return est
}

// ValueRecord aggregates prices for an already resolved vehicle record.
func (v *Valuer) ValueRecord(ctx context.Context, rec models.VehicleRecord) *models.Estimate {
	est := &models.Estimate{EstimatedAt: v.now().UTC()}
	v.fill(ctx, est, rec)
	return est
}

func (v *Valuer) fill(ctx context.Context, est *models.Estimate, rec models.VehicleRecord) {
	desc := parser.NewDescriptor(rec)
	est.Brand = desc.Brand
	est.Model = desc.Model
	est.Year = desc.Year
	est.Vehicle = rec
	est.Prices = v.aggregator.Aggregate(ctx, rec)
}

// RecordFromDescriptor builds the minimal vehicle record for a
// brand/model/year query.
func RecordFromDescriptor(brand, model, year string) models.VehicleRecord {
	return models.VehicleRecord{
		"marca":  brand,
		"modelo": model,
		"ano":    year,
	}
}
