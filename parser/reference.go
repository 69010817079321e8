package parser

import (
	"fmt"

	"github.com/aluiziolira/go-car-prices/models"
)

// referenceKey holds the reference table payload on a registry record.
const referenceKey = "fipe"

// DecodeReferenceTable reads the reference table attached to rec. A record
// without one yields an empty table. A payload with the wrong shape is an
// error.
func DecodeReferenceTable(rec models.VehicleRecord) (models.ReferenceTable, error) {
	var table models.ReferenceTable
	raw, ok := rec[referenceKey]
	if !ok || raw == nil {
		return table, nil
	}

	payload, ok := asObject(raw)
	if !ok {
		return table, fmt.Errorf("reference table: expected object, got %T", raw)
	}
	rows, ok := payload["dados"]
	if !ok || rows == nil {
		return table, nil
	}
	items, ok := rows.([]any)
	if !ok {
		return table, fmt.Errorf("reference table: dados must be a list, got %T", rows)
	}

	table.Items = make([]models.ReferenceItem, 0, len(items))
	for i, rawItem := range items {
		item, ok := asObject(rawItem)
		if !ok {
			continue
		}
		value, err := optionalString(item, "texto_valor")
		if err != nil {
			return models.ReferenceTable{}, fmt.Errorf("reference table row %d: %w", i, err)
		}
		model, _ := optionalString(item, "texto_modelo")
		brand, _ := optionalString(item, "texto_marca")
		table.Items = append(table.Items, models.ReferenceItem{
			Model: model,
			Brand: brand,
			Value: value,
		})
	}
	return table, nil
}

// ReferencePrices parses every item's display price, keeping plausible values
// in table order.
func ReferencePrices(table models.ReferenceTable, r PriceRange) []float64 {
	prices := make([]float64, 0, len(table.Items))
	for _, item := range table.Items {
		if item.Value == "" {
			continue
		}
		value, ok := ParsePrice(item.Value, r)
		if !ok || value <= 0 {
			continue
		}
		prices = append(prices, value)
	}
	return prices
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case models.VehicleRecord:
		return obj, true
	default:
		return nil, false
	}
}

func optionalString(obj map[string]any, key string) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return value, nil
}
