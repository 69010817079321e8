package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-car-prices/models"
)

func sampleEstimate() *models.Estimate {
	return &models.Estimate{
		Plate: "ABC1234",
		Brand: "VW",
		Model: "GOL",
		Year:  "2010",
		Prices: &models.AggregationResult{
			Success:    true,
			Provenance: models.ProvenanceLive,
			Prices:     models.NewPrices(),
			Statistics: &models.PriceStatistics{Count: 5, Mean: 27000, Median: 27000, Min: 25000, Max: 29000, StdDev: 1414.21},
		},
		EstimatedAt: time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "estimates.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	failed := &models.Estimate{Plate: "XYZ9Z99", Error: "Placa não encontrada ou inválida"}
	if err := writer.Write([]*models.Estimate{sampleEstimate(), failed}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "placa" || records[0][6] != "media" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if got := records[1]; got[0] != "ABC1234" || got[4] != "OLX/Webmotors" || got[5] != "5" || got[6] != "27000.00" || got[10] != "1414.21" {
		t.Fatalf("unexpected row: %v", got)
	}
	if got := records[2]; got[5] != "" || got[12] != "Placa não encontrada ou inválida" {
		t.Fatalf("unexpected failed row: %v", got)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "estimates.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.Estimate{sampleEstimate()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.Estimate
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.Prices == nil || decoded.Prices.Statistics == nil || decoded.Prices.Statistics.Mean != 27000 {
			t.Fatalf("decoded=%+v", decoded)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestJSONStreamWriterUsesContractKeys(t *testing.T) {
	var buf bytes.Buffer
	writer := NewJSONStreamWriter(&buf)
	if err := writer.Write([]*models.Estimate{sampleEstimate()}); err != nil {
		t.Fatalf("write json: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	prices, ok := decoded["precosMedio"].(map[string]any)
	if !ok {
		t.Fatalf("precosMedio missing: %s", buf.String())
	}
	for _, key := range []string{"success", "fonte", "precos", "estatisticas"} {
		if _, ok := prices[key]; !ok {
			t.Fatalf("key %q missing: %s", key, buf.String())
		}
	}
	stats := prices["estatisticas"].(map[string]any)
	if stats["desvioPadrao"] != 1414.21 {
		t.Fatalf("desvioPadrao=%v", stats["desvioPadrao"])
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "estimates.csv")
	jsonPath := filepath.Join(dir, "estimates.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.Estimate{sampleEstimate()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
