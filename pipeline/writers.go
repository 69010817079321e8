package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-car-prices/models"
)

var csvHeader = []string{
	"placa", "marca", "modelo", "ano", "fonte",
	"quantidade", "media", "mediana", "minimo", "maximo", "desvio_padrao",
	"estimado_em", "error",
}

// output is a destination that is either a created file or a caller-owned
// stream such as stdout.
type output struct {
	w    io.Writer
	file *os.File
}

func openOutput(filename string) (output, error) {
	if filename == "" || filename == "-" {
		return output{w: os.Stdout}, nil
	}
	if err := ensureDir(filename); err != nil {
		return output{}, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return output{}, fmt.Errorf("create %s: %w", filename, err)
	}
	return output{w: f, file: f}, nil
}

func (o output) close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// validate ensures a created file has content. Streams are not checked.
func (o output) validate(kind string) error {
	if o.file == nil {
		return nil
	}
	info, err := o.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

// CSVWriter writes one row per estimate.
type CSVWriter struct {
	out    output
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row. An empty
// filename or "-" writes to stdout.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := openOutput(filename)
	if err != nil {
		return nil, err
	}
	cw, err := newCSVWriter(out)
	if err != nil {
		out.close()
		return nil, err
	}
	return cw, nil
}

// NewCSVStreamWriter writes CSV to w, which the caller closes.
func NewCSVStreamWriter(w io.Writer) (*CSVWriter, error) {
	return newCSVWriter(output{w: w})
}

func newCSVWriter(out output) (*CSVWriter, error) {
	writer := csv.NewWriter(out.w)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVWriter{out: out, writer: writer}, nil
}

// Write appends estimates to the CSV output.
func (cw *CSVWriter) Write(estimates []*models.Estimate) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, est := range estimates {
		if err := cw.writer.Write(csvRecord(est)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func csvRecord(est *models.Estimate) []string {
	record := []string{est.Plate, est.Brand, est.Model, est.Year, "", "", "", "", "", "", "", est.EstimatedAt.Format(time.RFC3339), est.Error}
	if est.Prices == nil {
		return record
	}
	record[4] = string(est.Prices.Provenance)
	if est.Error == "" && est.Prices.Error != "" {
		record[12] = est.Prices.Error
	}
	if stats := est.Prices.Statistics; stats != nil {
		record[5] = strconv.Itoa(stats.Count)
		record[6] = formatAmount(stats.Mean)
		record[7] = formatAmount(stats.Median)
		record[8] = formatAmount(stats.Min)
		record[9] = formatAmount(stats.Max)
		record[10] = formatAmount(stats.StdDev)
	}
	return record
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.out.close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	return cw.out.validate("csv")
}

// JSONWriter writes newline-delimited JSON estimates.
type JSONWriter struct {
	out     output
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer. An empty filename or "-" writes
// to stdout.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := openOutput(filename)
	if err != nil {
		return nil, err
	}
	return newJSONWriter(out), nil
}

// NewJSONStreamWriter writes JSONL to w, which the caller closes.
func NewJSONStreamWriter(w io.Writer) *JSONWriter {
	return newJSONWriter(output{w: w})
}

func newJSONWriter(out output) *JSONWriter {
	buffer := bufio.NewWriter(out.w)
	return &JSONWriter{
		out:     out,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}
}

// Write appends estimates in JSONL format.
func (jw *JSONWriter) Write(estimates []*models.Estimate) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, est := range estimates {
		if err := jw.encoder.Encode(est); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.out.close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return jw.out.validate("json")
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
