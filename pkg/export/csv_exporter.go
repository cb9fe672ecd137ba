package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	plain bool
}

// Option configures a CSVExporter.
type Option func(*CSVExporter)

// Plain makes Render refuse any field that would need quoting, so the output
// can be read back by a reader that splits on bare commas.
func Plain() Option {
	return func(e *CSVExporter) { e.plain = true }
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...Option) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render produces CSV encoded bytes for the dataset. Missing row keys render as
// empty fields.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := e.write(writer, 0, data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := e.write(writer, n+1, record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) write(w *csv.Writer, row int, record []string) error {
	if e.plain {
		for _, field := range record {
			if strings.ContainsAny(field, ",\"\r\n") {
				return fmt.Errorf("row %d: field %q needs quoting", row, field)
			}
		}
	}
	return w.Write(record)
}
