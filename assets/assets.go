// Package assets ships the bundled reference prayer schedule.
package assets

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed prayer_times.csv
var bundledSchedule []byte

// Dataset reads the bundled yearly schedule, preferring an override file when configured.
type Dataset struct {
	overridePath string
}

// NewDataset returns a dataset; an empty overridePath uses the embedded copy.
func NewDataset(overridePath string) *Dataset {
	return &Dataset{overridePath: overridePath}
}

// Read returns the yearly CSV text.
func (d *Dataset) Read() ([]byte, error) {
	if d == nil || d.overridePath == "" {
		return bundledSchedule, nil
	}
	data, err := os.ReadFile(d.overridePath)
	if err != nil {
		return nil, fmt.Errorf("read bundled schedule %s: %w", d.overridePath, err)
	}
	return data, nil
}
