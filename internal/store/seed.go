package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gmsas95/pillpal/internal/doses"
)

// DefaultSeed returns the demo medications used on first start.
func DefaultSeed() []doses.Medication {
	return []doses.Medication{
		{
			ID:           "1",
			Name:         "Lisinopril",
			Dosage:       "10mg",
			Frequency:    doses.Every24Hours,
			StartTime:    doses.MustClockTime("08:00"),
			Observations: "Take on a full stomach",
		},
		{
			ID:        "2",
			Name:      "Metformina",
			Dosage:    "500mg",
			Frequency: doses.Every12Hours,
			StartTime: doses.MustClockTime("09:00"),
		},
		{
			ID:           "3",
			Name:         "Amoxicilina",
			Dosage:       "250mg",
			Frequency:    doses.Every8Hours,
			StartTime:    doses.MustClockTime("07:00"),
			Observations: "Avoid dairy for 1 hour after taking",
		},
	}
}

type seedFile struct {
	Medications []doses.Medication `yaml:"medications"`
}

// LoadSeed reads seed medications from a YAML file. An empty path yields
// DefaultSeed.
func LoadSeed(path string) ([]doses.Medication, error) {
	if path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(f.Medications))
	for i, m := range f.Medications {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("seed medication %d: %w", i, err)
		}
		if m.ID == "" {
			return nil, fmt.Errorf("seed medication %d: id is required", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("seed medication %d: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
	}

	return f.Medications, nil
}
