package reconcile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkorzen/poly-pnl/internal/model"
)

// Dataset is a versioned collection of ground-truth validation cases.
// One dataset file replaces the old free-form validation write-ups; runs
// against it are kept as append-only records keyed by dataset version.
type Dataset struct {
	Version int
	Cases   []model.ValidationCase
}

type datasetFile struct {
	Version int         `yaml:"version"`
	Cases   []caseEntry `yaml:"cases"`
}

type caseEntry struct {
	Wallet     string  `yaml:"wallet"`
	TruthPnl   float64 `yaml:"truth_pnl"`
	Cohort     string  `yaml:"cohort"`
	Convention string  `yaml:"convention"`
}

// LoadDataset reads and validates a YAML validation dataset.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}

	var file datasetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse dataset yaml: %w", err)
	}
	if file.Version < 1 {
		return nil, fmt.Errorf("dataset version must be >= 1, got %d", file.Version)
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("dataset %s contains no cases", path)
	}

	ds := &Dataset{
		Version: file.Version,
		Cases:   make([]model.ValidationCase, 0, len(file.Cases)),
	}
	for i, entry := range file.Cases {
		if entry.Wallet == "" {
			return nil, fmt.Errorf("case %d: wallet is required", i)
		}
		cohort := model.Cohort(entry.Cohort)
		if !cohort.Valid() {
			return nil, fmt.Errorf("case %d (%s): unknown cohort %q", i, entry.Wallet, entry.Cohort)
		}
		convention := model.OracleConvention(entry.Convention)
		switch convention {
		case model.ConventionRealized, model.ConventionTotal, model.ConventionUnknown:
		default:
			return nil, fmt.Errorf("case %d (%s): unknown convention %q", i, entry.Wallet, entry.Convention)
		}
		ds.Cases = append(ds.Cases, model.ValidationCase{
			Wallet:     entry.Wallet,
			TruthPnl:   entry.TruthPnl,
			Cohort:     cohort,
			Convention: convention,
		})
	}
	return ds, nil
}
