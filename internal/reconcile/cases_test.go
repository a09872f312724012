package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mkorzen/poly-pnl/internal/model"
)

func TestLoadDataset(t *testing.T) {
	ds, err := LoadDataset(filepath.Join("testdata", "cases.yaml"))
	if err != nil {
		t.Fatalf("LoadDataset error: %v", err)
	}
	if ds.Version != 3 {
		t.Errorf("Version = %d, want 3", ds.Version)
	}
	if len(ds.Cases) != 3 {
		t.Fatalf("got %d cases, want 3", len(ds.Cases))
	}

	first := ds.Cases[0]
	if first.Cohort != model.CohortTradeOnly {
		t.Errorf("Cohort = %q, want trade_only", first.Cohort)
	}
	if first.Convention != model.ConventionRealized {
		t.Errorf("Convention = %q, want realized", first.Convention)
	}
	if ds.Cases[2].Convention != model.ConventionUnknown {
		t.Errorf("empty convention should load as unknown, got %q", ds.Cases[2].Convention)
	}
}

func TestLoadDatasetRejectsBadInput(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "cases.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name    string
		content string
	}{
		{"missing version", "cases:\n  - wallet: \"0xabc\"\n    truth_pnl: 1\n    cohort: trade_only\n"},
		{"no cases", "version: 1\ncases: []\n"},
		{"unknown cohort", "version: 1\ncases:\n  - wallet: \"0xabc\"\n    truth_pnl: 1\n    cohort: whale\n"},
		{"unknown convention", "version: 1\ncases:\n  - wallet: \"0xabc\"\n    truth_pnl: 1\n    cohort: trade_only\n    convention: gross\n"},
		{"missing wallet", "version: 1\ncases:\n  - truth_pnl: 1\n    cohort: trade_only\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadDataset(write(t, tt.content)); err == nil {
				t.Error("LoadDataset succeeded, want error")
			}
		})
	}
}

func TestLoadDatasetMissingFile(t *testing.T) {
	if _, err := LoadDataset(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadDataset succeeded on missing file, want error")
	}
}
