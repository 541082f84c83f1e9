package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
)

func smallCavity() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Grid.N = []int{6, 6}
	cfg.Time = config.TimeConfig{TEnd: 0.05, Dt: 0.01}
	cfg.Output.Every = 1
	cfg.Seed = 42
	return cfg
}

func TestStoreRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := smallCavity()
	exp, err := experiment.New(cfg, experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	runID, err := st.NewRun("cavity/test")
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}
	hist := st.History(runID, exp.Operators(), 1)
	exp.AddProcessor(hist)

	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if hist.Rows() != 6 {
		t.Errorf("expected 6 history rows, got %d", hist.Rows())
	}

	meta := NewMetadata(runID, cfg, res, map[string]float64{"peak_energy": exp.Energy.Peak()})
	if err := st.SaveMetadata(meta); err != nil {
		t.Fatalf("save metadata failed: %v", err)
	}
	if err := st.SaveConfig(runID, cfg); err != nil {
		t.Fatalf("save config failed: %v", err)
	}
	final := res.Final
	fields := NewFields(final, analysis.CellFields(exp.Operators(), final.V, final.P))
	if err := st.SaveFields(runID, fields); err != nil {
		t.Fatalf("save fields failed: %v", err)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Seed != 42 {
		t.Errorf("expected seed 42, got %d", loaded.Seed)
	}
	if loaded.Steps != 5 {
		t.Errorf("expected 5 steps, got %d", loaded.Steps)
	}
	if loaded.Method != "RK44" {
		t.Errorf("expected RK44, got %s", loaded.Method)
	}
	if loaded.Metrics["peak_energy"] <= 0 {
		t.Errorf("expected positive peak energy, got %f", loaded.Metrics["peak_energy"])
	}

	rows, err := st.LoadHistory(runID)
	if err != nil {
		t.Fatalf("load history failed: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}
	if rows[0].Step != 0 || rows[5].Step != 5 {
		t.Errorf("unexpected steps %d..%d", rows[0].Step, rows[5].Step)
	}
	for _, r := range rows {
		if r.Divergence > 1e-10 {
			t.Errorf("step %d divergence %g", r.Step, r.Divergence)
		}
	}

	cfg2, err := st.LoadConfig(runID)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg2.Grid.N[0] != 6 {
		t.Errorf("expected 6 cells, got %d", cfg2.Grid.N[0])
	}

	f, err := st.LoadFields(runID)
	if err != nil {
		t.Fatalf("load fields failed: %v", err)
	}
	if len(f.Velocity) != 2 || len(f.Velocity[0]) != 36 {
		t.Errorf("unexpected field shape %v", f.Shape)
	}
	if len(f.Vorticity) != 36 {
		t.Errorf("expected 36 vorticity values, got %d", len(f.Vorticity))
	}
	if len(f.V) != exp.Operators().NV {
		t.Errorf("expected %d face velocities, got %d", exp.Operators().NV, len(f.V))
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := smallCavity()
	for _, name := range []string{"a", "b"} {
		runID, err := st.NewRun(name)
		if err != nil {
			t.Fatalf("new run failed: %v", err)
		}
		if err := st.SaveMetadata(NewMetadata(runID, cfg, nil, nil)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(st.baseDir, "broken"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if len(runs) == 2 && runs[0].Timestamp.Before(runs[1].Timestamp) {
		t.Error("expected newest run first")
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "missing"))
	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.NewRun("export")
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}
	if err := st.SaveMetadata(NewMetadata(runID, smallCavity(), nil, nil)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := st.Export(runID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if data.Fields != nil || data.History != nil {
		t.Error("expected empty history and fields")
	}

	var buf bytes.Buffer
	if err := ExportJSON(&buf, data); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded Export
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Metadata.ID != runID {
		t.Errorf("expected id %s, got %s", runID, decoded.Metadata.ID)
	}
}

func TestColumn(t *testing.T) {
	rows := []HistoryRow{{Time: 0, Energy: 1}, {Time: 0.1, Energy: 0.5}}
	e, err := Column(rows, "energy")
	if err != nil {
		t.Fatal(err)
	}
	if e[1] != 0.5 {
		t.Errorf("expected 0.5, got %f", e[1])
	}
	if _, err := Column(rows, "pressure"); err == nil {
		t.Error("expected error for unknown column")
	}
}
