package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/sim"
	"github.com/san-kum/nsflow/internal/stepper"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	historyFile  = "history.csv"
	fieldsFile   = "fields.json"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string { return filepath.Join(s.baseDir, runID) }

type RunMetadata struct {
	ID             string             `json:"id"`
	Case           string             `json:"case"`
	Timestamp      time.Time          `json:"timestamp"`
	Seed           int64              `json:"seed"`
	Grid           []int              `json:"grid"`
	Viscosity      float64            `json:"viscosity"`
	Method         string             `json:"method"`
	Startup        string             `json:"startup,omitempty"`
	Regularization string             `json:"regularization"`
	TEnd           float64            `json:"tend"`
	Dt             float64            `json:"dt"`
	Steps          int                `json:"steps"`
	Time           float64            `json:"time"`
	Shortfalls     int                `json:"shortfalls"`
	Elapsed        float64            `json:"elapsed_seconds"`
	Metrics        map[string]float64 `json:"metrics"`
}

func NewMetadata(runID string, cfg *config.Config, res *sim.Result, metrics map[string]float64) RunMetadata {
	meta := RunMetadata{
		ID:             runID,
		Case:           cfg.Case,
		Timestamp:      time.Now(),
		Seed:           cfg.Seed,
		Grid:           append([]int(nil), cfg.Grid.N...),
		Viscosity:      cfg.Viscosity,
		Method:         cfg.Method.Name,
		Regularization: cfg.Convection.Regularization,
		TEnd:           cfg.Time.TEnd,
		Dt:             cfg.Time.Dt,
		Metrics:        metrics,
	}
	if cfg.Method.Name == "ABCN" || cfg.Method.Name == "OneLeg" {
		meta.Startup = cfg.Method.Startup
	}
	if res != nil {
		meta.Steps = res.Steps
		meta.Time = res.Time
		meta.Shortfalls = res.Shortfalls
		meta.Elapsed = res.Elapsed.Seconds()
	}
	return meta
}

// NewRun creates an empty run directory and returns its id.
func (s *Store) NewRun(name string) (string, error) {
	name = strings.ReplaceAll(name, "/", "_")
	runID := fmt.Sprintf("%s_%s", name, time.Now().Format("20060102-150405.000"))
	if err := os.MkdirAll(s.Dir(runID), 0755); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) SaveMetadata(meta RunMetadata) error {
	return writeJSON(filepath.Join(s.Dir(meta.ID), metadataFile), meta)
}

func (s *Store) SaveConfig(runID string, cfg *config.Config) error {
	return config.Save(filepath.Join(s.Dir(runID), configFile), cfg)
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.Dir(runID), configFile))
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.Dir(runID), metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Fields is the on-disk form of a cell-centered solution. V keeps the face
// velocities so spectra can be recomputed on the original grid.
type Fields struct {
	Step      int         `json:"step"`
	T         float64     `json:"t"`
	Shape     []int       `json:"shape"`
	Velocity  [][]float64 `json:"velocity"`
	Pressure  []float64   `json:"pressure"`
	Speed     []float64   `json:"speed"`
	Vorticity []float64   `json:"vorticity,omitempty"`
	V         []float64   `json:"v"`
}

func NewFields(st stepper.State, f *analysis.Fields) *Fields {
	return &Fields{
		Step:      st.N,
		T:         st.T,
		Shape:     f.Shape,
		Velocity:  f.Velocity,
		Pressure:  f.Pressure,
		Speed:     f.Speed,
		Vorticity: f.Vorticity,
		V:         append([]float64(nil), st.V...),
	}
}

func (s *Store) SaveFields(runID string, f *Fields) error {
	return writeJSON(filepath.Join(s.Dir(runID), fieldsFile), f)
}

func (s *Store) LoadFields(runID string) (*Fields, error) {
	var f Fields
	if err := readJSON(filepath.Join(s.Dir(runID), fieldsFile), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Export is a whole run in one document.
type Export struct {
	Metadata RunMetadata  `json:"metadata"`
	History  []HistoryRow `json:"history"`
	Fields   *Fields      `json:"fields,omitempty"`
}

// Export gathers a stored run. Missing history or fields are left empty.
func (s *Store) Export(runID string) (*Export, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	out := &Export{Metadata: *meta}
	if rows, err := s.LoadHistory(runID); err == nil {
		out.History = rows
	}
	if f, err := s.LoadFields(runID); err == nil {
		out.Fields = f
	}
	return out, nil
}

func ExportJSON(w io.Writer, data *Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
