package storage

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/processors"
	"github.com/san-kum/nsflow/internal/stepper"
)

var historyHeader = []string{"step", "time", "dt", "kinetic_energy", "divergence", "max_velocity"}

type HistoryRow struct {
	Step        int     `json:"step"`
	Time        float64 `json:"time"`
	Dt          float64 `json:"dt"`
	Energy      float64 `json:"kinetic_energy"`
	Divergence  float64 `json:"divergence"`
	MaxVelocity float64 `json:"max_velocity"`
}

// HistoryWriter is a processor that streams one CSV row per sample into
// the run directory.
type HistoryWriter struct {
	path  string
	every int
	ops   *grid.Operators
	bc    *grid.Vectors
	div   []float64

	file *os.File
	w    *csv.Writer
	rows int
}

func (s *Store) History(runID string, ops *grid.Operators, every int) *HistoryWriter {
	return &HistoryWriter{
		path:  filepath.Join(s.Dir(runID), historyFile),
		every: every,
		ops:   ops,
		bc:    ops.NewVectors(0),
		div:   make([]float64, ops.Np),
	}
}

func (h *HistoryWriter) Every() int { return h.every }
func (h *HistoryWriter) Rows() int  { return h.rows }

func (h *HistoryWriter) Initialize(_ stepper.State) error {
	file, err := os.Create(h.path)
	if err != nil {
		return err
	}
	h.file = file
	h.w = csv.NewWriter(file)
	h.rows = 0
	return h.w.Write(historyHeader)
}

func (h *HistoryWriter) Process(st stepper.State) error {
	if h.w == nil {
		return fmt.Errorf("storage: history %s not initialized", h.path)
	}
	if h.ops.Unsteady() && h.bc.T != st.T {
		h.ops.SetBCVectors(h.bc, st.T)
	}
	h.ops.M.MulVecTo(h.div, st.V)
	floats.Add(h.div, h.bc.YM)

	row := HistoryRow{
		Step:        st.N,
		Time:        st.T,
		Dt:          st.Dt,
		Energy:      processors.Energy(h.ops, st.V),
		Divergence:  floats.Norm(h.div, math.Inf(1)),
		MaxVelocity: floats.Norm(st.V, math.Inf(1)),
	}
	h.rows++
	return h.w.Write(row.record())
}

// Finalize flushes and closes the file. It is a no-op when Initialize
// never ran.
func (h *HistoryWriter) Finalize() error {
	if h.file == nil {
		return nil
	}
	h.w.Flush()
	err := h.w.Error()
	if cerr := h.file.Close(); err == nil {
		err = cerr
	}
	h.file, h.w = nil, nil
	return err
}

func (r HistoryRow) record() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	return []string{strconv.Itoa(r.Step), f(r.Time), f(r.Dt), f(r.Energy), f(r.Divergence), f(r.MaxVelocity)}
}

func (s *Store) LoadHistory(runID string) ([]HistoryRow, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), historyFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(historyHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []HistoryRow{}, nil
	}

	rows := make([]HistoryRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		var row HistoryRow
		vals := make([]float64, len(rec)-1)
		if row.Step, err = strconv.Atoi(rec[0]); err != nil {
			return nil, fmt.Errorf("storage: history row %d: %w", i+1, err)
		}
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, fmt.Errorf("storage: history row %d: %w", i+1, err)
			}
		}
		row.Time, row.Dt, row.Energy, row.Divergence, row.MaxVelocity = vals[0], vals[1], vals[2], vals[3], vals[4]
		rows = append(rows, row)
	}
	return rows, nil
}

// Column extracts one series from history rows.
func Column(rows []HistoryRow, name string) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		switch name {
		case "time":
			out[i] = r.Time
		case "dt":
			out[i] = r.Dt
		case "kinetic_energy", "energy":
			out[i] = r.Energy
		case "divergence":
			out[i] = r.Divergence
		case "max_velocity":
			out[i] = r.MaxVelocity
		default:
			return nil, fmt.Errorf("storage: unknown history column %q", name)
		}
	}
	return out, nil
}
