package viz

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/processors"
	"github.com/san-kum/nsflow/internal/stepper"
)

// Frame is one sampled solution prepared for drawing.
type Frame struct {
	Step       int
	T, Dt      float64
	Fields     *analysis.Fields
	Energy     float64
	Divergence float64
}

// Feed is a processor that hands frames to the view. Process blocks until
// the view takes the frame, so a paused view pauses the solver.
type Feed struct {
	ctx    context.Context
	ops    *grid.Operators
	every  int
	frames chan Frame
	bc     *grid.Vectors
	div    []float64
	once   sync.Once
}

func NewFeed(ctx context.Context, ops *grid.Operators, every int) *Feed {
	return &Feed{
		ctx:    ctx,
		ops:    ops,
		every:  every,
		frames: make(chan Frame),
		bc:     ops.NewVectors(0),
		div:    make([]float64, ops.Np),
	}
}

func (f *Feed) Frames() <-chan Frame { return f.frames }
func (f *Feed) Every() int           { return f.every }

func (f *Feed) Initialize(_ stepper.State) error { return nil }

func (f *Feed) Process(st stepper.State) error {
	if f.ops.Unsteady() && f.bc.T != st.T {
		f.ops.SetBCVectors(f.bc, st.T)
	}
	f.ops.M.MulVecTo(f.div, st.V)
	floats.Add(f.div, f.bc.YM)

	fr := Frame{
		Step:       st.N,
		T:          st.T,
		Dt:         st.Dt,
		Fields:     analysis.CellFields(f.ops, st.V, st.P),
		Energy:     processors.Energy(f.ops, st.V),
		Divergence: floats.Norm(f.div, math.Inf(1)),
	}
	select {
	case f.frames <- fr:
		return nil
	case <-f.ctx.Done():
		return f.ctx.Err()
	}
}

// Finalize closes the frame channel. A feed serves a single run.
func (f *Feed) Finalize() error {
	f.once.Do(func() { close(f.frames) })
	return nil
}
