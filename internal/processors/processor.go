package processors

import "github.com/san-kum/nsflow/internal/stepper"

// Sample is one recorded diagnostic value.
type Sample struct {
	N     int
	T     float64
	Value float64
}

// series is the shared bookkeeping of the scalar diagnostics.
type series struct {
	name    string
	every   int
	history []Sample
}

func (s *series) Name() string      { return s.name }
func (s *series) Every() int        { return s.every }
func (s *series) History() []Sample { return s.history }

func (s *series) Last() (Sample, bool) {
	if len(s.history) == 0 {
		return Sample{}, false
	}
	return s.history[len(s.history)-1], true
}

func (s *series) record(st stepper.State, v float64) {
	s.history = append(s.history, Sample{N: st.N, T: st.T, Value: v})
}

func (s *series) reset() { s.history = s.history[:0] }

func (s *series) Finalize() error { return nil }

// Series is a processor that records one scalar per notification.
type Series interface {
	Name() string
	History() []Sample
	Last() (Sample, bool)
}

// Func adapts a function to a processor with the given cadence.
type Func struct {
	N  int
	Fn func(st stepper.State) error
}

func (f Func) Every() int                       { return f.N }
func (f Func) Initialize(_ stepper.State) error { return nil }
func (f Func) Process(st stepper.State) error   { return f.Fn(st) }
func (f Func) Finalize() error                  { return nil }
