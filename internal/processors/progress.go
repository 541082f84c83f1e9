package processors

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/nsflow/internal/stepper"
)

// Progress logs the simulated time at a fixed step cadence.
type Progress struct {
	logger *log.Logger
	every  int
	tEnd   float64
	t0     float64
	start  time.Time
	last   stepper.State
}

func NewProgress(logger *log.Logger, every int, tEnd float64) *Progress {
	return &Progress{logger: logger, every: every, tEnd: tEnd}
}

func (p *Progress) Every() int { return p.every }

func (p *Progress) Initialize(st stepper.State) error {
	p.t0 = st.T
	p.start = time.Now()
	return nil
}

func (p *Progress) Process(st stepper.State) error {
	p.last = st
	if st.N == 0 {
		return nil
	}
	frac := 1.0
	if span := p.tEnd - p.t0; span > 0 {
		frac = (st.T - p.t0) / span
	}
	elapsed := time.Since(p.start)
	var eta time.Duration
	if frac > 0 {
		eta = time.Duration(float64(elapsed) * (1 - frac) / frac)
	}
	p.logger.Debug("progress",
		"step", st.N,
		"t", st.T,
		"dt", st.Dt,
		"done", frac,
		"eta", eta.Round(time.Millisecond),
	)
	return nil
}

func (p *Progress) Finalize() error {
	p.logger.Debug("progress done", "step", p.last.N, "t", p.last.T, "elapsed", time.Since(p.start).Round(time.Millisecond))
	return nil
}
