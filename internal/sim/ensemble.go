package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Case is one member of an ensemble. Cases may share read-only operators
// but each needs its own Simulator.
type Case struct {
	Name   string
	Sim    *Simulator
	V0, P0 []float64
	T0     float64
	Config Config
}

// Ensemble runs independent cases concurrently.
type Ensemble struct {
	cases []Case
	limit int
}

func NewEnsemble(limit int, cases ...Case) *Ensemble {
	return &Ensemble{cases: cases, limit: limit}
}

// Run returns one result per case in order. The first failure cancels the
// remaining cases between their steps.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(e.cases))
	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, c := range e.cases {
		i, c := i, c
		g.Go(func() error {
			res, err := c.Sim.Run(ctx, c.V0, c.P0, c.T0, c.Config)
			results[i] = res
			if err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
