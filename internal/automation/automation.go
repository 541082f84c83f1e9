package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
	"github.com/san-kum/nsflow/internal/optim"
	"github.com/san-kum/nsflow/internal/processors"
	"github.com/san-kum/nsflow/internal/sim"
	"github.com/san-kum/nsflow/internal/stepper"
	"github.com/san-kum/nsflow/internal/storage"
)

// Outcome is a stored run.
type Outcome struct {
	RunID      string
	Result     *sim.Result
	Metrics    map[string]float64
	Experiment *experiment.Experiment
}

// Execute runs cfg and stores its configuration, history, final fields and
// metadata under a new run named name. Metadata is written even when the
// run fails so the partial history stays listed.
func Execute(ctx context.Context, store *storage.Store, name string, cfg *config.Config, reg *experiment.Registry, logger *log.Logger) (*Outcome, error) {
	exp, err := experiment.New(cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		return nil, err
	}
	runID, err := store.NewRun(name)
	if err != nil {
		return nil, err
	}
	if err := store.SaveConfig(runID, cfg); err != nil {
		return nil, err
	}
	exp.AddProcessor(store.History(runID, exp.Operators(), max(cfg.Output.Every, 1)))

	res, runErr := exp.Run(ctx)
	out := &Outcome{RunID: runID, Result: res, Experiment: exp, Metrics: Metrics(exp, res)}
	if res != nil && res.Final.V != nil {
		final := res.Final
		fields := storage.NewFields(final, analysis.CellFields(exp.Operators(), final.V, final.P))
		if err := store.SaveFields(runID, fields); err != nil {
			return out, errors.Join(runErr, err)
		}
	}
	if err := store.SaveMetadata(storage.NewMetadata(runID, cfg, res, out.Metrics)); err != nil {
		return out, errors.Join(runErr, err)
	}
	return out, runErr
}

// Metrics summarizes the standard processors of a run.
func Metrics(exp *experiment.Experiment, res *sim.Result) map[string]float64 {
	st := exp.Machine().Stepper()
	m := map[string]float64{
		"peak_energy":           exp.Energy.Peak(),
		"energy_drift":          exp.Energy.Drift(),
		"divergence_violations": float64(exp.Divergence.Violations()),
		"pressure_solves":       float64(st.PressureSolves()),
	}
	if res != nil && res.Final.V != nil {
		m["final_energy"] = processors.Energy(exp.Operators(), res.Final.V)
		m["final_divergence"] = st.Divergence()
	}
	return m
}

// Scenario is a scripted sequence of stored runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep picks a configuration from a file, a preset or the defaults
// of a case, then overrides the method and any searchable parameter.
type ScenarioStep struct {
	Case   string             `yaml:"case"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Method string             `yaml:"method"`
	Params map[string]float64 `yaml:"params"`
	SaveAs string             `yaml:"save_as"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("automation: scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Resolve builds the configuration of one step.
func (s ScenarioStep) Resolve() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Config != "":
		loaded, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case s.Preset != "":
		cfg = config.GetPreset(s.Case, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("automation: unknown preset %s/%s", s.Case, s.Preset)
		}
	default:
		cfg = config.DefaultConfig()
		if s.Case != "" {
			cfg.Case = s.Case
		}
	}
	if s.Method != "" {
		cfg.Method.Name = s.Method
	}
	for k, v := range s.Params {
		set, ok := optim.Params[k]
		if !ok {
			return nil, fmt.Errorf("automation: unknown parameter %q", k)
		}
		set(cfg, v)
	}
	return cfg, cfg.Validate()
}

func (s ScenarioStep) name(i int) string {
	switch {
	case s.SaveAs != "":
		return s.SaveAs
	case s.Preset != "":
		return s.Case + "_" + s.Preset
	}
	return fmt.Sprintf("step%d", i+1)
}

// RunScenario executes the steps in order and stops at the first failure.
func RunScenario(ctx context.Context, scenario *Scenario, store *storage.Store, reg *experiment.Registry, logger *log.Logger) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(scenario.Steps))
	progress := logger
	if progress == nil {
		progress = log.New(io.Discard)
	}

	for i, step := range scenario.Steps {
		name := step.name(i)
		progress.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg, err := step.Resolve()
		if err != nil {
			return outcomes, fmt.Errorf("step %d: %w", i+1, err)
		}
		out, err := Execute(ctx, store, name, cfg, reg, logger)
		if out != nil {
			outcomes = append(outcomes, out)
		}
		if err != nil {
			return outcomes, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	return outcomes, nil
}

type MonteCarloConfig struct {
	Base   *config.Config
	Trials int
	Seed   int64
	Jobs   int
}

// MonteCarloResult is one seeded trial. A trial is unstable when one of
// its steps failed, typically because the solution stopped being finite.
type MonteCarloResult struct {
	TrialID     int
	Seed        int64
	Steps       int
	FinalEnergy float64
	Stable      bool
}

// RunMonteCarlo runs the base configuration once per seed. Only random
// initial conditions differ between trials. Trials run concurrently and
// blow-ups are recorded rather than returned.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, reg *experiment.Registry) ([]MonteCarloResult, error) {
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("automation: need a positive trial count, got %d", cfg.Trials)
	}
	results := make([]MonteCarloResult, cfg.Trials)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Jobs > 0 {
		g.SetLimit(cfg.Jobs)
	}
	for trial := 0; trial < cfg.Trials; trial++ {
		trial := trial
		g.Go(func() error {
			c := cfg.Base.Clone()
			c.Seed = cfg.Seed + int64(trial)
			c.Output.Snapshots = 0
			exp, err := experiment.New(c, reg, nil)
			if err != nil {
				return err
			}

			r := MonteCarloResult{TrialID: trial, Seed: c.Seed, Stable: true}
			res, err := exp.Run(ctx)
			var stepErr *stepper.StepError
			switch {
			case errors.As(err, &stepErr):
				r.Stable = false
			case err != nil:
				return fmt.Errorf("trial %d: %w", trial, err)
			}
			if res != nil {
				r.Steps = res.Steps
				if r.Stable {
					r.FinalEnergy = processors.Energy(exp.Operators(), res.Final.V)
				}
			}
			results[trial] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
