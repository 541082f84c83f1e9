package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/automation"
	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
	"github.com/san-kum/nsflow/internal/export"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/methods"
	"github.com/san-kum/nsflow/internal/processors"
	"github.com/san-kum/nsflow/internal/sim"
	"github.com/san-kum/nsflow/internal/storage"
	"github.com/san-kum/nsflow/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	name := cfg.Case
	if preset != "" {
		name += "_" + preset
	}
	ctx, stop := signalContext()
	defer stop()

	out, err := automation.Execute(ctx, storage.New(dataDir), name, cfg, experiment.NewRegistry(), logger)
	if err != nil {
		if out != nil {
			logger.Error("run failed", "run", out.RunID, "err", err)
		}
		return err
	}
	res := out.Result

	fmt.Printf("completed in %v\n", res.Elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", out.RunID)
	fmt.Printf("steps: %d  t: %.4g  method: %s  shortfalls: %d\n", res.Steps, res.Time, res.Method, res.Shortfalls)
	printMetrics(out.Metrics)
	return nil
}

func printMetrics(metrics map[string]float64) {
	fmt.Println("\nmetrics:")
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %.6g\n", k, metrics[k])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCASE\tGRID\tMETHOD\tSTEPS\tT\tELAPSED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4g\t%.2fs\n",
			r.ID, r.Case, gridString(r.Grid), r.Method, r.Steps, r.Time, r.Elapsed)
	}
	return w.Flush()
}

func gridString(n []int) string {
	parts := make([]string, len(n))
	for i, v := range n {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "x")
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	rows, err := storage.New(dataDir).LoadHistory(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s has no history", runID)
	}
	ys, err := storage.Column(rows, column)
	if err != nil {
		return err
	}

	graph := asciigraph.Plot(ys,
		asciigraph.Height(15),
		asciigraph.Width(70),
		asciigraph.Caption(fmt.Sprintf("%s (%s)", column, runID)),
	)
	fmt.Println(graph)

	if outFile != "" {
		times, _ := storage.Column(rows, "time")
		svg := export.SeriesSVG(times, ys, 800, 400, string(viz.ThemeCoolWarm.Primary))
		if err := os.WriteFile(outFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outFile)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	data, err := storage.New(dataDir).Export(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return storage.ExportJSON(os.Stdout, data)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	f, err := storage.New(dataDir).LoadFields(runID)
	if err != nil {
		return err
	}
	if len(f.Shape) != 2 {
		return fmt.Errorf("svg export needs a 2D run, %s has shape %v", runID, f.Shape)
	}

	var (
		values []float64
		signed = true
	)
	switch field {
	case "vorticity":
		values = f.Vorticity
	case "speed":
		values, signed = f.Speed, false
	case "pressure":
		values = f.Pressure
	case "u":
		values = f.Velocity[0]
	case "v":
		values = f.Velocity[1]
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	if len(values) == 0 {
		return fmt.Errorf("run %s has no %s field", runID, field)
	}

	out := outFile
	if out == "" {
		out = fmt.Sprintf("%s_%s.svg", runID, field)
	}
	svg := export.FieldSVG(analysis.Rows(f.Shape, values), pixels, viz.GetTheme(theme), signed)
	if err := os.WriteFile(out, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (t=%.4g)\n", out, f.T)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	store := storage.New(dataDir)
	rows, err := store.LoadHistory(runID)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("run %s has %d history samples", runID, len(rows))
	}
	times, _ := storage.Column(rows, "time")
	energy, _ := storage.Column(rows, "energy")
	divergence, _ := storage.Column(rows, "divergence")
	steps, _ := storage.Column(rows, "dt")

	fmt.Printf("analysis of %s (%d samples)\n\n", runID, len(rows))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERIES\tMIN\tMAX\tMEAN\tSTDDEV\tLAST")
	for _, s := range []struct {
		name   string
		values []float64
	}{
		{"energy", energy},
		{"divergence", divergence},
		{"dt", steps[1:]},
	} {
		sum, err := analysis.Summarize(s.values)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n", s.name, sum.Min, sum.Max, sum.Mean, sum.StdDev, sum.Last)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if rate, err := analysis.DecayRate(times, energy); err == nil {
		fmt.Printf("\nenergy decay rate: %.6g\n", rate)
	}
	if spacing, ok := uniformSpacing(times); ok && len(energy) >= 8 {
		fmt.Printf("dominant frequency: %.4g\n", analysis.DominantFrequency(energy, spacing))
		ps := analysis.PowerSpectrum(energy)
		if len(ps) > 1 {
			fmt.Println()
			fmt.Println(asciigraph.Plot(ps[1:],
				asciigraph.Height(10),
				asciigraph.Width(70),
				asciigraph.Caption("energy power spectrum"),
			))
		}
	}

	return energySpectrum(store, runID)
}

// energySpectrum prints E(k) of the final field of doubly periodic 2D runs.
func energySpectrum(store *storage.Store, runID string) error {
	cfg, err := store.LoadConfig(runID)
	if err != nil {
		return err
	}
	f, err := store.LoadFields(runID)
	if err != nil {
		return nil
	}
	ops, err := experiment.Operators(cfg)
	if err != nil {
		return err
	}
	if len(f.V) != ops.NV {
		return fmt.Errorf("run %s: stored velocity has %d values, grid has %d", runID, len(f.V), ops.NV)
	}
	spectrum, err := analysis.EnergySpectrum(ops, f.V)
	if errors.Is(err, grid.ErrBadGrid) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(spectrum) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(spectrum[1:],
			asciigraph.Height(10),
			asciigraph.Width(70),
			asciigraph.Caption(fmt.Sprintf("E(k) at t=%.4g", f.T)),
		))
	}
	return nil
}

func uniformSpacing(times []float64) (float64, bool) {
	if len(times) < 2 {
		return 0, false
	}
	h := times[1] - times[0]
	if h <= 0 {
		return 0, false
	}
	for i := 2; i < len(times); i++ {
		if math.Abs(times[i]-times[i-1]-h) > 1e-9*math.Max(1, h) {
			return 0, false
		}
	}
	return h, true
}

func listMethods(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSTAGES\tORDER\tSTARTUP\tDESCRIPTION")
	for _, m := range methods.List() {
		start := "-"
		if m.Multistep {
			start = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%s\t%s\n", m.Name, m.Kind, m.Stages, m.Order, start, m.Summary)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	cases := config.Cases()
	if len(args) > 0 {
		if config.ListPresets(args[0]) == nil {
			return fmt.Errorf("unknown case %q (available: %s)", args[0], strings.Join(cases, ", "))
		}
		cases = args[:1]
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tPRESET\tGRID\tNU\tMETHOD\tTEND")
	for _, c := range cases {
		for _, name := range config.ListPresets(c) {
			p := config.GetPreset(c, name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%g\n", c, name, gridString(p.Grid.N), p.Viscosity, p.Method.Name, p.Time.TEnd)
		}
	}
	return w.Flush()
}

// siblings builds one experiment per method on a shared grid and pressure
// factor. edit adjusts each configuration before it is built.
func siblings(cfg *config.Config, names []string, edit func(i int, c *config.Config)) ([]*experiment.Experiment, error) {
	reg := experiment.NewRegistry()
	base, err := experiment.New(cfg, reg, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*experiment.Experiment, len(names))
	for i, name := range names {
		c := cfg.Clone()
		c.Method.Name = name
		if edit != nil {
			edit(i, c)
		}
		if out[i], err = base.Sibling(c, reg, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return out, nil
}

func runAll(exps []*experiment.Experiment, names []string) ([]*sim.Result, error) {
	cases := make([]sim.Case, len(exps))
	for i, e := range exps {
		cases[i] = e.Case(names[i])
	}
	ctx, stop := signalContext()
	defer stop()
	return sim.NewEnsemble(limit, cases...).Run(ctx)
}

func compareMethods(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[:1])
	if err != nil {
		return err
	}
	names := args[1:]
	exps, err := siblings(cfg, names, nil)
	if err != nil {
		return err
	}
	results, err := runAll(exps, names)
	if err != nil {
		return err
	}

	ref := results[0].Final.V
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "METHOD\tSTEPS\tSHORTFALLS\tENERGY\tDIVERGENCE\tMAX DIFF (vs %s)\tELAPSED\n", names[0])
	for i, res := range results {
		ops := exps[i].Operators()
		fmt.Fprintf(w, "%s\t%d\t%d\t%.6g\t%.2e\t%.2e\t%v\n",
			res.Method,
			res.Steps,
			res.Shortfalls,
			processors.Energy(ops, res.Final.V),
			exps[i].Machine().Stepper().Divergence(),
			floats.Distance(res.Final.V, ref, math.Inf(1)),
			res.Elapsed.Round(time.Millisecond),
		)
	}
	return w.Flush()
}

// convergenceOrder runs one method at several fixed steps against a
// reference four times finer than the smallest, and fits the order.
func convergenceOrder(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(dts) < 2 {
		return fmt.Errorf("need at least two time steps, got %d", len(dts))
	}
	steps := append(append([]float64(nil), dts...), floats.Min(dts)/4)
	names := make([]string, len(steps))
	for i := range names {
		names[i] = cfg.Method.Name
	}
	exps, err := siblings(cfg, names, func(i int, c *config.Config) {
		c.Time.Dt = steps[i]
		c.Time.MaxDt = 0
	})
	if err != nil {
		return err
	}
	for i := range names {
		names[i] = fmt.Sprintf("dt=%g", steps[i])
	}
	results, err := runAll(exps, names)
	if err != nil {
		return err
	}

	ref := results[len(results)-1].Final.V
	errs := make([]float64, len(dts))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DT\tSTEPS\tMAX ERROR")
	for i := range dts {
		errs[i] = floats.Distance(results[i].Final.V, ref, math.Inf(1))
		fmt.Fprintf(w, "%g\t%d\t%.3e\n", dts[i], results[i].Steps, errs[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	order, err := analysis.ObservedOrder(dts, errs)
	if err != nil {
		return err
	}
	fmt.Printf("\nobserved order of %s: %.2f\n", cfg.Method.Name, order)
	return nil
}

func benchMethods(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Time.Dt <= 0 {
		cfg.Time.Dt = config.DefaultDt
	}
	cfg.Time.TEnd = float64(benchRuns) * cfg.Time.Dt
	cfg.Output.Snapshots = 0

	ctx, stop := signalContext()
	defer stop()

	reg := experiment.NewRegistry()
	var base *experiment.Experiment
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tKIND\tSTEPS\tELAPSED\tSTEPS/SEC\tPRESSURE SOLVES")
	for _, m := range methods.List() {
		c := cfg.Clone()
		c.Method.Name = m.Name
		var exp *experiment.Experiment
		if base == nil {
			exp, err = experiment.New(c, reg, nil)
			base = exp
		} else {
			exp, err = base.Sibling(c, reg, nil)
		}
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%v\n", m.Name, m.Kind, err)
			continue
		}
		res, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.Flush()
				return ctx.Err()
			}
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%v\n", m.Name, m.Kind, err)
			continue
		}
		rate := float64(res.Steps) / res.Elapsed.Seconds()
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%.1f\t%d\n",
			m.Name, m.Kind, res.Steps, res.Elapsed.Round(time.Microsecond), rate,
			exp.Machine().Stepper().PressureSolves())
	}
	return w.Flush()
}
