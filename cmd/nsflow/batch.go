package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/automation"
	"github.com/san-kum/nsflow/internal/experiment"
	"github.com/san-kum/nsflow/internal/optim"
	"github.com/san-kum/nsflow/internal/storage"
)

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	outcomes, err := automation.RunScenario(ctx, scenario, storage.New(dataDir), experiment.NewRegistry(), logger)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTEPS\tT\tPEAK ENERGY\tDRIFT")
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.4g\t%.6g\t%.3e\n",
			o.RunID, o.Result.Steps, o.Result.Time, o.Metrics["peak_energy"], o.Metrics["energy_drift"])
	}
	if flushErr := w.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}

// parseParam reads name=v1,v2,... into a parameter name and its values.
func parseParam(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || list == "" {
		return "", nil, fmt.Errorf("parameter %q is not name=v1,v2", s)
	}
	var values []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		values = append(values, v)
	}
	return strings.TrimSpace(name), values, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	metric, ok := optim.Metrics[metricName]
	if !ok {
		return fmt.Errorf("unknown metric %q (available: %s)", metricName, strings.Join(optim.MetricNames(), ", "))
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("no parameters (available: %s)", strings.Join(optim.ParamNames(), ", "))
	}
	var (
		names  []string
		ranges [][]float64
	)
	for _, p := range sweepParams {
		name, values, err := parseParam(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	search, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	best, points, err := search.Search(ctx, cfg, experiment.NewRegistry(), metric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metricName))
	for _, p := range points {
		cols := make([]string, len(names))
		for i, n := range names {
			cols[i] = strconv.FormatFloat(p.Params[n], 'g', -1, 64)
		}
		val := fmt.Sprintf("%.6g", p.Value)
		if p.Err != nil {
			val = "failed: " + p.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cols, "\t"), val)
	}
	if flushErr := w.Flush(); flushErr != nil {
		return flushErr
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best.Params))
	for k := range best.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, best.Params[k])
	}
	fmt.Printf("\nbest %s: %.6g at %s\n", metricName, best.Value, strings.Join(parts, " "))
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base:   cfg,
		Trials: trials,
		Seed:   cfg.Seed,
		Jobs:   limit,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	var energies []float64
	for _, r := range results {
		if r.Stable {
			energies = append(energies, r.FinalEnergy)
		}
	}
	fmt.Printf("%d trials: %d stable, %d unstable\n", len(results), stable, unstable)
	if sum, err := analysis.Summarize(energies); err == nil {
		fmt.Printf("final energy: mean %.6g  stddev %.3g  min %.6g  max %.6g\n", sum.Mean, sum.StdDev, sum.Min, sum.Max)
	}
	return nil
}
