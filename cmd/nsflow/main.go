package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
	"github.com/san-kum/nsflow/internal/optim"
	"github.com/san-kum/nsflow/internal/viz"
)

var (
	dataDir  string
	logLevel string

	configFile     string
	preset         string
	dt             float64
	tEnd           float64
	cfl            float64
	viscosity      float64
	cells          int
	seed           int64
	method         string
	startup        string
	regularization string
	initial        string
	force          string
	pressureKind   string
	every          int

	theme     string
	frameRate int
	column    string
	outFile   string
	field     string
	pixels    int
	limit     int
	dts       []float64
	benchRuns int

	sweepParams []string
	metricName  string
	trials      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nsflow",
		Short:         "incompressible flow time integration lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInteractive,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".nsflow", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [case]",
		Short: "run a flow and store its history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addCaseFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [case]",
		Short: "run a flow with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addCaseFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "coolwarm", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	liveCmd.Flags().IntVar(&frameRate, "frames", 1, "steps between frames")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a history column",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "energy", "history column (energy, divergence, dt, max_velocity)")
	plotCmd.Flags().StringVar(&outFile, "svg", "", "also write the plot as svg")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "", "output file (default stdout)")

	svgCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a final field as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVar(&field, "field", "vorticity", "field (vorticity, speed, pressure, u, v)")
	svgCmd.Flags().StringVar(&outFile, "out", "", "output file (default <run_id>_<field>.svg)")
	svgCmd.Flags().StringVar(&theme, "theme", "coolwarm", "color theme")
	svgCmd.Flags().IntVar(&pixels, "px", 8, "pixels per cell")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "energy statistics and spectra of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	methodsCmd := &cobra.Command{
		Use:   "methods",
		Short: "list time integration methods",
		RunE:  listMethods,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [case]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [case] [method...]",
		Short: "run one flow with several methods concurrently",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareMethods,
	}
	addCaseFlags(compareCmd)
	compareCmd.Flags().IntVar(&limit, "jobs", 0, "concurrent runs (0 is unlimited)")

	orderCmd := &cobra.Command{
		Use:   "order [case]",
		Short: "estimate the temporal order of a method",
		Args:  cobra.MaximumNArgs(1),
		RunE:  convergenceOrder,
	}
	addCaseFlags(orderCmd)
	orderCmd.Flags().Float64SliceVar(&dts, "dts", []float64{0.02, 0.01, 0.005}, "time steps to compare")
	orderCmd.Flags().IntVar(&limit, "jobs", 0, "concurrent runs (0 is unlimited)")

	benchCmd := &cobra.Command{
		Use:   "bench [case]",
		Short: "measure steps per second of every method",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchMethods,
	}
	addCaseFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchRuns, "steps", 20, "steps per method")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run and store every step of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [case]",
		Short: "grid search over configuration parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addCaseFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "parameter values as name=v1,v2 (repeatable)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "drift", "metric to minimize ("+strings.Join(optim.MetricNames(), ", ")+")")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [case]",
		Short: "stability of a flow over random initial seeds",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	addCaseFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 8, "number of seeds")
	monteCarloCmd.Flags().IntVar(&limit, "jobs", 0, "concurrent runs (0 is unlimited)")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, svgCmd, analyzeCmd,
		methodsCmd, presetsCmd, compareCmd, orderCmd, benchCmd,
		scenarioCmd, sweepCmd, monteCarloCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addCaseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "fixed time step")
	cmd.Flags().Float64Var(&tEnd, "tend", config.DefaultTEnd, "end time")
	cmd.Flags().Float64Var(&cfl, "cfl", config.DefaultCFL, "adaptive step factor (implies adaptive stepping without --dt)")
	cmd.Flags().Float64Var(&viscosity, "nu", config.DefaultViscosity, "kinematic viscosity")
	cmd.Flags().IntVarP(&cells, "cells", "n", config.DefaultN, "cells per axis")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().StringVar(&method, "method", config.DefaultMethod, "time integration method")
	cmd.Flags().StringVar(&startup, "startup", config.DefaultStartup, "startup method of multistep methods")
	cmd.Flags().StringVar(&regularization, "reg", "none", "convection regularization (none, c2, c4, leray)")
	cmd.Flags().StringVar(&initial, "initial", "zero", "initial condition")
	cmd.Flags().StringVar(&force, "force", "none", "body force")
	cmd.Flags().StringVar(&pressureKind, "pressure", "auto", "pressure solver (auto, cholesky, cg)")
	cmd.Flags().IntVar(&every, "every", 10, "steps between diagnostics")
}

// resolveConfig builds the run configuration from a file, a preset or the
// defaults, then applies the flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	kind := ""
	if len(args) > 0 {
		kind = args[0]
	}

	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		if kind == "" {
			kind = "cavity"
		}
		cfg = config.GetPreset(kind, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q for case %q (available: %s)",
				preset, kind, strings.Join(config.ListPresets(kind), ", "))
		}
	default:
		cfg = config.DefaultConfig()
	}
	if kind != "" {
		cfg.Case = kind
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Time.Dt = dt
	}
	if flags.Changed("cfl") {
		cfg.Time.CFL = cfl
		if !flags.Changed("dt") {
			cfg.Time.Dt = 0
		}
	}
	if flags.Changed("tend") {
		cfg.Time.TEnd = tEnd
	}
	if flags.Changed("nu") {
		cfg.Viscosity = viscosity
	}
	if flags.Changed("cells") {
		for i := range cfg.Grid.N {
			cfg.Grid.N[i] = cells
		}
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("method") {
		cfg.Method.Name = method
	}
	if flags.Changed("startup") {
		cfg.Method.Startup = startup
	}
	if flags.Changed("reg") {
		cfg.Convection.Regularization = regularization
	}
	if flags.Changed("initial") {
		cfg.Initial.Kind = initial
	}
	if flags.Changed("force") {
		cfg.Force.Kind = force
	}
	if flags.Changed("pressure") {
		cfg.Pressure = pressureKind
	}
	if flags.Changed("every") {
		cfg.Output.Every = every
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "nsflow",
	}), nil
}

// signalContext is canceled on interrupt so runs stop between steps and
// still finalize their processors.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// runInteractive opens the preset picker and runs the chosen flow live.
func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := viz.Pick()
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	return liveConfig(cfg, cfg.Case, "coolwarm", 1)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	title := cfg.Case
	if preset != "" {
		title += "/" + preset
	}
	return liveConfig(cfg, title, theme, frameRate)
}

func liveConfig(cfg *config.Config, title, themeName string, frames int) error {
	exp, err := experiment.New(cfg, experiment.NewRegistry(), nil)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	res, err := viz.Live(ctx, exp.Simulator(), exp.Operators(), exp.V0, experiment.RunConfig(cfg), viz.Options{
		Title: fmt.Sprintf("%s · %s", title, cfg.Method.Name),
		Theme: themeName,
		Every: frames,
	})
	if res != nil {
		fmt.Printf("%d steps to t=%.4g in %v (%s)\n", res.Steps, res.Time, res.Elapsed.Round(time.Millisecond), res.Method)
	}
	return err
}
