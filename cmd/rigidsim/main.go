package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/rigidsim/internal/abi"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/experiment"
	"github.com/san-kum/rigidsim/internal/export"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/optim"
	"github.com/san-kum/rigidsim/internal/storage"
	"github.com/san-kum/rigidsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir        string
	verbosity      int
	configFile     string
	dt             float64
	duration       float64
	collisionSteps int
	subSteps       int
	threads        int
	scratchSize    int
	column         string
	outFile        string
	workers        int
	copies         int
	svgFile        string
	metricName     string
	sweepParams    []string

	log = logr.Discard()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rigidsim",
		Short: "concurrent rigid body simulation",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = newLogger(verbosity)
		},
	}
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rigidsim", "data directory")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "log verbosity")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scene and save the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	addSceneFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot trajectories of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "", "plot only columns containing this string")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&svgFile, "svg", "", "also draw the trajectories to an svg file")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scenes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Printf("  %-8s %d bodies, %.1fs\n", name, bodyCount(cfg), cfg.Duration)
			}
			return nil
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "run scenes concurrently and report timings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScenes,
	}
	benchCmd.Flags().IntVar(&workers, "workers", 0, "scenes run at once (0 = no limit)")
	benchCmd.Flags().IntVarP(&copies, "copies", "n", 1, "copies of the preset to run")
	addSceneFlags(benchCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "grid search scene settings against a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepScene,
	}
	sweepCmd.Flags().StringArrayVarP(&sweepParams, "param", "p", nil,
		fmt.Sprintf("name=v1,v2,... (one of %v)", optim.KnobNames()))
	sweepCmd.Flags().StringVar(&metricName, "metric", "energy_drift", "metric to minimize")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "scenes run at once (0 = no limit)")
	addSceneFlags(sweepCmd)

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scene with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)

	sizesCmd := &cobra.Command{
		Use:   "sizes",
		Short: "print the sizes of the handle surface types",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tBYTES")
			fmt.Fprintf(w, "Vec4\t%d\n", abi.SizeOfVec4())
			fmt.Fprintf(w, "Handle\t%d\n", abi.SizeOfHandle())
			fmt.Fprintf(w, "BodyID\t%d\n", abi.SizeOfBodyID())
			fmt.Fprintf(w, "BodyCreationSettings\t%d\n", abi.SizeOfBodyCreationSettings())
			fmt.Fprintf(w, "BodyLockRead\t%d\n", abi.SizeOfBodyLockRead())
			fmt.Fprintf(w, "BodyLockWrite\t%d\n", abi.SizeOfBodyLockWrite())
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, presetsCmd, benchCmd, sweepCmd, liveCmd, sizesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: v})
}

func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "scene config file (yaml)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().IntVar(&collisionSteps, "collision-steps", config.DefaultCollisionSteps, "collision steps per update")
	cmd.Flags().IntVar(&subSteps, "sub-steps", config.DefaultSubSteps, "integration sub steps")
	cmd.Flags().IntVar(&threads, "threads", 0, "job pool threads (0 = one per CPU)")
	cmd.Flags().IntVar(&scratchSize, "scratch", config.DefaultScratchSize, "scratch arena bytes")
}

// loadScene resolves the scene from a config file or a preset name, then
// applies the flags the user set explicitly.
func loadScene(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	default:
		name := "drop"
		if len(args) > 0 {
			name = args[0]
		}
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("collision-steps") {
		cfg.CollisionSteps = collisionSteps
	}
	if flags.Changed("sub-steps") {
		cfg.SubSteps = subSteps
	}
	if flags.Changed("threads") {
		cfg.Threads = threads
	}
	if flags.Changed("scratch") {
		cfg.ScratchSize = scratchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(log.WithName("experiment")))
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	defer exp.Close()
	for _, m := range metrics.Defaults() {
		exp.AddMetric(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s scene...\n", cfg.Scene)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return fmt.Errorf("run %s: %w", cfg.Scene, err)
	}

	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.Steps)
	fmt.Printf("last step: %d active, %d pairs, %d contacts\n",
		result.Stats.ActiveBodies, result.Stats.Pairs, result.Stats.Contacts)
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}

	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tSTEPS\tBODIES\tWALL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\t%v\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
			run.Bodies,
			run.WallTime.Round(time.Millisecond),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	columns, states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(states))

	const maxPlots = 6
	plotted := 0
	for idx, name := range columns {
		if column != "" && !strings.Contains(name, column) {
			continue
		}
		if column == "" && plotted == maxPlots {
			break
		}

		data := make([]float64, len(states))
		for i := range states {
			if idx < len(states[i]) {
				data[i] = states[i][idx]
			}
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
		plotted++
	}

	if plotted == 0 {
		return fmt.Errorf("no column matches %q", column)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return err
	}
	columns, states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	result := &experiment.Result{
		Scene:    meta.Scene,
		Columns:  columns,
		Times:    times,
		States:   states,
		Metrics:  meta.Metrics,
		Steps:    meta.Steps,
		Stats:    meta.LastStep,
		Duration: meta.WallTime,
	}

	if svgFile != "" {
		if err := writeSVG(svgFile, columns, states); err != nil {
			return fmt.Errorf("export %s: %w", runID, err)
		}
	}

	if outFile == "" {
		return storage.ExportJSONStdout(cfg, result)
	}
	if err := storage.ExportJSON(outFile, cfg, result); err != nil {
		return fmt.Errorf("export %s: %w", runID, err)
	}
	fmt.Printf("exported %s to %s\n", runID, outFile)
	return nil
}

func writeSVG(path string, columns []string, states [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.TrajectorySVG(f, export.PathsFromStates(columns, states), 800, 600, viz.ThemeCyberpunk)
}

func sweepScene(cmd *cobra.Command, args []string) error {
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, p := range sweepParams {
		name, list, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("bad --param %q: want name=v1,v2", p)
		}
		var values []float64
		for _, v := range strings.Split(list, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("bad --param %q: %w", p, err)
			}
			values = append(values, f)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	g, err := optim.NewGridSearch(names, ranges, workers)
	if err != nil {
		return err
	}
	trials, err := g.Search(cmd.Context(), cfg, metricName, experiment.WithLogger(log.WithName("sweep")))
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metricName))
	for _, tr := range trials {
		row := make([]string, len(names))
		for i, n := range names {
			row[i] = strconv.FormatFloat(tr.Params[n], 'g', 6, 64)
		}
		fmt.Fprintf(w, "%s\t%.6g\n", strings.Join(row, "\t"), tr.Value)
	}
	return w.Flush()
}

// benchScenes runs every preset, or copies of one, as a concurrent ensemble.
func benchScenes(cmd *cobra.Command, args []string) error {
	var configs []*config.Config
	if len(args) == 0 && configFile == "" {
		for _, name := range config.ListPresets() {
			cfg, err := loadScene(cmd, []string{name})
			if err != nil {
				return err
			}
			configs = append(configs, cfg)
		}
	} else {
		for i := 0; i < max(copies, 1); i++ {
			cfg, err := loadScene(cmd, args)
			if err != nil {
				return err
			}
			configs = append(configs, cfg)
		}
	}

	fmt.Printf("benchmarking %d scenes\n\n", len(configs))
	start := time.Now()

	ens := experiment.NewEnsemble(configs, workers, experiment.WithLogger(log.WithName("bench")))
	results, err := ens.Run(context.Background())
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}
	total := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tBODIES\tSTEPS\tTIME\tSTEPS/SEC\tPAIRS\tCONTACTS")

	steps := 0
	for i, r := range results {
		steps += r.Steps
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%.0f\t%d\t%d\n",
			r.Scene,
			bodyCount(configs[i]),
			r.Steps,
			r.Duration.Round(time.Microsecond),
			float64(r.Steps)/r.Duration.Seconds(),
			r.Stats.Pairs,
			r.Stats.Contacts,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\ntotal: %d steps in %v (%.0f steps/sec)\n", steps, total, float64(steps)/total.Seconds())
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	// The alternate screen owns the terminal; logs would tear it.
	return viz.Run(cfg)
}

func bodyCount(cfg *config.Config) int {
	n := 0
	for i := range cfg.Bodies {
		n += cfg.Bodies[i].Copies()
	}
	return n
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
