// Command walkforward runs a rolling walk-forward analysis of the reference
// strategy. With --space each train window is optimized by a search; without
// it the base configuration is evaluated unchanged in every window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"strategy-validation-lab/internal/app"
	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/reporting"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/walkforward"
)

type options struct {
	configPath string
	spacePath  string
	basePath   string
	from, to   string
	trainDays  int
	testDays   int
	anchored   bool
	method     string
	objective  string
	outputDir  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (built-in defaults when empty)")
	flag.StringVar(&opts.basePath, "base", "", "YAML base strategy configuration (required)")
	flag.StringVar(&opts.spacePath, "space", "", "YAML parameter space searched on each train window (optional)")
	flag.StringVar(&opts.from, "from", "", "Range start, YYYY-MM-DD (required)")
	flag.StringVar(&opts.to, "to", "", "Range end, YYYY-MM-DD inclusive (required)")
	flag.IntVar(&opts.trainDays, "train-days", 0, "Train window length in days (config default when 0)")
	flag.IntVar(&opts.testDays, "test-days", 0, "Test window length in days (config default when 0)")
	flag.BoolVar(&opts.anchored, "anchored", false, "Keep every train window starting at the range start")
	flag.StringVar(&opts.method, "method", "", "Per-window search method: grid or random (config default when empty)")
	flag.StringVar(&opts.objective, "objective", "", "Objective metric (config default when empty)")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Write the validation report and window CSV here when set")
	flag.Parse()

	if opts.basePath == "" || opts.from == "" || opts.to == "" {
		fmt.Fprintln(os.Stderr, "Error: --base, --from and --to are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(app.ExitCode(err))
}

func run(ctx context.Context, opts options) error {
	r, err := domain.ParseDateRange(opts.from, opts.to)
	if err != nil {
		return err
	}
	base, err := params.LoadTree(opts.basePath)
	if err != nil {
		return err
	}

	rt, err := app.Start(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	if opts.objective != "" {
		cfg.Engine.Objective = opts.objective
	}
	spec := walkforward.WindowSpec{
		TrainDays: cfg.WalkForward.TrainDays,
		TestDays:  cfg.WalkForward.TestDays,
		Anchored:  cfg.WalkForward.Anchored || opts.anchored,
	}
	if opts.trainDays > 0 {
		spec.TrainDays = opts.trainDays
	}
	if opts.testDays > 0 {
		spec.TestDays = opts.testDays
	}

	engine := app.NewEngine(app.EngineOptions{Config: cfg, Stores: rt.Stores, Base: base, Logger: rt.Logger})
	objective := domain.Objective(cfg.Engine.Objective)

	var selector walkforward.Selector = walkforward.Fixed{}
	if opts.spacePath != "" {
		space, err := params.LoadSpace(opts.spacePath)
		if err != nil {
			return err
		}
		method := search.Method(cfg.Search.Method)
		if opts.method != "" {
			method = search.Method(opts.method)
		}
		selector = walkforward.SearchSelector{
			Searcher:      engine.Searcher,
			Method:        method,
			Space:         space,
			Objective:     objective,
			TrainFraction: cfg.Search.TrainFraction,
			Iterations:    cfg.Search.Iterations,
			Seed:          cfg.Engine.Seed,
		}
	}

	res, err := engine.WalkForward(ctx, selector, walkforward.Request{Range: r, Spec: spec, Objective: objective})
	if res == nil {
		return err
	}

	printResult(res)

	if opts.outputDir != "" {
		report, buildErr := reporting.Build(reporting.Input{WalkForward: res}, time.Now().UTC())
		if buildErr != nil {
			return buildErr
		}
		written, writeErr := reporting.WriteFiles(opts.outputDir, report, nil)
		if writeErr != nil {
			return writeErr
		}
		for _, path := range written {
			rt.Logger.Info("wrote report file", zap.String("path", path))
		}
	}
	return err
}

func printResult(res *domain.WalkForwardResult) {
	fmt.Printf("Run %s (objective %s, %s)\n\n", res.RunID, res.Objective, res.Range)
	fmt.Printf("%-3s %-23s %-23s %10s %10s  %-9s %s\n", "#", "Train", "Test", "Train", "Test", "Status", "Combination")
	for _, w := range res.Windows {
		fmt.Printf("%-3d %-23s %-23s %10.4f %10.4f  %-9s %s\n",
			w.Window.Index, w.Window.TrainRange, w.Window.TestRange,
			w.TrainMetric, w.TestMetric, w.Status, w.Combination.Key())
	}
	if res.Discarded != nil {
		fmt.Printf("\nDiscarded trailing range: %s\n", res.Discarded)
	}
	fmt.Printf("\nWindows: %d succeeded, %d omitted\n", res.Succeeded, res.Omitted)
	fmt.Printf("Efficiency %.4f, consistency %.4f, verdict %s\n", res.Efficiency, res.Consistency, res.Verdict)
}
