// Command optimize runs a grid or random parameter search of the reference
// strategy over a date range and prints the top trials.
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
)

type options struct {
	configPath string
	spacePath  string
	basePath   string
	from, to   string
	method     string
	objective  string
	iterations int
	top        int
	outputDir  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (built-in defaults when empty)")
	flag.StringVar(&opts.spacePath, "space", "", "YAML parameter space (required)")
	flag.StringVar(&opts.basePath, "base", "", "YAML base strategy configuration (required)")
	flag.StringVar(&opts.from, "from", "", "Range start, YYYY-MM-DD (required)")
	flag.StringVar(&opts.to, "to", "", "Range end, YYYY-MM-DD inclusive (required)")
	flag.StringVar(&opts.method, "method", "", "Search method: grid or random (config default when empty)")
	flag.StringVar(&opts.objective, "objective", "", "Objective metric (config default when empty)")
	flag.IntVar(&opts.iterations, "iterations", 0, "Random search iterations (config default when 0)")
	flag.IntVar(&opts.top, "top", 0, "Number of ranked trials to print (config default when 0)")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Write the validation report and trial CSV here when set")
	flag.Parse()

	if opts.spacePath == "" || opts.basePath == "" || opts.from == "" || opts.to == "" {
		fmt.Fprintln(os.Stderr, "Error: --space, --base, --from and --to are required")
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
	space, err := params.LoadSpace(opts.spacePath)
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
	if opts.iterations > 0 {
		cfg.Search.Iterations = opts.iterations
	}
	if opts.top > 0 {
		cfg.Search.TopN = opts.top
	}
	method := search.Method(cfg.Search.Method)
	if opts.method != "" {
		method = search.Method(opts.method)
	}

	engine := app.NewEngine(app.EngineOptions{Config: cfg, Stores: rt.Stores, Base: base, Logger: rt.Logger})
	res, err := engine.Search(ctx, method, engine.SearchRequest(space, r))
	if res == nil {
		return err
	}

	printResult(res, cfg.Search.TopN)

	if opts.outputDir != "" {
		report, buildErr := reporting.Build(reporting.Input{
			SearchRunID: res.RunID,
			Objective:   res.Objective,
			Trials:      res.Records,
			TopN:        cfg.Search.TopN,
		}, time.Now().UTC())
		if buildErr != nil {
			return buildErr
		}
		written, writeErr := reporting.WriteFiles(opts.outputDir, report, res.Records)
		if writeErr != nil {
			return writeErr
		}
		for _, path := range written {
			rt.Logger.Info("wrote report file", zap.String("path", path))
		}
	}
	return err
}

func printResult(res *search.Result, topN int) {
	fmt.Printf("Run %s (%s, objective %s)\n", res.RunID, res.Method, res.Objective)
	fmt.Printf("Train %s, test %s\n", res.TrainRange, res.TestRange)
	fmt.Printf("Trials: %d planned, %d succeeded, %d failed in %s\n\n",
		res.Planned, res.Succeeded, res.Failed, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	top := res.Top(topN)
	if len(top) == 0 {
		fmt.Println("No successful trials.")
		return
	}
	fmt.Printf("%-4s %-6s %12s %12s  %s\n", "Rank", "Index", "Train", "Test", "Combination")
	for i, rec := range top {
		train, _ := rec.TrainMetrics.Value(res.Objective)
		test, _ := rec.TestMetrics.Value(res.Objective)
		fmt.Printf("%-4d %-6d %12.4f %12.4f  %s\n", i+1, rec.Index, train, test, rec.Combination.Key())
	}
}
