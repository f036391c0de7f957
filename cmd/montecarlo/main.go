// Command montecarlo bootstraps the reference strategy's daily returns into
// simulated equity paths and prints the terminal-value distribution.
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
)

type options struct {
	configPath  string
	basePath    string
	from, to    string
	searchRun   string
	objective   string
	simulations int
	seed        uint64
	outputDir   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (built-in defaults when empty)")
	flag.StringVar(&opts.basePath, "base", "", "YAML base strategy configuration (required)")
	flag.StringVar(&opts.from, "from", "", "Range start, YYYY-MM-DD (required)")
	flag.StringVar(&opts.to, "to", "", "Range end, YYYY-MM-DD inclusive (required)")
	flag.StringVar(&opts.searchRun, "search-run", "", "Apply the best combination of this stored search run")
	flag.StringVar(&opts.objective, "objective", "", "Objective used to pick the best combination (config default when empty)")
	flag.IntVar(&opts.simulations, "simulations", 0, "Number of simulated paths (config default when 0)")
	flag.Uint64Var(&opts.seed, "seed", 0, "Random seed (config default when 0)")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Write the validation report here when set")
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
	if opts.simulations > 0 {
		cfg.MonteCarlo.Simulations = opts.simulations
	}
	if opts.seed > 0 {
		cfg.Engine.Seed = opts.seed
	}
	// Paths are not printed or stored.
	cfg.MonteCarlo.KeepPaths = false

	engine := app.NewEngine(app.EngineOptions{Config: cfg, Stores: rt.Stores, Base: base, Logger: rt.Logger})

	combo := domain.Combination{}
	if opts.searchRun != "" {
		combo, err = engine.BestCombination(ctx, opts.searchRun, domain.Objective(cfg.Engine.Objective))
		if err != nil {
			return err
		}
		rt.Logger.Info("using best combination", zap.String("search_run", opts.searchRun), zap.String("combination", combo.Key()))
	}

	returns, err := engine.Returns(ctx, combo, r)
	if err != nil {
		return fmt.Errorf("execute strategy: %w", err)
	}

	res, err := engine.MonteCarlo(ctx, engine.MonteCarloRequest(returns))
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d simulations of %d periods from %.2f (seed %d)\n\n",
		res.RunID, res.Simulations, res.Periods, res.InitialValue, res.Seed)
	for _, pv := range res.Percentiles {
		fmt.Printf("  P%-5g %14.2f\n", pv.Percentile*100, pv.Value)
	}
	fmt.Printf("\nMean terminal value %.2f, probability of loss %.2f%%\n", res.MeanTerminal, res.ProbabilityOfLoss*100)

	if opts.outputDir != "" {
		report, err := reporting.Build(reporting.Input{MonteCarlo: res}, time.Now().UTC())
		if err != nil {
			return err
		}
		written, err := reporting.WriteFiles(opts.outputDir, report, nil)
		if err != nil {
			return err
		}
		for _, path := range written {
			rt.Logger.Info("wrote report file", zap.String("path", path))
		}
	}
	return nil
}
