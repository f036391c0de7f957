// Command report renders a validation report from stored runs: a search
// ledger plus optional walk-forward and Monte Carlo results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"strategy-validation-lab/internal/app"
	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/reporting"
)

type options struct {
	configPath    string
	searchRun     string
	walkForwardID string
	monteCarloID  string
	objective     string
	top           int
	outputDir     string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (built-in defaults when empty)")
	flag.StringVar(&opts.searchRun, "search-run", "", "Stored search run to report on")
	flag.StringVar(&opts.walkForwardID, "walkforward-run", "", "Stored walk-forward run to include")
	flag.StringVar(&opts.monteCarloID, "montecarlo-run", "", "Stored Monte Carlo run to include")
	flag.StringVar(&opts.objective, "objective", "", "Objective used to rank trials (config default when empty)")
	flag.IntVar(&opts.top, "top", 0, "Number of ranked trials to include (config default when 0)")
	flag.StringVar(&opts.outputDir, "output-dir", "docs", "Output directory for generated files")
	flag.Parse()

	if opts.searchRun == "" && opts.walkForwardID == "" && opts.monteCarloID == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one of --search-run, --walkforward-run, --montecarlo-run is required")
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
	rt, err := app.Start(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	objective := rt.Config.Engine.Objective
	if opts.objective != "" {
		objective = opts.objective
	}
	top := rt.Config.Search.TopN
	if opts.top > 0 {
		top = opts.top
	}

	stores := rt.Stores
	report, err := reporting.NewGenerator(stores.Trials, stores.WalkForward, stores.MonteCarlo).
		Generate(ctx, reporting.Request{
			SearchRunID:      opts.searchRun,
			Objective:        domain.Objective(objective),
			WalkForwardRunID: opts.walkForwardID,
			MonteCarloRunID:  opts.monteCarloID,
			TopN:             top,
		})
	if err != nil {
		return err
	}

	var trials []domain.TrialRecord
	if opts.searchRun != "" {
		stored, err := stores.Trials.GetByRunID(ctx, opts.searchRun)
		if err != nil {
			return err
		}
		trials = make([]domain.TrialRecord, len(stored))
		for i, rec := range stored {
			trials[i] = *rec
		}
	}

	written, err := reporting.WriteFiles(opts.outputDir, report, trials)
	if err != nil {
		return err
	}

	fmt.Printf("Validation report generated (outcome %s):\n", report.Outcome)
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
	rt.Logger.Debug("report written", zap.Int("files", len(written)), zap.String("outcome", string(report.Outcome)))
	return nil
}
