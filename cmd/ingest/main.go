// Command ingest imports daily bars from CSV files into the Parquet bar store.
//
// Usage:
//
//	ingest --symbol SPY spy.csv [more.csv ...]
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
	"strategy-validation-lab/internal/bars"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	symbol := flag.String("symbol", "", "Symbol the files belong to (required)")
	flag.Parse()

	if *symbol == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: --symbol and at least one CSV file are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath, *symbol, flag.Args())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(app.ExitCode(err))
}

func run(ctx context.Context, configPath, symbol string, files []string) error {
	rt, err := app.Start(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	total := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := importFile(ctx, rt, symbol, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rt.Logger.Info("imported bars", zap.String("file", path), zap.String("symbol", symbol), zap.Int("bars", n))
		total += n
	}

	fmt.Printf("Imported %d bars for %s into %s\n", total, symbol, rt.Config.Storage.BarsDir)
	return nil
}

func importFile(ctx context.Context, rt *app.Runtime, symbol, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	parsed, err := bars.ReadCSV(f)
	if err != nil {
		return 0, err
	}
	if err := rt.Stores.Bars.WriteBars(ctx, symbol, parsed); err != nil {
		return 0, err
	}
	return len(parsed), nil
}
