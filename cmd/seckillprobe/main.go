package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/torosent/seckillprobe/internal/config"
	"github.com/torosent/seckillprobe/internal/dashboard"
	"github.com/torosent/seckillprobe/internal/history"
	"github.com/torosent/seckillprobe/internal/httpclient"
	"github.com/torosent/seckillprobe/internal/metrics"
	"github.com/torosent/seckillprobe/internal/output"
	"github.com/torosent/seckillprobe/internal/runner"
	"github.com/torosent/seckillprobe/internal/threshold"
	"github.com/torosent/seckillprobe/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	runID := history.NewRunID()
	ctx := context.Background()
	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.RunInfo{
		ID:           runID,
		Target:       cfg.TargetURL,
		Method:       cfg.Method,
		Total:        cfg.Total,
		Concurrency:  cfg.Concurrency,
		InitialStock: cfg.InitialStock,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			fmt.Fprintf(stderr, "tracing shutdown: %v\n", err)
		}
	}()

	client := httpclient.NewClientWithPool(cfg.Timeout, cfg.Concurrency)
	attempter, err := newPurchaseAttempter(cfg, client, tp)
	if err != nil {
		return err
	}

	var wrapped runner.Attempter = attempter
	if cfg.Verbose {
		wrapped = runner.WithProgress(wrapped, &stderrProgressLogger{w: stderr})
	}

	collector := metrics.NewCollector()
	r, err := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		TotalRequests: cfg.Total,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival),
		Attempter:     wrapped,
		Recorder:      collector,
	})
	if err != nil {
		return err
	}

	textOutput := cfg.Output == "" || cfg.Output == config.OutputText

	if textOutput && !cfg.Dashboard {
		fmt.Fprintf(stdout, "Starting seckill probe: %d attempts, %d workers -> %s %s\n",
			cfg.Total, cfg.Concurrency, strings.ToUpper(cfg.Method), cfg.TargetURL)
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboardRunConfig(cfg), func() {
			go func() {
				dash.Stop()
				fmt.Fprintln(stderr, "Interrupted")
				os.Exit(130)
			}()
		})
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if textOutput && !cfg.Dashboard && !cfg.Verbose {
		progress = output.NewProgressReporter(collector, cfg.Total, progressInterval, stdout)
		progress.Start()
	}

	startedAt := time.Now()
	collector.Start()
	result := r.Run(ctx)

	if progress != nil {
		progress.Stop()
	}
	if dash != nil {
		dash.Stop()
	}

	stats := collector.Stats(result.Duration)
	report := output.NewReport(cfg.TargetURL, attempter.builder.Method(), int64(cfg.Total), cfg.Concurrency, int64(cfg.InitialStock), stats)
	report.RunID = runID
	report.StartedAt = startedAt
	if len(thresholds) > 0 {
		report.Thresholds = threshold.NewEvaluator(thresholds).Evaluate(stats)
	}

	switch cfg.Output {
	case config.OutputJSON:
		err = output.PrintJSONReport(stdout, report)
	case config.OutputYAML:
		err = output.PrintYAMLReport(stdout, report)
	default:
		output.PrintReport(stdout, report)
	}
	if err != nil {
		return err
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, report); err != nil {
			return err
		}
		if textOutput {
			fmt.Fprintf(stdout, "HTML report written to %s\n", cfg.HTMLOutput)
		}
	}

	if cfg.HistoryFile != "" {
		hctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := history.Append(hctx, cfg.HistoryFile, history.FromReport(report))
		cancel()
		if err != nil {
			return err
		}
	}

	return exitError(cfg, report)
}

// exitError turns the verdicts into the process exit status. Oversell and
// tally mismatches only fail the run in strict mode.
func exitError(cfg *config.Config, report output.Report) error {
	if !report.ThresholdsPassed() {
		failed := 0
		for _, res := range report.Thresholds {
			if !res.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(report.Thresholds))
	}
	if !cfg.Strict {
		return nil
	}
	if report.Stock.Oversold() {
		return fmt.Errorf("oversell detected: %d successes for a stock of %d", report.Stock.Successes, report.Stock.InitialStock)
	}
	if !report.Totals.OK {
		return fmt.Errorf("tally mismatch: %d of %d attempts accounted for", report.Totals.Processed, report.Totals.Expected)
	}
	return nil
}

func writeHTMLReport(path string, report output.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, report); err != nil {
		f.Close()
		return fmt.Errorf("html report: %w", err)
	}
	return f.Close()
}

func dashboardRunConfig(cfg *config.Config) dashboard.RunConfig {
	return dashboard.RunConfig{
		TargetURL:    cfg.TargetURL,
		Method:       cfg.Method,
		Concurrency:  cfg.Concurrency,
		Total:        cfg.Total,
		InitialStock: cfg.InitialStock,
		Rate:         cfg.Rate,
		Timeout:      cfg.Timeout,
		ConfigFile:   cfg.ConfigFile,
	}
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}
