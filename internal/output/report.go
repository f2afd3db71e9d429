package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/seckillprobe/internal/metrics"
	"github.com/torosent/seckillprobe/internal/threshold"
	"github.com/torosent/seckillprobe/internal/verdict"
)

// Report is everything printed at the end of a run.
type Report struct {
	RunID        string                `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StartedAt    time.Time             `json:"started_at" yaml:"started_at"`
	Target       string                `json:"target" yaml:"target"`
	Method       string                `json:"method" yaml:"method"`
	Expected     int64                 `json:"total_requests" yaml:"total_requests"`
	Concurrency  int                   `json:"concurrency" yaml:"concurrency"`
	InitialStock int64                 `json:"initial_stock" yaml:"initial_stock"`
	Stats        metrics.Stats         `json:"stats" yaml:"stats"`
	Stock        verdict.StockVerdict  `json:"stock_check" yaml:"stock_check"`
	Totals       verdict.TotalsVerdict `json:"count_check" yaml:"count_check"`
	Thresholds   []threshold.Result    `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// NewReport derives the verdicts from stats and assembles a Report.
func NewReport(target, method string, expected int64, concurrency int, initialStock int64, stats metrics.Stats) Report {
	return Report{
		Target:       target,
		Method:       method,
		Expected:     expected,
		Concurrency:  concurrency,
		InitialStock: initialStock,
		Stats:        stats,
		Stock:        verdict.CheckStock(stats.Successes, initialStock),
		Totals:       verdict.CheckTotals(stats.Total, expected),
	}
}

// Throughput returns dispatched attempts per second and false when the
// elapsed time is not positive.
func (r Report) Throughput() (float64, bool) {
	if r.Stats.Duration <= 0 {
		return 0, false
	}
	return float64(r.Expected) / r.Stats.Duration.Seconds(), true
}

// ThresholdsPassed reports whether every evaluated threshold passed.
func (r Report) ThresholdsPassed() bool {
	return threshold.AllPassed(r.Thresholds)
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Seckill Probe Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Target:            %s %s\n", r.Method, r.Target)
	fmt.Fprintf(w, "Requests:          %d (concurrency %d)\n", r.Expected, r.Concurrency)
	fmt.Fprintf(w, "Elapsed:           %.2fs\n", stats.Duration.Seconds())
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Sold out/invalid:  %d\n", stats.SoldOutOrInvalid)

	fmt.Fprintln(w, "\nOutcome Breakdown:")
	if len(stats.Breakdown) == 0 {
		fmt.Fprintln(w, "  None")
	}
	for _, row := range stats.Breakdown {
		fmt.Fprintf(w, "  %-22s %d\n", row.Label+":", row.Count)
	}
	fmt.Fprintf(w, "  %-22s %d\n", "Sum:", metrics.BreakdownTotal(stats.Breakdown))
	if r.Totals.OK {
		fmt.Fprintf(w, "  Count check:         OK (%d of %d)\n", r.Totals.Processed, r.Totals.Expected)
	} else {
		fmt.Fprintf(w, "  Count check:         %s\n", r.Totals.Message)
	}

	fmt.Fprintln(w, "\nStock Check:")
	if r.Stock.Oversold() {
		fmt.Fprintln(w, "  !!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!")
		fmt.Fprintf(w, "  %s\n", r.Stock.Message)
		fmt.Fprintln(w, "  !!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!")
	} else {
		fmt.Fprintf(w, "  %s\n", r.Stock.Message)
	}

	if rps, ok := r.Throughput(); ok {
		fmt.Fprintf(w, "\nAverage throughput: %.2f req/s\n", rps)
	}

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nError Causes:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Errors[names[i]] != stats.Errors[names[j]] {
				return stats.Errors[names[i]] > stats.Errors[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, stats.Errors[name])
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
