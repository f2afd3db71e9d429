package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/seckillprobe/internal/outcome"
)

// Collector records per-attempt metrics in a thread-safe manner.
type Collector struct {
	tally *Tally

	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	samples      int64
	errorsByType map[string]int64
	start        time.Time
}

// Stats represents aggregated metrics.
type Stats struct {
	Total            int64           `json:"total" yaml:"total"`
	Successes        int64           `json:"successes" yaml:"successes"`
	SoldOutOrInvalid int64           `json:"sold_out_or_invalid" yaml:"sold_out_or_invalid"`
	UnknownResponses int64           `json:"unknown_responses" yaml:"unknown_responses"`
	HTTPErrors       int64           `json:"http_errors" yaml:"http_errors"`
	Timeouts         int64           `json:"timeouts" yaml:"timeouts"`
	RequestErrors    int64           `json:"request_exceptions" yaml:"request_exceptions"`
	OtherErrors      int64           `json:"other_exceptions" yaml:"other_exceptions"`
	Breakdown        []CategoryCount `json:"breakdown" yaml:"breakdown"`
	MinLatency       time.Duration   `json:"-" yaml:"-"`
	MaxLatency       time.Duration   `json:"-" yaml:"-"`
	MeanLatency      time.Duration   `json:"-" yaml:"-"`
	P50Latency       time.Duration   `json:"-" yaml:"-"`
	P90Latency       time.Duration   `json:"-" yaml:"-"`
	P95Latency       time.Duration   `json:"-" yaml:"-"`
	P99Latency       time.Duration   `json:"-" yaml:"-"`
	Duration         time.Duration   `json:"-" yaml:"-"`
	RequestsPerSec   float64         `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64          `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64          `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64          `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64          `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64          `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64          `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64          `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64          `json:"duration_ms" yaml:"duration_ms"`
	Errors        map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Failures counts every outcome that is neither a purchase nor a clean sold-out answer.
func (s Stats) Failures() int64 {
	return s.UnknownResponses + s.HTTPErrors + s.Timeouts + s.RequestErrors + s.OtherErrors
}

// Count returns the stored count for a category.
func (s Stats) Count(c outcome.Category) int64 {
	switch c {
	case outcome.Success:
		return s.Successes
	case outcome.SoldOutOrInvalid:
		return s.SoldOutOrInvalid
	case outcome.UnknownResponse:
		return s.UnknownResponses
	case outcome.HTTPError:
		return s.HTTPErrors
	case outcome.Timeout:
		return s.Timeouts
	case outcome.RequestException:
		return s.RequestErrors
	case outcome.OtherException:
		return s.OtherErrors
	default:
		return 0
	}
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		tally:        NewTally(),
		hist:         h,
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of the measured run.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Tally exposes the lock-free outcome counters.
func (c *Collector) Tally() *Tally {
	return c.tally
}

// RecordAttempt records one classified attempt. err is the cause for the
// exception categories and is used only for the error breakdown.
func (c *Collector) RecordAttempt(latency time.Duration, o outcome.Outcome, err error) {
	c.tally.Record(o)

	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	c.samples++

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if err != nil {
		c.errorsByType[FriendlyErrorName(fmt.Sprintf("%T", rootCause(err)))]++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	stats := Stats{
		Successes:        c.tally.Count(outcome.Success),
		SoldOutOrInvalid: c.tally.Count(outcome.SoldOutOrInvalid),
		UnknownResponses: c.tally.Count(outcome.UnknownResponse),
		HTTPErrors:       c.tally.Count(outcome.HTTPError),
		Timeouts:         c.tally.Count(outcome.Timeout),
		RequestErrors:    c.tally.Count(outcome.RequestException),
		OtherErrors:      c.tally.Count(outcome.OtherException),
		Breakdown:        c.tally.Snapshot(),
	}
	stats.Total = stats.Successes + stats.SoldOutOrInvalid + stats.Failures()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats.MinLatency = c.minLatency
	stats.MaxLatency = c.maxLatency
	if c.samples > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.samples)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P95LatencyMs = toMillis(stats.P95Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 && stats.Total > 0 {
		stats.RequestsPerSec = float64(stats.Total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int64, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = v
		}
	}

	return stats
}

// GetErrorBreakdown returns a map of error causes to their counts.
func (c *Collector) GetErrorBreakdown() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int64, len(c.errorsByType))
	for k, v := range c.errorsByType {
		result[k] = v
	}
	return result
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
