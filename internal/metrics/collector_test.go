package metrics_test

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/torosent/seckillprobe/internal/metrics"
	"github.com/torosent/seckillprobe/internal/outcome"
)

var (
	success = outcome.Outcome{Category: outcome.Success}
	soldOut = outcome.Outcome{Category: outcome.SoldOutOrInvalid}
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordAttempt(10*time.Millisecond, success, nil)
	c.RecordAttempt(20*time.Millisecond, success, nil)
	c.RecordAttempt(30*time.Millisecond, soldOut, nil)
	c.RecordAttempt(40*time.Millisecond, soldOut, nil)
	c.RecordAttempt(50*time.Millisecond, soldOut, nil)

	stats := c.Stats(0)

	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
	if stats.Successes != 2 {
		t.Errorf("expected successes 2, got %d", stats.Successes)
	}
	if stats.SoldOutOrInvalid != 3 {
		t.Errorf("expected sold out 3, got %d", stats.SoldOutOrInvalid)
	}
	if stats.Failures() != 0 {
		t.Errorf("expected failures 0, got %d", stats.Failures())
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
	if stats.RequestsPerSec != 0 {
		t.Errorf("expected no RPS without elapsed time, got %f", stats.RequestsPerSec)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	for i := 1; i <= 100; i++ {
		c.RecordAttempt(time.Duration(i)*time.Millisecond, success, nil)
	}

	stats := c.Stats(0)

	if stats.P50Latency < 49*time.Millisecond || stats.P50Latency > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", stats.P50Latency)
	}
	if stats.P90Latency < 89*time.Millisecond || stats.P90Latency > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", stats.P90Latency)
	}
	if stats.P99Latency < 98*time.Millisecond || stats.P99Latency > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", stats.P99Latency)
	}
}

func TestRequestsPerSecond(t *testing.T) {
	c := metrics.NewCollector()
	for i := 0; i < 50; i++ {
		c.RecordAttempt(time.Millisecond, soldOut, nil)
	}
	stats := c.Stats(2 * time.Second)
	if stats.RequestsPerSec != 25 {
		t.Fatalf("expected 25 rps, got %f", stats.RequestsPerSec)
	}
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordAttempt(15*time.Millisecond, success, nil)
	c.RecordAttempt(25*time.Millisecond, outcome.Outcome{Category: outcome.HTTPError, StatusCode: 503}, nil)

	data, err := json.Marshal(c.Stats(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	requiredFields := []string{"total", "successes", "sold_out_or_invalid", "http_errors", "timeouts", "breakdown", "p50_latency_ms", "p99_latency_ms", "duration_ms", "requests_per_sec"}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecordingLosesNoUpdates(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	workers := 50
	recordsPerWorker := 200

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < recordsPerWorker; j++ {
				switch j % 4 {
				case 0:
					c.RecordAttempt(time.Millisecond, success, nil)
				case 1:
					c.RecordAttempt(time.Millisecond, soldOut, nil)
				case 2:
					c.RecordAttempt(time.Millisecond, outcome.Outcome{Category: outcome.HTTPError, StatusCode: 500 + i%3}, nil)
				default:
					c.RecordAttempt(time.Millisecond, outcome.Outcome{Category: outcome.Timeout}, nil)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats(time.Second)
	expected := int64(workers * recordsPerWorker)
	if stats.Total != expected {
		t.Fatalf("expected total %d, got %d", expected, stats.Total)
	}
	if got := metrics.BreakdownTotal(stats.Breakdown); got != expected {
		t.Fatalf("breakdown sums to %d, want %d", got, expected)
	}
	quarter := expected / 4
	if stats.Successes != quarter || stats.SoldOutOrInvalid != quarter || stats.HTTPErrors != quarter || stats.Timeouts != quarter {
		t.Fatalf("unexpected split: %+v", stats)
	}
	codes := c.Tally().HTTPErrors()
	if len(codes) != 3 {
		t.Fatalf("expected three distinct status codes, got %v", codes)
	}
}

func TestErrorBreakdownUsesRootCause(t *testing.T) {
	c := metrics.NewCollector()
	refused := &url.Error{Op: "Post", URL: "http://127.0.0.1:1", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	c.RecordAttempt(time.Millisecond, outcome.Outcome{Category: outcome.RequestException}, refused)
	c.RecordAttempt(time.Millisecond, outcome.Outcome{Category: outcome.RequestException}, refused)

	breakdown := c.GetErrorBreakdown()
	if breakdown["Network operation error"] != 2 {
		t.Fatalf("expected network errors to be grouped, got %v", breakdown)
	}
}

func TestTallySnapshotOmitsEmptyCategories(t *testing.T) {
	tally := metrics.NewTally()
	tally.Record(success)
	tally.Record(outcome.Outcome{Category: outcome.HTTPError, StatusCode: 502})
	tally.Record(outcome.Outcome{Category: outcome.HTTPError, StatusCode: 502})
	tally.Record(outcome.Outcome{Category: outcome.Category(99)})

	rows := tally.Snapshot()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %v", rows)
	}
	if rows[0].Label != "HTTP Error 502" || rows[0].Count != 2 {
		t.Fatalf("expected HTTP Error 502 first, got %+v", rows[0])
	}
	if tally.Count(outcome.OtherException) != 1 {
		t.Fatalf("invalid category should count as other exception")
	}
	if tally.Total() != 4 {
		t.Fatalf("expected total 4, got %d", tally.Total())
	}
}
