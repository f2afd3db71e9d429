package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/seckillprobe/internal/metrics"
	"github.com/torosent/seckillprobe/internal/outcome"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterBasic(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 10, 100*time.Millisecond, &buf)
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}

	// Stopping a reporter that never started must not block or print.
	reporter.Stop()
	if buf.String() != "" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestProgressReporterFormatting(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.RecordAttempt(5*time.Millisecond, outcome.Outcome{Category: outcome.Success}, nil)
	collector.RecordAttempt(5*time.Millisecond, outcome.Outcome{Category: outcome.SoldOutOrInvalid}, nil)
	collector.RecordAttempt(5*time.Millisecond, outcome.Outcome{Category: outcome.Timeout}, nil)

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 10, 20*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()

	time.Sleep(60 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "\rDone: 3/10 | Success: 1 | Sold out: 1 | Errors: 1") {
		t.Errorf("unexpected progress output %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("final progress line should end with a newline: %q", out)
	}
}
