package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/seckillprobe/internal/metrics"
	"github.com/torosent/seckillprobe/internal/outcome"
	"github.com/torosent/seckillprobe/internal/threshold"
)

func sampleStats(success, soldOut int64, elapsed time.Duration) metrics.Stats {
	c := metrics.NewCollector()
	for i := int64(0); i < success; i++ {
		c.RecordAttempt(time.Millisecond, outcome.Outcome{Category: outcome.Success}, nil)
	}
	for i := int64(0); i < soldOut; i++ {
		c.RecordAttempt(time.Millisecond, outcome.Outcome{Category: outcome.SoldOutOrInvalid}, nil)
	}
	return c.Stats(elapsed)
}

func TestPrintReportExactStock(t *testing.T) {
	r := NewReport("http://localhost:8080/seckill/buy/1", "POST", 1000, 50, 100, sampleStats(100, 900, 2*time.Second))

	var buf bytes.Buffer
	PrintReport(&buf, r)
	out := buf.String()

	for _, want := range []string{
		"Elapsed:           2.00s",
		"Successful:        100",
		"Sold out/invalid:  900",
		"Sold Out / Invalid:",
		"Sum:                   1000",
		"Count check:         OK (1000 of 1000)",
		"PASS",
		"Average throughput: 500.00 req/s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "OVERSELL") {
		t.Errorf("exact stock run should not flag oversell\n%s", out)
	}
}

func TestPrintReportFlagsOversellAndMismatch(t *testing.T) {
	r := NewReport("http://x/seckill/buy/1", "POST", 1000, 50, 100, sampleStats(999, 0, time.Second))

	var buf bytes.Buffer
	PrintReport(&buf, r)
	out := buf.String()

	if !strings.Contains(out, "OVERSELL DETECTED") {
		t.Errorf("expected oversell banner\n%s", out)
	}
	if !strings.Contains(out, "!!!!") {
		t.Errorf("expected oversell to be flagged prominently\n%s", out)
	}
	if !strings.Contains(out, "WARNING: processed 999 attempts but 1000 were dispatched") {
		t.Errorf("expected count mismatch warning\n%s", out)
	}
}

func TestPrintReportOmitsThroughputWithoutElapsed(t *testing.T) {
	r := NewReport("http://x", "POST", 10, 1, 100, sampleStats(10, 0, 0))

	var buf bytes.Buffer
	PrintReport(&buf, r)
	if strings.Contains(buf.String(), "Average throughput") {
		t.Errorf("throughput must not be printed when elapsed is zero\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "NOTE") {
		t.Errorf("expected undersold note\n%s", buf.String())
	}
}

func TestPrintReportIncludesErrorsAndThresholds(t *testing.T) {
	stats := sampleStats(1, 1, time.Second)
	stats.Errors = map[string]int64{"Connection refused": 3, "DNS lookup failed": 1}
	r := NewReport("http://x", "POST", 2, 1, 1, stats)
	r.Thresholds = []threshold.Result{{Raw: "success:count <= 1", Pass: true, Message: "✓ success:count <= 1: 1.00 <= 1.00"}}

	var buf bytes.Buffer
	PrintReport(&buf, r)
	out := buf.String()
	if !strings.Contains(out, "Error Causes:") || !strings.Contains(out, "Connection refused: 3") {
		t.Errorf("expected error causes\n%s", out)
	}
	if strings.Index(out, "Connection refused") > strings.Index(out, "DNS lookup failed") {
		t.Errorf("error causes should be sorted by count\n%s", out)
	}
	if !strings.Contains(out, "✓ success:count <= 1") {
		t.Errorf("expected threshold line\n%s", out)
	}
	if !r.ThresholdsPassed() {
		t.Error("ThresholdsPassed() = false")
	}
}

func TestPrintJSONReport(t *testing.T) {
	r := NewReport("http://x", "POST", 1000, 50, 100, sampleStats(1000, 0, time.Second))
	r.RunID = "01HZX"

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, r); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["run_id"] != "01HZX" {
		t.Errorf("run_id = %v", decoded["run_id"])
	}
	stock, ok := decoded["stock_check"].(map[string]interface{})
	if !ok || stock["status"] != "oversold" {
		t.Errorf("stock_check = %v, want status oversold", decoded["stock_check"])
	}
	stats, ok := decoded["stats"].(map[string]interface{})
	if !ok || stats["successes"] != float64(1000) {
		t.Errorf("stats.successes = %v", decoded["stats"])
	}
}

func TestPrintYAMLReport(t *testing.T) {
	r := NewReport("http://x", "POST", 10, 2, 10, sampleStats(10, 0, time.Second))

	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, r); err != nil {
		t.Fatalf("PrintYAMLReport failed: %v", err)
	}

	var decoded struct {
		Target     string `yaml:"target"`
		StockCheck struct {
			Status string `yaml:"status"`
		} `yaml:"stock_check"`
		CountCheck struct {
			OK bool `yaml:"ok"`
		} `yaml:"count_check"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if decoded.Target != "http://x" {
		t.Errorf("target = %q", decoded.Target)
	}
	if decoded.StockCheck.Status != "exact" {
		t.Errorf("stock_check.status = %q, want exact", decoded.StockCheck.Status)
	}
	if !decoded.CountCheck.OK {
		t.Error("count_check.ok = false")
	}
}
