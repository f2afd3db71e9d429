package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/seckillprobe/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != config.DefaultTargetURL {
		t.Errorf("TargetURL = %q, want %q", cfg.TargetURL, config.DefaultTargetURL)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if cfg.Total != 1000 {
		t.Errorf("Total = %d, want 1000", cfg.Total)
	}
	if cfg.Concurrency != 50 {
		t.Errorf("Concurrency = %d, want 50", cfg.Concurrency)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", cfg.Timeout)
	}
	if cfg.InitialStock != 100 {
		t.Errorf("InitialStock = %d, want 100", cfg.InitialStock)
	}
	if cfg.Rate != 0 {
		t.Errorf("Rate = %d, want 0", cfg.Rate)
	}
	if cfg.Output != config.OutputText {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if len(cfg.Markers.Success) != 1 || cfg.Markers.Success[0] != "抢购成功" {
		t.Errorf("Markers.Success = %v, want [抢购成功]", cfg.Markers.Success)
	}
	if len(cfg.Headers) != 0 {
		t.Errorf("Headers len = %d, want 0", len(cfg.Headers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"target": "https://shop.example.com/seckill/buy/7",
		"method": "PUT",
		"headers": {"Content-Type": "application/json"},
		"body": "{\"user\":42}",
		"concurrency": 10,
		"rate": 100,
		"total": 500,
		"timeout": "2s",
		"initial_stock": 20,
		"markers": {"success": ["OK"], "sold_out": ["GONE"], "body_field": "msg"},
		"thresholds": ["success:count <= 20"],
		"strict": true
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--method", "post", "--header", "Authorization=Bearer token"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://shop.example.com/seckill/buy/7" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q, want application/json", cfg.Headers["Content-Type"])
	}
	if cfg.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Headers[Authorization] = %q, want Bearer token", cfg.Headers["Authorization"])
	}
	if cfg.Body != `{"user":42}` {
		t.Errorf("Body = %q", cfg.Body)
	}
	if cfg.Concurrency != 10 || cfg.Rate != 100 || cfg.Total != 500 {
		t.Errorf("Concurrency/Rate/Total = %d/%d/%d, want 10/100/500", cfg.Concurrency, cfg.Rate, cfg.Total)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %s, want 2s", cfg.Timeout)
	}
	if cfg.InitialStock != 20 {
		t.Errorf("InitialStock = %d, want 20", cfg.InitialStock)
	}
	if len(cfg.Markers.Success) != 1 || cfg.Markers.Success[0] != "OK" {
		t.Errorf("Markers.Success = %v, want [OK]", cfg.Markers.Success)
	}
	if len(cfg.Markers.SoldOut) != 1 || cfg.Markers.SoldOut[0] != "GONE" {
		t.Errorf("Markers.SoldOut = %v, want [GONE]", cfg.Markers.SoldOut)
	}
	if len(cfg.Markers.Invalid) != 1 || cfg.Markers.Invalid[0] != "无效" {
		t.Errorf("Markers.Invalid = %v, want default", cfg.Markers.Invalid)
	}
	if cfg.Markers.BodyField != "msg" {
		t.Errorf("Markers.BodyField = %q, want msg", cfg.Markers.BodyField)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v, want one entry", cfg.Thresholds)
	}
	if !cfg.Strict {
		t.Errorf("Strict = false, want true")
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `target: http://127.0.0.1:9000/seckill/buy/1
total: 200
concurrency: 20
timeout: 1.5
output: yaml
history_file: runs.jsonl
buyers_file: buyers.csv
tracing:
  endpoint: localhost:4317
  protocol: http
  insecure: true
  sample_rate: 0.25
  propagate: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--total", "300"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Total != 300 {
		t.Errorf("Total = %d, want 300 (flag wins)", cfg.Total)
	}
	if cfg.Concurrency != 20 {
		t.Errorf("Concurrency = %d, want 20", cfg.Concurrency)
	}
	if cfg.Timeout != 1500*time.Millisecond {
		t.Errorf("Timeout = %s, want 1.5s", cfg.Timeout)
	}
	if cfg.Output != config.OutputYAML {
		t.Errorf("Output = %q, want yaml", cfg.Output)
	}
	if cfg.HistoryFile != "runs.jsonl" {
		t.Errorf("HistoryFile = %q, want runs.jsonl", cfg.HistoryFile)
	}
	if cfg.BuyersFile != "buyers.csv" {
		t.Errorf("BuyersFile = %q, want buyers.csv", cfg.BuyersFile)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.Protocol != "http" || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing.SampleRate = %v, want 0.25", cfg.Tracing.SampleRate)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Errorf("ShouldPropagate() = true, want false")
	}
}

func TestEnvironmentOverridesFileAndFlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"total": 10, "concurrency": 2, "initial_stock": 5}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("SECKILL_TOTAL", "40")
	t.Setenv("SECKILL_CONCURRENCY", "8")
	t.Setenv("SECKILL_SUCCESS_MARKERS", "bought, won")
	t.Setenv("SECKILL_TIMEOUT", "250ms")

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--concurrency", "4"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Total != 40 {
		t.Errorf("Total = %d, want 40 from environment", cfg.Total)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4 from flag", cfg.Concurrency)
	}
	if cfg.InitialStock != 5 {
		t.Errorf("InitialStock = %d, want 5 from file", cfg.InitialStock)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %s, want 250ms", cfg.Timeout)
	}
	if strings.Join(cfg.Markers.Success, "|") != "bought|won" {
		t.Errorf("Markers.Success = %v, want [bought won]", cfg.Markers.Success)
	}
}

func TestLoadHelpRequested(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadRejectsPositionalArguments(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"extra"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty target", func(c *config.Config) { c.TargetURL = "" }, "target is required"},
		{"relative target", func(c *config.Config) { c.TargetURL = "/seckill/buy/1" }, "absolute http(s) URL"},
		{"ftp target", func(c *config.Config) { c.TargetURL = "ftp://example.com/x" }, "absolute http(s) URL"},
		{"zero concurrency", func(c *config.Config) { c.Concurrency = 0 }, "concurrency must be >= 1"},
		{"zero total", func(c *config.Config) { c.Total = 0 }, "total must be >= 1"},
		{"zero timeout", func(c *config.Config) { c.Timeout = 0 }, "timeout must be > 0"},
		{"negative stock", func(c *config.Config) { c.InitialStock = -1 }, "initial stock must be >= 0"},
		{"negative rate", func(c *config.Config) { c.Rate = -5 }, "rate must be >= 0"},
		{"bad arrival", func(c *config.Config) { c.Arrival = "burst" }, "arrival model"},
		{"bad output", func(c *config.Config) { c.Output = "xml" }, "output must be"},
		{"dashboard with json", func(c *config.Config) { c.Dashboard = true; c.Output = config.OutputJSON }, "dashboard requires text output"},
		{"no success marker", func(c *config.Config) { c.Markers.Success = []string{" "} }, "success marker"},
		{"no negative marker", func(c *config.Config) { c.Markers.SoldOut = nil; c.Markers.Invalid = nil }, "sold-out or invalid marker"},
		{"bad tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "udp" }, "tracing: protocol"},
		{"bad sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.want)
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestTracingEnabledFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	var tc config.TracingConfig
	if tc.Enabled() {
		t.Fatal("Enabled() = true with no endpoint")
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	if !tc.Enabled() {
		t.Fatal("Enabled() = false with OTEL_EXPORTER_OTLP_ENDPOINT set")
	}
	if !tc.ShouldPropagate() {
		t.Fatal("ShouldPropagate() should default to Enabled()")
	}
}
