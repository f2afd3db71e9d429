// Package config provides configuration loading and validation for seckillprobe.
//
// Values are layered: built-in defaults, then an optional JSON/YAML config
// file, then SECKILL_* environment variables, then command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultTargetURL    = "http://localhost:8080/seckill/buy/1"
	DefaultMethod       = "POST"
	DefaultTotal        = 1000
	DefaultConcurrency  = 50
	DefaultTimeout      = 5 * time.Second
	DefaultInitialStock = 100
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type Config struct {
	TargetURL    string            `mapstructure:"target"`
	Method       string            `mapstructure:"method"`
	Headers      map[string]string `mapstructure:"headers"`
	Body         string            `mapstructure:"body"`
	BuyersFile   string            `mapstructure:"buyers_file"`
	Concurrency  int               `mapstructure:"concurrency"`
	Total        int               `mapstructure:"total"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	InitialStock int               `mapstructure:"initial_stock"`
	Rate         int               `mapstructure:"rate"`
	Arrival      ArrivalModel      `mapstructure:"arrival_model"`
	Markers      MarkerConfig      `mapstructure:"markers"`
	Verbose      bool              `mapstructure:"verbose"`
	Output       OutputFormat      `mapstructure:"output"`
	HTMLOutput   string            `mapstructure:"html_output"`
	HistoryFile  string            `mapstructure:"history_file"`
	Dashboard    bool              `mapstructure:"dashboard"`
	Thresholds   []string          `mapstructure:"thresholds"`
	Strict       bool              `mapstructure:"strict"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
	ConfigFile   string            `mapstructure:"-"`
}

// MarkerConfig lists the body substrings that identify each purchase result.
type MarkerConfig struct {
	Success   []string `mapstructure:"success"`
	SoldOut   []string `mapstructure:"sold_out"`
	Invalid   []string `mapstructure:"invalid"`
	BodyField string   `mapstructure:"body_field"`
}

// TracingConfig controls OpenTelemetry export of per-attempt spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether spans should be produced at all.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
// Defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		TargetURL:    DefaultTargetURL,
		Method:       DefaultMethod,
		Headers:      map[string]string{},
		Concurrency:  DefaultConcurrency,
		Total:        DefaultTotal,
		Timeout:      DefaultTimeout,
		InitialStock: DefaultInitialStock,
		Arrival:      ArrivalModelUniform,
		Markers: MarkerConfig{
			Success: []string{"抢购成功"},
			SoldOut: []string{"已售罄"},
			Invalid: []string{"无效"},
		},
		Output:  OutputText,
		Tracing: TracingConfig{SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, fmt.Sprintf("target %q must be an absolute http(s) URL", target))
	}

	// Security warnings for high rate/concurrency
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.", c.Concurrency))
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Total < 1 {
		issues = append(issues, "total must be >= 1")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.InitialStock < 0 {
		issues = append(issues, "initial stock must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if strings.TrimSpace(c.Method) == "" {
		issues = append(issues, "method is required")
	}

	switch c.Arrival {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", c.Arrival))
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text', 'json' or 'yaml', got %q", c.Output))
	}
	if c.Dashboard && c.Output != "" && c.Output != OutputText {
		issues = append(issues, "dashboard requires text output")
	}

	if !hasMarker(c.Markers.Success) {
		issues = append(issues, "markers: at least one non-empty success marker is required")
	}
	if !hasMarker(c.Markers.SoldOut) && !hasMarker(c.Markers.Invalid) {
		issues = append(issues, "markers: at least one non-empty sold-out or invalid marker is required")
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func hasMarker(markers []string) bool {
	for _, m := range markers {
		if strings.TrimSpace(m) != "" {
			return true
		}
	}
	return false
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}
	return issues
}
