package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

const envPrefix = "SECKILL"

// envKeys lists the settings that may be overridden through SECKILL_* variables.
var envKeys = []string{
	"target",
	"method",
	"body",
	"buyers_file",
	"total",
	"concurrency",
	"timeout",
	"rate",
	"arrival_model",
	"initial_stock",
	"success_markers",
	"sold_out_markers",
	"invalid_markers",
	"body_field",
	"thresholds",
	"strict",
	"verbose",
	"output",
	"html_output",
	"history_file",
	"dashboard",
}

var listKeys = map[string]bool{
	"success_markers":  true,
	"sold_out_markers": true,
	"invalid_markers":  true,
	"thresholds":       true,
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, the environment and an optional
// configuration file to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(extra, " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

// applyEnvOverrides reads SECKILL_* variables through viper's env binding and
// feeds them through the same parsing as config file settings.
func applyEnvOverrides(cfg *Config) error {
	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	settings := map[string]interface{}{}
	for _, key := range envKeys {
		if err := env.BindEnv(key); err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		if !env.IsSet(key) {
			continue
		}
		raw := env.GetString(key)
		if listKeys[key] {
			settings[key] = splitList(raw)
			continue
		}
		settings[key] = raw
	}
	if err := applyConfigSettings(cfg, settings); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyConfigSettings applies one layer of settings (config file or
// environment) on top of cfg.
func applyConfigSettings(cfg *Config, raw map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	s := settings(raw)

	hdrs, err := s.headers("headers")
	if err != nil {
		return err
	}
	if len(hdrs) > 0 && cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for k, v := range hdrs {
		cfg.Headers[http.CanonicalHeaderKey(k)] = v
	}

	method := cfg.Method
	var arrival, output string
	steps := []error{
		s.setString(&cfg.TargetURL, "target"),
		s.setString(&method, "method"),
		s.setInt(&cfg.Total, "total"),
		s.setInt(&cfg.Concurrency, "concurrency"),
		s.setDuration(&cfg.Timeout, "timeout"),
		s.setInt(&cfg.Rate, "rate"),
		s.setString(&arrival, "arrival_model", "arrivalmodel", "arrival-model"),
		s.setInt(&cfg.InitialStock, "initial_stock", "initialstock", "initial-stock"),
		s.setList(&cfg.Thresholds, "thresholds"),
		s.setBool(&cfg.Strict, "strict"),
		s.setBool(&cfg.Verbose, "verbose"),
		s.setString(&output, "output"),
		s.setString(&cfg.HTMLOutput, "html_output", "htmloutput", "html-output"),
		s.setString(&cfg.HistoryFile, "history_file", "historyfile", "history-file"),
		s.setString(&cfg.BuyersFile, "buyers_file", "buyersfile", "buyers-file"),
		s.setBool(&cfg.Dashboard, "dashboard"),
	}
	if err := errors.Join(steps...); err != nil {
		return err
	}
	if method != "" {
		cfg.Method = method
	}
	if arrival != "" {
		cfg.Arrival = ArrivalModel(strings.ToLower(arrival))
	}
	if output != "" {
		cfg.Output = OutputFormat(strings.ToLower(output))
	}

	// Body is kept verbatim; whitespace may be significant.
	if raw, ok := s.lookup("body"); ok {
		body, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		cfg.Body = body
	}

	if err := applyMarkerSettings(&cfg.Markers, s); err != nil {
		return err
	}

	if tr, ok, err := s.section("tracing"); err != nil {
		return err
	} else if ok {
		if err := applyTracingSettings(&cfg.Tracing, tr); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

// applyMarkerSettings reads both the flat *_markers keys and a nested
// markers section; the flat keys win.
func applyMarkerSettings(m *MarkerConfig, s settings) error {
	if sec, ok, err := s.section("markers"); err != nil {
		return err
	} else if ok {
		if err := errors.Join(
			sec.setList(&m.Success, "success"),
			sec.setList(&m.SoldOut, "sold_out", "soldout", "sold-out"),
			sec.setList(&m.Invalid, "invalid"),
			sec.setString(&m.BodyField, "body_field", "bodyfield", "body-field"),
		); err != nil {
			return fmt.Errorf("markers: %w", err)
		}
	}
	return errors.Join(
		s.setList(&m.Success, "success_markers"),
		s.setList(&m.SoldOut, "sold_out_markers"),
		s.setList(&m.Invalid, "invalid_markers"),
		s.setString(&m.BodyField, "body_field", "bodyfield", "body-field"),
	)
}

func applyTracingSettings(t *TracingConfig, s settings) error {
	var protocol string
	if err := errors.Join(
		s.setString(&t.Endpoint, "endpoint"),
		s.setString(&protocol, "protocol"),
		s.setBool(&t.Insecure, "insecure"),
		s.setString(&t.ServiceName, "service_name", "servicename", "service-name"),
		s.setFloat(&t.SampleRate, "sample_rate", "samplerate", "sample-rate"),
	); err != nil {
		return err
	}
	if protocol != "" {
		t.Protocol = strings.ToLower(protocol)
	}
	if _, ok := s.lookup("propagate"); ok {
		var propagate bool
		if err := s.setBool(&propagate, "propagate"); err != nil {
			return err
		}
		t.Propagate = &propagate
	}
	return nil
}
