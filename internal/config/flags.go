package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seckillprobe",
		Short:         "Flood a flash-sale endpoint and check the result for overselling",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target
	flags.String("target", DefaultTargetURL, "Seckill endpoint URL")
	flags.String("method", DefaultMethod, "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload ({{id}} and buyer fields are substituted per attempt)")
	flags.String("buyers-file", "", "CSV or JSON file with one buyer per row, used for {{field}} placeholders")

	// Load control
	flags.IntP("total", "t", DefaultTotal, "Total number of purchase attempts")
	flags.IntP("concurrency", "c", DefaultConcurrency, "Number of concurrent workers")
	flags.String("timeout", DefaultTimeout.String(), "Per-request timeout (e.g. 5s, 500ms; bare numbers are seconds)")
	flags.IntP("rate", "r", 0, "Dispatch rate limit in attempts per second (0 means unlimited)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model when --rate is set (uniform or poisson)")

	// Verification
	flags.IntP("initial-stock", "s", DefaultInitialStock, "Stock the target started with, used for the oversell check")
	flags.StringSlice("success-marker", nil, "Body substring that marks a successful purchase (repeatable)")
	flags.StringSlice("sold-out-marker", nil, "Body substring that marks a sold-out answer (repeatable)")
	flags.StringSlice("invalid-marker", nil, "Body substring that marks an invalid request answer (repeatable)")
	flags.String("body-field", "", "JSON path whose value is matched against the markers when the body is JSON")
	flags.StringSlice("threshold", nil, "Assertion on the final stats (repeatable, e.g. 'success:count <= 100')")
	flags.Bool("strict", false, "Exit non-zero when an oversell or a tally mismatch is detected")

	// Output
	flags.BoolP("verbose", "v", false, "Print one line per finished attempt")
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.String("html-output", "", "Write an HTML report to the specified file path")
	flags.String("history-file", "", "Append a JSON line describing this run to the specified file")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP endpoint for per-attempt spans (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of attempts to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", true, "Inject W3C trace headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEnvironment overrides use the %s_ prefix, e.g. %s_TOTAL=500.\n", envPrefix, envPrefix)
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and the environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}
	if fs.Changed("header") {
		vals, err := fs.GetStringSlice("header")
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
	}
	if fs.Changed("buyers-file") {
		val, err := fs.GetString("buyers-file")
		if err != nil {
			return err
		}
		cfg.BuyersFile = strings.TrimSpace(val)
	}
	if fs.Changed("total") {
		val, err := fs.GetInt("total")
		if err != nil {
			return err
		}
		cfg.Total = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("timeout") {
		raw, err := fs.GetString("timeout")
		if err != nil {
			return err
		}
		val, err := parseTimeout(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("initial-stock") {
		val, err := fs.GetInt("initial-stock")
		if err != nil {
			return err
		}
		cfg.InitialStock = val
	}
	if fs.Changed("success-marker") {
		val, err := fs.GetStringSlice("success-marker")
		if err != nil {
			return err
		}
		cfg.Markers.Success = val
	}
	if fs.Changed("sold-out-marker") {
		val, err := fs.GetStringSlice("sold-out-marker")
		if err != nil {
			return err
		}
		cfg.Markers.SoldOut = val
	}
	if fs.Changed("invalid-marker") {
		val, err := fs.GetStringSlice("invalid-marker")
		if err != nil {
			return err
		}
		cfg.Markers.Invalid = val
	}
	if fs.Changed("body-field") {
		val, err := fs.GetString("body-field")
		if err != nil {
			return err
		}
		cfg.Markers.BodyField = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("strict") {
		val, err := fs.GetBool("strict")
		if err != nil {
			return err
		}
		cfg.Strict = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("history-file") {
		val, err := fs.GetString("history-file")
		if err != nil {
			return err
		}
		cfg.HistoryFile = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	return applyTracingFlagOverrides(&cfg.Tracing, fs)
}

func applyTracingFlagOverrides(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		t.Propagate = &val
	}
	return nil
}
