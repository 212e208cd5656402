package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
	"github.com/pranav-jay26/Crossbow/pkg/metrics"
	"github.com/pranav-jay26/Crossbow/pkg/observability"
)

const envPrefix = "CROSSBOW"

// globalOptions holds the persistent flags that do not map to a config key.
type globalOptions struct {
	configFile string
	verbose    bool
	cpuProfile string
	memProfile string
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"chunk-size":      "conversion.chunk_size",
	"inference":       "conversion.inference_mode",
	"strict":          "conversion.strict_schema",
	"ambiguous-dates": "conversion.treat_ambiguous_numeric_as_date",
	"allow-widening":  "conversion.allow_column_widening",
	"dedupe-headers":  "conversion.dedupe_headers",
	"format":          "source.format",
	"delimiter":       "source.delimiter",
	"encoding":        "source.encoding",
	"max-concurrency": "performance.max_concurrency",
	"log-level":       "observability.log_level",
	"metrics-addr":    "observability.metrics_addr",
	"trace":           "observability.enable_tracing",
}

// loadConfig layers the defaults, the optional YAML file, CROSSBOW_*
// environment variables and the flags changed on cmd.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	base := config.NewConfig()
	if opts.configFile != "" {
		var err error
		if base, err = config.LoadFile(opts.configFile); err != nil {
			return nil, err
		}
	}

	// every key is known to viper once the base document is loaded, so
	// AutomaticEnv can override any of them
	doc, err := yaml.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if flags.Changed("no-header") {
		noHeader, _ := flags.GetBool("no-header")
		cfg.Source.HasHeader = !noHeader
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.EnableMetrics = true
	}
	if opts.verbose {
		cfg.Observability.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup installs the logger, the trace exporter and the metrics endpoint
// described by cfg. The returned function undoes it.
func setup(ctx context.Context, cfg *config.Config) (func(), error) {
	l, err := logger.New(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	})
	if err != nil {
		return nil, err
	}
	logger.Set(l)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		_ = logger.Sync()
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.Setup(cfg.Observability, os.Stderr, version)
		if err != nil {
			return nil, err
		}
		cleanups = append(cleanups, func() {
			if err := shutdown(context.Background()); err != nil {
				l.Warn("failed to flush traces", zap.Error(err))
			}
		})
	}

	if cfg.Observability.EnableMetrics {
		mctx, cancel := context.WithCancel(ctx)
		cleanups = append(cleanups, cancel)
		go func() {
			if err := metrics.Serve(mctx, cfg.Observability.MetricsAddr); err != nil {
				l.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		l.Info("serving metrics", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	return cleanup, nil
}

// prepare loads the configuration and installs the runtime around a command.
func prepare(cmd *cobra.Command, opts *globalOptions) (*config.Config, func(), error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, nil, err
	}
	cleanup, err := setup(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	stop, err := startProfiling(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return cfg, func() {
		stop()
		cleanup()
	}, nil
}
