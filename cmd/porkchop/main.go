// Command porkchop computes porkchop plots for transfers between the major
// planets, either as a long-running HTTP service or one grid at a time.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/latency-space/porkchop/internal/config"
	"github.com/latency-space/porkchop/internal/ephemeris"
	"github.com/latency-space/porkchop/internal/logging"
	"github.com/latency-space/porkchop/internal/porkchop"
)

var (
	configPath string
	logLevel   string
	sourceName string

	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "porkchop",
	Short: "Interplanetary transfer porkchop plots",
	Long: `
Compute porkchop plots (C3 and delta-v over departure and arrival dates)
for Lambert transfers between the eight major planets. Ephemerides come
from JPL Horizons or, offline, from mean orbital elements.
`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./porkchop.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", "", "ephemeris source: horizons or elements")

	rootCmd.AddCommand(serveCmd, gridCmd, bodiesCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if logLevel != "" {
		viper.Set("log.level", logLevel)
	}
	if sourceName != "" {
		viper.Set("ephemeris.source", sourceName)
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	opts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		opts.File = f
		logFile = f
	}
	logger = logging.Setup(cmd.ErrOrStderr(), opts)
	slog.SetDefault(logger)
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// newSource selects the configured ephemeris source.
func newSource(c *config.Config) ephemeris.Source {
	if c.Ephemeris.Source == config.SourceElements {
		return ephemeris.NewElementsSource()
	}
	return ephemeris.NewHorizonsSource(c.Ephemeris.BaseURL, c.Ephemeris.Timeout)
}

// newBuilder wires source, cache, provider and builder. A nil reg skips
// metrics.
func newBuilder(c *config.Config, reg prometheus.Registerer, l *slog.Logger) *porkchop.Builder {
	cache := ephemeris.NewCache(c.Ephemeris.CacheTTL, c.Ephemeris.CacheSize, nil)

	providerOpts := []ephemeris.Option{ephemeris.WithLogger(l)}
	builderOpts := []porkchop.Option{
		porkchop.WithLogger(l),
		porkchop.WithDefaultResolution(c.Porkchop.DefaultResolution),
	}
	if reg != nil {
		providerOpts = append(providerOpts, ephemeris.WithMetrics(ephemeris.NewMetrics(reg)))
		builderOpts = append(builderOpts, porkchop.WithMetrics(porkchop.NewMetrics(reg)))
	}

	provider := ephemeris.NewProvider(newSource(c), cache, providerOpts...)
	return porkchop.NewBuilder(provider, builderOpts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
