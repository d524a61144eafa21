package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/config"
)

var (
	logLevel   string
	configPath string
	logger     = slog.Default()

	// cfg is the effective configuration: defaults, then the --config file,
	// then explicitly set flags
	cfg config.Config

	// flagCfg receives flag values; only flags the user set are copied into cfg
	flagCfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "facefit",
	Short: "Fit a parametric face model to a target image",
	Long: `facefit adjusts the shape coefficients and lighting of a morphable face
model until its rendering matches a target image, using finite-difference
gradient descent, a coordinate-wise Boltzmann sampler or a mayfly population
search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// resolveConfig layers the config file and the flags the user set over the defaults
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	loaded := config.Default()
	if configPath != "" {
		fromFile, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		loaded = *fromFile
	}
	if cmd.Flags().Changed("log-level") || configPath == "" {
		loaded.LogLevel = logLevel
	}
	applyOverrides(cmd, &loaded, &flagCfg)
	if err := loaded.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return loaded, nil
}

func setupLogger(name string) {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
