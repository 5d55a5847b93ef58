package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/logging"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cleanroom",
	Short: "GMP cleanroom and HVAC training backend",
	Long: `cleanroom serves the interactive HVAC diagrams of the GMP training app,
exports them to SVG, PNG and PDF, aggregates regulatory news feeds, answers
questions from official sources and proxies the tutor chat to an LLM.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with API keys")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `cleanroom init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// cliLogger logs human-readable lines to stderr for one-shot commands.
func cliLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if !verbose {
		level = "warn"
	}
	return logging.NewConsole(level)
}
