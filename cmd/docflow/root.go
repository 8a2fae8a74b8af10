package main

import (
	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "docflow",
	Short:         "Extract, normalize and summarize PDF documents",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Get()
	}
	return config.Load(configPath)
}

// newLogger logs to stderr so stdout stays clean for command output.
func newLogger() (logger.Logger, error) {
	return logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithEncoding("console"),
		logger.WithOutputPaths([]string{"stderr"}),
	)
}
