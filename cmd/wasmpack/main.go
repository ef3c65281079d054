package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/bundler"
	"github.com/wippyai/wasmpack/engine"
	"github.com/wippyai/wasmpack/synth"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "wasmpack",
	Short:         "Bundle ES modules that import WebAssembly binaries",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		log, err := newLogger(verbose)
		if err != nil {
			return err
		}
		setLoggers(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress at debug level")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to wasmpack.yaml (default: ./wasmpack.yaml if present)")
	rootCmd.AddCommand(buildCmd, graphCmd, inspectCmd)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func setLoggers(log *zap.Logger) {
	analysis.SetLogger(log.Named("analysis"))
	bundler.SetLogger(log.Named("bundler"))
	engine.SetLogger(log.Named("engine"))
	synth.SetLogger(log.Named("synth"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", formatError(err))
		os.Exit(1)
	}
}
