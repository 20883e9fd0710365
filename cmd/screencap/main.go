package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/capture/internal/config"
	"github.com/breeze-rmm/capture/internal/logging"
	"github.com/breeze-rmm/capture/pkg/capture"
)

var (
	version = "0.1.0"

	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string

	cfg         *config.Config
	cfgProblems []error
	logCloser   io.Closer
)

var log = logging.L("cli")

var rootCmd = &cobra.Command{
	Use:   "screencap",
	Short: "Capture screens and windows",
	Long:  `screencap - capture monitors and windows to image files, poll frames, or stream them to a browser`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("screencap v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is screencap.yaml in the user config dir or .)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file (rotated)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and initializes logging.
func setup(cmd *cobra.Command) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	applyCaptureFlags(cmd, cfg)

	out, closer, err := logging.Output(cfg.LogFile)
	if err != nil {
		return err
	}
	logCloser = closer
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)

	// Validate logs each problem; clamped values are already corrected.
	cfgProblems = cfg.Validate()
	return nil
}

// sessionSettings maps the effective config to capture settings.
func sessionSettings() (capture.Settings, error) {
	s, err := cfg.Settings()
	if err != nil {
		return capture.Settings{}, err
	}
	if _, err := s.Target(); err != nil {
		return capture.Settings{}, err
	}
	return s, nil
}
