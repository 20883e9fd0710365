package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/capture/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or write the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return yaml.NewEncoder(os.Stdout).Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		written, err := config.SaveTo(cfg, path)
		if err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Wrote %s\n", written)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report configuration problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, err := range cfgProblems {
			fmt.Println(err)
		}
		if len(cfgProblems) > 0 {
			return fmt.Errorf("%d configuration problem(s)", len(cfgProblems))
		}
		fmt.Println("Configuration OK")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
