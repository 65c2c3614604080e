package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Load the defaults file, apply any flags, validate, and write the result to stdout.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := effectiveConfig(cmd)
		out, err := cfg.YAML()
		if err != nil {
			logrus.Fatalf("Failed to render configuration: %v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
