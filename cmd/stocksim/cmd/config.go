package cmd

import (
	"github.com/spf13/cobra"

	"github.com/twquant/stocksim/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate run configurations",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a default run configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Default().SaveToFile(args[0])
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Validate a run configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadFromFile(args[0]); err != nil {
			return err
		}
		cmd.Printf("%s: ok\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
