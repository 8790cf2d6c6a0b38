package main

import (
	"fmt"
	"os"

	"github.com/JonathanLopez0327/chat-demo/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check config, catalog and flows",
	Long:  `Loads the configuration and the incident catalog and compiles both flow variants.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.RunValidate(globalOptions(cmd), os.Stdout); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Println("Configuration is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
