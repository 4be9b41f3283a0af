// Package main provides zonectl, an offline preview of the zone import pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "zonectl",
		Short:         "Delivery zone import tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(previewCmd())
	return cmd
}
