package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ingestctl",
		Short:         "Operator tooling for the webhook ingestion service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(tailCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
