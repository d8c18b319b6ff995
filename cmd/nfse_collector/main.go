// Package main provides the entry point for the NFS-e collector.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nfse_collector",
	Short: "NFS-e fiscal document collector",
	Long:  "Automates the national NFS-e portal with per-account client certificates, scanning issued and received document listings for an accounting period and downloading every XML and PDF.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
