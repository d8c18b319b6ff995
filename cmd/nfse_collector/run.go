package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodrigo/nfse-collector/internal/certstore"
	"github.com/rodrigo/nfse-collector/internal/companies"
	"github.com/rodrigo/nfse-collector/internal/observability"
	"github.com/rodrigo/nfse-collector/internal/orchestrator"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Execute one collection run locally",
	Long: `Queues a single collection run against the local engine and waits for it
to finish: authenticates with the account's client certificate, scans the
issued and received listings for the target period, and downloads every
XML and PDF.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runCollectCmd,
}

var (
	runConfigPath string
	runTaxID      string
	runPeriod     string
	runDirection  string
	runHeadless   bool
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	runCommand.Flags().StringVarP(&runTaxID, "tax-id", "t", "", "14-digit tax id of the account")
	runCommand.Flags().StringVarP(&runPeriod, "period", "p", "", "Accounting period, MM/YYYY")
	runCommand.Flags().StringVarP(&runDirection, "direction", "d", "both", "Listings to scan: issued, received or both")
	runCommand.Flags().BoolVar(&runHeadless, "headless", true, "Run the browser without a visible window")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress information")

	_ = runCommand.MarkFlagRequired("tax-id")
	_ = runCommand.MarkFlagRequired("period")

	rootCmd.AddCommand(runCommand)
}

func runCollectCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadCollectorConfig(runConfigPath)
	if err != nil {
		return err
	}
	// The flag only wins when actually passed; otherwise a config file's
	// "headless": false stays in effect.
	if cmd.Flags().Changed("headless") {
		cfg.Headless = &runHeadless
	}

	certs, err := certstore.New(cfg.CertStorePath, os.Getenv(certstore.KeyEnvVar))
	if err != nil {
		return fmt.Errorf("failed to open certificate store: %w", err)
	}

	var repo *companies.Repo
	if cfg.DatabaseURL != "" {
		if repo, err = companies.Connect(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to connect to company database: %w", err)
		}
		defer repo.Close()
	}

	orch := newOrchestrator(cfg, certs, repo)

	headless := cfg.HeadlessMode()
	snapshot, err := orch.Enqueue(ctx, orchestrator.Request{
		AccountID: "local",
		TaxID:     runTaxID,
		Period:    runPeriod,
		Direction: runDirection,
		Headless:  &headless,
	})
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	seen := 0
	for !snapshot.Status.Terminal() {
		time.Sleep(time.Second)
		snapshot, err = orch.GetStatus("local")
		if err != nil {
			return err
		}
		for ; seen < len(snapshot.Logs); seen++ {
			fmt.Println(snapshot.Logs[seen])
		}
	}

	if runVerbose {
		printer.PrintRunSnapshot(&snapshot)
		printer.PrintArtifacts(snapshot.Artifacts)
	}

	if snapshot.Error != "" {
		return fmt.Errorf("run failed: %s", snapshot.Error)
	}
	fmt.Printf("Run completed with %d artifacts\n", len(snapshot.Artifacts))
	return nil
}
