package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/rodrigo/nfse-collector/internal/certstore"
	"github.com/rodrigo/nfse-collector/internal/companies"
	"github.com/rodrigo/nfse-collector/internal/config"
	"github.com/rodrigo/nfse-collector/internal/orchestrator"
	"github.com/rodrigo/nfse-collector/internal/server"
	"github.com/rodrigo/nfse-collector/internal/session"
)

var (
	servePort       int
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for queueing collection runs, checking their status, and managing companies and certificates.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadCollectorConfig(serveConfigPath)
	if err != nil {
		return err
	}

	certs, err := certstore.New(cfg.CertStorePath, os.Getenv(certstore.KeyEnvVar))
	if err != nil {
		return fmt.Errorf("failed to open certificate store: %w", err)
	}

	var repo *companies.Repo
	if cfg.DatabaseURL != "" {
		repo, err = companies.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to company database: %w", err)
		}
	} else {
		log.Printf("no DATABASE_URL configured, output paths will use tax IDs")
	}

	orch := newOrchestrator(cfg, certs, repo)

	srv, err := server.New(server.Config{
		Port:         servePort,
		Orchestrator: orch,
		Companies:    repo,
		Certs:        certs,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// loadCollectorConfig loads the optional config file and fills defaults.
func loadCollectorConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		DownloadsPath: "downloads",
		CertStorePath: "certificates",
		PortalURL:     config.DefaultPortalURL,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
	})
	return cfg, nil
}

// newOrchestrator wires the browser session factory into the run queue.
func newOrchestrator(cfg config.Config, certs *certstore.Store, repo *companies.Repo) *orchestrator.Orchestrator {
	builder := &session.Builder{
		Certs:           certs,
		PortalURL:       cfg.Portal(),
		DownloadsPath:   cfg.DownloadsPath,
		Timeout:         cfg.OperationTimeout(),
		IgnoreTLSErrors: cfg.IgnoreTLSErrors,
	}

	var dir orchestrator.CompanyDirectory
	if repo != nil {
		dir = repo
	}

	return orchestrator.New(orchestrator.Options{
		Factory: orchestrator.SessionFactoryFunc(
			func(ctx context.Context, taxID string, headless bool) (orchestrator.Session, error) {
				return builder.Build(ctx, taxID, headless)
			}),
		Companies:     dir,
		DownloadsPath: cfg.DownloadsPath,
		Headless:      cfg.HeadlessMode(),
		IdleTimeout:   cfg.QueueIdleTimeout(),
		QueueCapacity: cfg.QueueCapacity,
	})
}
