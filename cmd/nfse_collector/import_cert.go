package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rodrigo/nfse-collector/internal/certstore"
)

var importCertCmd = &cobra.Command{
	Use:   "import-cert",
	Short: "Import an A1 client certificate into the encrypted store",
	Long: `Validates a PKCS#12 (.pfx) certificate bundle against its passphrase and
stores it encrypted under the account's tax id. The engine loads it from the
store on every run; the plaintext file can be deleted afterwards.`,
	RunE: runImportCert,
}

var (
	importTaxID      string
	importPfxPath    string
	importPassphrase string
	importStorePath  string
)

func init() {
	importCertCmd.Flags().StringVarP(&importTaxID, "tax-id", "t", "", "14-digit tax id of the account")
	importCertCmd.Flags().StringVarP(&importPfxPath, "pfx", "f", "", "Path to the .pfx certificate file")
	importCertCmd.Flags().StringVarP(&importPassphrase, "passphrase", "p", "", "Certificate passphrase")
	importCertCmd.Flags().StringVar(&importStorePath, "store", "certificates", "Certificate store directory")

	_ = importCertCmd.MarkFlagRequired("tax-id")
	_ = importCertCmd.MarkFlagRequired("pfx")

	rootCmd.AddCommand(importCertCmd)
	rootCmd.AddCommand(genKeyCmd)
}

func runImportCert(_ *cobra.Command, _ []string) error {
	pfx, err := os.ReadFile(importPfxPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate file: %w", err)
	}

	if err := certstore.Validate(pfx, importPassphrase); err != nil {
		return err
	}

	store, err := certstore.New(importStorePath, os.Getenv(certstore.KeyEnvVar))
	if err != nil {
		return fmt.Errorf("failed to open certificate store: %w", err)
	}

	if err := store.Save(importTaxID, pfx, importPassphrase); err != nil {
		return err
	}

	fmt.Printf("Certificate imported for %s\n", importTaxID)
	return nil
}

var genKeyCmd = &cobra.Command{
	Use:   "gen-key",
	Short: "Generate a new certificate store encryption key",
	Long:  `Prints a fresh base64-encoded key suitable for ` + certstore.KeyEnvVar + `.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		key, err := certstore.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}
