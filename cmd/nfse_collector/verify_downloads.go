package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rodrigo/nfse-collector/internal/observability"
	"github.com/rodrigo/nfse-collector/internal/schemas"
)

var verifyDownloadsCmd = &cobra.Command{
	Use:   "verify-downloads",
	Short: "Verify the integrity of downloaded documents",
	Long: `Walks a downloads directory and checks every artifact: XML files must be
well-formed, PDF files must pass structural validation, and run.json
manifests must conform to the manifest schema.`,
	RunE: runVerifyDownloads,
}

var (
	verifyPath    string
	verifyWorkers int
)

func init() {
	verifyDownloadsCmd.Flags().StringVar(&verifyPath, "path", "downloads", "Downloads directory to verify")
	verifyDownloadsCmd.Flags().IntVar(&verifyWorkers, "workers", 4, "Concurrent verification workers")
	rootCmd.AddCommand(verifyDownloadsCmd)
}

func runVerifyDownloads(_ *cobra.Command, _ []string) error {
	var files []string
	err := filepath.WalkDir(verifyPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xml", ".pdf", ".json":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", verifyPath, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no artifacts found under %s", verifyPath)
	}

	var mu sync.Mutex
	var results []observability.VerifyResult

	g := new(errgroup.Group)
	g.SetLimit(verifyWorkers)
	for _, path := range files {
		g.Go(func() error {
			result := verifyFile(path)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintVerifyReport(results)

	for _, r := range results {
		if !r.OK {
			return fmt.Errorf("verification failed")
		}
	}
	return nil
}

func verifyFile(path string) observability.VerifyResult {
	result := observability.VerifyResult{Path: path, OK: true}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		err = verifyXML(path)
	case ".pdf":
		err = pdfapi.ValidateFile(path, nil)
	case ".json":
		if filepath.Base(path) == "run.json" {
			err = schemas.ValidateManifest(path)
		}
	}
	if err != nil {
		result.OK = false
		result.Problem = err.Error()
	}
	return result
}

// verifyXML checks that the document tokenizes end to end.
func verifyXML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	for {
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("malformed XML: %w", err)
		}
	}
}
