// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/rodrigo/nfse-collector/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxLogLinesToShow is the default number of trailing log lines to display
	maxLogLinesToShow = 8
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSnapshot outputs a human-readable summary of a run's current state.
func (p *Printer) PrintRunSnapshot(snap *types.Snapshot) {
	if snap == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Account:   %s\n", snap.AccountID))
	sb.WriteString(fmt.Sprintf("Tax ID:    %s\n", snap.TaxID))
	sb.WriteString(fmt.Sprintf("Period:    %s (%s)\n", snap.Period, snap.Direction))
	sb.WriteString(fmt.Sprintf("Status:    %s / %s\n", snap.Status, snap.Stage))
	sb.WriteString(fmt.Sprintf("Progress:  %d%%  %s\n", snap.Progress, snap.Message))
	if snap.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:     %s\n", snap.Error))
	}

	if len(snap.Logs) > 0 {
		sb.WriteString("\nRecent log:\n")
		start := len(snap.Logs) - maxLogLinesToShow
		if start < 0 {
			start = 0
		}
		for _, line := range snap.Logs[start:] {
			sb.WriteString(fmt.Sprintf("  %s\n", line))
		}
	}

	p.printBox("COLLECTION RUN", strings.TrimRight(sb.String(), "\n"))
}

// PrintArtifacts outputs the files a finished run produced, grouped by kind.
func (p *Printer) PrintArtifacts(artifacts []types.Artifact) {
	if len(artifacts) == 0 {
		return
	}

	var xml, pdf, other int
	var sb strings.Builder
	for _, a := range artifacts {
		switch a.Kind {
		case types.ArtifactXML:
			xml++
		case types.ArtifactPDF:
			pdf++
		default:
			other++
		}
		sb.WriteString(fmt.Sprintf("%-4s %s (%d bytes)\n", a.Kind, a.Path, a.Size))
	}

	sb.WriteString(fmt.Sprintf("\nTotal: %d xml, %d pdf", xml, pdf))
	if other > 0 {
		sb.WriteString(fmt.Sprintf(", %d other", other))
	}

	p.printBox("DOWNLOADED ARTIFACTS", sb.String())
}

// VerifyResult is one file's outcome from a downloads verification pass.
type VerifyResult struct {
	Path    string
	OK      bool
	Problem string
}

// PrintVerifyReport outputs the outcome of a verify-downloads pass.
func (p *Printer) PrintVerifyReport(results []VerifyResult) {
	var sb strings.Builder
	failed := 0
	for _, r := range results {
		if r.OK {
			continue
		}
		failed++
		sb.WriteString(fmt.Sprintf("FAIL %s\n", r.Path))
		sb.WriteString(fmt.Sprintf("     %s\n", r.Problem))
	}

	sb.WriteString(fmt.Sprintf("\nChecked %d files, %d failed", len(results), failed))
	p.printBox("VERIFICATION REPORT", strings.TrimLeft(sb.String(), "\n"))
}
