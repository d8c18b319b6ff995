package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rodrigo/nfse-collector/internal/types"
)

func TestPrintRunSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	snap := &types.Snapshot{
		AccountID: "acct-1",
		TaxID:     "12345678000199",
		Period:    "11/2025",
		Direction: types.DirectionBoth,
		Status:    types.StatusRunning,
		Stage:     types.StageScanningIssued,
		Progress:  50,
		Message:   "scanning issued documents",
		Logs:      []string{"[12:00:00] run queued", "[12:00:01] session established"},
	}

	p.PrintRunSnapshot(snap)
	output := buf.String()

	assert.Contains(t, output, "COLLECTION RUN")
	assert.Contains(t, output, "acct-1")
	assert.Contains(t, output, "11/2025")
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "session established")
}

func TestPrintRunSnapshot_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSnapshot(nil)

	assert.Empty(t, buf.String())
}

func TestPrintArtifacts(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintArtifacts([]types.Artifact{
		{Kind: types.ArtifactXML, Direction: types.DirectionIssued, Path: "a.xml", Size: 10},
		{Kind: types.ArtifactPDF, Direction: types.DirectionIssued, Path: "a.pdf", Size: 20},
	})
	output := buf.String()

	assert.Contains(t, output, "DOWNLOADED ARTIFACTS")
	assert.Contains(t, output, "a.xml")
	assert.Contains(t, output, "1 xml, 1 pdf")
}

func TestPrintArtifacts_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintArtifacts(nil)
	assert.Empty(t, buf.String())
}

func TestPrintVerifyReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintVerifyReport([]VerifyResult{
		{Path: "a.xml", OK: true},
		{Path: "b.pdf", OK: false, Problem: "xref table damaged"},
	})
	output := buf.String()

	assert.Contains(t, output, "VERIFICATION REPORT")
	assert.Contains(t, output, "FAIL b.pdf")
	assert.Contains(t, output, "Checked 2 files, 1 failed")
	assert.NotContains(t, output, "FAIL a.xml")
}
