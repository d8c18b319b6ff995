package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rodrigo/nfse-collector/internal/capture"
	"github.com/rodrigo/nfse-collector/internal/types"
)

// ManifestFileName is the summary file written next to a run's artifacts.
const ManifestFileName = "run.json"

// writeManifest records the run summary under the run's output directory:
// {base}/{MM-YYYY}/{company}/run.json.
func (o *Orchestrator) writeManifest(run *types.Run) error {
	o.mu.Lock()
	manifest := types.Manifest{
		AccountID:  run.AccountID,
		TaxID:      run.TaxID,
		Period:     run.Period,
		Direction:  run.Direction,
		Status:     types.StatusCompleted,
		Artifacts:  append([]types.Artifact(nil), run.Artifacts...),
		FinishedAt: time.Now().UTC(),
	}
	o.mu.Unlock()

	for _, a := range manifest.Artifacts {
		switch a.Kind {
		case types.ArtifactXML:
			manifest.XMLCount++
		case types.ArtifactPDF:
			manifest.PDFCount++
		}
	}
	if manifest.Artifacts == nil {
		manifest.Artifacts = []types.Artifact{}
	}

	dir := capture.RunDir(o.downloadsPath, run.Period, run.Company)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0o644)
}
