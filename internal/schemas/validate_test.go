package schemas

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo/nfse-collector/internal/types"
)

func sampleManifest() types.Manifest {
	return types.Manifest{
		AccountID: "acct-1",
		TaxID:     "12345678000199",
		Period:    "11/2025",
		Direction: types.DirectionBoth,
		Status:    types.StatusCompleted,
		Artifacts: []types.Artifact{
			{Kind: types.ArtifactXML, Direction: types.DirectionIssued, Path: "a.xml", Size: 12},
		},
		XMLCount:   1,
		PDFCount:   0,
		FinishedAt: time.Date(2025, 11, 30, 12, 0, 0, 0, time.UTC),
	}
}

func writeManifestFile(t *testing.T, m types.Manifest) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestResolveSchemaPath_FindsManifestSchema(t *testing.T) {
	path := ResolveSchemaPath(ManifestSchemaPath)
	require.NotEmpty(t, path, "manifest schema should resolve from the package directory")
	assert.FileExists(t, path)
}

func TestValidateManifest_Valid(t *testing.T) {
	path := writeManifestFile(t, sampleManifest())
	assert.NoError(t, ValidateManifest(path))
}

func TestValidateManifest_BadPeriod(t *testing.T) {
	m := sampleManifest()
	m.Period = "13/2025"
	path := writeManifestFile(t, m)

	err := ValidateManifest(path)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Errors)
}

func TestValidateManifest_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"account_id":"acct-1"}`), 0o644))

	err := ValidateManifest(path)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name":"ok"}`))

	err := ValidateJSONString(schema, `{"name":42}`)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestValidateJSON_MissingFiles(t *testing.T) {
	assert.Error(t, ValidateJSON("nope.schema.json", "nope.json"))
}
