package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("issued")
	require.NoError(t, err)
	assert.Equal(t, DirectionIssued, dir)

	dir, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, DirectionBoth, dir)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestDirection_Includes(t *testing.T) {
	assert.True(t, DirectionBoth.Includes(DirectionIssued))
	assert.True(t, DirectionBoth.Includes(DirectionReceived))
	assert.True(t, DirectionIssued.Includes(DirectionIssued))
	assert.False(t, DirectionIssued.Includes(DirectionReceived))
}

func TestDirection_Folder(t *testing.T) {
	assert.Equal(t, "Issued", DirectionIssued.Folder())
	assert.Equal(t, "Received", DirectionReceived.Folder())
}

func TestArtifactKind_Extension(t *testing.T) {
	assert.Equal(t, ".xml", ArtifactXML.Extension())
	assert.Equal(t, ".pdf", ArtifactPDF.Extension())
	assert.Equal(t, ".bin", ArtifactBinary.Extension())
}

func TestNewRun_Defaults(t *testing.T) {
	run := NewRun("acct-1", "12345678000199", "11/2025", DirectionBoth, true)

	assert.Equal(t, StatusPending, run.Status)
	assert.Equal(t, StageInit, run.Stage)
	assert.Equal(t, 0, run.Progress)
	assert.Empty(t, run.Logs)
	assert.Nil(t, run.StartedAt)
}

func TestRun_Snapshot_SharesNoMutableState(t *testing.T) {
	run := NewRun("acct-1", "12345678000199", "11/2025", DirectionIssued, true)
	run.Logs = []string{"first"}
	run.Artifacts = []Artifact{{Kind: ArtifactXML, Direction: DirectionIssued, Path: "a.xml", Size: 10}}

	snap := run.Snapshot()

	run.Logs[0] = "mutated"
	run.Artifacts[0].Path = "mutated.xml"

	assert.Equal(t, "first", snap.Logs[0])
	assert.Equal(t, "a.xml", snap.Artifacts[0].Path)
}
