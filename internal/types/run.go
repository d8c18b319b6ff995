// Package types defines the shared data model for collection runs.
package types

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusCancelled is reserved for external cancellation; nothing sets it yet.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. A terminal run is immutable.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Stage represents the step a running run is currently executing.
type Stage string

const (
	StageInit             Stage = "init"
	StageAuthenticating   Stage = "authenticating"
	StageScanningIssued   Stage = "scanning_issued"
	StageScanningReceived Stage = "scanning_received"
	StageFinalizing       Stage = "finalizing"
)

// Direction selects which report listings a run scans.
type Direction string

const (
	DirectionIssued   Direction = "issued"
	DirectionReceived Direction = "received"
	DirectionBoth     Direction = "both"
)

// ParseDirection converts a request string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionIssued, DirectionReceived, DirectionBoth:
		return Direction(s), nil
	case "":
		return DirectionBoth, nil
	default:
		return "", fmt.Errorf("invalid direction %q (want issued, received or both)", s)
	}
}

// Includes reports whether d covers the single direction other.
func (d Direction) Includes(other Direction) bool {
	return d == other || d == DirectionBoth
}

// Folder returns the output directory segment for a single direction.
func (d Direction) Folder() string {
	if d == DirectionReceived {
		return "Received"
	}
	return "Issued"
}

// ArtifactKind classifies a downloaded document artifact.
type ArtifactKind string

const (
	ArtifactXML    ArtifactKind = "xml"
	ArtifactPDF    ArtifactKind = "pdf"
	ArtifactBinary ArtifactKind = "bin"
)

// Extension returns the file extension for the kind, including the dot.
func (k ArtifactKind) Extension() string {
	switch k {
	case ArtifactXML:
		return ".xml"
	case ArtifactPDF:
		return ".pdf"
	default:
		return ".bin"
	}
}

// Artifact is one file written by a run.
type Artifact struct {
	Kind      ArtifactKind `json:"kind"`
	Direction Direction    `json:"direction"`
	Path      string       `json:"path"`
	Size      int64        `json:"size"`
}

// Run is one execution attempt for one account and accounting period.
// A Run is created by enqueue, mutated only by the worker that owns it,
// and becomes immutable once Status reaches a terminal value.
type Run struct {
	AccountID string
	TaxID     string
	Period    string // "MM/YYYY"
	Direction Direction
	Headless  bool

	Company string // display name used in output paths; falls back to TaxID

	Status   Status
	Stage    Stage
	Progress int // 0-100, monotonically non-decreasing
	Message  string
	Logs     []string
	Error    string

	StartedAt  *time.Time
	FinishedAt *time.Time

	Artifacts []Artifact
}

// NewRun creates a pending run for the given account.
func NewRun(accountID, taxID, period string, dir Direction, headless bool) *Run {
	return &Run{
		AccountID: accountID,
		TaxID:     taxID,
		Period:    period,
		Direction: dir,
		Headless:  headless,
		Status:    StatusPending,
		Stage:     StageInit,
		Message:   "waiting for execution",
	}
}

// Snapshot is the caller-visible, immutable view of a run.
type Snapshot struct {
	AccountID  string     `json:"account_id"`
	TaxID      string     `json:"tax_id"`
	Period     string     `json:"period"`
	Direction  Direction  `json:"direction"`
	Status     Status     `json:"status"`
	Stage      Stage      `json:"stage"`
	Progress   int        `json:"progress"`
	Logs       []string   `json:"logs"`
	Message    string     `json:"message"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
}

// Snapshot copies the run into a Snapshot. The caller must hold whatever
// lock guards the run; the returned value shares no mutable state with it.
func (r *Run) Snapshot() Snapshot {
	logs := make([]string, len(r.Logs))
	copy(logs, r.Logs)
	artifacts := make([]Artifact, len(r.Artifacts))
	copy(artifacts, r.Artifacts)
	return Snapshot{
		AccountID:  r.AccountID,
		TaxID:      r.TaxID,
		Period:     r.Period,
		Direction:  r.Direction,
		Status:     r.Status,
		Stage:      r.Stage,
		Progress:   r.Progress,
		Logs:       logs,
		Message:    r.Message,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Artifacts:  artifacts,
	}
}

// Manifest is the summary written to run.json when a run finalizes.
type Manifest struct {
	AccountID  string     `json:"account_id"`
	TaxID      string     `json:"tax_id"`
	Period     string     `json:"period"`
	Direction  Direction  `json:"direction"`
	Status     Status     `json:"status"`
	Artifacts  []Artifact `json:"artifacts"`
	XMLCount   int        `json:"xml_count"`
	PDFCount   int        `json:"pdf_count"`
	FinishedAt time.Time  `json:"finished_at"`
}
