package types

// LogFunc receives printf-style progress messages. The orchestrator wires it
// to both the process log and the run's caller-visible log slice.
type LogFunc func(format string, args ...any)

// ScanOutcome summarizes one direction's table scan.
type ScanOutcome struct {
	Pages     int        `json:"pages"`
	Rows      int        `json:"rows"`
	Matched   int        `json:"matched"`
	Skipped   int        `json:"skipped"` // matched rows skipped as cancelled/invalid
	Artifacts []Artifact `json:"artifacts"`
}
