package history

import "time"

const SchemaVersion = 2

// Run summarizes one plan run.
type Run struct {
	ID           string
	ProjectKey   string
	Command      string
	Timestamp    time.Time
	Duration     time.Duration
	FileCount    int
	PatternCount int
	IssueCount   int
	FailureCount int
	Fingerprint  uint64
	IndexVersion uint64
	// Patterns holds issue counts per pattern name.
	Patterns map[string]int
}

// TrendPoint compares a run with the one before it.
type TrendPoint struct {
	Run         Run
	DeltaIssues int
	// Changed is false when the plan fingerprint matches the previous run.
	Changed bool
}

type TrendReport struct {
	ProjectKey string
	Since      time.Time
	RunCount   int
	Points     []TrendPoint
}
