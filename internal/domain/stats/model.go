// Package stats serves the dashboard's aggregate counters and the analyzer
// availability widget.
package stats

import (
	"time"

	"github.com/neurodash/neurodash/internal/analysis"
)

// Summary is the dashboard's headline block.
type Summary struct {
	Patients         int                     `json:"patients"`
	Doctors          int                     `json:"doctors"`
	Sessions         int                     `json:"sessions"`
	SessionsByStatus map[analysis.Status]int `json:"sessions_by_status"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// AnalyzerHealth is the status widget payload. An unknown probe state is
// reported as healthy with degraded confidence rather than as an outage.
type AnalyzerHealth struct {
	State     analysis.HealthState `json:"state"`
	Reachable bool                 `json:"reachable"`
	CheckedAt time.Time            `json:"checked_at"`
}
