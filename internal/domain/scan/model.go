// Package scan owns MRI scan sessions: the tracking records created for
// each analysis job, the predictions the analyzer writes back, and the
// submit-and-poll workflow that ties them to the external service.
package scan

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/analysis"
)

// Analysis types accepted by the external service.
const (
	AnalysisMultiDisease = "multi-disease"
	AnalysisADOnly       = "ad-only"
	AnalysisPDOnly       = "pd-only"
	AnalysisFTDOnly      = "ftd-only"
)

var validAnalysisTypes = map[string]bool{
	AnalysisMultiDisease: true,
	AnalysisADOnly:       true,
	AnalysisPDOnly:       true,
	AnalysisFTDOnly:      true,
}

// Session is an MRI scan session, which doubles as the tracking record for
// a submitted analysis job.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	SessionCode  string          `json:"session_code"`
	PatientID    uuid.UUID       `json:"patient_id"`
	DoctorID     uuid.UUID       `json:"doctor_id"`
	AnalysisType string          `json:"analysis_type"`
	Status       analysis.Status `json:"status"`
	FileName     string          `json:"file_name"`
	Notes        string          `json:"notes"`
	ErrorDetail  string          `json:"error_detail,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Prediction is the analyzer's output for one session.
type Prediction struct {
	ID                uuid.UUID `json:"id"`
	SessionID         uuid.UUID `json:"session_id"`
	Prediction        string    `json:"prediction"`
	ConfidenceScore   float64   `json:"confidence_score"`
	Probabilities     []float64 `json:"probabilities"`
	BrainVolume       *float64  `json:"brain_volume,omitempty"`
	GMVolume          *float64  `json:"gm_volume,omitempty"`
	WMVolume          *float64  `json:"wm_volume,omitempty"`
	CSFVolume         *float64  `json:"csf_volume,omitempty"`
	HippocampalVolume *float64  `json:"hippocampal_volume,omitempty"`
	VentricularVolume *float64  `json:"ventricular_volume,omitempty"`
	ModelVersion      string    `json:"model_version"`
	ProcessingTime    *float64  `json:"processing_time,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSessionCode generates a human-readable reference in the form
// MRI-YYYYMMDD-XXXX.
func NewSessionCode(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// math-free fallback keeps the code well-formed
		copy(buf, []byte{0, 1, 2, 3})
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return fmt.Sprintf("MRI-%s-%s", now.Format("20060102"), buf)
}
