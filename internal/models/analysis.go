package models

import (
	"time"

	"github.com/lib/pq"
)

// ForgeryIndicator is the closed set of automated document findings.
type ForgeryIndicator string

const (
	IndicatorSignatureMismatch ForgeryIndicator = "signature-mismatch"
	IndicatorFontInconsistency ForgeryIndicator = "font-inconsistency"
	IndicatorSealTampering     ForgeryIndicator = "seal-tampering"
	IndicatorMetadataEdited    ForgeryIndicator = "metadata-edited"
	IndicatorTemplateMismatch  ForgeryIndicator = "template-mismatch"
)

// AIAnalysisResult holds the opaque scorer's output for one application.
// Produced once by the analysis collaborator and immutable afterwards.
type AIAnalysisResult struct {
	ID                        string         `db:"id" json:"id"`
	ApplicationID             string         `db:"application_id" json:"application_id"`
	EligibilityMatchScore     float64        `db:"eligibility_match_score" json:"eligibility_match_score"`
	DocumentAuthenticityScore float64        `db:"document_authenticity_score" json:"document_authenticity_score"`
	ConfidenceLevel           float64        `db:"confidence_level" json:"confidence_level"`
	ForgeryIndicators         pq.StringArray `db:"forgery_indicators" json:"forgery_indicators"`
	MissingInformation        pq.StringArray `db:"missing_information" json:"missing_information"`
	Recommendation            *string        `db:"ai_recommendation" json:"ai_recommendation,omitempty"`
	ProcessedAt               time.Time      `db:"processed_at" json:"processed_at"`
}

// HasForgeryIndicators reports whether the scorer found any forgery signal.
func (r *AIAnalysisResult) HasForgeryIndicators() bool {
	return len(r.ForgeryIndicators) > 0
}

// PreScreenOutcome is the pre-screen gate's routing decision.
type PreScreenOutcome string

const (
	PreScreenAdvance      PreScreenOutcome = "auto-advance"
	PreScreenFlag         PreScreenOutcome = "auto-flag"
	PreScreenInsufficient PreScreenOutcome = "insufficient"
)
