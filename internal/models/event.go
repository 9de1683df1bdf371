package models

import "time"

// Analytics event types recorded on the audit trail.
const (
	EventTypeApplicationSubmitted = "APPLICATION_SUBMITTED"
	EventTypeAnalysisRecorded     = "ANALYSIS_RECORDED"
	EventTypeVoteCast             = "VOTE_CAST"
	EventTypeStatusTransition     = "STATUS_TRANSITION"
	EventTypeAppealFiled          = "APPEAL_FILED"
	EventTypeCertificateMinted    = "CERTIFICATE_MINTED"
	EventTypeIssuanceFailed       = "ISSUANCE_FAILED"
	EventTypeExportGenerated      = "EXPORT_GENERATED"
)

// AnalyticsEvent is an append-only audit trail row. Transition events carry
// the decision id that makes replays detectable.
type AnalyticsEvent struct {
	ID               string    `db:"id" json:"id"`
	EventType        string    `db:"event_type" json:"event_type"`
	ApplicationID    *string   `db:"application_id" json:"application_id,omitempty"`
	UserID           *string   `db:"user_id" json:"user_id,omitempty"`
	ValidatorAddress *string   `db:"validator_address" json:"validator_address,omitempty"`
	EventData        []byte    `db:"event_data" json:"event_data,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
