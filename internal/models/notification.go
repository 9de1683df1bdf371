package models

import "time"

// Notification event types surfaced to users.
const (
	NotifyAnalysisComplete = "ANALYSIS_COMPLETE"
	NotifyUnderReview      = "UNDER_REVIEW"
	NotifyApproved         = "APPROVED"
	NotifyRejected         = "REJECTED"
	NotifyFlagged          = "FLAGGED"
	NotifyCertificateReady = "CERTIFICATE_READY"
	NotifyIssuanceFailed   = "ISSUANCE_FAILED"
	NotifyAppealReceived   = "APPEAL_RECEIVED"
)

// Notification is a best-effort, fire-and-forget message to a user.
// Delivery failures never block lifecycle transitions.
type Notification struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	ApplicationID *string    `db:"application_id" json:"application_id,omitempty"`
	Type          string     `db:"type" json:"type"`
	Title         string     `db:"title" json:"title"`
	Message       string     `db:"message" json:"message"`
	EmailSent     bool       `db:"email_sent" json:"email_sent"`
	ReadAt        *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
