package models

import "time"

// RejectionReason is the closed set of reject/flag causes.
type RejectionReason string

const (
	ReasonForgedDocuments     RejectionReason = "forged_documents"
	ReasonTamperedDocuments   RejectionReason = "tampered_documents"
	ReasonMissingInformation  RejectionReason = "missing_information"
	ReasonEligibilityMismatch RejectionReason = "eligibility_mismatch"
	ReasonInvalidDocuments    RejectionReason = "invalid_documents"
)

// RejectionRecord is created once when an application enters rejected or
// flagged, and is immutable thereafter. A resubmission creates a new
// application rather than mutating this record.
type RejectionRecord struct {
	ID               string          `db:"id" json:"id"`
	ApplicationID    string          `db:"application_id" json:"application_id"`
	Reason           RejectionReason `db:"rejection_reason" json:"rejection_reason"`
	DetailedAnalysis string          `db:"detailed_analysis" json:"detailed_analysis"`
	Evidence         []byte          `db:"evidence" json:"evidence,omitempty"`
	CanResubmit      bool            `db:"can_resubmit" json:"can_resubmit"`
	CanAppeal        bool            `db:"can_appeal" json:"can_appeal"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// RejectionPolicy is the fixed, deployment-documented mapping from reason to
// resubmission and appeal eligibility. Same trigger always yields the same pair.
func RejectionPolicy(reason RejectionReason) (canResubmit, canAppeal bool) {
	switch reason {
	case ReasonForgedDocuments, ReasonTamperedDocuments:
		return false, true
	case ReasonMissingInformation:
		return true, false
	case ReasonEligibilityMismatch:
		return true, true
	case ReasonInvalidDocuments:
		return true, false
	default:
		return true, false
	}
}
