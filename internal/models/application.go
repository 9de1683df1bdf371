package models

import "time"

// ApplicationStatus is the closed set of lifecycle states for a credential application.
type ApplicationStatus string

const (
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusAIChecking  ApplicationStatus = "ai-checking"
	StatusUnderReview ApplicationStatus = "under-review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
	StatusFlagged     ApplicationStatus = "flagged"
	StatusWithdrawn   ApplicationStatus = "withdrawn"
)

// Terminal reports whether no further transition is permitted from the status.
// flagged is terminal for automated decisions but accepts an explicit admin unflag.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// Valid reports whether the value belongs to the closed status set.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusAIChecking, StatusUnderReview,
		StatusApproved, StatusRejected, StatusFlagged, StatusWithdrawn:
		return true
	}
	return false
}

// LifecycleEvent identifies what triggered a status transition.
type LifecycleEvent string

const (
	EventAnalysisRequested LifecycleEvent = "ANALYSIS_REQUESTED"
	EventPreScreenAdvance  LifecycleEvent = "PRESCREEN_ADVANCE"
	EventPreScreenFlag     LifecycleEvent = "PRESCREEN_FLAG"
	EventConsensusApprove  LifecycleEvent = "CONSENSUS_APPROVE"
	EventConsensusReject   LifecycleEvent = "CONSENSUS_REJECT"
	EventConsensusFlag     LifecycleEvent = "CONSENSUS_FLAG"
	EventAdminUnflag       LifecycleEvent = "ADMIN_UNFLAG"
	EventWithdrawn         LifecycleEvent = "WITHDRAWN"
)

// transitions maps each lifecycle event to its single legal (from, to) edge.
var transitions = map[LifecycleEvent]struct {
	From ApplicationStatus
	To   ApplicationStatus
}{
	EventAnalysisRequested: {StatusSubmitted, StatusAIChecking},
	EventPreScreenAdvance:  {StatusAIChecking, StatusUnderReview},
	EventPreScreenFlag:     {StatusAIChecking, StatusFlagged},
	EventConsensusApprove:  {StatusUnderReview, StatusApproved},
	EventConsensusReject:   {StatusUnderReview, StatusRejected},
	EventConsensusFlag:     {StatusUnderReview, StatusFlagged},
	EventAdminUnflag:       {StatusFlagged, StatusUnderReview},
}

// TransitionFor resolves the (from, to) edge for an event. Withdrawal is the
// only event legal from more than one state: any non-terminal status.
func TransitionFor(event LifecycleEvent, current ApplicationStatus) (ApplicationStatus, ApplicationStatus, bool) {
	if event == EventWithdrawn {
		if current.Terminal() {
			return current, current, false
		}
		return current, StatusWithdrawn, true
	}
	edge, ok := transitions[event]
	if !ok || edge.From != current {
		return current, current, false
	}
	return edge.From, edge.To, true
}

// Application represents a credential verification request.
// Mutated only through lifecycle transitions; never deleted, only superseded.
type Application struct {
	ID               string            `db:"id" json:"id"`
	UserID           string            `db:"user_id" json:"user_id"`
	Title            string            `db:"title" json:"title"`
	Institution      string            `db:"institution" json:"institution"`
	Description      *string           `db:"description" json:"description,omitempty"`
	ApplicantName    string            `db:"applicant_name" json:"applicant_name"`
	ApplicantEmail   string            `db:"applicant_email" json:"applicant_email"`
	ApplicantAddress *string           `db:"applicant_address" json:"applicant_address,omitempty"`
	StudentID        *string           `db:"student_id" json:"student_id,omitempty"`
	GPA              *float64          `db:"gpa" json:"gpa,omitempty"`
	GraduationDate   *time.Time        `db:"graduation_date" json:"graduation_date,omitempty"`
	DocumentsCount   int               `db:"documents_count" json:"documents_count"`
	Status           ApplicationStatus `db:"status" json:"status"`
	PreviousID       *string           `db:"previous_application_id" json:"previous_application_id,omitempty"`
	SubmittedAt      *time.Time        `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationFilter captures listing criteria.
type ApplicationFilter struct {
	UserID   string
	Status   ApplicationStatus
	Search   string
	Page     int
	PageSize int
}
