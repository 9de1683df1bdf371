package models

import "time"

// VoteValue is a validator's disposition for an application.
type VoteValue string

const (
	VoteApprove VoteValue = "approve"
	VoteReject  VoteValue = "reject"
	VoteFlag    VoteValue = "flag"
)

// Valid reports whether the value is a recognised vote.
func (v VoteValue) Valid() bool {
	switch v {
	case VoteApprove, VoteReject, VoteFlag:
		return true
	}
	return false
}

// Vote is one validator's immutable, weight-snapshotted ballot.
// At most one row exists per (application_id, validator_address).
type Vote struct {
	ID               string    `db:"id" json:"id"`
	ApplicationID    string    `db:"application_id" json:"application_id"`
	ValidatorAddress string    `db:"validator_address" json:"validator_address"`
	Value            VoteValue `db:"vote" json:"vote"`
	StakeAmount      float64   `db:"stake_amount" json:"stake_amount"`
	Weight           float64   `db:"vote_weight" json:"vote_weight"`
	Reasoning        *string   `db:"reasoning" json:"reasoning,omitempty"`
	TxHash           *string   `db:"blockchain_tx_hash" json:"blockchain_tx_hash,omitempty"`
	VotedAt          time.Time `db:"voted_at" json:"voted_at"`
}

// ConsensusOutcome is the decided disposition computed from all cast votes.
type ConsensusOutcome string

const (
	OutcomePending ConsensusOutcome = "pending"
	OutcomeApprove ConsensusOutcome = "approve"
	OutcomeReject  ConsensusOutcome = "reject"
	OutcomeFlag    ConsensusOutcome = "flag"
)

// ConsensusTally is the derived per-application vote aggregate. It is never
// stored as mutable truth; always recomputed from the vote set.
type ConsensusTally struct {
	ApplicationID  string  `json:"application_id"`
	DistinctVoters int     `json:"distinct_voters"`
	ApproveCount   int     `json:"approve_count"`
	RejectCount    int     `json:"reject_count"`
	FlagCount      int     `json:"flag_count"`
	ApproveWeight  float64 `json:"approve_weight"`
	RejectWeight   float64 `json:"reject_weight"`
	FlagWeight     float64 `json:"flag_weight"`
	TotalWeight    float64 `json:"total_weight"`
}
