package models

import (
	"math"
	"time"
)

// Validator is a registered human reviewer identified by wallet address.
type Validator struct {
	Address     string     `db:"address" json:"address"`
	DisplayName string     `db:"display_name" json:"display_name"`
	StakeAmount float64    `db:"stake_amount" json:"stake_amount"`
	Suspended   bool       `db:"suspended" json:"suspended"`
	LastVoteAt  *time.Time `db:"last_vote_at" json:"last_vote_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// VoteWeight derives the validator's current vote weight from stake.
// Policy is square-root of stake, fixed per deployment, so influence grows
// sub-linearly and large stakers cannot trivially dominate a quorum. A vote
// snapshots this value at cast time; later stake changes never alter it.
func (v *Validator) VoteWeight() float64 {
	if v.StakeAmount <= 0 {
		return 0
	}
	return math.Sqrt(v.StakeAmount)
}

// Eligible reports whether the validator may currently cast votes.
func (v *Validator) Eligible() bool {
	return !v.Suspended && v.StakeAmount > 0
}
