package service

import (
	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/config"
)

// TallyVotes folds the immutable vote log into a ConsensusTally. The tally is
// a pure function of the vote set and is never persisted as mutable truth.
func TallyVotes(applicationID string, votes []models.Vote) models.ConsensusTally {
	tally := models.ConsensusTally{ApplicationID: applicationID}
	seen := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		if _, dup := seen[v.ValidatorAddress]; dup {
			continue
		}
		seen[v.ValidatorAddress] = struct{}{}
		switch v.Value {
		case models.VoteApprove:
			tally.ApproveCount++
			tally.ApproveWeight += v.Weight
		case models.VoteReject:
			tally.RejectCount++
			tally.RejectWeight += v.Weight
		case models.VoteFlag:
			tally.FlagCount++
			tally.FlagWeight += v.Weight
		}
	}
	tally.DistinctVoters = len(seen)
	tally.TotalWeight = tally.ApproveWeight + tally.RejectWeight + tally.FlagWeight
	return tally
}

// EvaluateConsensus computes the outcome for a tally. The precedence order
// flag, approve, reject is fixed so a late concurrent vote can never make two
// sides decisive at once; the result depends only on the final vote set.
func EvaluateConsensus(tally models.ConsensusTally, cfg config.ConsensusConfig) models.ConsensusOutcome {
	if tally.DistinctVoters < cfg.QuorumThreshold {
		return models.OutcomePending
	}
	if tally.TotalWeight <= 0 {
		return models.OutcomePending
	}
	if tally.FlagWeight/tally.TotalWeight >= cfg.FlagWeightThreshold {
		return models.OutcomeFlag
	}
	if tally.ApproveWeight/tally.TotalWeight >= cfg.ApprovalWeightThreshold {
		return models.OutcomeApprove
	}
	if tally.RejectWeight/tally.TotalWeight >= cfg.ApprovalWeightThreshold {
		return models.OutcomeReject
	}
	return models.OutcomePending
}

// ResolveExpiredConsensus decides an application whose voting window has
// elapsed without a decisive outcome. With quorum met the majority weight
// wins (flag, then approve, then reject on exact ties). Without quorum the
// application is flagged for manual review rather than left to starve.
func ResolveExpiredConsensus(tally models.ConsensusTally, cfg config.ConsensusConfig) models.ConsensusOutcome {
	if outcome := EvaluateConsensus(tally, cfg); outcome != models.OutcomePending {
		return outcome
	}
	if tally.DistinctVoters < cfg.QuorumThreshold {
		return models.OutcomeFlag
	}
	switch {
	case tally.FlagWeight >= tally.ApproveWeight && tally.FlagWeight >= tally.RejectWeight:
		return models.OutcomeFlag
	case tally.ApproveWeight >= tally.RejectWeight:
		return models.OutcomeApprove
	default:
		return models.OutcomeReject
	}
}

// lifecycleEventFor maps a decisive outcome to its lifecycle event.
func lifecycleEventFor(outcome models.ConsensusOutcome) (models.LifecycleEvent, bool) {
	switch outcome {
	case models.OutcomeApprove:
		return models.EventConsensusApprove, true
	case models.OutcomeReject:
		return models.EventConsensusReject, true
	case models.OutcomeFlag:
		return models.EventConsensusFlag, true
	}
	return "", false
}
