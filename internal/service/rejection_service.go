package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/verichain/verichain-api/internal/models"
)

// RejectionTriggerSource identifies what caused the reject/flag decision.
type RejectionTriggerSource string

const (
	TriggerPreScreen RejectionTriggerSource = "prescreen"
	TriggerConsensus RejectionTriggerSource = "consensus"
	TriggerTimeout   RejectionTriggerSource = "timeout"
)

// RejectionTrigger carries the inputs the analyzer maps to a record.
type RejectionTrigger struct {
	Source   RejectionTriggerSource
	Analysis *models.AIAnalysisResult
	Votes    []models.Vote
	Outcome  models.ConsensusOutcome
}

// tamperingIndicators are the findings that mean an authentic document was
// altered, as opposed to fabricated outright.
var tamperingIndicators = map[models.ForgeryIndicator]struct{}{
	models.IndicatorSealTampering:  {},
	models.IndicatorMetadataEdited: {},
}

// RejectionService derives rejection records. The mapping is deterministic:
// the same trigger always yields the same reason and eligibility pair.
type RejectionService struct{}

// NewRejectionService constructs the analyzer.
func NewRejectionService() *RejectionService {
	return &RejectionService{}
}

// Analyze builds the immutable rejection record for an application leaving
// the pipeline via rejected or flagged.
func (s *RejectionService) Analyze(app *models.Application, trigger RejectionTrigger) *models.RejectionRecord {
	reason, detail := s.classify(trigger)
	canResubmit, canAppeal := models.RejectionPolicy(reason)

	evidence, _ := json.Marshal(map[string]interface{}{
		"source":  string(trigger.Source),
		"outcome": string(trigger.Outcome),
	})

	return &models.RejectionRecord{
		ApplicationID:    app.ID,
		Reason:           reason,
		DetailedAnalysis: detail,
		Evidence:         evidence,
		CanResubmit:      canResubmit,
		CanAppeal:        canAppeal,
	}
}

func (s *RejectionService) classify(trigger RejectionTrigger) (models.RejectionReason, string) {
	switch trigger.Source {
	case TriggerPreScreen:
		return s.classifyAnalysis(trigger.Analysis)
	case TriggerTimeout:
		// A reject on expiry is a quorum decision by majority weight and is
		// classified like any consensus reject; only the below-quorum flag
		// path parks the application for manual review.
		if trigger.Outcome == models.OutcomeReject {
			return s.classifyConsensus(trigger)
		}
		return models.ReasonMissingInformation,
			"voting window elapsed without a decisive quorum outcome; application parked for manual review"
	default:
		return s.classifyConsensus(trigger)
	}
}

// classifyAnalysis maps forgery indicators to a reason. Indicators that mean
// an authentic document was altered map to tampered_documents; fabrication
// signals map to forged_documents; a bare low authenticity score with no
// indicator is invalid_documents.
func (s *RejectionService) classifyAnalysis(analysis *models.AIAnalysisResult) (models.RejectionReason, string) {
	if analysis == nil {
		return models.ReasonInvalidDocuments, "document analysis unavailable"
	}
	if len(analysis.ForgeryIndicators) > 0 {
		reason := models.ReasonForgedDocuments
		for _, raw := range analysis.ForgeryIndicators {
			if _, tampered := tamperingIndicators[models.ForgeryIndicator(raw)]; tampered {
				reason = models.ReasonTamperedDocuments
				break
			}
		}
		return reason, fmt.Sprintf("automated screening found document integrity issues: %s",
			strings.Join(analysis.ForgeryIndicators, ", "))
	}
	return models.ReasonInvalidDocuments, fmt.Sprintf(
		"document authenticity score %.2f is below the acceptance floor", analysis.DocumentAuthenticityScore)
}

// classifyConsensus maps a validator decision to a reason using the analysis
// context plus the losing-side reasoning aggregate.
func (s *RejectionService) classifyConsensus(trigger RejectionTrigger) (models.RejectionReason, string) {
	detail := s.aggregateReasoning(trigger.Votes, trigger.Outcome)

	if trigger.Analysis != nil {
		if len(trigger.Analysis.MissingInformation) > 0 {
			return models.ReasonMissingInformation, detail
		}
		if trigger.Analysis.EligibilityMatchScore < 0.5 {
			return models.ReasonEligibilityMismatch, detail
		}
	}
	return models.ReasonInvalidDocuments, detail
}

func (s *RejectionService) aggregateReasoning(votes []models.Vote, outcome models.ConsensusOutcome) string {
	var reasons []string
	for _, v := range votes {
		if string(v.Value) != string(outcome) && outcome != models.OutcomeFlag {
			continue
		}
		if v.Reasoning != nil && *v.Reasoning != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", v.ValidatorAddress, *v.Reasoning))
		}
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("validator quorum decided %s", outcome)
	}
	return strings.Join(reasons, "; ")
}
