package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/repository"
	"github.com/verichain/verichain-api/pkg/config"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type voteStore interface {
	Insert(ctx context.Context, vote *models.Vote) error
	ListByApplication(ctx context.Context, applicationID string) ([]models.Vote, error)
	HasVote(ctx context.Context, applicationID, validatorAddress string) (bool, error)
}

type analysisReader interface {
	FindByApplication(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error)
}

type voteObserver interface {
	ObserveVote(value models.VoteValue)
	ObserveConsensus(outcome models.ConsensusOutcome)
}

// SubmitVoteRequest is a validator's ballot payload.
type SubmitVoteRequest struct {
	Value     models.VoteValue `json:"vote" validate:"required"`
	Reasoning string           `json:"reasoning" validate:"max=2000"`
}

// VoteService is the vote aggregator. Check-and-append plus the consensus
// re-run execute inside one per-application critical section, so two
// concurrent votes can neither both miss quorum nor fire a transition twice.
type VoteService struct {
	locks     *appLocks
	apps      applicationStore
	votes     voteStore
	registry  *RegistryService
	lifecycle *LifecycleService
	analyses  analysisReader
	events    eventRecorder
	cfg       config.ConsensusConfig
	validator *validator.Validate
	metrics   voteObserver
	logger    *zap.Logger
}

// NewVoteService constructs VoteService.
func NewVoteService(apps applicationStore, votes voteStore, registry *RegistryService, lifecycle *LifecycleService, analyses analysisReader, events eventRecorder, cfg config.ConsensusConfig, validate *validator.Validate, metrics voteObserver, logger *zap.Logger) *VoteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoteService{
		locks:     newAppLocks(),
		apps:      apps,
		votes:     votes,
		registry:  registry,
		lifecycle: lifecycle,
		analyses:  analyses,
		events:    events,
		cfg:       cfg,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit records one validator's vote and re-evaluates consensus.
func (s *VoteService) Submit(ctx context.Context, applicationID, validatorAddress string, req SubmitVoteRequest) (*models.Vote, *models.ConsensusTally, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vote payload")
	}
	if !req.Value.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "vote must be approve, reject or flag")
	}

	release := s.locks.Acquire(applicationID)
	defer release()

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != models.StatusUnderReview {
		return nil, nil, appErrors.Clone(appErrors.ErrNotVotable, "application status is "+string(app.Status))
	}

	snapshot, err := s.registry.Snapshot(ctx, validatorAddress)
	if err != nil {
		return nil, nil, err
	}
	if !snapshot.Eligible() {
		return nil, nil, appErrors.Clone(appErrors.ErrNotEligible, "validator is suspended or has no stake")
	}

	exists, err := s.votes.HasVote(ctx, applicationID, validatorAddress)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prior vote")
	}
	if exists {
		return nil, nil, appErrors.Clone(appErrors.ErrDuplicate, "")
	}

	vote := &models.Vote{
		ApplicationID:    applicationID,
		ValidatorAddress: validatorAddress,
		Value:            req.Value,
		StakeAmount:      snapshot.StakeAmount,
		Weight:           snapshot.VoteWeight(),
		VotedAt:          time.Now().UTC(),
	}
	if req.Reasoning != "" {
		vote.Reasoning = &req.Reasoning
	}
	if err := s.votes.Insert(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicateVote) {
			return nil, nil, appErrors.Clone(appErrors.ErrDuplicate, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
	}

	s.registry.RecordVoteActivity(ctx, validatorAddress, vote.VotedAt)
	s.recordVoteEvent(ctx, vote)
	if s.metrics != nil {
		s.metrics.ObserveVote(vote.Value)
	}

	tally, err := s.evaluate(ctx, app)
	if err != nil {
		// The vote is committed; a failed evaluation is retried by the
		// sweeper rather than surfaced as a vote failure.
		s.logger.Error("consensus evaluation failed after vote", zap.String("application_id", applicationID), zap.Error(err))
		fallback := TallyVotes(applicationID, []models.Vote{*vote})
		return vote, &fallback, nil
	}
	return vote, tally, nil
}

// Tally recomputes the current tally for an application.
func (s *VoteService) Tally(ctx context.Context, applicationID string) (*models.ConsensusTally, error) {
	votes, err := s.votes.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load votes")
	}
	tally := TallyVotes(applicationID, votes)
	return &tally, nil
}

// List returns the application's vote log.
func (s *VoteService) List(ctx context.Context, applicationID string) ([]models.Vote, error) {
	votes, err := s.votes.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load votes")
	}
	return votes, nil
}

// ResolveExpired closes out an application whose voting window has lapsed.
// Below quorum the application is flagged for manual review; at or above
// quorum the heaviest side wins, with ties resolved conservatively.
func (s *VoteService) ResolveExpired(ctx context.Context, applicationID string) (models.ConsensusOutcome, error) {
	release := s.locks.Acquire(applicationID)
	defer release()

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return models.OutcomePending, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != models.StatusUnderReview {
		// Already resolved by a vote or an admin between listing and locking.
		return models.OutcomePending, nil
	}

	votes, err := s.votes.ListByApplication(ctx, applicationID)
	if err != nil {
		return models.OutcomePending, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load votes")
	}
	tally := TallyVotes(applicationID, votes)
	outcome := ResolveExpiredConsensus(tally, s.cfg)

	event, ok := lifecycleEventFor(outcome)
	if !ok {
		return models.OutcomePending, nil
	}
	decision := NewDecision(event)
	decision.Detail = "voting window expired"
	decision.Trigger = &RejectionTrigger{
		Source:  TriggerTimeout,
		Votes:   votes,
		Outcome: outcome,
	}
	if analysis, err := s.analyses.FindByApplication(ctx, applicationID); err == nil {
		decision.Trigger.Analysis = analysis
	}

	if _, err := s.lifecycle.Apply(ctx, app, decision); err != nil {
		if appErrors.Is(err, appErrors.ErrAlreadyTerminal) || appErrors.Is(err, appErrors.ErrInvalidTransition) {
			return models.OutcomePending, nil
		}
		return models.OutcomePending, err
	}
	if s.metrics != nil {
		s.metrics.ObserveConsensus(outcome)
	}
	return outcome, nil
}

// evaluate re-runs the consensus evaluator and, on a decisive outcome,
// applies the lifecycle transition. Caller must hold the application lock.
func (s *VoteService) evaluate(ctx context.Context, app *models.Application) (*models.ConsensusTally, error) {
	votes, err := s.votes.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	tally := TallyVotes(app.ID, votes)
	outcome := EvaluateConsensus(tally, s.cfg)
	if s.metrics != nil {
		s.metrics.ObserveConsensus(outcome)
	}
	if outcome == models.OutcomePending {
		return &tally, nil
	}

	event, _ := lifecycleEventFor(outcome)
	decision := NewDecision(event)
	decision.Detail = "validator quorum decision"
	decision.Trigger = &RejectionTrigger{
		Source:  TriggerConsensus,
		Votes:   votes,
		Outcome: outcome,
	}
	if analysis, err := s.analyses.FindByApplication(ctx, app.ID); err == nil {
		decision.Trigger.Analysis = analysis
	}

	if _, err := s.lifecycle.Apply(ctx, app, decision); err != nil {
		// A concurrent decision already landed; the vote itself stands.
		if appErrors.Is(err, appErrors.ErrAlreadyTerminal) || appErrors.Is(err, appErrors.ErrInvalidTransition) {
			s.logger.Info("consensus decision lost transition race", zap.String("application_id", app.ID))
			return &tally, nil
		}
		return nil, err
	}
	return &tally, nil
}

func (s *VoteService) recordVoteEvent(ctx context.Context, vote *models.Vote) {
	data, _ := json.Marshal(map[string]interface{}{
		"vote":   string(vote.Value),
		"weight": vote.Weight,
	})
	event := &models.AnalyticsEvent{
		EventType:        models.EventTypeVoteCast,
		ApplicationID:    &vote.ApplicationID,
		ValidatorAddress: &vote.ValidatorAddress,
		EventData:        data,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Warn("failed to record vote event", zap.String("application_id", vote.ApplicationID), zap.Error(err))
	}
}
