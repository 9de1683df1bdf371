package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type validatorRepo interface {
	FindByAddress(ctx context.Context, address string) (*models.Validator, error)
	Create(ctx context.Context, v *models.Validator) error
	List(ctx context.Context) ([]models.Validator, error)
	UpdateStake(ctx context.Context, address string, stake float64) error
	SetSuspended(ctx context.Context, address string, suspended bool) error
	TouchLastVote(ctx context.Context, address string, ts time.Time) error
}

type validatorVoteCounter interface {
	CountByValidator(ctx context.Context, validatorAddress string) (int, error)
}

// RegisterValidatorRequest holds the registration payload.
type RegisterValidatorRequest struct {
	Address     string  `json:"address" validate:"required,min=6"`
	DisplayName string  `json:"display_name" validate:"required"`
	StakeAmount float64 `json:"stake_amount" validate:"gte=0"`
}

// ValidatorProfile is the detail view of a validator: the registry row plus
// activity counters drawn from the vote log.
type ValidatorProfile struct {
	models.Validator
	VotesCast int `json:"votes_cast"`
}

// RegistryService is the read path for validator identity, stake and weight.
// Registration and stake changes are administrative operations; the voting
// path only ever reads from it.
type RegistryService struct {
	repo      validatorRepo
	votes     validatorVoteCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistryService constructs RegistryService.
func NewRegistryService(repo validatorRepo, votes validatorVoteCounter, validate *validator.Validate, logger *zap.Logger) *RegistryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{repo: repo, votes: votes, validator: validate, logger: logger}
}

// Snapshot loads the validator and returns it for weight snapshotting at vote
// time. Unknown addresses surface as NotEligible.
func (s *RegistryService) Snapshot(ctx context.Context, address string) (*models.Validator, error) {
	v, err := s.repo.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotEligible, "unknown validator")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validator")
	}
	return v, nil
}

// Profile returns the validator together with its lifetime vote count. The
// counter is best effort: a failed count serves the profile with zero rather
// than failing the read.
func (s *RegistryService) Profile(ctx context.Context, address string) (*ValidatorProfile, error) {
	v, err := s.Snapshot(ctx, address)
	if err != nil {
		return nil, err
	}
	profile := &ValidatorProfile{Validator: *v}
	if s.votes != nil {
		count, err := s.votes.CountByValidator(ctx, address)
		if err != nil {
			s.logger.Warn("failed to count validator votes", zap.String("address", address), zap.Error(err))
		} else {
			profile.VotesCast = count
		}
	}
	return profile, nil
}

// WeightOf returns the validator's current derived vote weight.
func (s *RegistryService) WeightOf(ctx context.Context, address string) (float64, error) {
	v, err := s.Snapshot(ctx, address)
	if err != nil {
		return 0, err
	}
	return v.VoteWeight(), nil
}

// IsEligible reports whether the address may currently vote.
func (s *RegistryService) IsEligible(ctx context.Context, address string) (bool, error) {
	v, err := s.repo.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validator")
	}
	return v.Eligible(), nil
}

// Register creates a new registry entry.
func (s *RegistryService) Register(ctx context.Context, req RegisterValidatorRequest) (*models.Validator, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validator payload")
	}
	if _, err := s.repo.FindByAddress(ctx, req.Address); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "validator already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check validator")
	}
	v := &models.Validator{
		Address:     req.Address,
		DisplayName: req.DisplayName,
		StakeAmount: req.StakeAmount,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register validator")
	}
	s.logger.Info("validator registered", zap.String("address", v.Address), zap.Float64("stake", v.StakeAmount))
	return v, nil
}

// List returns every registered validator.
func (s *RegistryService) List(ctx context.Context) ([]models.Validator, error) {
	validators, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list validators")
	}
	return validators, nil
}

// SetStake updates a validator's stake. Cast votes keep their snapshot.
func (s *RegistryService) SetStake(ctx context.Context, address string, stake float64) error {
	if stake < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "stake must be non-negative")
	}
	if err := s.repo.UpdateStake(ctx, address, stake); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "validator not found")
	}
	return nil
}

// SetSuspended toggles suspension.
func (s *RegistryService) SetSuspended(ctx context.Context, address string, suspended bool) error {
	if err := s.repo.SetSuspended(ctx, address, suspended); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "validator not found")
	}
	return nil
}

// RecordVoteActivity stamps the validator's last vote time. Best effort.
func (s *RegistryService) RecordVoteActivity(ctx context.Context, address string, ts time.Time) {
	if err := s.repo.TouchLastVote(ctx, address, ts); err != nil {
		s.logger.Warn("failed to record vote activity", zap.String("address", address), zap.Error(err))
	}
}
