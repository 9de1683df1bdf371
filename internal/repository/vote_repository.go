package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/verichain/verichain-api/internal/models"
)

// ErrDuplicateVote indicates the (application_id, validator_address) pair
// already holds a vote. Raised by the unique index, which backstops the
// in-process critical section.
var ErrDuplicateVote = errors.New("duplicate vote")

const voteColumns = `id, application_id, validator_address, vote, stake_amount, vote_weight,
        reasoning, blockchain_tx_hash, voted_at`

// VoteRepository persists the immutable vote log.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository creates a new vote repository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Insert appends a vote. Votes are never updated or deleted.
func (r *VoteRepository) Insert(ctx context.Context, vote *models.Vote) error {
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	if vote.VotedAt.IsZero() {
		vote.VotedAt = time.Now().UTC()
	}
	const query = `INSERT INTO validator_votes (id, application_id, validator_address, vote, stake_amount,
            vote_weight, reasoning, blockchain_tx_hash, voted_at)
        VALUES (:id, :application_id, :validator_address, :vote, :stake_amount,
            :vote_weight, :reasoning, :blockchain_tx_hash, :voted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vote); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateVote
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// ListByApplication returns all votes for an application in cast order.
func (r *VoteRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.Vote, error) {
	query := fmt.Sprintf("SELECT %s FROM validator_votes WHERE application_id = $1 ORDER BY voted_at ASC", voteColumns)
	var votes []models.Vote
	if err := r.db.SelectContext(ctx, &votes, query, applicationID); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}

// HasVote reports whether the validator already voted on the application.
func (r *VoteRepository) HasVote(ctx context.Context, applicationID, validatorAddress string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM validator_votes WHERE application_id = $1 AND validator_address = $2",
		applicationID, validatorAddress)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return count > 0, nil
}

// CountByValidator returns how many votes the validator has cast in total.
func (r *VoteRepository) CountByValidator(ctx context.Context, validatorAddress string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM validator_votes WHERE validator_address = $1", validatorAddress); err != nil {
		return 0, fmt.Errorf("count validator votes: %w", err)
	}
	return count, nil
}
