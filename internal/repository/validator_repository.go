package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/verichain/verichain-api/internal/models"
)

const validatorColumns = `address, display_name, stake_amount, suspended, last_vote_at, created_at, updated_at`

// ValidatorRepository persists the validator registry.
type ValidatorRepository struct {
	db *sqlx.DB
}

// NewValidatorRepository creates a new validator repository.
func NewValidatorRepository(db *sqlx.DB) *ValidatorRepository {
	return &ValidatorRepository{db: db}
}

// FindByAddress loads a validator registry entry.
func (r *ValidatorRepository) FindByAddress(ctx context.Context, address string) (*models.Validator, error) {
	query := fmt.Sprintf("SELECT %s FROM validators WHERE address = $1 LIMIT 1", validatorColumns)
	var v models.Validator
	if err := r.db.GetContext(ctx, &v, query, address); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create registers a validator.
func (r *ValidatorRepository) Create(ctx context.Context, v *models.Validator) error {
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	const query = `INSERT INTO validators (address, display_name, stake_amount, suspended, created_at, updated_at)
        VALUES (:address, :display_name, :stake_amount, :suspended, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create validator: %w", err)
	}
	return nil
}

// List returns all registered validators.
func (r *ValidatorRepository) List(ctx context.Context) ([]models.Validator, error) {
	query := fmt.Sprintf("SELECT %s FROM validators ORDER BY stake_amount DESC", validatorColumns)
	var validators []models.Validator
	if err := r.db.SelectContext(ctx, &validators, query); err != nil {
		return nil, fmt.Errorf("list validators: %w", err)
	}
	return validators, nil
}

// UpdateStake sets a validator's stake. Already-cast votes keep their
// snapshotted weight; only future votes see the new stake.
func (r *ValidatorRepository) UpdateStake(ctx context.Context, address string, stake float64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE validators SET stake_amount = $1, updated_at = $2 WHERE address = $3",
		stake, time.Now().UTC(), address)
	if err != nil {
		return fmt.Errorf("update stake: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotApplied
	}
	return nil
}

// SetSuspended toggles the validator's suspension flag.
func (r *ValidatorRepository) SetSuspended(ctx context.Context, address string, suspended bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE validators SET suspended = $1, updated_at = $2 WHERE address = $3",
		suspended, time.Now().UTC(), address)
	if err != nil {
		return fmt.Errorf("set suspended: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotApplied
	}
	return nil
}

// TouchLastVote records the validator's most recent voting activity.
func (r *ValidatorRepository) TouchLastVote(ctx context.Context, address string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE validators SET last_vote_at = $1 WHERE address = $2", ts, address); err != nil {
		return fmt.Errorf("touch last vote: %w", err)
	}
	return nil
}
