package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verichain/verichain-api/internal/models"
)

const rejectionColumns = `id, application_id, rejection_reason, detailed_analysis, evidence,
        can_resubmit, can_appeal, created_at`

// RejectionRepository persists rejection analysis records.
type RejectionRepository struct {
	db *sqlx.DB
}

// NewRejectionRepository creates a new rejection repository.
func NewRejectionRepository(db *sqlx.DB) *RejectionRepository {
	return &RejectionRepository{db: db}
}

// InsertTx writes the record inside a lifecycle transition's transaction so
// the status change and the record commit together.
func (r *RejectionRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, rec *models.RejectionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rejection_analysis (id, application_id, rejection_reason, detailed_analysis,
            evidence, can_resubmit, can_appeal, created_at)
        VALUES (:id, :application_id, :rejection_reason, :detailed_analysis,
            :evidence, :can_resubmit, :can_appeal, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("insert rejection record: %w", err)
	}
	return nil
}

// FindByApplication loads the rejection record for an application.
func (r *RejectionRepository) FindByApplication(ctx context.Context, applicationID string) (*models.RejectionRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM rejection_analysis WHERE application_id = $1 ORDER BY created_at DESC LIMIT 1", rejectionColumns)
	var rec models.RejectionRecord
	if err := r.db.GetContext(ctx, &rec, query, applicationID); err != nil {
		return nil, err
	}
	return &rec, nil
}
