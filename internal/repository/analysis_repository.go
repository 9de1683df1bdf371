package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verichain/verichain-api/internal/models"
)

const analysisColumns = `id, application_id, eligibility_match_score, document_authenticity_score,
        confidence_level, forgery_indicators, missing_information, ai_recommendation, processed_at`

// AnalysisRepository persists AI analysis results. Rows are append-only;
// a retried analysis after an insufficient-confidence run adds a new row and
// the newest row is authoritative.
type AnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Insert records one scorer run.
func (r *AnalysisRepository) Insert(ctx context.Context, result *models.AIAnalysisResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ai_analysis (id, application_id, eligibility_match_score,
            document_authenticity_score, confidence_level, forgery_indicators, missing_information,
            ai_recommendation, processed_at)
        VALUES (:id, :application_id, :eligibility_match_score,
            :document_authenticity_score, :confidence_level, :forgery_indicators, :missing_information,
            :ai_recommendation, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// FindByApplication loads the most recent analysis for an application.
func (r *AnalysisRepository) FindByApplication(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error) {
	query := fmt.Sprintf("SELECT %s FROM ai_analysis WHERE application_id = $1 ORDER BY processed_at DESC LIMIT 1", analysisColumns)
	var result models.AIAnalysisResult
	if err := r.db.GetContext(ctx, &result, query, applicationID); err != nil {
		return nil, err
	}
	return &result, nil
}
