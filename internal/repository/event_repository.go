package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verichain/verichain-api/internal/models"
)

const eventColumns = `id, event_type, application_id, user_id, validator_address, event_data, created_at`

// EventRepository appends analytics/audit events. Rows are never mutated.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert appends an audit event.
func (r *EventRepository) Insert(ctx context.Context, event *models.AnalyticsEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO analytics_events (id, event_type, application_id, user_id, validator_address, event_data, created_at)
        VALUES (:id, :event_type, :application_id, :user_id, :validator_address, :event_data, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListByApplication returns the audit trail for an application in order.
func (r *EventRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.AnalyticsEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM analytics_events WHERE application_id = $1 ORDER BY created_at ASC", eventColumns)
	var events []models.AnalyticsEvent
	if err := r.db.SelectContext(ctx, &events, query, applicationID); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
