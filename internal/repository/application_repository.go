package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verichain/verichain-api/internal/models"
)

// ErrNotApplied indicates a compare-and-swap status update matched no row:
// either the application is gone or its status changed under the caller.
var ErrNotApplied = errors.New("transition not applied")

const applicationColumns = `id, user_id, title, institution, description, applicant_name, applicant_email,
        applicant_address, student_id, gpa, graduation_date, documents_count, status,
        previous_application_id, submitted_at, created_at, updated_at`

// ApplicationRepository persists credential applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new application repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application row.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	const query = `INSERT INTO applications (id, user_id, title, institution, description, applicant_name,
            applicant_email, applicant_address, student_id, gpa, graduation_date, documents_count,
            status, previous_application_id, submitted_at, created_at, updated_at)
        VALUES (:id, :user_id, :title, :institution, :description, :applicant_name,
            :applicant_email, :applicant_address, :student_id, :gpa, :graduation_date, :documents_count,
            :status, :previous_application_id, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID loads a single application.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1 LIMIT 1", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter plus the total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.UserID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", len(args)+1)
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR institution ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM applications%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		applicationColumns, where, pageSize, (page-1)*pageSize)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM applications" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// Transition performs a compare-and-swap status update. The WHERE clause on
// the expected status makes a losing concurrent caller match zero rows.
func (r *ApplicationRepository) Transition(ctx context.Context, id string, from, to models.ApplicationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("transition application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition application: %w", err)
	}
	if affected == 0 {
		return ErrNotApplied
	}
	return nil
}

// TransitionWithSideEffect runs the CAS update and the transition's single
// side effect in one transaction: both commit or neither does.
func (r *ApplicationRepository) TransitionWithSideEffect(ctx context.Context, id string, from, to models.ApplicationStatus, sideEffect func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("transition application: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrNotApplied
	}
	if sideEffect != nil {
		if err := sideEffect(tx); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("transition side effect: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// ListStaleUnderReview returns applications still under review whose last
// transition happened before the cutoff. Used by the voting-window sweeper.
func (r *ApplicationRepository) ListStaleUnderReview(ctx context.Context, cutoff time.Time) ([]models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC", applicationColumns)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, string(models.StatusUnderReview), cutoff); err != nil {
		return nil, fmt.Errorf("list stale applications: %w", err)
	}
	return apps, nil
}
