package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain/verichain-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func applicationRows(id string, status models.ApplicationStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "institution", "description", "applicant_name", "applicant_email",
		"applicant_address", "student_id", "gpa", "graduation_date", "documents_count", "status",
		"previous_application_id", "submitted_at", "created_at", "updated_at",
	}).AddRow(id, "user-1", "BSc Computer Science", "MIT", nil, "Alice", "alice@example.com",
		nil, nil, nil, nil, 2, string(status), nil, now, now, now)
}

func TestApplicationFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1 LIMIT 1")).
		WithArgs("app-1").
		WillReturnRows(applicationRows("app-1", models.StatusUnderReview))

	app, err := repo.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, models.StatusUnderReview, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec("INSERT INTO applications").WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.Application{
		UserID:         "user-1",
		Title:          "BSc Computer Science",
		Institution:    "MIT",
		ApplicantName:  "Alice",
		ApplicantEmail: "alice@example.com",
		Status:         models.StatusSubmitted,
	}
	err := repo.Create(context.Background(), app)
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.False(t, app.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationTransitionApplied(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs(string(models.StatusApproved), sqlmock.AnyArg(), "app-1", string(models.StatusUnderReview)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), "app-1", models.StatusUnderReview, models.StatusApproved)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationTransitionZeroRowsNotApplied(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs(string(models.StatusApproved), sqlmock.AnyArg(), "app-1", string(models.StatusUnderReview)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), "app-1", models.StatusUnderReview, models.StatusApproved)
	assert.ErrorIs(t, err, ErrNotApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationTransitionWithSideEffectCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var ran bool
	err := repo.TransitionWithSideEffect(context.Background(), "app-1", models.StatusUnderReview, models.StatusApproved, func(tx *sqlx.Tx) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationTransitionWithSideEffectRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("side effect failed")
	err := repo.TransitionWithSideEffect(context.Background(), "app-1", models.StatusUnderReview, models.StatusApproved, func(tx *sqlx.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationTransitionWithSideEffectNotAppliedSkipsSideEffect(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.TransitionWithSideEffect(context.Background(), "app-1", models.StatusUnderReview, models.StatusApproved, func(tx *sqlx.Tx) error {
		t.Fatal("side effect must not run when the swap misses")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationListFiltersByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE 1=1 AND user_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("user-1").
		WillReturnRows(applicationRows("app-1", models.StatusSubmitted))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications WHERE 1=1 AND user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	apps, total, err := repo.List(context.Background(), models.ApplicationFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationListStaleUnderReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC")).
		WithArgs(string(models.StatusUnderReview), cutoff).
		WillReturnRows(applicationRows("app-stale", models.StatusUnderReview))

	apps, err := repo.ListStaleUnderReview(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app-stale", apps[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
