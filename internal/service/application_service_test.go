package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/analysis"
	"github.com/verichain/verichain-api/pkg/config"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type mockApplicationRepo struct {
	*mockAppStore
	created int
}

func newMockApplicationRepo(apps ...*models.Application) *mockApplicationRepo {
	// Start the ID counter past the seeded applications so generated
	// "app-N" IDs never collide with a seeded "app-N".
	return &mockApplicationRepo{mockAppStore: newMockAppStore(apps...), created: len(apps)}
}

func (m *mockApplicationRepo) Create(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	if app.ID == "" {
		app.ID = fmt.Sprintf("app-%d", m.created)
	}
	cp := *app
	m.items[app.ID] = &cp
	return nil
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Application
	for _, app := range m.items {
		if filter.UserID != "" && app.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, *app)
	}
	return out, len(out), nil
}

type mockAnalysisStore struct {
	mu      sync.Mutex
	results []models.AIAnalysisResult
}

func (m *mockAnalysisStore) Insert(ctx context.Context, result *models.AIAnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result.ID = fmt.Sprintf("analysis-%d", len(m.results)+1)
	m.results = append(m.results, *result)
	return nil
}

func (m *mockAnalysisStore) FindByApplication(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Latest wins: a rerun supersedes the earlier row.
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].ApplicationID == applicationID {
			cp := m.results[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockRejectionReader struct {
	records map[string]*models.RejectionRecord
}

func (m *mockRejectionReader) FindByApplication(ctx context.Context, applicationID string) (*models.RejectionRecord, error) {
	rec, ok := m.records[applicationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *rec
	return &cp, nil
}

type mockCertificateReader struct {
	certs    map[string]*models.NFTCertificate
	requests map[string]*models.CertificateIssuanceRequest
}

func (m *mockCertificateReader) FindCertificateByApplication(ctx context.Context, applicationID string) (*models.NFTCertificate, error) {
	cert, ok := m.certs[applicationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cert, nil
}

func (m *mockCertificateReader) FindRequestByApplication(ctx context.Context, applicationID string) (*models.CertificateIssuanceRequest, error) {
	req, ok := m.requests[applicationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return req, nil
}

type mockScorer struct {
	mu       sync.Mutex
	requests []analysis.AnalyzeRequest
	err      error
}

func (m *mockScorer) RequestAnalysis(ctx context.Context, req analysis.AnalyzeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.err
}

type applicationFixture struct {
	repo       *mockApplicationRepo
	analyses   *mockAnalysisStore
	rejects    *mockRejectionReader
	certs      *mockCertificateReader
	rejections *mockRejectionWriter
	scorer     *mockScorer
	notifier   *mockNotifier
	svc        *ApplicationService
}

func newApplicationFixture(apps ...*models.Application) *applicationFixture {
	f := &applicationFixture{
		repo:       newMockApplicationRepo(apps...),
		analyses:   &mockAnalysisStore{},
		rejects:    &mockRejectionReader{records: map[string]*models.RejectionRecord{}},
		certs:      &mockCertificateReader{certs: map[string]*models.NFTCertificate{}, requests: map[string]*models.CertificateIssuanceRequest{}},
		rejections: &mockRejectionWriter{},
		scorer:     &mockScorer{},
		notifier:   &mockNotifier{},
	}
	lifecycle := NewLifecycleService(f.repo.mockAppStore, f.rejections, &mockCertWriter{}, &mockEventRecorder{},
		NewRejectionService(), &mockDispatcher{}, f.notifier, nil, nil, zap.NewNop())
	prescreen := NewPreScreenService(config.PreScreenConfig{MinConfidence: 0.6, MinAuthenticity: 0.5}, zap.NewNop())
	f.svc = NewApplicationService(f.repo, f.analyses, f.rejects, f.certs, &mockEventRecorder{},
		lifecycle, prescreen, f.scorer, f.notifier, "https://api.verichain.example", nil, zap.NewNop())
	return f
}

func validSubmission() SubmitApplicationRequest {
	return SubmitApplicationRequest{
		Title:          "BSc Computer Science",
		Institution:    "MIT",
		ApplicantName:  "Alice Example",
		ApplicantEmail: "alice@example.com",
		DocumentsCount: 3,
	}
}

func TestApplicationSubmitHandsOffToAnalysis(t *testing.T) {
	f := newApplicationFixture()

	app, err := f.svc.Submit(context.Background(), "user-1", validSubmission())
	require.NoError(t, err)
	assert.Equal(t, models.StatusAIChecking, app.Status)
	assert.NotNil(t, app.SubmittedAt)
	assert.Nil(t, app.PreviousID)

	require.Len(t, f.scorer.requests, 1)
	assert.Equal(t, app.ID, f.scorer.requests[0].ApplicationID)
	assert.Equal(t, "https://api.verichain.example/api/v1/applications/"+app.ID+"/analysis",
		f.scorer.requests[0].CallbackURL)
}

func TestApplicationSubmitCarriesApplicantWallet(t *testing.T) {
	f := newApplicationFixture()

	req := validSubmission()
	req.ApplicantAddress = "0xapplicant01"
	app, err := f.svc.Submit(context.Background(), "user-1", req)
	require.NoError(t, err)
	require.NotNil(t, app.ApplicantAddress)
	assert.Equal(t, "0xapplicant01", *app.ApplicantAddress)

	// Without a wallet the field stays unset and issuance falls back to
	// the custodial account.
	app, err = f.svc.Submit(context.Background(), "user-1", validSubmission())
	require.NoError(t, err)
	assert.Nil(t, app.ApplicantAddress)

	short := validSubmission()
	short.ApplicantAddress = "0x1"
	_, err = f.svc.Submit(context.Background(), "user-1", short)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestApplicationSubmitValidation(t *testing.T) {
	f := newApplicationFixture()

	req := validSubmission()
	req.ApplicantEmail = "not-an-email"
	_, err := f.svc.Submit(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, f.repo.created)

	bad := validSubmission()
	gpa := 5.0
	bad.GPA = &gpa
	_, err = f.svc.Submit(context.Background(), "user-1", bad)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestApplicationSubmitSurvivesScorerOutage(t *testing.T) {
	f := newApplicationFixture()
	f.scorer.err = errors.New("collaborator down")

	app, err := f.svc.Submit(context.Background(), "user-1", validSubmission())
	require.NoError(t, err)
	// Dispatch failure is not an intake failure: the application is already
	// in ai-checking and the webhook stays open.
	assert.Equal(t, models.StatusAIChecking, f.repo.status(app.ID))
}

func TestRecordAnalysisAdvancesCleanResult(t *testing.T) {
	f := newApplicationFixture()
	app, err := f.svc.Submit(context.Background(), "user-1", validSubmission())
	require.NoError(t, err)

	result, outcome, err := f.svc.RecordAnalysis(context.Background(), app.ID, RecordAnalysisRequest{
		EligibilityMatchScore:     0.9,
		DocumentAuthenticityScore: 0.95,
		ConfidenceLevel:           0.85,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PreScreenAdvance, outcome)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, models.StatusUnderReview, f.repo.status(app.ID))
}

func TestRecordAnalysisFlagsForgery(t *testing.T) {
	f := newApplicationFixture()
	app, err := f.svc.Submit(context.Background(), "user-1", validSubmission())
	require.NoError(t, err)

	_, outcome, err := f.svc.RecordAnalysis(context.Background(), app.ID, RecordAnalysisRequest{
		EligibilityMatchScore:     0.9,
		DocumentAuthenticityScore: 0.2,
		ConfidenceLevel:           0.9,
		ForgeryIndicators:         []string{string(models.IndicatorSealTampering)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PreScreenFlag, outcome)
	assert.Equal(t, models.StatusFlagged, f.repo.status(app.ID))

	require.Len(t, f.rejections.records, 1)
	assert.Equal(t, models.ReasonTamperedDocuments, f.rejections.records[0].Reason)
}

func TestRecordAnalysisInsufficientKeepsAIChecking(t *testing.T) {
	f := newApplicationFixture()
	app, err := f.svc.Submit(context.Background(), "user-1", validSubmission())
	require.NoError(t, err)

	_, outcome, err := f.svc.RecordAnalysis(context.Background(), app.ID, RecordAnalysisRequest{
		EligibilityMatchScore:     0.9,
		DocumentAuthenticityScore: 0.9,
		ConfidenceLevel:           0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PreScreenInsufficient, outcome)
	assert.Equal(t, models.StatusAIChecking, f.repo.status(app.ID))

	// A confident rerun supersedes the weak result and advances.
	_, outcome, err = f.svc.RecordAnalysis(context.Background(), app.ID, RecordAnalysisRequest{
		EligibilityMatchScore:     0.9,
		DocumentAuthenticityScore: 0.9,
		ConfidenceLevel:           0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PreScreenAdvance, outcome)
	assert.Equal(t, models.StatusUnderReview, f.repo.status(app.ID))

	latest, err := f.svc.GetAnalysis(context.Background(), app.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, latest.ConfidenceLevel, 1e-9)
}

func TestRecordAnalysisRejectsWrongState(t *testing.T) {
	f := newApplicationFixture(underReviewApp("app-1"))

	_, _, err := f.svc.RecordAnalysis(context.Background(), "app-1", RecordAnalysisRequest{
		ConfidenceLevel: 0.9,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWithdrawOwnerOnly(t *testing.T) {
	f := newApplicationFixture(underReviewApp("app-1"))

	_, err := f.svc.Withdraw(context.Background(), "app-1", "someone-else", false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	app, err := f.svc.Withdraw(context.Background(), "app-1", "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, app.Status)
}

func TestWithdrawAdminOverride(t *testing.T) {
	f := newApplicationFixture(underReviewApp("app-1"))

	app, err := f.svc.Withdraw(context.Background(), "app-1", "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, app.Status)
}

func TestResubmitGatedByRejectionPolicy(t *testing.T) {
	rejected := underReviewApp("app-1")
	rejected.Status = models.StatusRejected
	f := newApplicationFixture(rejected)
	f.rejects.records["app-1"] = &models.RejectionRecord{
		ApplicationID: "app-1",
		Reason:        models.ReasonForgedDocuments,
		CanResubmit:   false,
		CanAppeal:     true,
	}

	_, err := f.svc.Resubmit(context.Background(), "app-1", "user-1", validSubmission())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestResubmitLinksSupersededApplication(t *testing.T) {
	rejected := underReviewApp("app-1")
	rejected.Status = models.StatusRejected
	f := newApplicationFixture(rejected)
	f.rejects.records["app-1"] = &models.RejectionRecord{
		ApplicationID: "app-1",
		Reason:        models.ReasonMissingInformation,
		CanResubmit:   true,
	}

	next, err := f.svc.Resubmit(context.Background(), "app-1", "user-1", validSubmission())
	require.NoError(t, err)
	require.NotNil(t, next.PreviousID)
	assert.Equal(t, "app-1", *next.PreviousID)
	assert.NotEqual(t, "app-1", next.ID)
	assert.Equal(t, models.StatusAIChecking, next.Status)

	// The superseded application keeps its terminal status.
	assert.Equal(t, models.StatusRejected, f.repo.status("app-1"))
}

func TestResubmitRequiresTerminalRejection(t *testing.T) {
	f := newApplicationFixture(underReviewApp("app-1"))

	_, err := f.svc.Resubmit(context.Background(), "app-1", "user-1", validSubmission())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAppealGatedByRejectionPolicy(t *testing.T) {
	rejected := underReviewApp("app-1")
	rejected.Status = models.StatusRejected
	f := newApplicationFixture(rejected)
	f.rejects.records["app-1"] = &models.RejectionRecord{
		ApplicationID: "app-1",
		Reason:        models.ReasonMissingInformation,
		CanResubmit:   true,
		CanAppeal:     false,
	}

	err := f.svc.Appeal(context.Background(), "app-1", "user-1", "I disagree")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAppealRecordedWithoutTransition(t *testing.T) {
	rejected := underReviewApp("app-1")
	rejected.Status = models.StatusRejected
	f := newApplicationFixture(rejected)
	f.rejects.records["app-1"] = &models.RejectionRecord{
		ApplicationID: "app-1",
		Reason:        models.ReasonForgedDocuments,
		CanAppeal:     true,
	}

	require.NoError(t, f.svc.Appeal(context.Background(), "app-1", "user-1", "documents are genuine"))
	assert.Equal(t, models.StatusRejected, f.repo.status("app-1"))

	var found bool
	for _, msg := range f.notifier.messages {
		if msg.EventType == models.NotifyAppealReceived {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGetScopesApplicantsToOwnApplications(t *testing.T) {
	f := newApplicationFixture(underReviewApp("app-1"))

	_, err := f.svc.Get(context.Background(), "app-1", "someone-else", models.RoleApplicant)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	app, err := f.svc.Get(context.Background(), "app-1", "someone-else", models.RoleValidator)
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
}

func TestListForcesApplicantFilter(t *testing.T) {
	other := underReviewApp("app-2")
	other.UserID = "user-2"
	f := newApplicationFixture(underReviewApp("app-1"), other)

	apps, total, err := f.svc.List(context.Background(), models.ApplicationFilter{}, "user-1", models.RoleApplicant)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, apps, 1)
	assert.Equal(t, "user-1", apps[0].UserID)

	_, total, err = f.svc.List(context.Background(), models.ApplicationFilter{}, "user-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestGetCertificateFallsBackToIssuanceRequest(t *testing.T) {
	f := newApplicationFixture()
	f.certs.requests["app-1"] = &models.CertificateIssuanceRequest{
		ID: "req-1", ApplicationID: "app-1", Status: models.IssuancePending,
	}

	cert, req, err := f.svc.GetCertificate(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Nil(t, cert)
	require.NotNil(t, req)
	assert.Equal(t, models.IssuancePending, req.Status)

	f.certs.certs["app-1"] = &models.NFTCertificate{ApplicationID: "app-1", TokenID: "7"}
	cert, req, err = f.svc.GetCertificate(context.Background(), "app-1")
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Nil(t, req)

	_, _, err = f.svc.GetCertificate(context.Background(), "app-404")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
