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
	"github.com/verichain/verichain-api/pkg/analysis"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type applicationRepo interface {
	applicationStore
	Create(ctx context.Context, app *models.Application) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
}

type analysisStore interface {
	Insert(ctx context.Context, result *models.AIAnalysisResult) error
	FindByApplication(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error)
}

type rejectionReader interface {
	FindByApplication(ctx context.Context, applicationID string) (*models.RejectionRecord, error)
}

type certificateReader interface {
	FindRequestByApplication(ctx context.Context, applicationID string) (*models.CertificateIssuanceRequest, error)
	FindCertificateByApplication(ctx context.Context, applicationID string) (*models.NFTCertificate, error)
}

type analysisRequester interface {
	RequestAnalysis(ctx context.Context, req analysis.AnalyzeRequest) error
}

// SubmitApplicationRequest is the applicant's submission payload.
type SubmitApplicationRequest struct {
	Title          string     `json:"title" validate:"required,min=3,max=200"`
	Institution    string     `json:"institution" validate:"required,min=2,max=200"`
	Description    string     `json:"description" validate:"max=5000"`
	ApplicantName  string     `json:"applicant_name" validate:"required,min=2,max=120"`
	ApplicantEmail string     `json:"applicant_email" validate:"required,email"`
	// ApplicantAddress is the wallet the certificate mints to; without it the
	// issuance request falls back to the custodial account keyed by user id.
	ApplicantAddress string     `json:"applicant_address" validate:"omitempty,min=6,max=128"`
	StudentID        string     `json:"student_id" validate:"max=60"`
	GPA              *float64   `json:"gpa" validate:"omitempty,gte=0,lte=4"`
	GraduationDate   *time.Time `json:"graduation_date"`
	DocumentsCount   int        `json:"documents_count" validate:"gte=0,lte=50"`
}

// RecordAnalysisRequest is the analysis collaborator's webhook payload.
type RecordAnalysisRequest struct {
	EligibilityMatchScore     float64  `json:"eligibility_match_score" validate:"gte=0,lte=1"`
	DocumentAuthenticityScore float64  `json:"document_authenticity_score" validate:"gte=0,lte=1"`
	ConfidenceLevel           float64  `json:"confidence_level" validate:"gte=0,lte=1"`
	ForgeryIndicators         []string `json:"forgery_indicators"`
	MissingInformation        []string `json:"missing_information"`
	Recommendation            string   `json:"ai_recommendation"`
}

// ApplicationService drives the application pipeline: intake, the pre-screen
// gate, applicant-facing reads, withdrawal, resubmission and appeals.
type ApplicationService struct {
	apps      applicationRepo
	analyses  analysisStore
	rejects   rejectionReader
	certs     certificateReader
	events    eventRecorder
	lifecycle *LifecycleService
	prescreen *PreScreenService
	scorer    analysisRequester
	notifier  userNotifier
	callback  string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationService constructs ApplicationService. callbackURL is the
// externally reachable base the analysis collaborator posts results back to.
func NewApplicationService(apps applicationRepo, analyses analysisStore, rejects rejectionReader, certs certificateReader, events eventRecorder, lifecycle *LifecycleService, prescreen *PreScreenService, scorer analysisRequester, notifier userNotifier, callbackURL string, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		apps:      apps,
		analyses:  analyses,
		rejects:   rejects,
		certs:     certs,
		events:    events,
		lifecycle: lifecycle,
		prescreen: prescreen,
		scorer:    scorer,
		notifier:  notifier,
		callback:  callbackURL,
		validator: validate,
		logger:    logger,
	}
}

// Submit creates a new application and hands it to the analysis collaborator.
// The application lands in ai-checking; scoring results arrive through the
// analysis webhook.
func (s *ApplicationService) Submit(ctx context.Context, userID string, req SubmitApplicationRequest) (*models.Application, error) {
	return s.submit(ctx, userID, req, nil)
}

func (s *ApplicationService) submit(ctx context.Context, userID string, req SubmitApplicationRequest, previousID *string) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	now := time.Now().UTC()
	app := &models.Application{
		UserID:         userID,
		Title:          req.Title,
		Institution:    req.Institution,
		ApplicantName:  req.ApplicantName,
		ApplicantEmail: req.ApplicantEmail,
		GPA:            req.GPA,
		GraduationDate: req.GraduationDate,
		DocumentsCount: req.DocumentsCount,
		Status:         models.StatusSubmitted,
		PreviousID:     previousID,
		SubmittedAt:    &now,
	}
	if req.Description != "" {
		app.Description = &req.Description
	}
	if req.ApplicantAddress != "" {
		app.ApplicantAddress = &req.ApplicantAddress
	}
	if req.StudentID != "" {
		app.StudentID = &req.StudentID
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	s.recordEvent(ctx, models.EventTypeApplicationSubmitted, app.ID, &userID, nil)

	updated, err := s.requestAnalysis(ctx, app)
	if err != nil {
		// The application stays in submitted; a later resubmit of the
		// analysis request is an admin concern, not a failed intake.
		s.logger.Error("failed to hand application to analysis", zap.String("application_id", app.ID), zap.Error(err))
		return app, nil
	}
	return updated, nil
}

// requestAnalysis moves the application into ai-checking and asks the
// collaborator for a scoring run.
func (s *ApplicationService) requestAnalysis(ctx context.Context, app *models.Application) (*models.Application, error) {
	decision := NewDecision(models.EventAnalysisRequested)
	decision.Detail = "documents handed to analysis collaborator"
	updated, err := s.lifecycle.Apply(ctx, app, decision)
	if err != nil {
		return nil, err
	}

	studentID := ""
	if app.StudentID != nil {
		studentID = *app.StudentID
	}
	err = s.scorer.RequestAnalysis(ctx, analysis.AnalyzeRequest{
		ApplicationID: app.ID,
		Institution:   app.Institution,
		ApplicantName: app.ApplicantName,
		StudentID:     studentID,
		CallbackURL:   s.callback + "/api/v1/applications/" + app.ID + "/analysis",
	})
	if err != nil {
		// ai-checking stands; the collaborator retries on its own schedule
		// and the webhook remains open.
		s.logger.Warn("analysis request dispatch failed", zap.String("application_id", app.ID), zap.Error(err))
	}
	return updated, nil
}

// RecordAnalysis consumes the analysis collaborator's webhook, persists the
// scorer output and runs the pre-screen gate. Low-confidence results keep the
// application in ai-checking so a later, better run can supersede them.
func (s *ApplicationService) RecordAnalysis(ctx context.Context, applicationID string, req RecordAnalysisRequest) (*models.AIAnalysisResult, models.PreScreenOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid analysis payload")
	}

	app, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, "", err
	}
	if app.Status != models.StatusAIChecking {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidTransition, "application is not awaiting analysis")
	}

	result := &models.AIAnalysisResult{
		ApplicationID:             applicationID,
		EligibilityMatchScore:     req.EligibilityMatchScore,
		DocumentAuthenticityScore: req.DocumentAuthenticityScore,
		ConfidenceLevel:           req.ConfidenceLevel,
		ForgeryIndicators:         req.ForgeryIndicators,
		MissingInformation:        req.MissingInformation,
	}
	if req.Recommendation != "" {
		result.Recommendation = &req.Recommendation
	}
	if err := s.analyses.Insert(ctx, result); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record analysis")
	}
	s.recordEvent(ctx, models.EventTypeAnalysisRecorded, applicationID, nil, map[string]interface{}{
		"confidence":   req.ConfidenceLevel,
		"authenticity": req.DocumentAuthenticityScore,
	})

	outcome := s.prescreen.Evaluate(result)
	switch outcome {
	case models.PreScreenAdvance:
		decision := NewDecision(models.EventPreScreenAdvance)
		decision.Detail = "pre-screen passed"
		if _, err := s.lifecycle.Apply(ctx, app, decision); err != nil {
			return result, outcome, err
		}
	case models.PreScreenFlag:
		decision := NewDecision(models.EventPreScreenFlag)
		decision.Detail = "pre-screen flagged documents"
		decision.Trigger = &RejectionTrigger{Source: TriggerPreScreen, Analysis: result}
		if _, err := s.lifecycle.Apply(ctx, app, decision); err != nil {
			return result, outcome, err
		}
	case models.PreScreenInsufficient:
		s.logger.Info("analysis confidence insufficient, awaiting rerun",
			zap.String("application_id", applicationID),
			zap.Float64("confidence", req.ConfidenceLevel))
		s.notifier.Notify(app.UserID, &app.ID, models.NotifyAnalysisComplete,
			"Analysis inconclusive",
			"Automated analysis could not reach a confident result; your documents will be re-examined.")
	}
	return result, outcome, nil
}

// Withdraw takes the application out of the pipeline. Legal from any
// non-terminal state; the actor must own the application or be an admin.
func (s *ApplicationService) Withdraw(ctx context.Context, applicationID, actorID string, isAdmin bool) (*models.Application, error) {
	app, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && app.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your application")
	}

	decision := NewDecision(models.EventWithdrawn)
	decision.ActorID = &actorID
	decision.Detail = "withdrawn on request"
	return s.lifecycle.Apply(ctx, app, decision)
}

// Unflag is the admin override returning a flagged application to the
// validator pool. The review window restarts from the transition.
func (s *ApplicationService) Unflag(ctx context.Context, applicationID, adminID string) (*models.Application, error) {
	app, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	decision := NewDecision(models.EventAdminUnflag)
	decision.ActorID = &adminID
	decision.Detail = "manual review cleared the flag"
	return s.lifecycle.Apply(ctx, app, decision)
}

// Resubmit creates a fresh application superseding a rejected or flagged one.
// Gated by the rejection record's can_resubmit eligibility.
func (s *ApplicationService) Resubmit(ctx context.Context, previousID, userID string, req SubmitApplicationRequest) (*models.Application, error) {
	prev, err := s.findApplication(ctx, previousID)
	if err != nil {
		return nil, err
	}
	if prev.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your application")
	}
	if prev.Status != models.StatusRejected && prev.Status != models.StatusFlagged {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only rejected or flagged applications can be resubmitted")
	}

	record, err := s.rejects.FindByApplication(ctx, previousID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no rejection record for application")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rejection record")
	}
	if !record.CanResubmit {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "resubmission is not permitted for "+string(record.Reason))
	}

	return s.submit(ctx, userID, req, &previousID)
}

// Appeal registers an appeal against a rejected or flagged decision.
// Gated by the rejection record's can_appeal eligibility; the appeal itself
// is routed to admins through the audit trail and notifications.
func (s *ApplicationService) Appeal(ctx context.Context, applicationID, userID, grounds string) error {
	app, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "not your application")
	}
	if app.Status != models.StatusRejected && app.Status != models.StatusFlagged {
		return appErrors.Clone(appErrors.ErrValidation, "only rejected or flagged applications can be appealed")
	}

	record, err := s.rejects.FindByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "no rejection record for application")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rejection record")
	}
	if !record.CanAppeal {
		return appErrors.Clone(appErrors.ErrForbidden, "appeal is not permitted for "+string(record.Reason))
	}

	s.recordEvent(ctx, models.EventTypeAppealFiled, applicationID, &userID, map[string]interface{}{
		"grounds": grounds,
		"reason":  string(record.Reason),
	})
	s.notifier.Notify(userID, &app.ID, models.NotifyAppealReceived,
		"Appeal received",
		"Your appeal has been recorded and will be reviewed by an administrator.")
	return nil
}

// Get loads one application, scoped to the requester.
func (s *ApplicationService) Get(ctx context.Context, applicationID, requesterID string, role models.UserRole) (*models.Application, error) {
	app, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleApplicant && app.UserID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your application")
	}
	return app, nil
}

// List returns applications, scoped to the requester's role: applicants see
// their own, validators and admins see the pool.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter, requesterID string, role models.UserRole) ([]models.Application, int, error) {
	if role == models.RoleApplicant {
		filter.UserID = requesterID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, total, nil
}

// GetAnalysis returns the latest scorer output for an application.
func (s *ApplicationService) GetAnalysis(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error) {
	result, err := s.analyses.FindByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no analysis recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load analysis")
	}
	return result, nil
}

// GetRejection returns the rejection record for an application.
func (s *ApplicationService) GetRejection(ctx context.Context, applicationID string) (*models.RejectionRecord, error) {
	record, err := s.rejects.FindByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no rejection record")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rejection record")
	}
	return record, nil
}

// GetCertificate returns the minted certificate, or the issuance request
// state while the mint is still in flight.
func (s *ApplicationService) GetCertificate(ctx context.Context, applicationID string) (*models.NFTCertificate, *models.CertificateIssuanceRequest, error) {
	cert, err := s.certs.FindCertificateByApplication(ctx, applicationID)
	if err == nil {
		return cert, nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	req, err := s.certs.FindRequestByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "no certificate for application")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issuance request")
	}
	return nil, req, nil
}

func (s *ApplicationService) findApplication(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

func (s *ApplicationService) recordEvent(ctx context.Context, eventType, applicationID string, userID *string, data map[string]interface{}) {
	var payload []byte
	if data != nil {
		payload, _ = json.Marshal(data)
	}
	event := &models.AnalyticsEvent{
		EventType:     eventType,
		ApplicationID: &applicationID,
		UserID:        userID,
		EventData:     payload,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Warn("failed to record audit event", zap.String("event_type", eventType), zap.Error(err))
	}
}
