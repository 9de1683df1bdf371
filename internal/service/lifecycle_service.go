package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/repository"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type applicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	Transition(ctx context.Context, id string, from, to models.ApplicationStatus) error
	TransitionWithSideEffect(ctx context.Context, id string, from, to models.ApplicationStatus, sideEffect func(tx *sqlx.Tx) error) error
}

type rejectionWriter interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, rec *models.RejectionRecord) error
}

type certificateWriter interface {
	InsertRequestTx(ctx context.Context, tx *sqlx.Tx, req *models.CertificateIssuanceRequest) error
}

type eventRecorder interface {
	Insert(ctx context.Context, event *models.AnalyticsEvent) error
}

type issuanceDispatcher interface {
	Dispatch(req models.CertificateIssuanceRequest)
}

type userNotifier interface {
	Notify(userID string, applicationID *string, eventType, title, message string)
}

type transitionObserver interface {
	ObserveTransition(from, to models.ApplicationStatus)
}

type cacheFlusher interface {
	InvalidateApplications(ctx context.Context)
}

// Decision describes one triggering event for the state machine. DecisionID
// is the idempotency handle recorded on the audit trail; re-applying the same
// decision against a terminal application fails with AlreadyTerminal and
// fires no side effect.
type Decision struct {
	ID        string
	Event     models.LifecycleEvent
	Trigger   *RejectionTrigger
	Detail    string
	ActorID   *string
	Validator *string
}

// NewDecision builds a decision with a fresh id.
func NewDecision(event models.LifecycleEvent) Decision {
	return Decision{ID: uuid.NewString(), Event: event}
}

// LifecycleService owns application status. All mutations flow through Apply;
// the repository's compare-and-swap makes concurrent losers fail loudly
// instead of corrupting state.
type LifecycleService struct {
	apps       applicationStore
	rejections rejectionWriter
	certs      certificateWriter
	events     eventRecorder
	analyzer   *RejectionService
	issuance   issuanceDispatcher
	notifier   userNotifier
	metrics    transitionObserver
	cache      cacheFlusher
	logger     *zap.Logger
}

// NewLifecycleService constructs LifecycleService.
func NewLifecycleService(apps applicationStore, rejections rejectionWriter, certs certificateWriter, events eventRecorder, analyzer *RejectionService, issuance issuanceDispatcher, notifier userNotifier, metrics transitionObserver, cache cacheFlusher, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = NewRejectionService()
	}
	return &LifecycleService{
		apps:       apps,
		rejections: rejections,
		certs:      certs,
		events:     events,
		analyzer:   analyzer,
		issuance:   issuance,
		notifier:   notifier,
		metrics:    metrics,
		cache:      cache,
		logger:     logger,
	}
}

// Apply drives one lifecycle transition. The status CAS and the transition's
// single side effect (rejection record or issuance request) commit in one
// transaction; post-commit work (dispatch, audit, notify) is best effort and
// never reverses the state change.
func (s *LifecycleService) Apply(ctx context.Context, app *models.Application, decision Decision) (*models.Application, error) {
	from, to, ok := models.TransitionFor(decision.Event, app.Status)
	if !ok {
		return nil, s.classifyConflict(ctx, app.ID, app.Status)
	}

	var (
		record     *models.RejectionRecord
		issuanceRq *models.CertificateIssuanceRequest
	)

	sideEffect := func(tx *sqlx.Tx) error {
		switch to {
		case models.StatusApproved:
			issuanceRq = s.buildIssuanceRequest(app)
			return s.certs.InsertRequestTx(ctx, tx, issuanceRq)
		case models.StatusRejected, models.StatusFlagged:
			trigger := RejectionTrigger{Source: TriggerConsensus}
			if decision.Trigger != nil {
				trigger = *decision.Trigger
			}
			record = s.analyzer.Analyze(app, trigger)
			return s.rejections.InsertTx(ctx, tx, record)
		}
		return nil
	}

	if err := s.apps.TransitionWithSideEffect(ctx, app.ID, from, to, sideEffect); err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return nil, s.classifyConflict(ctx, app.ID, from)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	s.logger.Info("application transitioned",
		zap.String("application_id", app.ID),
		zap.String("event", string(decision.Event)),
		zap.String("decision_id", decision.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	if s.metrics != nil {
		s.metrics.ObserveTransition(from, to)
	}

	if s.cache != nil {
		s.cache.InvalidateApplications(ctx)
	}
	s.recordTransitionEvent(ctx, app, decision, from, to)
	s.afterCommit(app, to, record, issuanceRq)

	updated := *app
	updated.Status = to
	return &updated, nil
}

// classifyConflict turns a failed CAS into the right transition error.
func (s *LifecycleService) classifyConflict(ctx context.Context, id string, observed models.ApplicationStatus) error {
	current := observed
	if fresh, err := s.apps.FindByID(ctx, id); err == nil {
		current = fresh.Status
	} else if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	if current.Terminal() {
		return appErrors.Clone(appErrors.ErrAlreadyTerminal, "application already decided")
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "transition not legal from status "+string(current))
}

func (s *LifecycleService) buildIssuanceRequest(app *models.Application) *models.CertificateIssuanceRequest {
	metadata, _ := json.Marshal(map[string]interface{}{
		"title":          app.Title,
		"institution":    app.Institution,
		"applicant_name": app.ApplicantName,
		"application_id": app.ID,
	})
	return &models.CertificateIssuanceRequest{
		ApplicationID: app.ID,
		Metadata:      metadata,
		Status:        models.IssuancePending,
	}
}

func (s *LifecycleService) recordTransitionEvent(ctx context.Context, app *models.Application, decision Decision, from, to models.ApplicationStatus) {
	data, _ := json.Marshal(map[string]interface{}{
		"decision_id": decision.ID,
		"event":       string(decision.Event),
		"from":        string(from),
		"to":          string(to),
		"detail":      decision.Detail,
	})
	event := &models.AnalyticsEvent{
		EventType:        models.EventTypeStatusTransition,
		ApplicationID:    &app.ID,
		UserID:           decision.ActorID,
		ValidatorAddress: decision.Validator,
		EventData:        data,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Warn("failed to record transition event", zap.String("application_id", app.ID), zap.Error(err))
	}
}

// afterCommit fires the decoupled consequences of a committed transition.
func (s *LifecycleService) afterCommit(app *models.Application, to models.ApplicationStatus, record *models.RejectionRecord, issuanceRq *models.CertificateIssuanceRequest) {
	switch to {
	case models.StatusApproved:
		if s.issuance != nil && issuanceRq != nil {
			s.issuance.Dispatch(*issuanceRq)
		}
		s.notify(app, models.NotifyApproved, "Application approved",
			"Your credential application was approved by validator consensus. Certificate issuance is underway.")
	case models.StatusRejected:
		s.notify(app, models.NotifyRejected, "Application rejected", rejectionMessage(record))
	case models.StatusFlagged:
		s.notify(app, models.NotifyFlagged, "Application flagged", rejectionMessage(record))
	case models.StatusUnderReview:
		s.notify(app, models.NotifyUnderReview, "Application under review",
			"Your application passed automated screening and is now with the validator quorum.")
	}
}

func (s *LifecycleService) notify(app *models.Application, eventType, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(app.UserID, &app.ID, eventType, title, message)
}

func rejectionMessage(record *models.RejectionRecord) string {
	if record == nil {
		return "Your application did not pass verification."
	}
	msg := "Reason: " + string(record.Reason) + "."
	if record.CanResubmit {
		msg += " You may resubmit with corrections."
	}
	if record.CanAppeal {
		msg += " You may file an appeal."
	}
	return msg
}
