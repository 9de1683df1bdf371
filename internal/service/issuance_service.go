package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/config"
	"github.com/verichain/verichain-api/pkg/jobs"
	"github.com/verichain/verichain-api/pkg/ledger"
)

type applicationReader interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

type issuanceStore interface {
	FindRequestByApplication(ctx context.Context, applicationID string) (*models.CertificateIssuanceRequest, error)
	ListPendingRequests(ctx context.Context) ([]models.CertificateIssuanceRequest, error)
	UpdateRequest(ctx context.Context, id string, status models.IssuanceStatus, attempts int, lastError *string) error
	InsertCertificate(ctx context.Context, cert *models.NFTCertificate) error
}

type minter interface {
	Mint(ctx context.Context, req ledger.MintRequest) (*ledger.MintResult, error)
}

type issuanceObserver interface {
	ObserveIssuance(success bool)
	ObserveIssuanceRetry()
}

// IssuanceService consumes certificate issuance requests and drives the
// ledger mint with bounded retries. It runs strictly after the approved
// transition commits; nothing here can block or reverse an approval.
type IssuanceService struct {
	queue    *jobs.Queue
	certs    issuanceStore
	apps     applicationReader
	ledger   minter
	events   eventRecorder
	notifier userNotifier
	metrics  issuanceObserver
	cfg      config.LedgerConfig
	logger   *zap.Logger
}

// NewIssuanceService constructs IssuanceService and its worker queue.
func NewIssuanceService(certs issuanceStore, apps applicationReader, ledgerClient minter, events eventRecorder, notifier userNotifier, metrics issuanceObserver, cfg config.LedgerConfig, logger *zap.Logger) *IssuanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &IssuanceService{
		certs:    certs,
		apps:     apps,
		ledger:   ledgerClient,
		events:   events,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("certificate-issuance", s.handle, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: cfg.MaxAttempts,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the workers and requeues requests left pending by a
// previous run, so a crash between approval and mint loses nothing.
func (s *IssuanceService) Start(ctx context.Context) error {
	s.queue.Start(ctx)
	return s.RequeuePending(ctx)
}

// Stop drains the worker pool.
func (s *IssuanceService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues a freshly committed issuance request. Enqueue failures
// are logged, not returned: the request row is already durable and the next
// RequeuePending pass picks it up.
func (s *IssuanceService) Dispatch(req models.CertificateIssuanceRequest) {
	job := jobs.Job{ID: req.ID, Type: "mint", Payload: req}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("failed to enqueue issuance request",
			zap.String("application_id", req.ApplicationID), zap.Error(err))
	}
}

// RequeuePending re-dispatches every request still marked pending.
func (s *IssuanceService) RequeuePending(ctx context.Context) error {
	pending, err := s.certs.ListPendingRequests(ctx)
	if err != nil {
		return fmt.Errorf("list pending issuance requests: %w", err)
	}
	for i := range pending {
		s.Dispatch(pending[i])
	}
	if len(pending) > 0 {
		s.logger.Info("requeued pending issuance requests", zap.Int("count", len(pending)))
	}
	return nil
}

func (s *IssuanceService) handle(ctx context.Context, job jobs.Job) error {
	queued, ok := job.Payload.(models.CertificateIssuanceRequest)
	if !ok {
		return fmt.Errorf("unexpected issuance payload %T", job.Payload)
	}

	// Reload for current truth; a worker restart may have minted it already.
	req, err := s.certs.FindRequestByApplication(ctx, queued.ApplicationID)
	if err != nil {
		return fmt.Errorf("load issuance request: %w", err)
	}
	if req.Status != models.IssuancePending {
		return nil
	}

	app, err := s.apps.FindByID(ctx, req.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application %s: %w", req.ApplicationID, err)
	}

	attempts := req.Attempts + 1
	result, mintErr := s.ledger.Mint(ctx, ledger.MintRequest{
		ApplicationID: app.ID,
		Recipient:     s.recipient(app),
		Metadata:      req.Metadata,
	})
	if mintErr != nil {
		return s.handleMintFailure(ctx, req, app, attempts, mintErr)
	}

	cert := &models.NFTCertificate{
		ApplicationID: app.ID,
		TokenAddress:  result.TokenAddress,
		TokenID:       result.TokenID,
		TxHash:        result.TxHash,
		MintedAt:      time.Now().UTC(),
	}
	if result.MetadataURI != "" {
		cert.MetadataURI = &result.MetadataURI
	}
	if err := s.certs.InsertCertificate(ctx, cert); err != nil {
		return fmt.Errorf("record certificate: %w", err)
	}
	if err := s.certs.UpdateRequest(ctx, req.ID, models.IssuanceMinted, attempts, nil); err != nil {
		s.logger.Error("certificate minted but request not marked",
			zap.String("application_id", app.ID), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.ObserveIssuance(true)
	}
	s.recordIssuanceEvent(ctx, app.ID, models.EventTypeCertificateMinted, map[string]interface{}{
		"token_address": result.TokenAddress,
		"token_id":      result.TokenID,
		"tx_hash":       result.TxHash,
		"attempts":      attempts,
	})
	s.notifier.Notify(app.UserID, &app.ID, models.NotifyCertificateReady,
		"Certificate issued",
		"Your credential certificate has been minted on-chain.")
	s.logger.Info("certificate minted",
		zap.String("application_id", app.ID),
		zap.String("tx_hash", result.TxHash),
		zap.Int("attempts", attempts))
	return nil
}

// handleMintFailure persists the attempt and either hands the job back for
// retry or parks the request in failed for manual intervention.
func (s *IssuanceService) handleMintFailure(ctx context.Context, req *models.CertificateIssuanceRequest, app *models.Application, attempts int, mintErr error) error {
	msg := mintErr.Error()
	if attempts >= s.cfg.MaxAttempts {
		if err := s.certs.UpdateRequest(ctx, req.ID, models.IssuanceFailed, attempts, &msg); err != nil {
			return fmt.Errorf("mark issuance failed: %w", err)
		}
		if s.metrics != nil {
			s.metrics.ObserveIssuance(false)
		}
		s.recordIssuanceEvent(ctx, app.ID, models.EventTypeIssuanceFailed, map[string]interface{}{
			"attempts": attempts,
			"error":    msg,
		})
		s.notifier.Notify(app.UserID, &app.ID, models.NotifyIssuanceFailed,
			"Certificate issuance delayed",
			"Automatic issuance failed; an administrator will complete it manually.")
		s.logger.Error("issuance attempts exhausted",
			zap.String("application_id", app.ID),
			zap.Int("attempts", attempts),
			zap.Error(mintErr))
		return nil
	}

	if err := s.certs.UpdateRequest(ctx, req.ID, models.IssuancePending, attempts, &msg); err != nil {
		s.logger.Error("failed to record issuance attempt",
			zap.String("application_id", app.ID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveIssuanceRetry()
	}
	return fmt.Errorf("mint attempt %d: %w", attempts, mintErr)
}

func (s *IssuanceService) recipient(app *models.Application) string {
	if app.ApplicantAddress != nil && *app.ApplicantAddress != "" {
		return *app.ApplicantAddress
	}
	return app.UserID
}

func (s *IssuanceService) recordIssuanceEvent(ctx context.Context, applicationID, eventType string, data map[string]interface{}) {
	payload, _ := json.Marshal(data)
	event := &models.AnalyticsEvent{
		EventType:     eventType,
		ApplicationID: &applicationID,
		EventData:     payload,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Warn("failed to record issuance event", zap.String("application_id", applicationID), zap.Error(err))
	}
}
