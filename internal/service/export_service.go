package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/config"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
	"github.com/verichain/verichain-api/pkg/export"
	"github.com/verichain/verichain-api/pkg/storage"
)

type eventReader interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.AnalyticsEvent, error)
}

type auditTrail interface {
	eventRecorder
	eventReader
}

type voteReader interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.Vote, error)
}

// ExportFormat selects the audit package rendering.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult points at a generated audit package.
type ExportResult struct {
	File      string    `json:"file"`
	Format    string    `json:"format"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService assembles an application's full audit package: the
// application itself, the scorer output, every vote with its weight snapshot,
// the derived tally, the rejection record and the audit trail. Downloads go
// through HMAC signed tokens so the files need no further authentication.
type ExportService struct {
	apps    applicationReader
	votes   voteReader
	rejects rejectionReader
	events  auditTrail
	cfg     config.ConsensusConfig
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(apps applicationReader, votes voteReader, rejects rejectionReader, events auditTrail, cfg config.ConsensusConfig, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		apps:    apps,
		votes:   votes,
		rejects: rejects,
		events:  events,
		cfg:     cfg,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		store:   store,
		signer:  signer,
		logger:  logger,
	}
}

// Generate renders the audit package and returns a signed download handle.
func (s *ExportService) Generate(ctx context.Context, applicationID string, format ExportFormat) (*ExportResult, error) {
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	dataset, err := s.buildDataset(ctx, app)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(*dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(*dataset, "Audit package "+app.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit package")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("audit/%s/%s.%s", app.ID, exportID, format)
	if _, err := s.store.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store audit package")
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	data, _ := json.Marshal(map[string]string{"file": filename, "format": string(format)})
	if err := s.events.Insert(ctx, &models.AnalyticsEvent{
		EventType:     models.EventTypeExportGenerated,
		ApplicationID: &app.ID,
		EventData:     data,
	}); err != nil {
		s.logger.Warn("failed to record export event", zap.String("application_id", app.ID), zap.Error(err))
	}

	return &ExportResult{
		File:      filename,
		Format:    string(format),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token to the stored file.
func (s *ExportService) Download(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, nil
}

// CleanupExpired removes export files past the retention TTL.
func (s *ExportService) CleanupExpired(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}

// buildDataset flattens the audit package into a single section/field/value
// table so one renderer serves both formats.
func (s *ExportService) buildDataset(ctx context.Context, app *models.Application) (*export.Dataset, error) {
	dataset := &export.Dataset{Headers: []string{"section", "field", "value"}}
	add := func(section, field, value string) {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"section": section, "field": field, "value": value,
		})
	}

	add("application", "id", app.ID)
	add("application", "title", app.Title)
	add("application", "institution", app.Institution)
	add("application", "applicant", app.ApplicantName)
	add("application", "status", string(app.Status))
	if app.SubmittedAt != nil {
		add("application", "submitted_at", app.SubmittedAt.UTC().Format(time.RFC3339))
	}
	if app.PreviousID != nil {
		add("application", "previous_application_id", *app.PreviousID)
	}

	votes, err := s.votes.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load votes")
	}
	for _, v := range votes {
		value := fmt.Sprintf("%s (weight %s)", v.Value, strconv.FormatFloat(v.Weight, 'f', 4, 64))
		if v.Reasoning != nil {
			value += ": " + *v.Reasoning
		}
		add("votes", v.ValidatorAddress, value)
	}

	tally := TallyVotes(app.ID, votes)
	add("tally", "distinct_voters", strconv.Itoa(tally.DistinctVoters))
	add("tally", "approve_weight", strconv.FormatFloat(tally.ApproveWeight, 'f', 4, 64))
	add("tally", "reject_weight", strconv.FormatFloat(tally.RejectWeight, 'f', 4, 64))
	add("tally", "flag_weight", strconv.FormatFloat(tally.FlagWeight, 'f', 4, 64))
	add("tally", "outcome", string(EvaluateConsensus(tally, s.cfg)))

	record, err := s.rejects.FindByApplication(ctx, app.ID)
	if err == nil {
		add("rejection", "reason", string(record.Reason))
		add("rejection", "detailed_analysis", record.DetailedAnalysis)
		add("rejection", "can_resubmit", strconv.FormatBool(record.CanResubmit))
		add("rejection", "can_appeal", strconv.FormatBool(record.CanAppeal))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rejection record")
	}

	events, err := s.events.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	for _, ev := range events {
		add("audit_trail", ev.CreatedAt.UTC().Format(time.RFC3339), describeEvent(ev))
	}

	return dataset, nil
}

func describeEvent(ev models.AnalyticsEvent) string {
	parts := []string{ev.EventType}
	if len(ev.EventData) > 0 {
		var data map[string]interface{}
		if err := json.Unmarshal(ev.EventData, &data); err == nil {
			for k, v := range data {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
		}
	}
	return strings.Join(parts, " ")
}
