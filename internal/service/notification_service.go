package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/repository"
	"github.com/verichain/verichain-api/pkg/config"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
	"github.com/verichain/verichain-api/pkg/jobs"
)

type notificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationService persists and delivers user notifications. Delivery is
// strictly fire-and-forget: a full queue or a failed insert is logged and
// dropped, never surfaced to the lifecycle paths that emit notifications.
type NotificationService struct {
	repo    notificationStore
	queue   *jobs.Queue
	enabled bool
	logger  *zap.Logger
}

// NewNotificationService constructs NotificationService and its dispatch queue.
func NewNotificationService(repo notificationStore, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		repo:    repo,
		enabled: cfg.Enabled,
		logger:  logger,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: 2,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues a notification for a user. Safe to call from any lifecycle
// path; it never blocks and never returns an error.
func (s *NotificationService) Notify(userID string, applicationID *string, eventType, title, message string) {
	if !s.enabled || userID == "" {
		return
	}
	n := models.Notification{
		UserID:        userID,
		ApplicationID: applicationID,
		Type:          eventType,
		Title:         title,
		Message:       message,
	}
	if err := s.queue.Enqueue(jobs.Job{Type: eventType, Payload: n}); err != nil {
		s.logger.Warn("notification dropped", zap.String("user_id", userID), zap.String("type", eventType), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if err := s.repo.Insert(ctx, &n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	return nil
}

// List returns a user's notifications, optionally only unread ones.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found or already read")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
