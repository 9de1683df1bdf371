package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/config"
)

type staleLister interface {
	ListStaleUnderReview(ctx context.Context, cutoff time.Time) ([]models.Application, error)
}

// SweeperService periodically resolves applications whose voting window has
// lapsed without reaching consensus. Each resolution goes through the vote
// service so it takes the same per-application critical section as live votes.
type SweeperService struct {
	apps   staleLister
	votes  *VoteService
	cfg    config.ConsensusConfig
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeperService constructs SweeperService.
func NewSweeperService(apps staleLister, votes *VoteService, cfg config.ConsensusConfig, logger *zap.Logger) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{
		apps:   apps,
		votes:  votes,
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the background sweep loop. One sweep runs immediately so a
// restart does not wait a full interval to pick up overdue applications.
func (s *SweeperService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
	s.logger.Info("voting-window sweeper started",
		zap.Duration("interval", s.cfg.SweepInterval),
		zap.Duration("window", s.cfg.MaxVotingWindow))
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *SweeperService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *SweeperService) runOnce(ctx context.Context) {
	resolved, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("voting-window sweep failed", zap.Error(err))
		return
	}
	if resolved > 0 {
		s.logger.Info("voting-window sweep resolved applications", zap.Int("resolved", resolved))
	}
}

// Sweep resolves every application whose review window has expired and
// returns how many reached a terminal or flagged disposition.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.MaxVotingWindow)
	stale, err := s.apps.ListStaleUnderReview(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range stale {
		outcome, err := s.votes.ResolveExpired(ctx, stale[i].ID)
		if err != nil {
			s.logger.Error("failed to resolve expired application",
				zap.String("application_id", stale[i].ID), zap.Error(err))
			continue
		}
		if outcome != models.OutcomePending {
			resolved++
			s.logger.Info("expired application resolved",
				zap.String("application_id", stale[i].ID),
				zap.String("outcome", string(outcome)))
		}
	}
	return resolved, nil
}
