package service

import (
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/config"
)

// PreScreenService routes freshly analysed applications: advance to human
// review, auto-flag, or send back for another analysis run.
type PreScreenService struct {
	cfg    config.PreScreenConfig
	logger *zap.Logger
}

// NewPreScreenService constructs the gate with validated thresholds.
func NewPreScreenService(cfg config.PreScreenConfig, logger *zap.Logger) *PreScreenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreScreenService{cfg: cfg, logger: logger}
}

// Evaluate applies the gate policy to one analysis result. Low confidence is
// a retryable condition, not a verdict: the application stays in ai-checking
// until the collaborator produces a confident result.
func (s *PreScreenService) Evaluate(result *models.AIAnalysisResult) models.PreScreenOutcome {
	if result.ConfidenceLevel < s.cfg.MinConfidence {
		s.logger.Info("prescreen insufficient confidence",
			zap.String("application_id", result.ApplicationID),
			zap.Float64("confidence", result.ConfidenceLevel),
			zap.Float64("min_confidence", s.cfg.MinConfidence))
		return models.PreScreenInsufficient
	}
	if result.HasForgeryIndicators() || result.DocumentAuthenticityScore < s.cfg.MinAuthenticity {
		s.logger.Info("prescreen auto-flag",
			zap.String("application_id", result.ApplicationID),
			zap.Strings("indicators", result.ForgeryIndicators),
			zap.Float64("authenticity", result.DocumentAuthenticityScore))
		return models.PreScreenFlag
	}
	return models.PreScreenAdvance
}
