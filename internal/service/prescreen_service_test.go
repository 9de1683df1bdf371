package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/pkg/config"
)

func newPreScreenForTest() *PreScreenService {
	return NewPreScreenService(config.PreScreenConfig{
		MinConfidence:   0.6,
		MinAuthenticity: 0.5,
	}, zap.NewNop())
}

func TestPreScreenAdvancesCleanResult(t *testing.T) {
	svc := newPreScreenForTest()

	outcome := svc.Evaluate(&models.AIAnalysisResult{
		ApplicationID:             "app-1",
		DocumentAuthenticityScore: 0.92,
		ConfidenceLevel:           0.85,
	})
	assert.Equal(t, models.PreScreenAdvance, outcome)
}

func TestPreScreenLowConfidenceIsRetryableNotAVerdict(t *testing.T) {
	svc := newPreScreenForTest()

	// Confidence below the floor always wins, even with forgery findings:
	// the result is not trusted enough to act on.
	outcome := svc.Evaluate(&models.AIAnalysisResult{
		ApplicationID:             "app-1",
		DocumentAuthenticityScore: 0.1,
		ConfidenceLevel:           0.4,
		ForgeryIndicators:         []string{string(models.IndicatorSignatureMismatch)},
	})
	assert.Equal(t, models.PreScreenInsufficient, outcome)
}

func TestPreScreenFlagsForgeryIndicators(t *testing.T) {
	svc := newPreScreenForTest()

	outcome := svc.Evaluate(&models.AIAnalysisResult{
		ApplicationID:             "app-1",
		DocumentAuthenticityScore: 0.95,
		ConfidenceLevel:           0.9,
		ForgeryIndicators:         []string{string(models.IndicatorSealTampering)},
	})
	assert.Equal(t, models.PreScreenFlag, outcome)
}

func TestPreScreenFlagsLowAuthenticityWithoutIndicators(t *testing.T) {
	svc := newPreScreenForTest()

	outcome := svc.Evaluate(&models.AIAnalysisResult{
		ApplicationID:             "app-1",
		DocumentAuthenticityScore: 0.3,
		ConfidenceLevel:           0.9,
	})
	assert.Equal(t, models.PreScreenFlag, outcome)
}
