package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/repository"
	"github.com/verichain/verichain-api/pkg/config"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type mockVoteStore struct {
	mu    sync.Mutex
	votes []models.Vote
}

func (m *mockVoteStore) Insert(ctx context.Context, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes {
		if v.ApplicationID == vote.ApplicationID && v.ValidatorAddress == vote.ValidatorAddress {
			return repository.ErrDuplicateVote
		}
	}
	vote.ID = fmt.Sprintf("vote-%d", len(m.votes)+1)
	m.votes = append(m.votes, *vote)
	return nil
}

func (m *mockVoteStore) ListByApplication(ctx context.Context, applicationID string) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Vote
	for _, v := range m.votes {
		if v.ApplicationID == applicationID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockVoteStore) HasVote(ctx context.Context, applicationID, validatorAddress string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes {
		if v.ApplicationID == applicationID && v.ValidatorAddress == validatorAddress {
			return true, nil
		}
	}
	return false, nil
}

type mockValidatorRepo struct {
	mu    sync.Mutex
	items map[string]*models.Validator
}

func newMockValidatorRepo(validators ...*models.Validator) *mockValidatorRepo {
	repo := &mockValidatorRepo{items: make(map[string]*models.Validator)}
	for _, v := range validators {
		cp := *v
		repo.items[v.Address] = &cp
	}
	return repo
}

func (m *mockValidatorRepo) FindByAddress(ctx context.Context, address string) (*models.Validator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[address]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *v
	return &cp, nil
}

func (m *mockValidatorRepo) Create(ctx context.Context, v *models.Validator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.items[v.Address] = &cp
	return nil
}

func (m *mockValidatorRepo) List(ctx context.Context) ([]models.Validator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Validator, 0, len(m.items))
	for _, v := range m.items {
		out = append(out, *v)
	}
	return out, nil
}

func (m *mockValidatorRepo) UpdateStake(ctx context.Context, address string, stake float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[address]
	if !ok {
		return sql.ErrNoRows
	}
	v.StakeAmount = stake
	return nil
}

func (m *mockValidatorRepo) SetSuspended(ctx context.Context, address string, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[address]
	if !ok {
		return sql.ErrNoRows
	}
	v.Suspended = suspended
	return nil
}

func (m *mockValidatorRepo) TouchLastVote(ctx context.Context, address string, ts time.Time) error {
	return nil
}

type mockAnalysisReader struct {
	result *models.AIAnalysisResult
}

func (m *mockAnalysisReader) FindByApplication(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error) {
	if m.result == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.result
	return &cp, nil
}

type voteFixture struct {
	store      *mockAppStore
	votes      *mockVoteStore
	certs      *mockCertWriter
	rejections *mockRejectionWriter
	dispatcher *mockDispatcher
	svc        *VoteService
}

func newVoteFixture(cfg config.ConsensusConfig, validators []*models.Validator, apps ...*models.Application) *voteFixture {
	f := &voteFixture{
		store:      newMockAppStore(apps...),
		votes:      &mockVoteStore{},
		certs:      &mockCertWriter{},
		rejections: &mockRejectionWriter{},
		dispatcher: &mockDispatcher{},
	}
	lifecycle := NewLifecycleService(f.store, f.rejections, f.certs, &mockEventRecorder{},
		NewRejectionService(), f.dispatcher, &mockNotifier{}, nil, nil, zap.NewNop())
	registry := NewRegistryService(newMockValidatorRepo(validators...), nil, nil, zap.NewNop())
	f.svc = NewVoteService(f.store, f.votes, registry, lifecycle, &mockAnalysisReader{},
		&mockEventRecorder{}, cfg, nil, nil, zap.NewNop())
	return f
}

func testValidators(stakes ...float64) []*models.Validator {
	out := make([]*models.Validator, 0, len(stakes))
	for i, stake := range stakes {
		out = append(out, &models.Validator{
			Address:     fmt.Sprintf("0xvalidator%03d", i+1),
			DisplayName: fmt.Sprintf("Validator %d", i+1),
			StakeAmount: stake,
		})
	}
	return out
}

func TestVoteSubmitSnapshotsWeightAtCastTime(t *testing.T) {
	cfg := consensusTestConfig()
	validators := testValidators(4)
	f := newVoteFixture(cfg, validators, underReviewApp("app-1"))

	vote, tally, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: models.VoteApprove, Reasoning: "documents verified"})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, vote.StakeAmount, 1e-9)
	assert.InDelta(t, 2.0, vote.Weight, 1e-9)
	require.NotNil(t, vote.Reasoning)

	assert.Equal(t, 1, tally.DistinctVoters)
	assert.InDelta(t, 2.0, tally.ApproveWeight, 1e-9)
	// One vote is below the three-voter quorum.
	assert.Equal(t, models.StatusUnderReview, f.store.status("app-1"))
}

func TestVoteSubmitDuplicateRejectedAndTallyUnchanged(t *testing.T) {
	cfg := consensusTestConfig()
	f := newVoteFixture(cfg, testValidators(4), underReviewApp("app-1"))

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: models.VoteApprove})
	require.NoError(t, err)

	_, _, err = f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: models.VoteReject})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicate))

	tally, err := f.svc.Tally(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tally.DistinctVoters)
	assert.Equal(t, 0, tally.RejectCount)
}

func TestVoteSubmitRequiresUnderReview(t *testing.T) {
	cfg := consensusTestConfig()
	for _, status := range []models.ApplicationStatus{
		models.StatusSubmitted, models.StatusAIChecking, models.StatusApproved,
		models.StatusRejected, models.StatusFlagged, models.StatusWithdrawn,
	} {
		f := newVoteFixture(cfg, testValidators(4),
			&models.Application{ID: "app-1", UserID: "user-1", Status: status})

		_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
			SubmitVoteRequest{Value: models.VoteApprove})
		require.Error(t, err, string(status))
		assert.True(t, appErrors.Is(err, appErrors.ErrNotVotable), string(status))
	}
}

func TestVoteSubmitUnknownValidatorNotEligible(t *testing.T) {
	f := newVoteFixture(consensusTestConfig(), nil, underReviewApp("app-1"))

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xstranger001",
		SubmitVoteRequest{Value: models.VoteApprove})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotEligible))
}

func TestVoteSubmitSuspendedValidatorNotEligible(t *testing.T) {
	validators := testValidators(4)
	validators[0].Suspended = true
	f := newVoteFixture(consensusTestConfig(), validators, underReviewApp("app-1"))

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: models.VoteApprove})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotEligible))
}

func TestVoteSubmitInvalidValueRejected(t *testing.T) {
	f := newVoteFixture(consensusTestConfig(), testValidators(4), underReviewApp("app-1"))

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: "maybe"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestVoteQuorumDecisionAppliesSingleTransition(t *testing.T) {
	cfg := consensusTestConfig()
	f := newVoteFixture(cfg, testValidators(4, 1, 1), underReviewApp("app-1"))

	for i, addr := range []string{"0xvalidator001", "0xvalidator002", "0xvalidator003"} {
		_, _, err := f.svc.Submit(context.Background(), "app-1", addr,
			SubmitVoteRequest{Value: models.VoteApprove})
		require.NoError(t, err, i)
	}

	assert.Equal(t, models.StatusApproved, f.store.status("app-1"))
	assert.Len(t, f.certs.requests, 1)
	assert.Len(t, f.dispatcher.dispatched, 1)
}

func TestVoteAfterDecisionIsNotVotable(t *testing.T) {
	cfg := consensusTestConfig()
	f := newVoteFixture(cfg, testValidators(4, 1, 1, 1), underReviewApp("app-1"))

	for _, addr := range []string{"0xvalidator001", "0xvalidator002", "0xvalidator003"} {
		_, _, err := f.svc.Submit(context.Background(), "app-1", addr,
			SubmitVoteRequest{Value: models.VoteApprove})
		require.NoError(t, err)
	}

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator004",
		SubmitVoteRequest{Value: models.VoteReject})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotVotable))
}

func TestVoteConcurrentSubmissionsSingleDecision(t *testing.T) {
	cfg := consensusTestConfig()
	stakes := make([]float64, 8)
	for i := range stakes {
		stakes[i] = 1
	}
	f := newVoteFixture(cfg, testValidators(stakes...), underReviewApp("app-1"))

	var wg sync.WaitGroup
	errs := make([]error, len(stakes))
	for i := range stakes {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			addr := fmt.Sprintf("0xvalidator%03d", idx+1)
			_, _, errs[idx] = f.svc.Submit(context.Background(), "app-1", addr,
				SubmitVoteRequest{Value: models.VoteApprove})
		}(i)
	}
	wg.Wait()

	// Votes past the decisive one fail as not-votable; the transition and
	// its issuance side effect fire exactly once.
	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.True(t, appErrors.Is(err, appErrors.ErrNotVotable))
		}
	}
	assert.GreaterOrEqual(t, accepted, cfg.QuorumThreshold)
	assert.Equal(t, models.StatusApproved, f.store.status("app-1"))
	assert.Len(t, f.certs.requests, 1)
	assert.Len(t, f.dispatcher.dispatched, 1)
}

func TestVoteWeightImmuneToLaterStakeChange(t *testing.T) {
	cfg := consensusTestConfig()
	repo := newMockValidatorRepo(testValidators(4)...)
	f := &voteFixture{
		store:      newMockAppStore(underReviewApp("app-1")),
		votes:      &mockVoteStore{},
		certs:      &mockCertWriter{},
		rejections: &mockRejectionWriter{},
		dispatcher: &mockDispatcher{},
	}
	lifecycle := NewLifecycleService(f.store, f.rejections, f.certs, &mockEventRecorder{},
		NewRejectionService(), f.dispatcher, &mockNotifier{}, nil, nil, zap.NewNop())
	registry := NewRegistryService(repo, nil, nil, zap.NewNop())
	f.svc = NewVoteService(f.store, f.votes, registry, lifecycle, &mockAnalysisReader{},
		&mockEventRecorder{}, cfg, nil, nil, zap.NewNop())

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: models.VoteApprove})
	require.NoError(t, err)

	require.NoError(t, registry.SetStake(context.Background(), "0xvalidator001", 100))

	tally, err := f.svc.Tally(context.Background(), "app-1")
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(4), tally.ApproveWeight, 1e-9)
}

func TestResolveExpiredBelowQuorumFlags(t *testing.T) {
	cfg := consensusTestConfig()
	f := newVoteFixture(cfg, testValidators(4), underReviewApp("app-1"))

	_, _, err := f.svc.Submit(context.Background(), "app-1", "0xvalidator001",
		SubmitVoteRequest{Value: models.VoteApprove})
	require.NoError(t, err)

	outcome, err := f.svc.ResolveExpired(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFlag, outcome)
	assert.Equal(t, models.StatusFlagged, f.store.status("app-1"))

	// Timeout flags carry the missing_information policy: resubmission open.
	require.Len(t, f.rejections.records, 1)
	assert.Equal(t, models.ReasonMissingInformation, f.rejections.records[0].Reason)
	assert.True(t, f.rejections.records[0].CanResubmit)
}

func TestResolveExpiredSkipsAlreadyResolved(t *testing.T) {
	f := newVoteFixture(consensusTestConfig(), testValidators(4),
		&models.Application{ID: "app-1", UserID: "user-1", Status: models.StatusApproved})

	outcome, err := f.svc.ResolveExpired(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, outcome)
	assert.Equal(t, models.StatusApproved, f.store.status("app-1"))
}

func TestResolveExpiredMajorityWinsAtQuorum(t *testing.T) {
	cfg := consensusTestConfig()
	cfg.ApprovalWeightThreshold = 0.9
	f := newVoteFixture(cfg, testValidators(4, 1, 1), underReviewApp("app-1"))

	votes := []models.VoteValue{models.VoteApprove, models.VoteReject, models.VoteReject}
	for i, value := range votes {
		addr := fmt.Sprintf("0xvalidator%03d", i+1)
		_, _, err := f.svc.Submit(context.Background(), "app-1", addr, SubmitVoteRequest{Value: value})
		require.NoError(t, err)
	}
	require.Equal(t, models.StatusUnderReview, f.store.status("app-1"))

	// Approve weight 2 ties reject weight 2; the expiry tie-break resolves
	// the tie in favour of approve.
	outcome, err := f.svc.ResolveExpired(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApprove, outcome)
	assert.Equal(t, models.StatusApproved, f.store.status("app-1"))
	assert.Len(t, f.certs.requests, 1)
}
