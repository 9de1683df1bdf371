package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verichain/verichain-api/internal/models"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

func TestRegistryRegisterAndSnapshot(t *testing.T) {
	svc := NewRegistryService(newMockValidatorRepo(), nil, nil, zap.NewNop())

	v, err := svc.Register(context.Background(), RegisterValidatorRequest{
		Address:     "0xvalidator001",
		DisplayName: "Validator One",
		StakeAmount: 9,
	})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, v.VoteWeight(), 1e-9)

	snap, err := svc.Snapshot(context.Background(), "0xvalidator001")
	require.NoError(t, err)
	assert.True(t, snap.Eligible())
	assert.InDelta(t, 9.0, snap.StakeAmount, 1e-9)
}

func TestRegistryRegisterDuplicateAddress(t *testing.T) {
	svc := NewRegistryService(newMockValidatorRepo(testValidators(1)...), nil, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), RegisterValidatorRequest{
		Address:     "0xvalidator001",
		DisplayName: "Validator One",
		StakeAmount: 1,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRegistryRegisterValidatesPayload(t *testing.T) {
	svc := NewRegistryService(newMockValidatorRepo(), nil, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), RegisterValidatorRequest{Address: "0x1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRegistrySnapshotUnknownAddress(t *testing.T) {
	svc := NewRegistryService(newMockValidatorRepo(), nil, nil, zap.NewNop())

	_, err := svc.Snapshot(context.Background(), "0xnobody0001")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotEligible))
}

func TestRegistryEligibility(t *testing.T) {
	validators := testValidators(4, 0)
	validators[0].Suspended = false
	repo := newMockValidatorRepo(validators...)
	svc := NewRegistryService(repo, nil, nil, zap.NewNop())

	eligible, err := svc.IsEligible(context.Background(), "0xvalidator001")
	require.NoError(t, err)
	assert.True(t, eligible)

	// Zero stake means zero weight and no vote.
	eligible, err = svc.IsEligible(context.Background(), "0xvalidator002")
	require.NoError(t, err)
	assert.False(t, eligible)

	require.NoError(t, svc.SetSuspended(context.Background(), "0xvalidator001", true))
	eligible, err = svc.IsEligible(context.Background(), "0xvalidator001")
	require.NoError(t, err)
	assert.False(t, eligible)

	eligible, err = svc.IsEligible(context.Background(), "0xnobody0001")
	require.NoError(t, err)
	assert.False(t, eligible)
}

type mockVoteCounter struct {
	counts map[string]int
	err    error
}

func (m *mockVoteCounter) CountByValidator(ctx context.Context, validatorAddress string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[validatorAddress], nil
}

func TestRegistryProfileIncludesVoteCount(t *testing.T) {
	counter := &mockVoteCounter{counts: map[string]int{"0xvalidator001": 7}}
	svc := NewRegistryService(newMockValidatorRepo(testValidators(9)...), counter, nil, zap.NewNop())

	profile, err := svc.Profile(context.Background(), "0xvalidator001")
	require.NoError(t, err)
	assert.Equal(t, 7, profile.VotesCast)
	assert.InDelta(t, 9.0, profile.StakeAmount, 1e-9)
}

func TestRegistryProfileSurvivesCounterFailure(t *testing.T) {
	counter := &mockVoteCounter{err: assert.AnError}
	svc := NewRegistryService(newMockValidatorRepo(testValidators(9)...), counter, nil, zap.NewNop())

	profile, err := svc.Profile(context.Background(), "0xvalidator001")
	require.NoError(t, err)
	assert.Zero(t, profile.VotesCast)
}

func TestRegistrySetStakeRejectsNegative(t *testing.T) {
	svc := NewRegistryService(newMockValidatorRepo(testValidators(4)...), nil, nil, zap.NewNop())

	err := svc.SetStake(context.Background(), "0xvalidator001", -1)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.SetStake(context.Background(), "0xvalidator001", 25))
	weight, err := svc.WeightOf(context.Background(), "0xvalidator001")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, weight, 1e-9)
}

func TestValidatorVoteWeightPolicy(t *testing.T) {
	cases := []struct {
		stake  float64
		weight float64
	}{
		{0, 0},
		{-3, 0},
		{1, 1},
		{4, 2},
		{100, 10},
	}
	for _, tc := range cases {
		v := &models.Validator{StakeAmount: tc.stake}
		assert.InDelta(t, tc.weight, v.VoteWeight(), 1e-9)
	}
}
