package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
)

const unit = uint64(params.Unit)

const votingPeriod = clock.Millis(7 * clock.MillisPerDay)

// fakeDisburser records every refund and burn the lifecycle emits.
type fakeDisburser struct {
	refunds map[string]uint64
	burned  uint64
}

func (d *fakeDisburser) Refund(to string, amount uint64, _ clock.Millis) { d.refunds[to] += amount }
func (d *fakeDisburser) Burn(amount uint64, _ clock.Millis)              { d.burned += amount }

type transitionLog struct {
	transitions []Transition
}

func (l *transitionLog) ProposalTransition(tr Transition) {
	l.transitions = append(l.transitions, tr)
}

func newTestLifecycle(t *testing.T) (*Lifecycle, *registry.Registry, *params.Store, *fakeDisburser) {
	logger := zaptest.NewLogger(t)
	store := params.NewStore(logger)
	reg := registry.New(logger, store, 30*clock.MillisPerDay)
	l := New(logger, store, reg)
	d := &fakeDisburser{refunds: make(map[string]uint64)}
	l.SetDisburser(d)
	return l, reg, store, d
}

// addVoter admits a genesis validator whose weight is the integer square root
// of its stake in whole units. stakeUnits of 100/400/2500 yield weights of
// 10/20/50.
func addVoter(t *testing.T, reg *registry.Registry, addr string, stakeUnits uint64) {
	t.Helper()
	_, err := reg.RegisterGenesis(addr, stakeUnits*unit, 0)
	require.NoError(t, err)
}

func createProposal(t *testing.T, l *Lifecycle, proposer string, now clock.Millis) *Proposal {
	t.Helper()
	p, err := l.Create(proposer, TypeParameterUpdate, "raise quorum", "",
		params.KeyQuorumPct, 25, 100*unit, now)
	require.NoError(t, err)
	return p
}

// TestCreateOpensVoting verifies a funded proposal opens its voting window
// immediately.
func TestCreateOpensVoting(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 1000)

	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, clock.Millis(1000), p.VotingStart)
	assert.Equal(t, clock.Millis(1000)+votingPeriod, p.VotingEnd)
	assert.Equal(t, 100*unit, p.Deposit)

	got, err := l.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

// TestCreateRequiresDeposit verifies proposals below the deposit requirement
// are refused.
func TestCreateRequiresDeposit(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	_, err := l.Create("alice", TypeEconomicAction, "cheap", "", "", 0, 100*unit-1, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.InsufficientDeposit))
}

// TestCreateRequiresValidator verifies only recognized validators may propose.
func TestCreateRequiresValidator(t *testing.T) {
	l, _, _, _ := newTestLifecycle(t)

	_, err := l.Create("stranger", TypeEconomicAction, "who", "", "", 0, 100*unit, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.NotAuthorized))
}

// TestCreateParameterUpdateNeedsTarget verifies a parameter update without a
// target key is refused.
func TestCreateParameterUpdateNeedsTarget(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	_, err := l.Create("alice", TypeParameterUpdate, "empty", "", "", 0, 100*unit, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.OutOfRange))
}

// TestVoteSnapshotsWeight verifies a ballot carries the voter's weight at cast
// time and tallies into the matching bucket.
func TestVoteSnapshotsWeight(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	addVoter(t, reg, "bob", 400)

	p := createProposal(t, l, "alice", 0)

	rec, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), rec.Power)

	rec, err = l.Vote(p.ID, "bob", VoteAgainst, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), rec.Power)

	got, err := l.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.VotesFor)
	assert.Equal(t, uint64(20), got.VotesAgainst)
	assert.Equal(t, uint64(30), got.TotalVotes())
	assert.True(t, got.HasVoted("alice"))
	assert.Len(t, got.Votes(), 2)
}

// TestVoteRejectsDuplicates verifies one ballot per voter per proposal.
func TestVoteRejectsDuplicates(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)

	_, err = l.Vote(p.ID, "alice", VoteAgainst, 20)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.AlreadyVoted))

	got, _ := l.Get(p.ID)
	assert.Equal(t, uint64(10), got.VotesFor)
	assert.Zero(t, got.VotesAgainst)
}

// TestVoteOutsideWindow verifies ballots after the voting window close are
// refused.
func TestVoteOutsideWindow(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Vote(p.ID, "alice", VoteFor, votingPeriod+1)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.VotingEnded))
}

// TestVoteRequiresValidator verifies non-validators cannot vote.
func TestVoteRequiresValidator(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Vote(p.ID, "stranger", VoteFor, 10)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.NotAuthorized))
}

// TestFinalizeBeforeClose verifies finalization waits for the voting window.
func TestFinalizeBeforeClose(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Finalize(p.ID, votingPeriod)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.InvalidProposalState))
}

// TestFinalizePasses verifies a proposal meeting quorum and approval schedules
// execution with its deposit intact. Total power is 80, so quorum at 20%
// needs 16 and approval at 60% of the 30 cast needs 18.
func TestFinalizePasses(t *testing.T) {
	l, reg, _, d := newTestLifecycle(t)
	rec := &transitionLog{}
	l.SetRecorder(rec)
	addVoter(t, reg, "alice", 100)
	addVoter(t, reg, "bob", 400)
	addVoter(t, reg, "carol", 2500)

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	_, err = l.Vote(p.ID, "bob", VoteFor, 20)
	require.NoError(t, err)

	got, err := l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	assert.Equal(t, StatusPassed, got.Status)
	assert.Equal(t, votingPeriod+1+2*clock.MillisPerDay, got.ExecutionTime)
	assert.Equal(t, 100*unit, got.Deposit)
	assert.Empty(t, d.refunds)
	assert.Zero(t, d.burned)

	require.Len(t, rec.transitions, 1)
	assert.Equal(t, StatusActive, rec.transitions[0].From)
	assert.Equal(t, StatusPassed, rec.transitions[0].To)
}

// TestFinalizeQuorumMiss verifies a proposal short of quorum is rejected with
// half the deposit refunded and half burned.
func TestFinalizeQuorumMiss(t *testing.T) {
	l, reg, _, d := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	addVoter(t, reg, "bob", 400)
	addVoter(t, reg, "carol", 2500)

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)

	got, err := l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, got.Status)
	assert.Zero(t, got.Deposit)
	assert.Equal(t, 50*unit, d.refunds["alice"])
	assert.Equal(t, 50*unit, d.burned)
}

// TestFinalizeApprovalMiss verifies a proposal with quorum but too few votes
// in favor is rejected. Of the 80 cast only 10 are for, under the 48 needed.
func TestFinalizeApprovalMiss(t *testing.T) {
	l, reg, _, d := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	addVoter(t, reg, "bob", 400)
	addVoter(t, reg, "carol", 2500)

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	_, err = l.Vote(p.ID, "bob", VoteAgainst, 20)
	require.NoError(t, err)
	_, err = l.Vote(p.ID, "carol", VoteAbstain, 30)
	require.NoError(t, err)

	got, err := l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, 50*unit, d.refunds["alice"])
	assert.Equal(t, 50*unit, d.burned)
}

// TestFinalizeOnce verifies finalization is one-shot.
func TestFinalizeOnce(t *testing.T) {
	l, reg, _, d := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)
	_, err = l.Finalize(p.ID, votingPeriod+1)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.InvalidProposalState))

	assert.Equal(t, 50*unit, d.refunds["alice"])
	assert.Equal(t, 50*unit, d.burned)
}

// TestExecuteAppliesParameterUpdate verifies a passed parameter update applies
// through the registered executor and refunds the full deposit.
func TestExecuteAppliesParameterUpdate(t *testing.T) {
	l, reg, store, d := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	l.RegisterExecutor(TypeParameterUpdate, func(p *Proposal, now clock.Millis) error {
		return store.Update(p.TargetKey, p.TargetValue, p.ID, now)
	})

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	_, err = l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	execAt := votingPeriod + 1 + 2*clock.MillisPerDay
	got, err := l.Execute(p.ID, execAt)
	require.NoError(t, err)

	assert.Equal(t, StatusExecuted, got.Status)
	assert.Zero(t, got.Deposit)
	assert.Equal(t, int64(25), store.MustGet(params.KeyQuorumPct))
	assert.Equal(t, 100*unit, d.refunds["alice"])
	assert.Zero(t, d.burned)
}

// TestExecuteHonorsDelay verifies execution before the delay elapses is
// refused.
func TestExecuteHonorsDelay(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	_, err = l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	_, err = l.Execute(p.ID, votingPeriod+2)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.ExecutionDelayNotMet))
}

// TestExecuteRequiresPassed verifies only passed proposals execute.
func TestExecuteRequiresPassed(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Execute(p.ID, votingPeriod)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.ThresholdNotMet))
}

// TestExecutorFailureLeavesProposalPassed verifies a failing executor aborts
// the execute with the deposit still escrowed.
func TestExecutorFailureLeavesProposalPassed(t *testing.T) {
	l, reg, store, d := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	l.RegisterExecutor(TypeParameterUpdate, func(p *Proposal, now clock.Millis) error {
		return store.Update(p.TargetKey, -1, p.ID, now)
	})

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	_, err = l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	execAt := votingPeriod + 1 + 2*clock.MillisPerDay
	_, err = l.Execute(p.ID, execAt)
	require.Error(t, err)

	got, _ := l.Get(p.ID)
	assert.Equal(t, StatusPassed, got.Status)
	assert.Equal(t, 100*unit, got.Deposit)
	assert.Empty(t, d.refunds)
}

// TestCancelBurnsPenalty verifies the proposer may withdraw an active
// proposal at a quarter of the deposit.
func TestCancelBurnsPenalty(t *testing.T) {
	l, reg, _, d := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)

	got, err := l.Cancel(p.ID, "alice", 500)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, got.Status)
	assert.Zero(t, got.Deposit)
	assert.Equal(t, 75*unit, d.refunds["alice"])
	assert.Equal(t, 25*unit, d.burned)
}

// TestCancelOnlyProposer verifies cancellation is proposer-only.
func TestCancelOnlyProposer(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	addVoter(t, reg, "bob", 400)

	p := createProposal(t, l, "alice", 0)

	_, err := l.Cancel(p.ID, "bob", 500)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.NotProposer))
}

// TestCancelAfterFinalize verifies settled proposals cannot be cancelled.
func TestCancelAfterFinalize(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	p := createProposal(t, l, "alice", 0)
	_, err := l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	_, err = l.Cancel(p.ID, "alice", votingPeriod+2)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.InvalidProposalState))
}

// TestFinalizeDue verifies the sweep closes every proposal whose window has
// ended and leaves open ones alone.
func TestFinalizeDue(t *testing.T) {
	l, reg, _, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)

	early := createProposal(t, l, "alice", 0)
	late, err := l.Create("alice", TypeEconomicAction, "later", "", "", 0, 100*unit, clock.MillisPerDay)
	require.NoError(t, err)

	n := l.FinalizeDue(votingPeriod + 1)
	assert.Equal(t, 1, n)

	got, _ := l.Get(early.ID)
	assert.Equal(t, StatusRejected, got.Status)
	got, _ = l.Get(late.ID)
	assert.Equal(t, StatusActive, got.Status)
}

// TestExecuteDue verifies the sweep executes passed proposals once their
// delay has elapsed.
func TestExecuteDue(t *testing.T) {
	l, reg, store, _ := newTestLifecycle(t)
	addVoter(t, reg, "alice", 100)
	l.RegisterExecutor(TypeParameterUpdate, func(p *Proposal, now clock.Millis) error {
		return store.Update(p.TargetKey, p.TargetValue, p.ID, now)
	})

	p := createProposal(t, l, "alice", 0)
	_, err := l.Vote(p.ID, "alice", VoteFor, 10)
	require.NoError(t, err)
	_, err = l.Finalize(p.ID, votingPeriod+1)
	require.NoError(t, err)

	assert.Zero(t, l.ExecuteDue(votingPeriod+2))

	n := l.ExecuteDue(votingPeriod + 1 + 2*clock.MillisPerDay)
	assert.Equal(t, 1, n)

	got, _ := l.Get(p.ID)
	assert.Equal(t, StatusExecuted, got.Status)
	assert.Equal(t, int64(25), store.MustGet(params.KeyQuorumPct))
}
