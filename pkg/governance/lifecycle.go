// Package governance runs the proposal-and-voting lifecycle: deposit escrow,
// weighted voting, quorum/threshold finalization, delayed execution, and
// cancellation. Every transition is one-shot; re-entrant calls fail instead
// of re-applying effects.
package governance

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
)

// Disburser moves escrowed deposit money out of a proposal: refunds return to
// the proposer, burns accrue to the treasury's governance pool so funds never
// leave the ledger.
type Disburser interface {
	Refund(to string, amount uint64, now clock.Millis)
	Burn(amount uint64, now clock.Millis)
}

// Executor applies a passed proposal's effect. Returned errors abort the
// execute operation with no state change.
type Executor func(p *Proposal, now clock.Millis) error

// Recorder receives lifecycle transitions for the audit trail.
type Recorder interface {
	ProposalTransition(tr Transition)
}

// Lifecycle is the proposal state machine. Proposals are copy-on-write
// records; mutations stage a clone and commit only on success, under a
// manager mutex acquired with TryLock.
type Lifecycle struct {
	mu       sync.Mutex
	logger   *zap.Logger
	params   *params.Store
	registry *registry.Registry

	proposals *xsync.Map[string, *Proposal]
	executors map[Type]Executor
	disburser Disburser
	recorder  Recorder
}

// New builds an empty lifecycle manager.
func New(logger *zap.Logger, store *params.Store, reg *registry.Registry) *Lifecycle {
	return &Lifecycle{
		logger:    logger,
		params:    store,
		registry:  reg,
		proposals: xsync.NewMap[string, *Proposal](),
		executors: make(map[Type]Executor),
	}
}

// SetDisburser wires the deposit disbursement sink.
func (l *Lifecycle) SetDisburser(d Disburser) { l.disburser = d }

// SetRecorder wires the audit recorder.
func (l *Lifecycle) SetRecorder(r Recorder) { l.recorder = r }

// RegisterExecutor binds the effect handler for a proposal type. The
// parameter-update executor is installed by the engine at wiring time; the
// economic/exam/certificate types are extension points.
func (l *Lifecycle) RegisterExecutor(t Type, fn Executor) { l.executors[t] = fn }

func (l *Lifecycle) lock(op string) error {
	if !l.mu.TryLock() {
		return codes.E(op, codes.RecordBusy, "proposal store is held by another operation")
	}
	return nil
}

// Get returns the proposal snapshot for id.
func (l *Lifecycle) Get(id string) (*Proposal, error) {
	p, ok := l.proposals.Load(id)
	if !ok {
		return nil, codes.E("governance.get", codes.ProposalNotFound, "proposal %q not found", id)
	}
	return p, nil
}

// Range walks a snapshot of all proposals.
func (l *Lifecycle) Range(fn func(p *Proposal) bool) {
	l.proposals.Range(func(_ string, p *Proposal) bool { return fn(p) })
}

// Create opens a proposal with its deposit escrowed inside the record. The
// proposer must be a recognized, active validator and the deposit must meet
// the configured requirement. Voting opens immediately.
func (l *Lifecycle) Create(proposer string, typ Type, title, description, targetKey string, targetValue int64, deposit uint64, now clock.Millis) (*Proposal, error) {
	const op = "governance.create"
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	required := uint64(l.params.MustGet(params.KeyProposalDeposit))
	if deposit < required {
		return nil, codes.E(op, codes.InsufficientDeposit,
			"deposit %d below required %d", deposit, required)
	}
	v, err := l.registry.Get(proposer)
	if err != nil {
		return nil, codes.E(op, codes.NotAuthorized, "proposer %q is not a validator", proposer)
	}
	if !v.Eligible() {
		return nil, codes.E(op, codes.NotAuthorized, "proposer %q is %s", proposer, v.State)
	}
	if typ == TypeParameterUpdate && targetKey == "" {
		return nil, codes.E(op, codes.OutOfRange, "parameter update requires a target key")
	}

	period := l.params.MustGet(params.KeyVotingPeriod)
	p := &Proposal{
		ID:          uuid.NewString(),
		Proposer:    proposer,
		Type:        typ,
		Title:       title,
		Description: description,
		TargetKey:   targetKey,
		TargetValue: targetValue,
		VotingStart: now,
		VotingEnd:   now + period,
		Status:      StatusActive,
		Deposit:     deposit,
		votes:       make(map[string]*VoteRecord),
	}
	l.proposals.Store(p.ID, p)

	l.logger.Info("proposal created",
		zap.String("proposal", p.ID),
		zap.String("proposer", proposer),
		zap.String("type", string(typ)),
		zap.Uint64("deposit", deposit))
	return p, nil
}

// mutate stages a clone of proposal id, applies fn, and commits on success.
func (l *Lifecycle) mutate(op, id string, fn func(p *Proposal) error) (*Proposal, error) {
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	cur, ok := l.proposals.Load(id)
	if !ok {
		return nil, codes.E(op, codes.ProposalNotFound, "proposal %q not found", id)
	}
	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	l.proposals.Store(id, next)
	return next, nil
}

// Vote casts voter's ballot on proposal id. Voting power snapshots the
// voter's current weight at cast time.
func (l *Lifecycle) Vote(id, voter string, t VoteType, now clock.Millis) (*VoteRecord, error) {
	const op = "governance.vote"

	v, err := l.registry.Get(voter)
	if err != nil {
		return nil, codes.E(op, codes.NotAuthorized, "voter %q is not a validator", voter)
	}
	if !v.Eligible() {
		return nil, codes.E(op, codes.NotAuthorized, "voter %q is %s", voter, v.State)
	}

	var rec *VoteRecord
	_, err = l.mutate(op, id, func(p *Proposal) error {
		if p.Status != StatusActive {
			return codes.E(op, codes.InvalidProposalState, "proposal %q is %s", id, p.Status)
		}
		if now < p.VotingStart {
			return codes.E(op, codes.VotingNotStarted, "voting opens at %d", p.VotingStart)
		}
		if now > p.VotingEnd {
			return codes.E(op, codes.VotingEnded, "voting closed at %d", p.VotingEnd)
		}
		if p.HasVoted(voter) {
			return codes.E(op, codes.AlreadyVoted, "voter %q already voted on %q", voter, id)
		}

		rec = &VoteRecord{Voter: voter, Proposal: id, Type: t, Power: v.Weight, CastAt: now}
		p.votes[voter] = rec
		switch t {
		case VoteFor:
			p.VotesFor += rec.Power
		case VoteAgainst:
			p.VotesAgainst += rec.Power
		case VoteAbstain:
			p.VotesAbstain += rec.Power
		default:
			return codes.E(op, codes.OutOfRange, "unknown vote type %d", t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("vote cast",
		zap.String("proposal", id),
		zap.String("voter", voter),
		zap.String("vote", t.String()),
		zap.Uint64("power", rec.Power))
	return rec, nil
}

// Finalize closes voting after the window. A proposal missing quorum or the
// approval threshold is Rejected and half the deposit returns to the
// proposer, the rest burning to the governance pool. A passing proposal
// schedules execution after the configured delay with its deposit intact.
func (l *Lifecycle) Finalize(id string, now clock.Millis) (*Proposal, error) {
	const op = "governance.finalize"

	totalPower := l.registry.TotalWeight()
	quorumPct := uint64(l.params.MustGet(params.KeyQuorumPct))
	approvalPct := uint64(l.params.MustGet(params.KeyApprovalThresholdPct))
	refundPct := uint64(l.params.MustGet(params.KeyRejectionRefundPct))
	delay := l.params.MustGet(params.KeyExecutionDelay)

	var tr Transition
	p, err := l.mutate(op, id, func(p *Proposal) error {
		if p.Status != StatusActive {
			return codes.E(op, codes.InvalidProposalState, "proposal %q is %s", id, p.Status)
		}
		if now <= p.VotingEnd {
			return codes.E(op, codes.InvalidProposalState, "voting on %q still open until %d", id, p.VotingEnd)
		}

		tr = Transition{Proposal: id, From: p.Status, At: now}
		quorumRequired := totalPower * quorumPct / 100
		totalVotes := p.TotalVotes()

		passed := false
		if totalVotes >= quorumRequired {
			approvalRequired := totalVotes * approvalPct / 100
			passed = p.VotesFor >= approvalRequired
		}

		if passed {
			p.Status = StatusPassed
			p.ExecutionTime = now + delay
		} else {
			p.Status = StatusRejected
			tr.Refund = p.Deposit * refundPct / 100
			tr.Burned = p.Deposit - tr.Refund
			p.Deposit = 0
		}
		tr.To = p.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.disburse(p.Proposer, tr, now)
	l.logger.Info("proposal finalized",
		zap.String("proposal", id),
		zap.String("status", p.Status.String()),
		zap.Uint64("votes_for", p.VotesFor),
		zap.Uint64("votes_against", p.VotesAgainst),
		zap.Uint64("votes_abstain", p.VotesAbstain))
	return p, nil
}

// Execute applies a Passed proposal after its delay and returns the full
// remaining deposit to the proposer.
func (l *Lifecycle) Execute(id string, now clock.Millis) (*Proposal, error) {
	const op = "governance.execute"

	var tr Transition
	p, err := l.mutate(op, id, func(p *Proposal) error {
		if p.Status != StatusPassed {
			return codes.E(op, codes.ThresholdNotMet, "proposal %q is %s, not passed", id, p.Status)
		}
		if now < p.ExecutionTime {
			return codes.E(op, codes.ExecutionDelayNotMet,
				"proposal %q executes at %d", id, p.ExecutionTime)
		}

		if fn, ok := l.executors[p.Type]; ok {
			if err := fn(p, now); err != nil {
				return err
			}
		}

		tr = Transition{Proposal: id, From: p.Status, To: StatusExecuted, Refund: p.Deposit, At: now}
		p.Status = StatusExecuted
		p.Deposit = 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.disburse(p.Proposer, tr, now)
	l.logger.Info("proposal executed", zap.String("proposal", id), zap.String("type", string(p.Type)))
	return p, nil
}

// Cancel withdraws an Active proposal. Only the original proposer may cancel;
// a quarter of the deposit burns as the cancellation penalty.
func (l *Lifecycle) Cancel(id, caller string, now clock.Millis) (*Proposal, error) {
	const op = "governance.cancel"

	penaltyPct := uint64(l.params.MustGet(params.KeyCancellationPct))
	var tr Transition
	p, err := l.mutate(op, id, func(p *Proposal) error {
		if p.Proposer != caller {
			return codes.E(op, codes.NotProposer, "%q did not propose %q", caller, id)
		}
		if p.Status != StatusActive {
			return codes.E(op, codes.InvalidProposalState, "proposal %q is %s", id, p.Status)
		}

		tr = Transition{Proposal: id, From: p.Status, To: StatusCancelled, At: now}
		tr.Burned = p.Deposit * penaltyPct / 100
		tr.Refund = p.Deposit - tr.Burned
		p.Deposit = 0
		p.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.disburse(p.Proposer, tr, now)
	l.logger.Info("proposal cancelled", zap.String("proposal", id), zap.Uint64("refund", tr.Refund))
	return p, nil
}

// FinalizeDue finalizes every Active proposal whose voting window has closed.
// The scheduler sweep calls this; each proposal takes the normal locked path.
func (l *Lifecycle) FinalizeDue(now clock.Millis) int {
	var due []string
	l.proposals.Range(func(id string, p *Proposal) bool {
		if p.Status == StatusActive && p.VotingEnd < now {
			due = append(due, id)
		}
		return true
	})
	n := 0
	for _, id := range due {
		if _, err := l.Finalize(id, now); err == nil {
			n++
		}
	}
	return n
}

// ExecuteDue executes every Passed proposal whose delay has elapsed.
func (l *Lifecycle) ExecuteDue(now clock.Millis) int {
	var due []string
	l.proposals.Range(func(id string, p *Proposal) bool {
		if p.Status == StatusPassed && p.ExecutionTime <= now {
			due = append(due, id)
		}
		return true
	})
	n := 0
	for _, id := range due {
		if _, err := l.Execute(id, now); err == nil {
			n++
		} else {
			l.logger.Warn("scheduled execution failed", zap.String("proposal", id), zap.Error(err))
		}
	}
	return n
}

func (l *Lifecycle) disburse(proposer string, tr Transition, now clock.Millis) {
	if l.disburser != nil {
		if tr.Refund > 0 {
			l.disburser.Refund(proposer, tr.Refund, now)
		}
		if tr.Burned > 0 {
			l.disburser.Burn(tr.Burned, now)
		}
	}
	if l.recorder != nil && tr.To != 0 {
		l.recorder.ProposalTransition(tr)
	}
}
