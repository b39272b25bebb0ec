package treasury

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

// ActionKind names a governance action that needs multiple signatures.
type ActionKind string

const (
	ActionEmergencyWithdrawal ActionKind = "emergency_withdrawal"
	ActionStrategyChange      ActionKind = "strategy_change"
)

// PendingAction is a governance action waiting for signatures. It
// auto-executes the instant the signature count reaches the threshold.
type PendingAction struct {
	ID        string     `json:"id"`
	Kind      ActionKind `json:"kind"`
	Pool      PoolType   `json:"pool"`
	Amount    uint64     `json:"amount,omitempty"`
	Recipient string     `json:"recipient,omitempty"`
	Strategy  string     `json:"strategy,omitempty"`
	Reason    string     `json:"reason"`

	Required   int          `json:"required"`
	ProposedBy string       `json:"proposed_by"`
	ProposedAt clock.Millis `json:"proposed_at"`
	Executed   bool         `json:"executed"`

	signers map[string]bool
}

// Signatures returns how many signatures the action holds.
func (a *PendingAction) Signatures() int { return len(a.signers) }

// ConfigureSigners replaces the authorized signer set and the signature
// threshold. Called once at engine wiring.
func (l *Ledger) ConfigureSigners(signers []string, required int) error {
	const op = "treasury.configure_signers"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if required <= 0 || required > len(signers) {
		return codes.E(op, codes.InvalidAmount,
			"threshold %d outside 1..%d", required, len(signers))
	}
	l.authorizedSigner = make(map[string]bool, len(signers))
	for _, s := range signers {
		l.authorizedSigner[s] = true
	}
	l.requiredSigners = required
	return nil
}

// ProposeAction opens a pending multi-signature action. The proposer's
// signature counts as the first one; a single-signer configuration therefore
// executes immediately.
func (l *Ledger) ProposeAction(kind ActionKind, pool PoolType, amount uint64, recipient, strategy, reason, proposer string, now clock.Millis) (*PendingAction, error) {
	const op = "treasury.propose_action"
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	if !l.authorizedSigner[proposer] {
		return nil, codes.E(op, codes.Unauthorized, "%q is not an authorized signer", proposer)
	}
	if _, err := l.pool(op, pool); err != nil {
		return nil, err
	}
	switch kind {
	case ActionEmergencyWithdrawal:
		if amount == 0 {
			return nil, codes.E(op, codes.InvalidAmount, "emergency withdrawal requires an amount")
		}
	case ActionStrategyChange:
		if strategy == "" {
			return nil, codes.E(op, codes.InvalidAmount, "strategy change requires a strategy")
		}
	default:
		return nil, codes.E(op, codes.ActionNotFound, "unknown action kind %q", kind)
	}

	a := &PendingAction{
		ID:         uuid.NewString(),
		Kind:       kind,
		Pool:       pool,
		Amount:     amount,
		Recipient:  recipient,
		Strategy:   strategy,
		Reason:     reason,
		Required:   l.requiredSigners,
		ProposedBy: proposer,
		ProposedAt: now,
		signers:    map[string]bool{proposer: true},
	}
	l.pendingActions[a.ID] = a

	l.logger.Info("governance action proposed",
		zap.String("action", a.ID),
		zap.String("kind", string(kind)),
		zap.String("pool", string(pool)),
		zap.String("proposer", proposer),
		zap.Int("required", a.Required))

	if err := l.maybeExecuteLocked(a, now); err != nil {
		delete(l.pendingActions, a.ID)
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// SignAction adds signer's signature. Each signer signs once; the action
// executes inside the same call when the threshold is reached.
func (l *Ledger) SignAction(actionID, signer string, now clock.Millis) (*PendingAction, error) {
	const op = "treasury.sign_action"
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	a, ok := l.pendingActions[actionID]
	if !ok {
		return nil, codes.E(op, codes.ActionNotFound, "action %q not found", actionID)
	}
	if a.Executed {
		return nil, codes.E(op, codes.ActionNotFound, "action %q already executed", actionID)
	}
	if !l.authorizedSigner[signer] {
		return nil, codes.E(op, codes.Unauthorized, "%q is not an authorized signer", signer)
	}
	if a.signers[signer] {
		return nil, codes.E(op, codes.AlreadySigned, "%q already signed %q", signer, actionID)
	}

	a.signers[signer] = true
	l.logger.Info("governance action signed",
		zap.String("action", actionID),
		zap.String("signer", signer),
		zap.Int("signatures", a.Signatures()),
		zap.Int("required", a.Required))

	if err := l.maybeExecuteLocked(a, now); err != nil {
		// The signature stands; only the execution failed. Roll the
		// signature back so the call is all-or-nothing.
		delete(a.signers, signer)
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// maybeExecuteLocked runs the action if the threshold is met.
func (l *Ledger) maybeExecuteLocked(a *PendingAction, now clock.Millis) error {
	if a.Signatures() < a.Required {
		return nil
	}

	switch a.Kind {
	case ActionEmergencyWithdrawal:
		// Emergency withdrawals run even while emergency mode blocks the
		// ordinary paths; that is their purpose.
		if err := l.withdrawLocked("treasury.emergency_withdraw", a.Pool, a.Amount, a.Reason, a.Recipient, true, true, now); err != nil {
			return err
		}
	case ActionStrategyChange:
		p := l.pools[a.Pool]
		p.Strategy = a.Strategy
	}

	a.Executed = true
	delete(l.pendingActions, a.ID)
	l.logger.Warn("governance action executed",
		zap.String("action", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("pool", string(a.Pool)),
		zap.Uint64("amount", a.Amount))
	return nil
}

// PendingActions returns copies of all open actions.
func (l *Ledger) PendingActions() []*PendingAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*PendingAction, 0, len(l.pendingActions))
	for _, a := range l.pendingActions {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
