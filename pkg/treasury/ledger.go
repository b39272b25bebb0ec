// Package treasury keeps the platform's multi-pool balance accounting:
// deposits, pool-scoped withdrawals under daily caps, yield accrual, staking
// positions with reward distribution, emergency mode, and multi-signature
// governance actions. Every operation is all-or-nothing: preconditions are
// checked in full before the first balance moves.
package treasury

import (
	"sync"

	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
)

// Recorder receives withdrawal records for the audit trail.
type Recorder interface {
	WithdrawalExecuted(rec WithdrawalRecord)
}

// Ledger is the treasury. The twelve pools are created once and mutated in
// place for the platform's lifetime. Mutations serialize through a ledger
// mutex acquired with TryLock so contended callers fail fast.
type Ledger struct {
	mu     sync.Mutex
	logger *zap.Logger
	params *params.Store

	pools        map[PoolType]*Pool
	totalBalance uint64 // all funds resident in the treasury, pools included

	emergencyMode  bool
	emergencySetAt clock.Millis
	recorder       Recorder

	positions      map[string]*StakingPosition
	pendingActions map[string]*PendingAction
	// Multi-signature governance: the authorized signer set and how many of
	// them a pending action needs before it auto-executes.
	requiredSigners  int
	authorizedSigner map[string]bool
}

// NewLedger creates the treasury with all twelve pools empty.
func NewLedger(logger *zap.Logger, store *params.Store) *Ledger {
	l := &Ledger{
		logger:           logger,
		params:           store,
		pools:            make(map[PoolType]*Pool, len(PoolTypes)),
		positions:        make(map[string]*StakingPosition),
		pendingActions:   make(map[string]*PendingAction),
		requiredSigners:  2,
		authorizedSigner: make(map[string]bool),
	}
	for _, t := range PoolTypes {
		l.pools[t] = &Pool{Type: t, Strategy: "hold"}
	}
	return l
}

// SetRecorder wires the audit recorder.
func (l *Ledger) SetRecorder(r Recorder) { l.recorder = r }

func (l *Ledger) lock(op string) error {
	if !l.mu.TryLock() {
		return codes.E(op, codes.RecordBusy, "treasury ledger is held by another operation")
	}
	return nil
}

func (l *Ledger) pool(op string, t PoolType) (*Pool, error) {
	p, ok := l.pools[t]
	if !ok {
		return nil, codes.E(op, codes.PoolNotFound, "unknown pool %q", t)
	}
	return p, nil
}

// Deposit moves amount into the named pool. Yield accrues first when the
// configured interval has elapsed, so the deposit lands on a settled balance.
func (l *Ledger) Deposit(t PoolType, amount uint64, source string, now clock.Millis) error {
	const op = "treasury.deposit"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()
	return l.depositLocked(op, t, amount, source, now)
}

func (l *Ledger) depositLocked(op string, t PoolType, amount uint64, source string, now clock.Millis) error {
	if amount == 0 {
		return codes.E(op, codes.InvalidAmount, "deposit amount must be positive")
	}
	p, err := l.pool(op, t)
	if err != nil {
		return err
	}

	l.accrueYieldLocked(p, now)

	p.Balance += amount
	p.Metrics.TotalDeposits += amount
	p.refreshDerivedMetrics()
	l.totalBalance += amount

	l.logger.Info("treasury deposit",
		zap.String("pool", string(t)),
		zap.Uint64("amount", amount),
		zap.String("source", source),
		zap.Uint64("pool_balance", p.Balance))
	return nil
}

// Withdraw debits the named pool. Blocked entirely while emergency mode is
// active; bounded by the pool's daily cap per calendar day.
func (l *Ledger) Withdraw(t PoolType, amount uint64, reason, recipient string, now clock.Millis) error {
	const op = "treasury.withdraw"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if l.emergencyMode {
		return codes.E(op, codes.EmergencyMode, "treasury is in emergency mode")
	}
	return l.withdrawLocked(op, t, amount, reason, recipient, false, false, now)
}

// Disburse pays previously escrowed funds out of a pool. Disbursements are
// internal fund motions: the funds were committed when they were escrowed, so
// neither emergency mode nor the pool's daily cap blocks them.
func (l *Ledger) Disburse(t PoolType, amount uint64, reason, recipient string, now clock.Millis) error {
	const op = "treasury.disburse"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()
	return l.withdrawLocked(op, t, amount, reason, recipient, true, false, now)
}

func (l *Ledger) withdrawLocked(op string, t PoolType, amount uint64, reason, recipient string, capExempt, emergency bool, now clock.Millis) error {
	if amount == 0 {
		return codes.E(op, codes.InvalidAmount, "withdrawal amount must be positive")
	}
	p, err := l.pool(op, t)
	if err != nil {
		return err
	}
	// Disbursements and multi-signed emergency withdrawals are not subject to
	// the daily cap.
	if !capExempt && p.DailyCap > 0 && p.withdrawnOn(now)+amount > p.DailyCap {
		return codes.E(op, codes.LimitExceeded,
			"pool %q daily cap %d exceeded: %d withdrawn today, %d requested",
			t, p.DailyCap, p.withdrawnOn(now), amount)
	}
	if p.Balance < amount {
		return codes.E(op, codes.InsufficientBalance,
			"pool %q holds %d, %d requested", t, p.Balance, amount)
	}

	p.Balance -= amount
	p.Metrics.TotalWithdrawals += amount
	p.refreshDerivedMetrics()
	l.totalBalance -= amount

	rec := WithdrawalRecord{
		Pool: t, Amount: amount, Reason: reason,
		Recipient: recipient, Emergency: emergency, At: now,
	}
	p.noteWithdrawal(rec)
	if l.recorder != nil {
		l.recorder.WithdrawalExecuted(rec)
	}

	l.logger.Info("treasury withdrawal",
		zap.String("pool", string(t)),
		zap.Uint64("amount", amount),
		zap.String("reason", reason),
		zap.String("recipient", recipient),
		zap.Bool("emergency", emergency))
	return nil
}

// Transfer moves funds between two pools in one atomic commit.
func (l *Ledger) Transfer(from, to PoolType, amount uint64, reason string, now clock.Millis) error {
	const op = "treasury.transfer"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if amount == 0 {
		return codes.E(op, codes.InvalidAmount, "transfer amount must be positive")
	}
	src, err := l.pool(op, from)
	if err != nil {
		return err
	}
	dst, err := l.pool(op, to)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return codes.E(op, codes.InsufficientBalance,
			"pool %q holds %d, %d requested", from, src.Balance, amount)
	}

	src.Balance -= amount
	dst.Balance += amount
	l.logger.Info("treasury transfer",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint64("amount", amount),
		zap.String("reason", reason))
	return nil
}

// SetDailyCap configures a pool's daily withdrawal cap. 0 removes the cap.
func (l *Ledger) SetDailyCap(t PoolType, cap uint64) error {
	const op = "treasury.set_daily_cap"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()
	p, err := l.pool(op, t)
	if err != nil {
		return err
	}
	p.DailyCap = cap
	return nil
}

// AccrueYield settles yield on one pool at now. Skipped (without error) when
// less than the configured interval has elapsed since the last calculation.
func (l *Ledger) AccrueYield(t PoolType, now clock.Millis) (uint64, error) {
	const op = "treasury.accrue_yield"
	if err := l.lock(op); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()
	p, err := l.pool(op, t)
	if err != nil {
		return 0, err
	}
	return l.accrueYieldLocked(p, now), nil
}

// accrueYieldLocked computes balance × (annualRate/365) × elapsedEpochs /
// 10000, credits the pool, and advances the calculation clock.
func (l *Ledger) accrueYieldLocked(p *Pool, now clock.Millis) uint64 {
	interval := l.params.MustGet(params.KeyYieldInterval)
	if p.lastYieldCalc == 0 {
		p.lastYieldCalc = now
		return 0
	}
	if now-p.lastYieldCalc < interval {
		return 0
	}

	rate := uint64(l.params.MustGet(params.KeyYieldRateBps))
	epochs := uint64(clock.Epoch(now) - clock.Epoch(p.lastYieldCalc))
	if epochs == 0 {
		return 0
	}

	yield := p.Balance * rate / 365 * epochs / 10_000
	if yield > 0 {
		p.AccumulatedYield += yield
		p.Metrics.TotalYield += yield
		p.Balance += yield
		l.totalBalance += yield
		p.refreshDerivedMetrics()
	}
	p.lastYieldCalc = now
	return yield
}

// AccrueAllDue settles yield on every pool; the scheduler sweep calls this.
func (l *Ledger) AccrueAllDue(now clock.Millis) (uint64, error) {
	const op = "treasury.accrue_all"
	if err := l.lock(op); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()

	var total uint64
	for _, t := range PoolTypes {
		total += l.accrueYieldLocked(l.pools[t], now)
	}
	if total > 0 {
		l.logger.Info("yield accrued", zap.Uint64("total", total))
	}
	return total, nil
}

// ActivateEmergency switches the treasury into emergency mode, blocking all
// non-emergency withdrawal paths.
func (l *Ledger) ActivateEmergency(now clock.Millis) error {
	const op = "treasury.activate_emergency"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if l.emergencyMode {
		return codes.E(op, codes.EmergencyMode, "emergency mode already active")
	}
	l.emergencyMode = true
	l.emergencySetAt = now
	l.logger.Warn("treasury emergency mode activated")
	return nil
}

// DeactivateEmergency lifts emergency mode once the cooldown has elapsed.
func (l *Ledger) DeactivateEmergency(now clock.Millis) error {
	const op = "treasury.deactivate_emergency"
	if err := l.lock(op); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if !l.emergencyMode {
		return codes.E(op, codes.EmergencyMode, "emergency mode is not active")
	}
	cooldown := l.params.MustGet(params.KeyEmergencyCooldown)
	if now-l.emergencySetAt < cooldown {
		return codes.E(op, codes.EmergencyCooldown,
			"emergency mode deactivates at %d", l.emergencySetAt+cooldown)
	}
	l.emergencyMode = false
	l.logger.Info("treasury emergency mode deactivated")
	return nil
}

// EmergencyActive reports whether emergency mode is on.
func (l *Ledger) EmergencyActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.emergencyMode
}

// PoolSnapshot returns a copy of the named pool.
func (l *Ledger) PoolSnapshot(t PoolType) (Pool, error) {
	const op = "treasury.pool"
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.pool(op, t)
	if err != nil {
		return Pool{}, err
	}
	return p.snapshot(), nil
}

// PoolHistory returns a copy of the pool's bounded withdrawal log.
func (l *Ledger) PoolHistory(t PoolType) ([]WithdrawalRecord, error) {
	const op = "treasury.pool_history"
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.pool(op, t)
	if err != nil {
		return nil, err
	}
	return p.History(), nil
}

// Stats summarizes the treasury.
type Stats struct {
	TotalBalance   uint64              `json:"total_balance"`
	PoolBalances   map[PoolType]uint64 `json:"pool_balances"`
	TotalYield     uint64              `json:"total_yield"`
	EmergencyMode  bool                `json:"emergency_mode"`
	OpenPositions  int                 `json:"open_positions"`
	PendingActions int                 `json:"pending_actions"`
}

// GetStats returns current treasury statistics.
func (l *Ledger) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		TotalBalance:   l.totalBalance,
		PoolBalances:   make(map[PoolType]uint64, len(l.pools)),
		EmergencyMode:  l.emergencyMode,
		OpenPositions:  len(l.positions),
		PendingActions: len(l.pendingActions),
	}
	for t, p := range l.pools {
		s.PoolBalances[t] = p.Balance
		s.TotalYield += p.Metrics.TotalYield
	}
	return s
}

// TotalBalance returns all funds resident in the treasury.
func (l *Ledger) TotalBalance() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalBalance
}
