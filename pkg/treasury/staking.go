package treasury

import (
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
)

// StakingPosition is one staker's locked principal in the staking pool.
type StakingPosition struct {
	Staker     string       `json:"staker"`
	Amount     uint64       `json:"amount"`
	StartEpoch int64        `json:"start_epoch"`
	LockPeriod clock.Millis `json:"lock_period"`
	// RewardRateBps is the annual reward rate, fixed at open time (base rate
	// scaled by the staker's tier multiplier).
	RewardRateBps uint64 `json:"reward_rate_bps"`
	// Accumulated holds unclaimed rewards credited by past claims folded in
	// without payout.
	Accumulated    uint64 `json:"accumulated"`
	LastClaimEpoch int64  `json:"last_claim_epoch"`
	AutoCompound   bool   `json:"auto_compound"`

	openedAt clock.Millis
}

// Unlocked reports whether the lock period has elapsed at now.
func (sp *StakingPosition) Unlocked(now clock.Millis) bool {
	return now >= sp.openedAt+sp.LockPeriod
}

// OpenPosition stakes amount for staker, moving the principal into the
// staking pool. One position per staker; re-opening an existing position
// fails — use AddStake. rateMultiplierBps scales the base annual rate (the
// staker's tier multiplier; pass 10000 for the base rate).
func (l *Ledger) OpenPosition(staker string, amount uint64, lockPeriod clock.Millis, rateMultiplierBps uint64, autoCompound bool, now clock.Millis) (*StakingPosition, error) {
	const op = "treasury.open_position"
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	if amount == 0 {
		return nil, codes.E(op, codes.InvalidAmount, "stake amount must be positive")
	}
	minLock := l.params.MustGet(params.KeyMinLockPeriod)
	if lockPeriod < minLock {
		return nil, codes.E(op, codes.LockTooShort,
			"lock period %d below minimum %d", lockPeriod, minLock)
	}
	if _, exists := l.positions[staker]; exists {
		return nil, codes.E(op, codes.InvalidAmount,
			"staker %q already holds a position; add to it instead", staker)
	}
	if rateMultiplierBps == 0 {
		rateMultiplierBps = 10_000
	}

	baseRate := uint64(l.params.MustGet(params.KeyStakingRateBps))
	sp := &StakingPosition{
		Staker:         staker,
		Amount:         amount,
		StartEpoch:     clock.Epoch(now),
		LockPeriod:     lockPeriod,
		RewardRateBps:  baseRate * rateMultiplierBps / 10_000,
		LastClaimEpoch: clock.Epoch(now),
		AutoCompound:   autoCompound,
		openedAt:       now,
	}

	if err := l.depositLocked(op, PoolStaking, amount, staker, now); err != nil {
		return nil, err
	}
	l.positions[staker] = sp

	l.logger.Info("staking position opened",
		zap.String("staker", staker),
		zap.Uint64("amount", amount),
		zap.Int64("lock_period", lockPeriod),
		zap.Uint64("rate_bps", sp.RewardRateBps))
	cp := *sp
	return &cp, nil
}

// AddStake tops up an existing position. Pending rewards settle into the
// accumulator first so the new principal does not earn retroactively.
func (l *Ledger) AddStake(staker string, amount uint64, now clock.Millis) (*StakingPosition, error) {
	const op = "treasury.add_stake"
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	if amount == 0 {
		return nil, codes.E(op, codes.InvalidAmount, "stake amount must be positive")
	}
	sp, ok := l.positions[staker]
	if !ok {
		return nil, codes.E(op, codes.PositionNotFound, "no position for %q", staker)
	}

	// Settle against the old principal so the top-up does not earn
	// retroactively, but only commit once the deposit has gone through.
	pending := l.pendingReward(sp, now)
	if err := l.depositLocked(op, PoolStaking, amount, staker, now); err != nil {
		return nil, err
	}
	sp.Accumulated += pending
	sp.LastClaimEpoch = clock.Epoch(now)
	sp.Amount += amount

	cp := *sp
	return &cp, nil
}

// ReduceStake releases part of the principal once the lock has expired. The
// released amount leaves the staking pool. Reducing to zero closes the
// position; any unclaimed rewards must be claimed first.
func (l *Ledger) ReduceStake(staker string, amount uint64, now clock.Millis) (*StakingPosition, error) {
	const op = "treasury.reduce_stake"
	if err := l.lock(op); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	if l.emergencyMode {
		return nil, codes.E(op, codes.EmergencyMode, "treasury is in emergency mode")
	}
	sp, ok := l.positions[staker]
	if !ok {
		return nil, codes.E(op, codes.PositionNotFound, "no position for %q", staker)
	}
	if !sp.Unlocked(now) {
		return nil, codes.E(op, codes.LockNotExpired,
			"position for %q unlocks at %d", staker, sp.openedAt+sp.LockPeriod)
	}
	if amount == 0 || amount > sp.Amount {
		return nil, codes.E(op, codes.InvalidAmount,
			"reduce amount %d outside 1..%d", amount, sp.Amount)
	}

	// Settle rewards against the full principal, but only commit once the
	// release has gone through; a failed withdrawal leaves the position as-is.
	pending := l.pendingReward(sp, now)
	if err := l.withdrawLocked(op, PoolStaking, amount, "stake_release", staker, false, false, now); err != nil {
		return nil, err
	}
	sp.Accumulated += pending
	sp.LastClaimEpoch = clock.Epoch(now)
	sp.Amount -= amount

	if sp.Amount == 0 && sp.Accumulated == 0 {
		delete(l.positions, staker)
		l.logger.Info("staking position closed", zap.String("staker", staker))
		cp := *sp
		return &cp, nil
	}
	cp := *sp
	return &cp, nil
}

// pendingReward computes amount × (rate/365) × epochsSinceLastClaim / 10000.
func (l *Ledger) pendingReward(sp *StakingPosition, now clock.Millis) uint64 {
	epochs := uint64(clock.Epoch(now) - sp.LastClaimEpoch)
	if epochs == 0 {
		return 0
	}
	return sp.Amount * sp.RewardRateBps / 365 * epochs / 10_000
}

// ClaimRewards settles the staker's rewards at now. With autoCompound the
// reward folds back into the principal inside the staking pool (funded from
// the rewards pool) and nothing leaves the treasury; otherwise the reward
// pays out of the rewards pool and the accumulator resets.
func (l *Ledger) ClaimRewards(staker string, autoCompound bool, now clock.Millis) (uint64, error) {
	const op = "treasury.claim_rewards"
	if err := l.lock(op); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()

	if l.emergencyMode {
		return 0, codes.E(op, codes.EmergencyMode, "treasury is in emergency mode")
	}
	sp, ok := l.positions[staker]
	if !ok {
		return 0, codes.E(op, codes.PositionNotFound, "no position for %q", staker)
	}

	reward := sp.Accumulated + l.pendingReward(sp, now)
	if reward == 0 {
		sp.LastClaimEpoch = clock.Epoch(now)
		return 0, nil
	}

	rewards := l.pools[PoolRewards]
	if rewards.Balance < reward {
		return 0, codes.E(op, codes.InsufficientBalance,
			"rewards pool holds %d, %d owed", rewards.Balance, reward)
	}

	if autoCompound || sp.AutoCompound {
		// Principal grows in place; funds shift rewards → staking pool.
		rewards.Balance -= reward
		l.pools[PoolStaking].Balance += reward
		sp.Amount += reward
	} else {
		if err := l.withdrawLocked(op, PoolRewards, reward, "staking_reward", staker, false, false, now); err != nil {
			return 0, err
		}
	}
	sp.Accumulated = 0
	sp.LastClaimEpoch = clock.Epoch(now)

	l.logger.Info("staking rewards claimed",
		zap.String("staker", staker),
		zap.Uint64("reward", reward),
		zap.Bool("compounded", autoCompound || sp.AutoCompound))
	return reward, nil
}

// Position returns a copy of the staker's position.
func (l *Ledger) Position(staker string) (*StakingPosition, error) {
	const op = "treasury.position"
	l.mu.Lock()
	defer l.mu.Unlock()
	sp, ok := l.positions[staker]
	if !ok {
		return nil, codes.E(op, codes.PositionNotFound, "no position for %q", staker)
	}
	cp := *sp
	return &cp, nil
}
