package treasury

import (
	"github.com/poknet/pokengine/pkg/clock"
)

// PoolType names one of the twelve fixed treasury sub-accounts.
type PoolType string

const (
	PoolRewards      PoolType = "rewards"
	PoolValidation   PoolType = "validation"
	PoolGovernance   PoolType = "governance"
	PoolOperations   PoolType = "operations"
	PoolEmergency    PoolType = "emergency"
	PoolStaking      PoolType = "staking"
	PoolRoyalties    PoolType = "royalties"
	PoolSponsorship  PoolType = "sponsorship"
	PoolYieldFarming PoolType = "yield_farming"
	PoolInsurance    PoolType = "insurance"
	PoolDevelopment  PoolType = "development"
	PoolMarketing    PoolType = "marketing"
)

// PoolTypes lists every pool in creation order.
var PoolTypes = []PoolType{
	PoolRewards, PoolValidation, PoolGovernance, PoolOperations,
	PoolEmergency, PoolStaking, PoolRoyalties, PoolSponsorship,
	PoolYieldFarming, PoolInsurance, PoolDevelopment, PoolMarketing,
}

// Metrics accumulates a pool's lifetime performance counters.
type Metrics struct {
	TotalDeposits    uint64 `json:"total_deposits"`
	TotalWithdrawals uint64 `json:"total_withdrawals"`
	TotalYield       uint64 `json:"total_yield"`
	// UtilizationBps is withdrawals over deposits, in bps.
	UtilizationBps uint64 `json:"utilization_bps"`
	// PerformanceScore is yield over average balance, in bps.
	PerformanceScore uint64 `json:"performance_score"`
}

// WithdrawalRecord logs one executed withdrawal.
type WithdrawalRecord struct {
	Pool      PoolType     `json:"pool"`
	Amount    uint64       `json:"amount"`
	Reason    string       `json:"reason"`
	Recipient string       `json:"recipient"`
	Emergency bool         `json:"emergency"`
	At        clock.Millis `json:"at"`
}

// maxWithdrawalHistory bounds the per-pool withdrawal log; the oldest entry
// drops on overflow.
const maxWithdrawalHistory = 50

// Pool is one treasury sub-account. Funds are always resident in exactly one
// pool or in the ledger's unallocated total.
type Pool struct {
	Type      PoolType `json:"type"`
	Balance   uint64   `json:"balance"`
	Allocated uint64   `json:"allocated"`
	Reserved  uint64   `json:"reserved"`
	// AccumulatedYield tracks yield credited to this pool.
	AccumulatedYield uint64 `json:"accumulated_yield"`
	// Strategy names the pool's yield strategy; changed only through a
	// multi-signature governance action.
	Strategy string  `json:"strategy"`
	Metrics  Metrics `json:"metrics"`

	// DailyCap limits withdrawals per calendar day. 0 = uncapped.
	DailyCap uint64 `json:"daily_cap"`

	// Daily-withdrawal bucket: withdrawnToday applies to withdrawnDay only.
	withdrawnDay   int64
	withdrawnToday uint64

	lastYieldCalc clock.Millis
	history       []WithdrawalRecord
}

// withdrawnOn returns the running withdrawal total for the calendar day of ts.
func (p *Pool) withdrawnOn(ts clock.Millis) uint64 {
	if clock.Day(ts) != p.withdrawnDay {
		return 0
	}
	return p.withdrawnToday
}

// noteWithdrawal folds amount into the day bucket and the bounded history.
func (p *Pool) noteWithdrawal(rec WithdrawalRecord) {
	day := clock.Day(rec.At)
	if day != p.withdrawnDay {
		p.withdrawnDay = day
		p.withdrawnToday = 0
	}
	p.withdrawnToday += rec.Amount

	p.history = append(p.history, rec)
	if len(p.history) > maxWithdrawalHistory {
		p.history = p.history[len(p.history)-maxWithdrawalHistory:]
	}
}

// History returns a copy of the pool's bounded withdrawal log, oldest first.
func (p *Pool) History() []WithdrawalRecord {
	out := make([]WithdrawalRecord, len(p.history))
	copy(out, p.history)
	return out
}

// refreshDerivedMetrics recomputes the ratio metrics from the counters.
func (p *Pool) refreshDerivedMetrics() {
	if p.Metrics.TotalDeposits > 0 {
		p.Metrics.UtilizationBps = p.Metrics.TotalWithdrawals * 10_000 / p.Metrics.TotalDeposits
	}
	if p.Balance > 0 {
		p.Metrics.PerformanceScore = p.Metrics.TotalYield * 10_000 / p.Balance
	}
}

// snapshot returns a copy safe to hand to readers.
func (p *Pool) snapshot() Pool {
	cp := *p
	cp.history = nil
	return cp
}
