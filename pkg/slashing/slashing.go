// Package slashing applies tier-protected, capped penalty deductions to
// validator stake and certificate values for categorized misbehavior.
package slashing

import (
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
)

// Reason categorizes the misbehavior being punished.
type Reason string

const (
	ReasonLazyValidation Reason = "lazy_validation"
	ReasonWrongConsensus Reason = "wrong_consensus"
	ReasonMalicious      Reason = "malicious"
	ReasonCollusion      Reason = "collusion"
)

// paramKeyFor maps a reason to its base-rate parameter.
func paramKeyFor(reason Reason) (string, bool) {
	switch reason {
	case ReasonLazyValidation:
		return params.KeySlashLazyPct, true
	case ReasonWrongConsensus:
		return params.KeySlashWrongConsensusPct, true
	case ReasonMalicious:
		return params.KeySlashMaliciousPct, true
	case ReasonCollusion:
		return params.KeySlashCollusionPct, true
	default:
		return "", false
	}
}

// Event is the immutable audit record of one executed slash.
type Event struct {
	Validator    string       `json:"validator"`
	Reason       Reason       `json:"reason"`
	BasePct      uint64       `json:"base_pct"`
	EffectivePct uint64       `json:"effective_pct"`
	Amount       uint64       `json:"amount"`
	Evidence     string       `json:"evidence"`
	Executor     string       `json:"executor"`
	Suspended    bool         `json:"suspended"`
	ExecutedAt   clock.Millis `json:"executed_at"`
}

// Recorder receives executed slash events for the audit trail.
type Recorder interface {
	SlashExecuted(ev Event)
}

// Engine executes slashes against the validator registry. Deducted stake is
// handed to the sink (the treasury's insurance pool in production).
type Engine struct {
	logger   *zap.Logger
	params   *params.Store
	registry *registry.Registry
	recorder Recorder
	sink     func(amount uint64, now clock.Millis)
}

// NewEngine wires a slashing engine. recorder and sink may be nil in tests.
func NewEngine(logger *zap.Logger, store *params.Store, reg *registry.Registry) *Engine {
	return &Engine{logger: logger, params: store, registry: reg}
}

// SetRecorder wires the audit recorder.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// SetStakeSink wires the destination for deducted stake.
func (e *Engine) SetStakeSink(fn func(amount uint64, now clock.Millis)) { e.sink = fn }

// Slash punishes target for reason at time now. The deduction is the base
// rate modulated by the tier's protection, capped at the platform maximum
// share of current stake. Certificates lose a fixed percentage of current
// value, accuracy decays multiplicatively, and weight is re-derived with the
// aggregate adjusted in the same atomic commit. A validator left under the
// platform minimum is suspended for the configured cool-down; collusion
// permanently bars the validator.
func (e *Engine) Slash(target string, reason Reason, evidence, executor string, now clock.Millis) (*Event, error) {
	const op = "slashing.slash"

	key, ok := paramKeyFor(reason)
	if !ok {
		return nil, codes.E(op, codes.OutOfRange, "unknown slash reason %q", reason)
	}
	basePct := uint64(e.params.MustGet(key))
	maxPct := uint64(e.params.MustGet(params.KeyMaxSlashPct))
	certPenalty := uint64(e.params.MustGet(params.KeyCertificatePenaltyPct))
	accuracyPenalty := uint64(e.params.MustGet(params.KeyAccuracyPenaltyPct))
	minStake := uint64(e.params.MustGet(params.KeyMinimumStake))
	suspension := e.params.MustGet(params.KeySuspensionPeriod)

	ev := Event{
		Validator:  target,
		Reason:     reason,
		BasePct:    basePct,
		Evidence:   evidence,
		Executor:   executor,
		ExecutedAt: now,
	}

	_, err := e.registry.Mutate(op, target, func(v *registry.Validator) error {
		if v.State == registry.StateRetired || v.State == registry.StateSlashed {
			return codes.E(op, codes.InvalidValidatorState,
				"validator %q is %s and cannot be slashed", target, v.State)
		}

		protection := v.Tier.Protection()
		effective := basePct * (100 - protection) / 100
		if effective > maxPct {
			effective = maxPct
		}
		deduction := v.Stake * effective / 100
		cap := v.Stake * maxPct / 100
		if deduction > cap {
			deduction = cap
		}

		v.Stake -= deduction
		v.SlashCount++
		for _, c := range v.Certificates {
			c.Penalize(certPenalty)
		}
		v.Accuracy = v.Accuracy * (100 - accuracyPenalty) / 100

		switch {
		case reason == ReasonCollusion:
			v.State = registry.StateSlashed
		case v.Stake < minStake:
			v.State = registry.StateSuspended
			v.SuspendedUntil = now + suspension
			ev.Suspended = true
		}

		ev.EffectivePct = effective
		ev.Amount = deduction
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.sink != nil && ev.Amount > 0 {
		e.sink(ev.Amount, now)
	}
	if e.recorder != nil {
		e.recorder.SlashExecuted(ev)
	}

	e.logger.Warn("validator slashed",
		zap.String("validator", target),
		zap.String("reason", string(reason)),
		zap.Uint64("base_pct", ev.BasePct),
		zap.Uint64("effective_pct", ev.EffectivePct),
		zap.Uint64("amount", ev.Amount),
		zap.Bool("suspended", ev.Suspended),
		zap.String("executor", executor))
	return &ev, nil
}
