package params

import (
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

// Unit is the number of base units in one token. Stake amounts are carried in
// base units everywhere; the weight formula divides by Unit before damping.
const Unit int64 = 1_000_000_000

// Category groups parameters the way the governance UI and impact rules do.
type Category string

const (
	CategoryEconomic    Category = "economic"
	CategoryValidation  Category = "validation"
	CategoryReward      Category = "reward"
	CategorySystem      Category = "system"
	CategoryGovernance  Category = "governance"
	CategoryPoK         Category = "pok"
	CategoryCertificate Category = "certificate"
	CategorySlashing    Category = "slashing"
	CategoryWeight      Category = "weight"
)

// Impact levels for audit records. 1 = low, 4 = critical.
const (
	ImpactLow      = 1
	ImpactMedium   = 2
	ImpactHigh     = 3
	ImpactCritical = 4
)

// Canonical parameter keys. Keys are namespaced by category prefix.
const (
	KeyMinimumStake         = "economic.minimum_stake"
	KeyMaxGenesisValidators = "economic.max_genesis_validators"
	KeyMinCertificates      = "economic.min_certificates"
	KeyMaxBoostBps          = "economic.max_boost_multiplier_bps"

	KeyMaxValidatorsPerContent = "validation.max_validators_per_content"
	KeyConsensusThresholdPct   = "validation.consensus_threshold_pct"

	KeyStakingRateBps = "reward.staking_rate_bps"
	KeyMinLockPeriod  = "reward.min_lock_period_ms"
	KeyYieldRateBps   = "reward.yield_rate_bps"
	KeyYieldInterval  = "reward.yield_interval_ms"

	KeyVotingPeriod         = "governance.voting_period_ms"
	KeyExecutionDelay       = "governance.execution_delay_ms"
	KeyQuorumPct            = "governance.quorum_pct"
	KeyApprovalThresholdPct = "governance.approval_threshold_pct"
	KeyProposalDeposit      = "governance.proposal_deposit"
	KeyCancellationPct      = "governance.cancellation_penalty_pct"
	KeyRejectionRefundPct   = "governance.rejection_refund_pct"

	KeyEmergencyCooldown = "system.emergency_cooldown_ms"
	KeyBootstrapDuration = "system.bootstrap_duration_ms"

	KeyDecayMonthlyBps = "pok.decay_monthly_bps"
	KeyMaxDecayBps     = "pok.max_decay_bps"

	KeyDefaultBaseValue = "certificate.default_base_value"

	KeySlashLazyPct           = "slashing.rate_lazy_pct"
	KeySlashWrongConsensusPct = "slashing.rate_wrong_consensus_pct"
	KeySlashMaliciousPct      = "slashing.rate_malicious_pct"
	KeySlashCollusionPct      = "slashing.rate_collusion_pct"
	KeyMaxSlashPct            = "slashing.max_slash_pct"
	KeySuspensionPeriod       = "slashing.suspension_ms"
	KeyCertificatePenaltyPct  = "slashing.certificate_penalty_pct"
	KeyAccuracyPenaltyPct     = "slashing.accuracy_penalty_pct"

	KeyTierThreshold2 = "weight.tier_threshold_2"
	KeyTierThreshold3 = "weight.tier_threshold_3"
	KeyTierThreshold4 = "weight.tier_threshold_4"
	KeyTierThreshold5 = "weight.tier_threshold_5"
	KeyTierThreshold6 = "weight.tier_threshold_6"
)

type validateFn func(key string, v int64) error

// spec pins a parameter's category, audit impact, and validation rule.
type spec struct {
	Category Category
	Impact   int
	Validate validateFn
	Default  int64
}

func positive(key string, v int64) error {
	if v <= 0 {
		return codes.E("params.validate", codes.OutOfRange, "%s must be positive, got %d", key, v)
	}
	return nil
}

func percentage(key string, v int64) error {
	if v < 0 || v > 100 {
		return codes.E("params.validate", codes.OutOfRange, "%s must be within 0..100, got %d", key, v)
	}
	return nil
}

func basisPoints(key string, v int64) error {
	if v < 0 || v > 100_000 {
		return codes.E("params.validate", codes.OutOfRange, "%s must be within 0..100000 bps, got %d", key, v)
	}
	return nil
}

// schema is the fixed parameter set. Keys outside the schema fall back to the
// store's generic map with low impact and positive-value validation.
var schema = map[string]spec{
	KeyMinimumStake:         {CategoryEconomic, ImpactCritical, positive, 10 * Unit},
	KeyMaxGenesisValidators: {CategoryEconomic, ImpactHigh, positive, 20},
	KeyMinCertificates:      {CategoryEconomic, ImpactHigh, positive, 3},
	KeyMaxBoostBps:          {CategoryEconomic, ImpactMedium, basisPoints, 20_000},

	KeyMaxValidatorsPerContent: {CategoryValidation, ImpactMedium, positive, 10},
	KeyConsensusThresholdPct:   {CategoryValidation, ImpactCritical, percentage, 66},

	KeyStakingRateBps: {CategoryReward, ImpactMedium, basisPoints, 800},
	KeyMinLockPeriod:  {CategoryReward, ImpactMedium, positive, 7 * clock.MillisPerDay},
	KeyYieldRateBps:   {CategoryReward, ImpactMedium, basisPoints, 500},
	KeyYieldInterval:  {CategoryReward, ImpactLow, positive, clock.MillisPerDay},

	KeyVotingPeriod:         {CategoryGovernance, ImpactHigh, positive, 7 * clock.MillisPerDay},
	KeyExecutionDelay:       {CategoryGovernance, ImpactHigh, positive, 2 * clock.MillisPerDay},
	KeyQuorumPct:            {CategoryGovernance, ImpactCritical, percentage, 20},
	KeyApprovalThresholdPct: {CategoryGovernance, ImpactCritical, percentage, 60},
	KeyProposalDeposit:      {CategoryGovernance, ImpactHigh, positive, 100 * Unit},
	KeyCancellationPct:      {CategoryGovernance, ImpactMedium, percentage, 25},
	KeyRejectionRefundPct:   {CategoryGovernance, ImpactMedium, percentage, 50},

	KeyEmergencyCooldown: {CategorySystem, ImpactHigh, positive, 3 * clock.MillisPerDay},
	KeyBootstrapDuration: {CategorySystem, ImpactCritical, positive, 30 * clock.MillisPerDay},

	KeyDecayMonthlyBps: {CategoryPoK, ImpactMedium, basisPoints, 500},
	KeyMaxDecayBps:     {CategoryPoK, ImpactMedium, basisPoints, 5_000},

	KeyDefaultBaseValue: {CategoryCertificate, ImpactLow, positive, 100},

	KeySlashLazyPct:           {CategorySlashing, ImpactHigh, percentage, 10},
	KeySlashWrongConsensusPct: {CategorySlashing, ImpactHigh, percentage, 5},
	KeySlashMaliciousPct:      {CategorySlashing, ImpactHigh, percentage, 50},
	KeySlashCollusionPct:      {CategorySlashing, ImpactHigh, percentage, 100},
	KeyMaxSlashPct:            {CategorySlashing, ImpactCritical, percentage, 50},
	KeySuspensionPeriod:       {CategorySlashing, ImpactMedium, positive, 7 * clock.MillisPerDay},
	KeyCertificatePenaltyPct:  {CategorySlashing, ImpactHigh, percentage, 20},
	KeyAccuracyPenaltyPct:     {CategorySlashing, ImpactHigh, percentage, 10},

	KeyTierThreshold2: {CategoryWeight, ImpactHigh, positive, 250 * Unit},
	KeyTierThreshold3: {CategoryWeight, ImpactHigh, positive, 1_000 * Unit},
	KeyTierThreshold4: {CategoryWeight, ImpactHigh, positive, 2_500 * Unit},
	KeyTierThreshold5: {CategoryWeight, ImpactHigh, positive, 5_000 * Unit},
	KeyTierThreshold6: {CategoryWeight, ImpactHigh, positive, 10_000 * Unit},
}

// ImpactOf returns the audit impact level for key. Unknown keys are low impact.
func ImpactOf(key string) int {
	if s, ok := schema[key]; ok {
		return s.Impact
	}
	return ImpactLow
}

// CategoryOf returns the category for key. Unknown keys report system.
func CategoryOf(key string) Category {
	if s, ok := schema[key]; ok {
		return s.Category
	}
	return CategorySystem
}

// Keys returns every schema-defined key.
func Keys() []string {
	out := make([]string, 0, len(schema))
	for k := range schema {
		out = append(out, k)
	}
	return out
}
