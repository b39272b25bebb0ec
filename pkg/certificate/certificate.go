// Package certificate models earned credentials and their time-decayed,
// market-adjusted valuation. A certificate's current value feeds the holder's
// knowledge score, which in turn drives voting weight.
package certificate

import (
	"github.com/google/uuid"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

// Valuation math constants. Decay accrues linearly per 30-day month and is
// capped; scarcity and difficulty multipliers are expressed in basis-point
// like units whose product divides by BpsScale.
const (
	MillisPerMonth = 30 * clock.MillisPerDay
	BpsScale       = 10_000
	DecayPerMonth  = 500   // 5% per month, in bps
	MaxDecay       = 5_000 // 50% cap, in bps
)

// Certificate is one earned credential held by a validator.
type Certificate struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	SkillLevel   uint8        `json:"skill_level"`
	Domain       string       `json:"domain"`
	EarnedAt     clock.Millis `json:"earned_at"`
	BaseValue    uint64       `json:"base_value"`
	CurrentValue uint64       `json:"current_value"`
	Boosted      bool         `json:"boosted"`
	BoostBps     uint64       `json:"boost_bps,omitempty"`
}

// defaultBaseValues maps certificate types to base values. Unknown types fall
// back to the default rather than failing.
var defaultBaseValues = map[string]uint64{
	"foundation":   100,
	"practitioner": 200,
	"specialist":   350,
	"expert":       500,
	"master":       800,
}

// DefaultBaseValue is used for certificate types outside the known set.
const DefaultBaseValue uint64 = 100

// BaseValueFor returns the base value for a certificate type.
func BaseValueFor(certType string) uint64 {
	if v, ok := defaultBaseValues[certType]; ok {
		return v
	}
	return DefaultBaseValue
}

// New mints a certificate earned at ts. The current value starts equal to the
// base value.
func New(certType, domain string, skillLevel uint8, ts clock.Millis) *Certificate {
	base := BaseValueFor(certType)
	return &Certificate{
		ID:           uuid.NewString(),
		Type:         certType,
		SkillLevel:   skillLevel,
		Domain:       domain,
		EarnedAt:     ts,
		BaseValue:    base,
		CurrentValue: base,
	}
}

// Value computes the certificate's worth at time now: linear age decay capped
// at MaxDecay, then optional scarcity and difficulty multipliers. Multipliers
// of zero mean "not supplied" and leave the decayed value untouched.
func Value(base uint64, earnedAt, now clock.Millis, scarcityBps, difficultyBps uint64) uint64 {
	if now < earnedAt {
		now = earnedAt
	}
	ageMonths := uint64((now - earnedAt) / MillisPerMonth)

	decay := ageMonths * DecayPerMonth
	if decay > MaxDecay {
		decay = MaxDecay
	}
	value := base * (BpsScale - decay) / BpsScale

	if scarcityBps > 0 && difficultyBps > 0 {
		value = value * scarcityBps * difficultyBps / (BpsScale * BpsScale)
	} else if scarcityBps > 0 {
		value = value * scarcityBps / BpsScale
	} else if difficultyBps > 0 {
		value = value * difficultyBps / BpsScale
	}
	return value
}

// Revalue refreshes the certificate's current value at now. A boosted
// certificate keeps its boost headroom: decay runs against the boosted
// baseline, so revaluing twice at the same instant yields the same value.
func (c *Certificate) Revalue(now clock.Millis) {
	base := c.BaseValue
	if c.Boosted {
		base = c.BaseValue * (BpsScale + c.BoostBps) / BpsScale
	}
	c.CurrentValue = Value(base, c.EarnedAt, now, 0, 0)
}

// Boost raises the certificate's current value by boostBps of its base value,
// subject to the platform cap maxBoostBps (current ≤ base × cap / BpsScale).
func (c *Certificate) Boost(boostBps, maxBoostBps uint64) error {
	ceiling := c.BaseValue * maxBoostBps / BpsScale
	boosted := c.CurrentValue + c.BaseValue*boostBps/BpsScale
	if boosted > ceiling {
		return codes.E("certificate.boost", codes.BoostLimit,
			"boost would lift value to %d above ceiling %d", boosted, ceiling)
	}
	c.CurrentValue = boosted
	c.Boosted = true
	c.BoostBps += boostBps
	return nil
}

// Penalize reduces the current value by pct percent, flooring at zero.
func (c *Certificate) Penalize(pct uint64) {
	if pct >= 100 {
		c.CurrentValue = 0
		return
	}
	c.CurrentValue = c.CurrentValue * (100 - pct) / 100
}
