package weight

import "github.com/poknet/pokengine/pkg/params"

// Tier is one of the six stake bands, Starter (1) through Platinum (6). Each
// band confers a slash-protection percentage and a reward multiplier.
type Tier uint8

const (
	TierStarter Tier = iota + 1
	TierIron
	TierBronze
	TierSilver
	TierGold
	TierPlatinum
)

func (t Tier) String() string {
	switch t {
	case TierStarter:
		return "starter"
	case TierIron:
		return "iron"
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	case TierPlatinum:
		return "platinum"
	default:
		return "unknown"
	}
}

// tierProtections maps tier → slash-protection percentage.
var tierProtections = [7]uint64{0, 0, 10, 20, 30, 40, 50}

// tierMultipliers maps tier → reward multiplier in bps.
var tierMultipliers = [7]uint64{0, 10_000, 11_000, 12_500, 15_000, 17_500, 20_000}

// Protection returns the tier's slash-protection percentage.
func (t Tier) Protection() uint64 {
	if t < 1 || t > 6 {
		return 0
	}
	return tierProtections[t]
}

// RewardMultiplierBps returns the tier's reward multiplier in bps.
func (t Tier) RewardMultiplierBps() uint64 {
	if t < 1 || t > 6 {
		return tierMultipliers[1]
	}
	return tierMultipliers[t]
}

// TierOf maps a staked balance to its tier using the thresholds in the
// parameter store.
func TierOf(stake uint64, store *params.Store) Tier {
	thresholds := [5]int64{
		store.MustGet(params.KeyTierThreshold2),
		store.MustGet(params.KeyTierThreshold3),
		store.MustGet(params.KeyTierThreshold4),
		store.MustGet(params.KeyTierThreshold5),
		store.MustGet(params.KeyTierThreshold6),
	}
	tier := TierStarter
	for i, th := range thresholds {
		if stake >= uint64(th) {
			tier = Tier(i + 2)
		}
	}
	return tier
}
