// Package weight computes validator influence from knowledge, stake, and
// consensus accuracy. Stake is square-root damped so capital cannot outrun
// demonstrated knowledge.
package weight

import (
	"math"

	"github.com/poknet/pokengine/pkg/params"
)

const (
	scale       = 10_000
	stakeDamper = uint64(params.Unit) // stake is divided by one token before damping
)

// StakeComponent is floor(sqrt(stake in tokens)) × 100.
func StakeComponent(stake uint64) uint64 {
	return uint64(math.Sqrt(float64(stake/stakeDamper))) * 100
}

// PerformanceComponent maps accuracy (0..100) into (50 + accuracy/2) × 100,
// i.e. a 0.5x..1.0x band around the knowledge-stake product.
func PerformanceComponent(accuracy uint64) uint64 {
	if accuracy > 100 {
		accuracy = 100
	}
	return (50 + accuracy/2) * 100
}

// Initial is the weight assigned at registration, before any consensus
// history exists: (knowledge×100 + stakeComponent×100) / 10000.
func Initial(knowledge, stake uint64) uint64 {
	return (knowledge*100 + StakeComponent(stake)*100) / scale
}

// Full is the steady-state weight:
// (knowledge×100 × stakeComponent × performanceComponent) / (10000×100).
func Full(knowledge, stake, accuracy uint64) uint64 {
	return knowledge * 100 * StakeComponent(stake) * PerformanceComponent(accuracy) / (scale * 100)
}
