package weight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poknet/pokengine/pkg/params"
)

const unit = uint64(params.Unit)

// TestStakeComponent verifies square-root damping over whole tokens.
func TestStakeComponent(t *testing.T) {
	assert.Equal(t, uint64(0), StakeComponent(0))
	assert.Equal(t, uint64(100), StakeComponent(1*unit))
	assert.Equal(t, uint64(300), StakeComponent(10*unit))
	assert.Equal(t, uint64(1_000), StakeComponent(100*unit))
	// Sub-token dust does not move the component.
	assert.Equal(t, uint64(300), StakeComponent(10*unit+unit/2))
}

// TestPerformanceComponent verifies the 0.5x..1.0x accuracy band, with
// over-range accuracy clamped.
func TestPerformanceComponent(t *testing.T) {
	assert.Equal(t, uint64(5_000), PerformanceComponent(0))
	assert.Equal(t, uint64(7_500), PerformanceComponent(50))
	assert.Equal(t, uint64(10_000), PerformanceComponent(100))
	assert.Equal(t, uint64(10_000), PerformanceComponent(250))
}

// TestInitial verifies the registration-time weight: knowledge plus the
// damped stake component.
func TestInitial(t *testing.T) {
	// A genesis validator with the minimum 10-token stake and no
	// certificates starts with weight from stake alone.
	assert.Equal(t, uint64(3), Initial(0, 10*unit))

	// 500 knowledge over the same stake.
	assert.Equal(t, uint64(8), Initial(500, 10*unit))

	assert.Equal(t, uint64(0), Initial(0, 0))
}

// TestFull verifies the steady-state multiplicative weight.
func TestFull(t *testing.T) {
	// knowledge 500, 10 tokens staked, perfect accuracy:
	// 500×100 × 300 × 10000 / 1000000 = 150000
	assert.Equal(t, uint64(150_000), Full(500, 10*unit, 100))

	// Same validator at 50% accuracy earns three quarters of that.
	assert.Equal(t, uint64(112_500), Full(500, 10*unit, 50))

	// No stake means no weight regardless of knowledge.
	assert.Equal(t, uint64(0), Full(500, 0, 100))
}
