// Package selection picks validators for content review. Three strategies are
// interchangeable behind one interface: uniform sampling, weight-proportional
// sampling, and domain-specific top-k. Randomness comes from an injected,
// externally-seeded generator.
package selection

import (
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
)

// Content describes the item needing review.
type Content struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Domain string `json:"domain,omitempty"`
}

// Strategy picks up to count reviewers from the candidate set. Candidates are
// read-only snapshots; strategies must not mutate them.
type Strategy interface {
	Name() string
	Pick(candidates []*registry.Validator, content Content, count int) []*registry.Validator
}

// Selector runs a strategy against the registry's eligible validators.
type Selector struct {
	logger   *zap.Logger
	params   *params.Store
	registry *registry.Registry
	strategy Strategy
}

// New builds a selector with the given strategy.
func New(logger *zap.Logger, store *params.Store, reg *registry.Registry, strategy Strategy) *Selector {
	return &Selector{logger: logger, params: store, registry: reg, strategy: strategy}
}

// SetStrategy swaps the selection strategy.
func (s *Selector) SetStrategy(strategy Strategy) { s.strategy = strategy }

// WithStrategy returns a copy of the selector running a different strategy.
// The copy shares the registry and parameter store with the original.
func (s *Selector) WithStrategy(strategy Strategy) *Selector {
	cp := *s
	cp.strategy = strategy
	return &cp
}

// StrategyName reports the active strategy's name.
func (s *Selector) StrategyName() string { return s.strategy.Name() }

// Select picks reviewers for content. count is bounded by the configured
// per-content maximum.
func (s *Selector) Select(content Content, count int) ([]*registry.Validator, error) {
	const op = "selection.select"

	maxCount := int(s.params.MustGet(params.KeyMaxValidatorsPerContent))
	if count <= 0 || count > maxCount {
		return nil, codes.E(op, codes.SelectionCountExceeded,
			"count %d outside 1..%d", count, maxCount)
	}

	var candidates []*registry.Validator
	s.registry.Range(func(v *registry.Validator) bool {
		if v.Eligible() {
			candidates = append(candidates, v)
		}
		return true
	})
	if len(candidates) == 0 {
		return nil, codes.E(op, codes.NoCandidates, "no eligible validators")
	}

	picked := s.strategy.Pick(candidates, content, count)
	s.logger.Debug("validators selected",
		zap.String("content_id", content.ID),
		zap.String("strategy", s.strategy.Name()),
		zap.Int("requested", count),
		zap.Int("picked", len(picked)))
	return picked, nil
}

// Uniform samples count validators uniformly without replacement.
type Uniform struct {
	rng *rand.Rand
}

// NewUniform builds a uniform strategy around an externally-seeded generator.
// A nil generator falls back to a time-seeded one.
func NewUniform(rng *rand.Rand) *Uniform {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Uniform{rng: rng}
}

func (u *Uniform) Name() string { return "uniform" }

func (u *Uniform) Pick(candidates []*registry.Validator, _ Content, count int) []*registry.Validator {
	if count > len(candidates) {
		count = len(candidates)
	}
	// Partial Fisher-Yates: shuffle only the prefix we need.
	pool := make([]*registry.Validator, len(candidates))
	copy(pool, candidates)
	for i := 0; i < count; i++ {
		j := i + u.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}

// WeightProportional samples without replacement with probability
// proportional to validator weight, via cumulative-weight binary search.
type WeightProportional struct {
	rng *rand.Rand
}

// NewWeightProportional builds a weighted strategy around an
// externally-seeded generator. A nil generator falls back to a time-seeded
// one.
func NewWeightProportional(rng *rand.Rand) *WeightProportional {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &WeightProportional{rng: rng}
}

func (w *WeightProportional) Name() string { return "weighted" }

func (w *WeightProportional) Pick(candidates []*registry.Validator, _ Content, count int) []*registry.Validator {
	if count > len(candidates) {
		count = len(candidates)
	}
	pool := make([]*registry.Validator, len(candidates))
	copy(pool, candidates)

	picked := make([]*registry.Validator, 0, count)
	for len(picked) < count && len(pool) > 0 {
		cum := make([]uint64, len(pool))
		var total uint64
		for i, v := range pool {
			// Zero-weight validators still get a minimal share so a young
			// pool is not unselectable.
			wgt := v.Weight
			if wgt == 0 {
				wgt = 1
			}
			total += wgt
			cum[i] = total
		}

		target := uint64(w.rng.Int63n(int64(total))) + 1
		idx := sort.Search(len(cum), func(i int) bool { return cum[i] >= target })

		picked = append(picked, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return picked
}

// DomainTopK picks the highest-weight validators holding a certificate in the
// content's domain. Falls back to overall top-k when the content names no
// domain.
type DomainTopK struct{}

func (DomainTopK) Name() string { return "domain_topk" }

func (DomainTopK) Pick(candidates []*registry.Validator, content Content, count int) []*registry.Validator {
	var pool []*registry.Validator
	if content.Domain == "" {
		pool = append(pool, candidates...)
	} else {
		for _, v := range candidates {
			if v.HasDomain(content.Domain) {
				pool = append(pool, v)
			}
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Weight != pool[j].Weight {
			return pool[i].Weight > pool[j].Weight
		}
		return pool[i].Address < pool[j].Address // deterministic tie-break
	})
	if count > len(pool) {
		count = len(pool)
	}
	return pool[:count]
}
