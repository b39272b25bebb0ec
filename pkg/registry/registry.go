// Package registry owns the authoritative map from validator identity to
// validator record, the aggregate pool weight, and the registration gates.
// Mutating operations stage a complete next-state before committing; a failed
// precondition leaves no trace.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/certificate"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/weight"
)

// Registry holds all validator records. Reads go straight to the concurrent
// map; mutations serialize through a registry mutex acquired with TryLock so
// a contended caller fails fast with RecordBusy instead of blocking.
type Registry struct {
	mu     sync.Mutex
	logger *zap.Logger
	params *params.Store

	validators *xsync.Map[string, *Validator]

	totalWeight  uint64
	count        int
	genesisCount int
	bootstrapEnd clock.Millis
}

// New builds an empty registry. bootstrapEnd closes the genesis window.
func New(logger *zap.Logger, store *params.Store, bootstrapEnd clock.Millis) *Registry {
	return &Registry{
		logger:       logger,
		params:       store,
		validators:   xsync.NewMap[string, *Validator](),
		bootstrapEnd: bootstrapEnd,
	}
}

// lock acquires exclusive mutation rights or fails with RecordBusy.
func (r *Registry) lock(op string) error {
	if !r.mu.TryLock() {
		return codes.E(op, codes.RecordBusy, "validator registry is held by another operation")
	}
	return nil
}

// Get returns the current snapshot for address.
func (r *Registry) Get(address string) (*Validator, error) {
	v, ok := r.validators.Load(address)
	if !ok {
		return nil, codes.E("registry.get", codes.ValidatorNotFound, "validator %q not registered", address)
	}
	return v, nil
}

// TotalWeight returns the aggregate weight of all active validators.
func (r *Registry) TotalWeight() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalWeight
}

// Counts returns (total, genesis) registration counts.
func (r *Registry) Counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, r.genesisCount
}

// BootstrapEnd exposes the genesis window close.
func (r *Registry) BootstrapEnd() clock.Millis { return r.bootstrapEnd }

// InBootstrap reports whether the genesis window is still open at now.
func (r *Registry) InBootstrap(now clock.Millis) bool { return now < r.bootstrapEnd }

// Range walks a snapshot of all validators.
func (r *Registry) Range(fn func(v *Validator) bool) {
	r.validators.Range(func(_ string, v *Validator) bool { return fn(v) })
}

// RegisterGenesis admits a founding validator while the bootstrap window is
// open. Genesis validators carry no certificates yet.
func (r *Registry) RegisterGenesis(address string, stake uint64, now clock.Millis) (*Validator, error) {
	const op = "registry.register_genesis"
	if err := r.lock(op); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if now >= r.bootstrapEnd {
		return nil, codes.E(op, codes.BootstrapEnded, "bootstrap window closed at %d", r.bootstrapEnd)
	}
	maxGenesis := int(r.params.MustGet(params.KeyMaxGenesisValidators))
	if r.genesisCount >= maxGenesis {
		return nil, codes.E(op, codes.GenesisFull, "genesis set already has %d validators", maxGenesis)
	}
	if err := r.checkStakeAndAbsence(op, address, stake); err != nil {
		return nil, err
	}

	v := r.newValidator(address, nil, stake, now)
	v.Genesis = true
	r.admit(v)
	r.genesisCount++

	r.logger.Info("genesis validator registered",
		zap.String("address", address),
		zap.Uint64("stake", stake),
		zap.Uint64("weight", v.Weight))
	return v, nil
}

// Register admits a validator. Past the bootstrap window the candidate must
// present at least the configured number of certificates.
func (r *Registry) Register(address string, certs []*certificate.Certificate, stake uint64, now clock.Millis) (*Validator, error) {
	const op = "registry.register"
	if err := r.lock(op); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if now >= r.bootstrapEnd {
		minCerts := int(r.params.MustGet(params.KeyMinCertificates))
		if len(certs) < minCerts {
			return nil, codes.E(op, codes.NotEnoughCertificates,
				"%d certificates presented, %d required after bootstrap", len(certs), minCerts)
		}
	}
	if err := r.checkStakeAndAbsence(op, address, stake); err != nil {
		return nil, err
	}

	v := r.newValidator(address, certs, stake, now)
	r.admit(v)

	r.logger.Info("validator registered",
		zap.String("address", address),
		zap.Uint64("stake", stake),
		zap.Int("certificates", len(certs)),
		zap.Uint64("weight", v.Weight))
	return v, nil
}

func (r *Registry) checkStakeAndAbsence(op, address string, stake uint64) error {
	minStake := uint64(r.params.MustGet(params.KeyMinimumStake))
	if stake < minStake {
		return codes.E(op, codes.InsufficientStake, "stake %d below platform minimum %d", stake, minStake)
	}
	if _, exists := r.validators.Load(address); exists {
		return codes.E(op, codes.AlreadyRegistered, "address %q already registered", address)
	}
	return nil
}

func (r *Registry) newValidator(address string, certs []*certificate.Certificate, stake uint64, now clock.Millis) *Validator {
	v := &Validator{
		ID:           uuid.NewString(),
		Address:      address,
		Certificates: certs,
		Stake:        stake,
		Accuracy:     100,
		State:        StateActive,
		RegisteredAt: now,
	}
	for _, c := range v.Certificates {
		c.Revalue(now)
	}
	v.KnowledgeScore = v.knowledge()
	v.Tier = weight.TierOf(stake, r.params)
	v.Weight = weight.Initial(v.KnowledgeScore, stake)
	return v
}

// admit stores the record and folds its weight into the aggregate. Caller
// holds the registry mutex.
func (r *Registry) admit(v *Validator) {
	r.validators.Store(v.Address, v)
	r.totalWeight += votingContribution(v)
	r.count++
}

// votingContribution is the record's share of the aggregate voting weight.
// Only active validators count toward total voting power.
func votingContribution(v *Validator) uint64 {
	if v.State == StateActive {
		return v.Weight
	}
	return 0
}

// Mutate applies fn to a staged clone of the validator and commits it only if
// fn succeeds. Weight, tier, and knowledge score are re-derived on commit and
// the aggregate weight is adjusted by the delta. This is the single write
// path for validator records.
func (r *Registry) Mutate(op, address string, fn func(v *Validator) error) (*Validator, error) {
	if err := r.lock(op); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return r.mutateLocked(op, address, fn)
}

// mutateLocked is Mutate for callers already holding the registry mutex
// (the slashing engine stages multi-record operations under one hold).
func (r *Registry) mutateLocked(op, address string, fn func(v *Validator) error) (*Validator, error) {
	cur, ok := r.validators.Load(address)
	if !ok {
		return nil, codes.E(op, codes.ValidatorNotFound, "validator %q not registered", address)
	}

	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	next.KnowledgeScore = next.knowledge()
	next.Tier = weight.TierOf(next.Stake, r.params)
	next.Weight = weight.Full(next.KnowledgeScore, next.Stake, next.Accuracy)

	r.totalWeight += votingContribution(next)
	r.totalWeight -= votingContribution(cur)
	r.validators.Store(address, next)
	return next, nil
}

// WithExclusive runs fn while holding the registry's mutation lock, giving
// multi-record operations (slashing) one atomic hold. fn receives primitives
// that assume the lock is held.
func (r *Registry) WithExclusive(op string, fn func(tx *Tx) error) error {
	if err := r.lock(op); err != nil {
		return err
	}
	defer r.mu.Unlock()
	return fn(&Tx{r: r, op: op})
}

// Tx exposes locked-mode primitives to WithExclusive callers.
type Tx struct {
	r  *Registry
	op string
}

// Get returns the stored snapshot without cloning.
func (t *Tx) Get(address string) (*Validator, error) {
	v, ok := t.r.validators.Load(address)
	if !ok {
		return nil, codes.E(t.op, codes.ValidatorNotFound, "validator %q not registered", address)
	}
	return v, nil
}

// Mutate is the locked-mode form of Registry.Mutate.
func (t *Tx) Mutate(address string, fn func(v *Validator) error) (*Validator, error) {
	return t.r.mutateLocked(t.op, address, fn)
}
