// Package params implements the versioned, lockable parameter store that
// feeds constants to the weight, governance, and treasury engines.
package params

import (
	"sync"

	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

// MaxHistoryEntries bounds the per-key change log. The oldest entry is dropped
// on overflow.
const MaxHistoryEntries = 50

// MaxBatchSize bounds a single batched update.
const MaxBatchSize = 20

// LockType distinguishes who may release a parameter lock.
type LockType int

const (
	// LockGovernance locks a key until an executed proposal unlocks it.
	LockGovernance LockType = iota + 1
	// LockEmergency locks a key until the emergency capability unlocks it.
	LockEmergency
	// LockBootstrap locks a key until the bootstrap window ends.
	LockBootstrap
)

func (t LockType) String() string {
	switch t {
	case LockGovernance:
		return "governance"
	case LockEmergency:
		return "emergency"
	case LockBootstrap:
		return "bootstrap"
	default:
		return "unknown"
	}
}

// Lock is an active restriction on a key.
type Lock struct {
	Type     LockType     `json:"type"`
	Until    clock.Millis `json:"until"` // 0 = no expiry
	LockedBy string       `json:"locked_by"`
	LockedAt clock.Millis `json:"locked_at"`
}

// Change is one entry in a key's bounded history log.
type Change struct {
	Key        string       `json:"key"`
	Previous   int64        `json:"previous"`
	Value      int64        `json:"value"`
	ProposalID string       `json:"proposal_id,omitempty"`
	Impact     int          `json:"impact"`
	ChangedAt  clock.Millis `json:"changed_at"`
}

// Update is one entry of a batched update.
type Update struct {
	Key        string `json:"key"`
	Value      int64  `json:"value"`
	ProposalID string `json:"proposal_id,omitempty"`
}

// ChangeSink receives committed parameter changes. The audit recorder
// implements this.
type ChangeSink interface {
	ParameterChanged(ch Change)
}

// Store holds the platform's grouped configuration values with per-key locks
// and bounded change history. All methods are safe for concurrent use; each
// public operation commits atomically under the store mutex.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	values  map[string]int64
	extra   map[string]int64 // generic fallback for keys outside the schema
	locks   map[string]Lock
	history map[string][]Change
	sink    ChangeSink
}

// NewStore builds a store populated with schema defaults.
func NewStore(logger *zap.Logger) *Store {
	s := &Store{
		logger:  logger,
		values:  make(map[string]int64, len(schema)),
		extra:   make(map[string]int64),
		locks:   make(map[string]Lock),
		history: make(map[string][]Change),
	}
	for key, sp := range schema {
		s.values[key] = sp.Default
	}
	return s
}

// SetChangeSink wires an audit recorder. Must be called before concurrent use.
func (s *Store) SetChangeSink(sink ChangeSink) { s.sink = sink }

// Get returns the current value for key. Schema keys always resolve; other
// keys resolve only after they have been set once.
func (s *Store) Get(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(key)
}

// MustGet returns the value for a schema-defined key and panics otherwise.
// Reserved for engine-internal reads of canonical keys.
func (s *Store) MustGet(key string) int64 {
	v, err := s.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

func (s *Store) getLocked(key string) (int64, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	if v, ok := s.extra[key]; ok {
		return v, nil
	}
	return 0, codes.E("params.get", codes.ParameterNotFound, "unknown parameter %q", key)
}

// Update validates and commits a single parameter change at time now.
func (s *Store) Update(key string, value int64, proposalID string, now clock.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateLocked(key, value, now); err != nil {
		return err
	}
	s.commitLocked(key, value, proposalID, now)
	return nil
}

// BatchUpdate validates every entry before applying any. Once validation
// passes for the whole batch, all entries commit under the same lock hold.
func (s *Store) BatchUpdate(updates []Update, proposalID string, now clock.Millis) error {
	if len(updates) == 0 {
		return nil
	}
	if len(updates) > MaxBatchSize {
		return codes.E("params.batch", codes.InvalidBatchSize,
			"batch of %d exceeds limit of %d", len(updates), MaxBatchSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		if err := s.validateLocked(u.Key, u.Value, now); err != nil {
			return err
		}
	}
	for _, u := range updates {
		pid := u.ProposalID
		if pid == "" {
			pid = proposalID
		}
		s.commitLocked(u.Key, u.Value, pid, now)
	}
	return nil
}

func (s *Store) validateLocked(key string, value int64, now clock.Millis) error {
	if lk, ok := s.locks[key]; ok && (lk.Until == 0 || lk.Until > now) {
		return codes.E("params.update", codes.ParameterLocked,
			"parameter %q carries an active %s lock", key, lk.Type)
	}
	if sp, ok := schema[key]; ok {
		return sp.Validate(key, value)
	}
	// Generic keys accept any non-negative value.
	if value < 0 {
		return codes.E("params.update", codes.OutOfRange,
			"generic parameter %q must be non-negative, got %d", key, value)
	}
	return nil
}

func (s *Store) commitLocked(key string, value int64, proposalID string, now clock.Millis) {
	var prev int64
	if _, ok := schema[key]; ok {
		prev = s.values[key]
		s.values[key] = value
	} else {
		prev = s.extra[key]
		s.extra[key] = value
	}

	ch := Change{
		Key:        key,
		Previous:   prev,
		Value:      value,
		ProposalID: proposalID,
		Impact:     ImpactOf(key),
		ChangedAt:  now,
	}
	s.appendHistoryLocked(ch)

	s.logger.Info("parameter updated",
		zap.String("key", key),
		zap.Int64("previous", prev),
		zap.Int64("value", value),
		zap.Int("impact", ch.Impact),
		zap.String("proposal_id", proposalID))

	if s.sink != nil {
		s.sink.ParameterChanged(ch)
	}
}

func (s *Store) appendHistoryLocked(ch Change) {
	h := append(s.history[ch.Key], ch)
	if len(h) > MaxHistoryEntries {
		h = h[len(h)-MaxHistoryEntries:]
	}
	s.history[ch.Key] = h
}

// History returns a copy of the bounded change log for key, oldest first.
func (s *Store) History(key string) []Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[key]
	out := make([]Change, len(h))
	copy(out, h)
	return out
}

// Snapshot returns every known key and its current value.
func (s *Store) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.values)+len(s.extra))
	for k, v := range s.values {
		out[k] = v
	}
	for k, v := range s.extra {
		out[k] = v
	}
	return out
}
