// Package audit collects the engine's append-only record trail: slash events,
// parameter changes, proposal transitions, and treasury withdrawals. A capped
// in-memory ring is always on; an optional ClickHouse sink persists every
// entry for long-term queries.
package audit

import (
	"sync"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/governance"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/slashing"
	"github.com/poknet/pokengine/pkg/treasury"
)

// Kind classifies an audit entry.
type Kind string

const (
	KindParameterChange    Kind = "parameter_change"
	KindSlash              Kind = "slash"
	KindProposalTransition Kind = "proposal_transition"
	KindWithdrawal         Kind = "withdrawal"
)

// Entry is one immutable audit record.
type Entry struct {
	ID      string       `json:"id" ch:"id"`
	Kind    Kind         `json:"kind" ch:"kind"`
	Subject string       `json:"subject" ch:"subject"` // key / validator / proposal / pool
	Actor   string       `json:"actor,omitempty" ch:"actor"`
	Amount  uint64       `json:"amount,omitempty" ch:"amount"`
	Impact  uint8        `json:"impact,omitempty" ch:"impact"`
	Detail  string       `json:"detail,omitempty" ch:"detail"` // JSON payload of the source record
	At      clock.Millis `json:"at" ch:"at"`
}

// ringCapacity bounds the in-memory tail available over the API.
const ringCapacity = 1024

// Sink persists entries beyond the in-memory ring.
type Sink interface {
	Persist(e Entry)
}

// Recorder fans audit entries into the ring, the optional sink, and any live
// subscribers (the websocket hub). It implements the recorder interfaces of
// the params, slashing, governance, and treasury packages.
type Recorder struct {
	mu     sync.Mutex
	logger *zap.Logger
	ring   []Entry
	sink   Sink
	subs   map[chan Entry]struct{}
}

// NewRecorder builds a recorder with no sink.
func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{
		logger: logger,
		subs:   make(map[chan Entry]struct{}),
	}
}

// SetSink wires a persistence sink.
func (r *Recorder) SetSink(s Sink) { r.sink = s }

// Subscribe returns a channel receiving every new entry. Slow subscribers
// drop entries rather than stall the engine.
func (r *Recorder) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, 64)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	cancel := func() {
		r.mu.Lock()
		delete(r.subs, ch)
		r.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Tail returns the most recent n entries, oldest first.
func (r *Recorder) Tail(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.ring) {
		n = len(r.ring)
	}
	out := make([]Entry, n)
	copy(out, r.ring[len(r.ring)-n:])
	return out
}

func (r *Recorder) record(e Entry) {
	e.ID = uuid.NewString()

	r.mu.Lock()
	r.ring = append(r.ring, e)
	if len(r.ring) > ringCapacity {
		r.ring = r.ring[len(r.ring)-ringCapacity:]
	}
	for ch := range r.subs {
		select {
		case ch <- e:
		default: // drop rather than block the operation path
		}
	}
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		sink.Persist(e)
	}
}

func detailJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParameterChanged implements params.ChangeSink.
func (r *Recorder) ParameterChanged(ch params.Change) {
	r.record(Entry{
		Kind:    KindParameterChange,
		Subject: ch.Key,
		Actor:   ch.ProposalID,
		Impact:  uint8(ch.Impact),
		Detail:  detailJSON(ch),
		At:      ch.ChangedAt,
	})
}

// SlashExecuted implements slashing.Recorder.
func (r *Recorder) SlashExecuted(ev slashing.Event) {
	r.record(Entry{
		Kind:    KindSlash,
		Subject: ev.Validator,
		Actor:   ev.Executor,
		Amount:  ev.Amount,
		Detail:  detailJSON(ev),
		At:      ev.ExecutedAt,
	})
}

// ProposalTransition implements governance.Recorder.
func (r *Recorder) ProposalTransition(tr governance.Transition) {
	r.record(Entry{
		Kind:    KindProposalTransition,
		Subject: tr.Proposal,
		Amount:  tr.Refund,
		Detail:  detailJSON(tr),
		At:      tr.At,
	})
}

// WithdrawalExecuted implements treasury.Recorder.
func (r *Recorder) WithdrawalExecuted(rec treasury.WithdrawalRecord) {
	r.record(Entry{
		Kind:    KindWithdrawal,
		Subject: string(rec.Pool),
		Actor:   rec.Recipient,
		Amount:  rec.Amount,
		Detail:  detailJSON(rec),
		At:      rec.At,
	})
}
