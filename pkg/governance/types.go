package governance

import (
	"github.com/poknet/pokengine/pkg/clock"
)

// Status is a proposal's position in the lifecycle graph. Transitions are
// monotonic and one-shot: Active → {Passed, Rejected, Cancelled},
// Passed → Executed.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusPassed
	StatusRejected
	StatusExecuted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusPassed:
		return "passed"
	case StatusRejected:
		return "rejected"
	case StatusExecuted:
		return "executed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Type dispatches a passed proposal's effect. Parameter updates are built in;
// the remaining types are extension points bound through RegisterExecutor.
type Type string

const (
	TypeParameterUpdate   Type = "parameter_update"
	TypeTreasuryAction    Type = "treasury_action"
	TypeEconomicAction    Type = "economic_action"
	TypeExamAction        Type = "exam_action"
	TypeCertificateAction Type = "certificate_action"
)

// VoteType is a single ballot choice.
type VoteType int

const (
	VoteFor VoteType = iota + 1
	VoteAgainst
	VoteAbstain
)

func (t VoteType) String() string {
	switch t {
	case VoteFor:
		return "for"
	case VoteAgainst:
		return "against"
	case VoteAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// VoteRecord snapshots one ballot. At most one record exists per
// (proposal, voter).
type VoteRecord struct {
	Voter    string       `json:"voter"`
	Proposal string       `json:"proposal"`
	Type     VoteType     `json:"type"`
	Power    uint64       `json:"power"`
	CastAt   clock.Millis `json:"cast_at"`
}

// Proposal carries one governance question and its escrowed deposit. The
// deposit balance is fully disbursed by the time the proposal leaves the
// Active/Passed states.
type Proposal struct {
	ID          string `json:"id"`
	Proposer    string `json:"proposer"`
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// Parameter-update payload (TypeParameterUpdate only).
	TargetKey   string `json:"target_key,omitempty"`
	TargetValue int64  `json:"target_value,omitempty"`

	VotesFor     uint64 `json:"votes_for"`
	VotesAgainst uint64 `json:"votes_against"`
	VotesAbstain uint64 `json:"votes_abstain"`

	VotingStart   clock.Millis `json:"voting_start"`
	VotingEnd     clock.Millis `json:"voting_end"`
	ExecutionTime clock.Millis `json:"execution_time,omitempty"`

	Status  Status `json:"status"`
	Deposit uint64 `json:"deposit"` // escrow remaining inside the proposal

	votes map[string]*VoteRecord
}

// TotalVotes is the sum of all recorded voting power.
func (p *Proposal) TotalVotes() uint64 {
	return p.VotesFor + p.VotesAgainst + p.VotesAbstain
}

// Votes returns a copy of the recorded ballots.
func (p *Proposal) Votes() []*VoteRecord {
	out := make([]*VoteRecord, 0, len(p.votes))
	for _, v := range p.votes {
		cp := *v
		out = append(out, &cp)
	}
	return out
}

// HasVoted reports whether voter already holds a ballot on p.
func (p *Proposal) HasVoted(voter string) bool {
	_, ok := p.votes[voter]
	return ok
}

// clone deep-copies the proposal for staged mutation.
func (p *Proposal) clone() *Proposal {
	cp := *p
	cp.votes = make(map[string]*VoteRecord, len(p.votes))
	for k, v := range p.votes {
		vc := *v
		cp.votes[k] = &vc
	}
	return &cp
}

// Transition is an audit record of one lifecycle step.
type Transition struct {
	Proposal string       `json:"proposal"`
	From     Status       `json:"from"`
	To       Status       `json:"to"`
	Refund   uint64       `json:"refund"`
	Burned   uint64       `json:"burned"`
	At       clock.Millis `json:"at"`
}
