package registry

import (
	"github.com/poknet/pokengine/pkg/certificate"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/weight"
)

// State tracks a validator through its lifecycle. Retired records persist for
// audit; they never leave the registry.
type State int

const (
	StateActive State = iota + 1
	StateSuspended
	StateSlashed
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateSlashed:
		return "slashed"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Validator is one registered participant. Records are immutable once stored;
// every mutation clones, rewrites, and swaps the record so readers always see
// a consistent snapshot. Weight is always re-derivable from knowledge score,
// stake, and accuracy.
type Validator struct {
	ID             string                     `json:"id"`
	Address        string                     `json:"address"`
	Certificates   []*certificate.Certificate `json:"certificates"`
	KnowledgeScore uint64                     `json:"knowledge_score"`
	Stake          uint64                     `json:"stake"`
	Tier           weight.Tier                `json:"tier"`
	Weight         uint64                     `json:"weight"`
	Accuracy       uint64                     `json:"accuracy"`
	SlashCount     uint32                     `json:"slash_count"`
	State          State                      `json:"state"`
	SuspendedUntil clock.Millis               `json:"suspended_until,omitempty"`
	Genesis        bool                       `json:"genesis"`
	RegisteredAt   clock.Millis               `json:"registered_at"`
}

// clone deep-copies the record, including certificates, so staged mutations
// never leak into the stored snapshot.
func (v *Validator) clone() *Validator {
	cp := *v
	cp.Certificates = make([]*certificate.Certificate, len(v.Certificates))
	for i, c := range v.Certificates {
		cc := *c
		cp.Certificates[i] = &cc
	}
	return &cp
}

// knowledge sums the current values of all held certificates.
func (v *Validator) knowledge() uint64 {
	var sum uint64
	for _, c := range v.Certificates {
		sum += c.CurrentValue
	}
	return sum
}

// CertificateByID finds a held certificate.
func (v *Validator) CertificateByID(id string) *certificate.Certificate {
	for _, c := range v.Certificates {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// HasDomain reports whether the validator holds any certificate in domain.
func (v *Validator) HasDomain(domain string) bool {
	for _, c := range v.Certificates {
		if c.Domain == domain {
			return true
		}
	}
	return false
}

// Eligible reports whether the validator may take part in selection and
// voting right now.
func (v *Validator) Eligible() bool { return v.State == StateActive }
