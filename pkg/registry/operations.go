package registry

import (
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/certificate"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
)

// AddCertificate attaches a freshly earned certificate to the caller's own
// record and re-derives weight.
func (r *Registry) AddCertificate(address string, cert *certificate.Certificate, now clock.Millis) (*Validator, error) {
	const op = "registry.add_certificate"
	return r.Mutate(op, address, func(v *Validator) error {
		if v.State == StateRetired {
			return codes.E(op, codes.InvalidValidatorState, "validator %q is retired", address)
		}
		cert.Revalue(now)
		v.Certificates = append(v.Certificates, cert)
		return nil
	})
}

// BoostCertificate locks extra stake against one certificate, lifting its
// current value. Each whole token of extra stake buys 10 bps of the
// certificate's base value, capped by the platform boost ceiling. The extra
// stake joins the validator's staked balance.
func (r *Registry) BoostCertificate(address, certID string, extraStake uint64, now clock.Millis) (*Validator, error) {
	const op = "registry.boost_certificate"
	v, err := r.Mutate(op, address, func(v *Validator) error {
		if v.State != StateActive {
			return codes.E(op, codes.InvalidValidatorState, "validator %q is %s", address, v.State)
		}
		if extraStake == 0 {
			return codes.E(op, codes.InsufficientStake, "boost requires extra stake")
		}
		c := v.CertificateByID(certID)
		if c == nil {
			return codes.E(op, codes.CertificateNotFound, "certificate %q not held by %q", certID, address)
		}
		boostBps := extraStake / uint64(params.Unit) * 10
		maxBoost := uint64(r.params.MustGet(params.KeyMaxBoostBps))
		if err := c.Boost(boostBps, maxBoost); err != nil {
			return err
		}
		v.Stake += extraStake
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("certificate boosted",
		zap.String("address", address),
		zap.String("certificate_id", certID),
		zap.Uint64("extra_stake", extraStake),
		zap.Uint64("weight", v.Weight))
	return v, nil
}

// RecordAccuracy folds a fresh consensus-accuracy reading (0..100) into the
// record and re-derives weight.
func (r *Registry) RecordAccuracy(address string, accuracy uint64) (*Validator, error) {
	const op = "registry.record_accuracy"
	return r.Mutate(op, address, func(v *Validator) error {
		if v.State == StateRetired {
			return codes.E(op, codes.InvalidValidatorState, "validator %q is retired", address)
		}
		if accuracy > 100 {
			accuracy = 100
		}
		v.Accuracy = accuracy
		return nil
	})
}

// AddStake tops up the validator's staked balance.
func (r *Registry) AddStake(address string, amount uint64) (*Validator, error) {
	const op = "registry.add_stake"
	return r.Mutate(op, address, func(v *Validator) error {
		if v.State == StateRetired {
			return codes.E(op, codes.InvalidValidatorState, "validator %q is retired", address)
		}
		if amount == 0 {
			return codes.E(op, codes.InsufficientStake, "stake amount must be positive")
		}
		v.Stake += amount
		return nil
	})
}

// Retire transitions the validator to Retired. The record persists for audit
// and the validator's weight leaves the aggregate (a retired validator's
// derived weight still satisfies the weight invariant; it simply no longer
// participates).
func (r *Registry) Retire(address string) (*Validator, error) {
	const op = "registry.retire"
	return r.Mutate(op, address, func(v *Validator) error {
		if v.State == StateRetired {
			return codes.E(op, codes.InvalidValidatorState, "validator %q already retired", address)
		}
		v.State = StateRetired
		return nil
	})
}

// Revalue refreshes certificate values and weight for one validator at now.
// The decay sweep calls this for every record.
func (r *Registry) Revalue(address string, now clock.Millis) (*Validator, error) {
	const op = "registry.revalue"
	return r.Mutate(op, address, func(v *Validator) error {
		for _, c := range v.Certificates {
			c.Revalue(now)
		}
		return nil
	})
}

// ReactivateDue returns suspended validators whose cool-down has elapsed at
// now to Active, provided their stake meets the platform minimum again.
func (r *Registry) ReactivateDue(now clock.Millis) (int, error) {
	const op = "registry.reactivate_due"
	if err := r.lock(op); err != nil {
		return 0, err
	}
	defer r.mu.Unlock()

	minStake := uint64(r.params.MustGet(params.KeyMinimumStake))
	var due []string
	r.validators.Range(func(addr string, v *Validator) bool {
		if v.State == StateSuspended && v.SuspendedUntil != 0 && v.SuspendedUntil <= now && v.Stake >= minStake {
			due = append(due, addr)
		}
		return true
	})

	for _, addr := range due {
		if _, err := r.mutateLocked(op, addr, func(v *Validator) error {
			v.State = StateActive
			v.SuspendedUntil = 0
			return nil
		}); err != nil {
			return 0, err
		}
	}
	if len(due) > 0 {
		r.logger.Info("suspended validators reactivated", zap.Int("count", len(due)))
	}
	return len(due), nil
}
