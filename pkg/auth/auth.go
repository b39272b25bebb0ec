// Package auth issues and checks the capability tokens that gate privileged
// engine operations. A capability is a signed, unforgeable claim issued once
// at setup; handlers verify it by signature and claim equality, never by
// ambient flags.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

// Capability names one privileged role.
type Capability string

const (
	// CapGovernance authorizes parameter updates, locks, and proposal
	// execution surfaces.
	CapGovernance Capability = "governance"
	// CapEmergency authorizes emergency mode toggles and emergency unlocks.
	CapEmergency Capability = "emergency"
	// CapSlashing authorizes slash execution.
	CapSlashing Capability = "slashing"
)

// Issuer signs and verifies capability tokens with a shared engine secret.
type Issuer struct {
	secret []byte
}

// NewIssuer builds an issuer around the engine secret.
func NewIssuer(secret []byte) *Issuer { return &Issuer{secret: secret} }

// Issue mints a token granting caps to subject, valid for ttl from now.
func (i *Issuer) Issue(subject string, caps []Capability, ttl clock.Millis, now clock.Millis) (string, error) {
	names := make([]string, len(caps))
	for idx, c := range caps {
		names[idx] = string(c)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"caps": names,
		"iat":  now / 1000,
		"exp":  (now + ttl) / 1000,
	})
	return tok.SignedString(i.secret)
}

// Verify checks token's signature and expiry against now and requires cap
// among its claims. Returns the token subject.
func (i *Issuer) Verify(token string, cap Capability, now clock.Millis) (string, error) {
	const op = "auth.verify"

	tok, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return time.UnixMilli(now) }),
	)
	if err != nil || !tok.Valid {
		return "", codes.Wrap(op, codes.Unauthorized, err, "invalid capability token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", codes.E(op, codes.Unauthorized, "malformed capability claims")
	}
	sub, _ := claims["sub"].(string)

	raw, _ := claims["caps"].([]any)
	for _, c := range raw {
		if name, ok := c.(string); ok && Capability(name) == cap {
			return sub, nil
		}
	}
	return "", codes.E(op, codes.CapabilityRequired,
		"token for %q lacks the %s capability", sub, cap)
}
