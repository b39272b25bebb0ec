package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

const tokenTTL = clock.Millis(8 * 60 * 60 * 1000)

// TestIssueAndVerify verifies a minted token carries its subject and grants
// exactly the claimed capabilities.
func TestIssueAndVerify(t *testing.T) {
	i := NewIssuer([]byte("engine-secret"))

	token, err := i.Issue("operator", []Capability{CapGovernance, CapSlashing}, tokenTTL, 1000)
	require.NoError(t, err)

	sub, err := i.Verify(token, CapGovernance, 2000)
	require.NoError(t, err)
	assert.Equal(t, "operator", sub)

	sub, err = i.Verify(token, CapSlashing, 2000)
	require.NoError(t, err)
	assert.Equal(t, "operator", sub)
}

// TestVerifyMissingCapability verifies a valid token without the requested
// capability is refused.
func TestVerifyMissingCapability(t *testing.T) {
	i := NewIssuer([]byte("engine-secret"))

	token, err := i.Issue("operator", []Capability{CapGovernance}, tokenTTL, 1000)
	require.NoError(t, err)

	_, err = i.Verify(token, CapEmergency, 2000)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.CapabilityRequired))
}

// TestVerifyExpired verifies tokens past their ttl are refused.
func TestVerifyExpired(t *testing.T) {
	i := NewIssuer([]byte("engine-secret"))

	token, err := i.Issue("operator", []Capability{CapGovernance}, tokenTTL, 1000)
	require.NoError(t, err)

	_, err = i.Verify(token, CapGovernance, 1000+tokenTTL+60_000)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.Unauthorized))
}

// TestVerifyWrongSecret verifies tokens signed under another secret are
// refused.
func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewIssuer([]byte("engine-secret"))
	imposter := NewIssuer([]byte("other-secret"))

	token, err := imposter.Issue("operator", []Capability{CapGovernance}, tokenTTL, 1000)
	require.NoError(t, err)

	_, err = issuer.Verify(token, CapGovernance, 2000)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.Unauthorized))
}

// TestVerifyGarbage verifies a non-token string is refused.
func TestVerifyGarbage(t *testing.T) {
	i := NewIssuer([]byte("engine-secret"))

	_, err := i.Verify("not.a.token", CapGovernance, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.Unauthorized))
}
