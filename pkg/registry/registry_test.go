package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/poknet/pokengine/pkg/certificate"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/weight"
)

const unit = uint64(params.Unit)

const bootstrapEnd = clock.Millis(30 * clock.MillisPerDay)

func newTestRegistry(t *testing.T) (*Registry, *params.Store) {
	store := params.NewStore(zaptest.NewLogger(t))
	return New(zaptest.NewLogger(t), store, bootstrapEnd), store
}

func threeCerts(now clock.Millis) []*certificate.Certificate {
	return []*certificate.Certificate{
		certificate.New("practitioner", "math", 2, now),
		certificate.New("practitioner", "logic", 2, now),
		certificate.New("practitioner", "crypto", 2, now),
	}
}

// TestRegisterGenesis verifies founding validators are admitted during the
// bootstrap window with stake-only weight.
func TestRegisterGenesis(t *testing.T) {
	r, _ := newTestRegistry(t)

	v, err := r.RegisterGenesis("alice", 10*unit, 0)
	require.NoError(t, err)

	assert.True(t, v.Genesis)
	assert.Equal(t, StateActive, v.State)
	assert.Equal(t, uint64(100), v.Accuracy)
	assert.Equal(t, weight.TierStarter, v.Tier)
	assert.Equal(t, weight.Initial(0, 10*unit), v.Weight)

	total, genesis := r.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, genesis)
}

// TestRegisterGenesisMinStake verifies sub-minimum stake is rejected.
func TestRegisterGenesisMinStake(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.RegisterGenesis("alice", 10*unit-1, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.InsufficientStake))
}

// TestRegisterGenesisWindowClosed verifies genesis admission ends with the
// bootstrap window.
func TestRegisterGenesisWindowClosed(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.RegisterGenesis("alice", 10*unit, bootstrapEnd)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.BootstrapEnded))
}

// TestRegisterGenesisCap verifies the genesis set size limit.
func TestRegisterGenesisCap(t *testing.T) {
	r, store := newTestRegistry(t)
	require.NoError(t, store.Update(params.KeyMaxGenesisValidators, 2, "", 0))

	_, err := r.RegisterGenesis("a", 10*unit, 0)
	require.NoError(t, err)
	_, err = r.RegisterGenesis("b", 10*unit, 0)
	require.NoError(t, err)

	_, err = r.RegisterGenesis("c", 10*unit, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.GenesisFull))
}

// TestRegisterDuplicate verifies a registered address cannot register again.
func TestRegisterDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.RegisterGenesis("alice", 10*unit, 0)
	require.NoError(t, err)

	_, err = r.Register("alice", threeCerts(0), 10*unit, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.AlreadyRegistered))
}

// TestRegisterAfterBootstrapRequiresCertificates verifies the certificate
// gate kicks in once the window closes.
func TestRegisterAfterBootstrapRequiresCertificates(t *testing.T) {
	r, _ := newTestRegistry(t)
	now := bootstrapEnd + 1

	_, err := r.Register("bob", threeCerts(now)[:2], 10*unit, now)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.NotEnoughCertificates))

	v, err := r.Register("bob", threeCerts(now), 10*unit, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), v.KnowledgeScore)
	assert.Equal(t, weight.Initial(600, 10*unit), v.Weight)
}

// TestRegisterDuringBootstrapSkipsCertificateGate verifies the gate only
// applies after the window.
func TestRegisterDuringBootstrapSkipsCertificateGate(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register("bob", nil, 10*unit, 100)
	require.NoError(t, err)
}

// TestAddStakeRederivesWeight verifies a stake top-up moves the validator to
// the steady-state weight formula.
func TestAddStakeRederivesWeight(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	v, err := r.AddStake("bob", 90*unit)
	require.NoError(t, err)

	assert.Equal(t, 100*unit, v.Stake)
	assert.Equal(t, weight.Full(600, 100*unit, 100), v.Weight)
	assert.Equal(t, v.Weight, r.TotalWeight())
}

// TestAddStakeZero verifies zero top-ups are rejected.
func TestAddStakeZero(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	_, err = r.AddStake("bob", 0)
	assert.True(t, codes.HasCode(err, codes.InsufficientStake))
}

// TestRecordAccuracy verifies accuracy readings clamp at 100 and reshape
// weight.
func TestRecordAccuracy(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	v, err := r.RecordAccuracy("bob", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), v.Accuracy)
	assert.Equal(t, weight.Full(600, 10*unit, 50), v.Weight)

	v, err = r.RecordAccuracy("bob", 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v.Accuracy)
}

// TestAddCertificate verifies a new certificate lifts the knowledge score.
func TestAddCertificate(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	v, err := r.AddCertificate("bob", certificate.New("expert", "crypto", 4, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_100), v.KnowledgeScore)
	assert.Len(t, v.Certificates, 4)
}

// TestBoostCertificate verifies extra stake lifts one certificate's value and
// joins the staked balance.
func TestBoostCertificate(t *testing.T) {
	r, _ := newTestRegistry(t)

	certs := threeCerts(0)
	_, err := r.Register("bob", certs, 10*unit, 0)
	require.NoError(t, err)

	// 10 extra tokens buy 100 bps of the 200-point base: +2.
	v, err := r.BoostCertificate("bob", certs[0].ID, 10*unit, 0)
	require.NoError(t, err)

	assert.Equal(t, 20*unit, v.Stake)
	boosted := v.CertificateByID(certs[0].ID)
	require.NotNil(t, boosted)
	assert.Equal(t, uint64(202), boosted.CurrentValue)
	assert.True(t, boosted.Boosted)
	assert.Equal(t, uint64(602), v.KnowledgeScore)
}

// TestBoostCertificateUnknown verifies boosting a certificate the validator
// does not hold fails without mutation.
func TestBoostCertificateUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	_, err = r.BoostCertificate("bob", "nope", 10*unit, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.CertificateNotFound))

	v, err := r.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 10*unit, v.Stake)
}

// TestBoostCertificateCeiling verifies the platform boost cap rejects
// over-boosting with no stake movement.
func TestBoostCertificateCeiling(t *testing.T) {
	r, _ := newTestRegistry(t)

	certs := threeCerts(0)
	_, err := r.Register("bob", certs, 10*unit, 0)
	require.NoError(t, err)

	// 30000 extra tokens buy 30000 bps: 200 + 600 exceeds the 400 ceiling.
	_, err = r.BoostCertificate("bob", certs[0].ID, 30_000*unit, 0)
	require.Error(t, err)
	assert.True(t, codes.HasCode(err, codes.BoostLimit))

	v, err := r.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 10*unit, v.Stake)
}

// TestRetire verifies retirement removes the validator's voting weight while
// keeping the record.
func TestRetire(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)
	require.NotZero(t, r.TotalWeight())

	v, err := r.Retire("bob")
	require.NoError(t, err)
	assert.Equal(t, StateRetired, v.State)
	assert.Zero(t, r.TotalWeight())

	// Still readable, but no further mutations.
	_, err = r.AddStake("bob", unit)
	assert.True(t, codes.HasCode(err, codes.InvalidValidatorState))
	_, err = r.Retire("bob")
	assert.True(t, codes.HasCode(err, codes.InvalidValidatorState))
}

// TestFailedMutationLeavesNoTrace verifies a failed staged mutation does not
// alter the stored record or the aggregate weight.
func TestFailedMutationLeavesNoTrace(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	before, err := r.Get("bob")
	require.NoError(t, err)
	beforeTotal := r.TotalWeight()

	_, err = r.Mutate("test.fail", "bob", func(v *Validator) error {
		v.Stake += 1_000 * unit
		return codes.E("test.fail", codes.InvalidAmount, "abort")
	})
	require.Error(t, err)

	after, err := r.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, before.Stake, after.Stake)
	assert.Equal(t, beforeTotal, r.TotalWeight())
}

// TestRevalueDecaysKnowledge verifies the decay sweep lowers certificate
// values and knowledge after months pass.
func TestRevalueDecaysKnowledge(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	v, err := r.Revalue("bob", 3*certificate.MillisPerMonth)
	require.NoError(t, err)
	// Each 200-point certificate decays to 170.
	assert.Equal(t, uint64(510), v.KnowledgeScore)
}

// TestReactivateDue verifies suspended validators return to Active once the
// cool-down elapses and the stake minimum holds.
func TestReactivateDue(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	_, err = r.Mutate("test.suspend", "bob", func(v *Validator) error {
		v.State = StateSuspended
		v.SuspendedUntil = 5_000
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, r.TotalWeight())

	n, err := r.ReactivateDue(4_999)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.ReactivateDue(5_000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := r.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, StateActive, v.State)
	assert.Zero(t, v.SuspendedUntil)
	assert.Equal(t, v.Weight, r.TotalWeight())
}

// TestReactivateDueHonorsStakeMinimum verifies a suspended validator below
// the minimum stays suspended.
func TestReactivateDueHonorsStakeMinimum(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	_, err = r.Mutate("test.suspend", "bob", func(v *Validator) error {
		v.State = StateSuspended
		v.SuspendedUntil = 5_000
		v.Stake = unit
		return nil
	})
	require.NoError(t, err)

	n, err := r.ReactivateDue(10_000)
	require.NoError(t, err)
	assert.Zero(t, n)

	v, err := r.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, StateSuspended, v.State)
}

// TestWithExclusive verifies multi-record holds see and commit consistent
// state.
func TestWithExclusive(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("a", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)
	_, err = r.Register("b", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	err = r.WithExclusive("test.pair", func(tx *Tx) error {
		if _, err := tx.Mutate("a", func(v *Validator) error {
			v.Stake += 10 * unit
			return nil
		}); err != nil {
			return err
		}
		_, err := tx.Mutate("b", func(v *Validator) error {
			v.Stake += 20 * unit
			return nil
		})
		return err
	})
	require.NoError(t, err)

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.Equal(t, 20*unit, a.Stake)
	assert.Equal(t, 30*unit, b.Stake)
}

// TestEligibleAndDomain verifies the read-side helpers used by selection.
func TestEligibleAndDomain(t *testing.T) {
	r, _ := newTestRegistry(t)
	v, err := r.Register("bob", threeCerts(0), 10*unit, 0)
	require.NoError(t, err)

	assert.True(t, v.Eligible())
	assert.True(t, v.HasDomain("math"))
	assert.False(t, v.HasDomain("biology"))

	retired, err := r.Retire("bob")
	require.NoError(t, err)
	assert.False(t, retired.Eligible())
}
