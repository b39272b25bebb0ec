package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/treasury"
)

// TestDepositDisburserRefundsUnderEmergency verifies settled proposals refund
// their escrowed deposits even while the treasury is locked down.
func TestDepositDisburserRefundsUnderEmergency(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := params.NewStore(logger)
	ledger := treasury.NewLedger(logger, store)

	require.NoError(t, ledger.Deposit(treasury.PoolGovernance, 1000, "proposal escrow", 0))
	require.NoError(t, ledger.ActivateEmergency(0))

	d := depositDisburser{ledger: ledger, logger: logger}
	d.Refund("alice", 400, 100)

	p, err := ledger.PoolSnapshot(treasury.PoolGovernance)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), p.Balance)
}
