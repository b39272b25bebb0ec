package controller

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/poknet/pokengine/app/engine/types"
	"github.com/poknet/pokengine/pkg/audit"
	"github.com/poknet/pokengine/pkg/auth"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/governance"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
	"github.com/poknet/pokengine/pkg/selection"
	"github.com/poknet/pokengine/pkg/slashing"
	"github.com/poknet/pokengine/pkg/treasury"
)

const unit = uint64(params.Unit)

// setupTestController wires a full in-memory engine behind a controller.
func setupTestController(t *testing.T) (*Controller, *clock.Manual) {
	logger := zaptest.NewLogger(t)
	clk := clock.NewManual(1000)

	store := params.NewStore(logger)
	reg := registry.New(logger, store, 1000+30*clock.MillisPerDay)
	ledger := treasury.NewLedger(logger, store)
	slasher := slashing.NewEngine(logger, store, reg)
	proposals := governance.New(logger, store, reg)
	selector := selection.New(logger, store, reg,
		selection.NewUniform(rand.New(rand.NewSource(1))))
	recorder := audit.NewRecorder(logger)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), 10)
	require.NoError(t, err)

	app := &types.App{
		Clock:     clk,
		Params:    store,
		Registry:  reg,
		Slashing:  slasher,
		Proposals: proposals,
		Treasury:  ledger,
		Selector:  selector,
		Auth:      auth.NewIssuer([]byte("test-secret")),
		Recorder:  recorder,
		Logger:    logger,
	}
	return &Controller{
		App:        app,
		AdminToken: "test-admin",
		AuthUser:   "admin",
		AuthHash:   hash,
	}, clk
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestStatusFor verifies the code-to-HTTP mapping for each class.
func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(codes.ValidatorNotFound))
	assert.Equal(t, http.StatusNotFound, statusFor(codes.PoolNotFound))
	assert.Equal(t, http.StatusUnauthorized, statusFor(codes.Unauthorized))
	assert.Equal(t, http.StatusForbidden, statusFor(codes.CapabilityRequired))
	assert.Equal(t, http.StatusForbidden, statusFor(codes.NotProposer))
	assert.Equal(t, http.StatusConflict, statusFor(codes.AlreadyVoted))
	assert.Equal(t, http.StatusConflict, statusFor(codes.EmergencyMode))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(codes.RecordBusy))
	assert.Equal(t, http.StatusInternalServerError, statusFor(0))
	assert.Equal(t, http.StatusBadRequest, statusFor(codes.InsufficientStake))
}

// TestHealthEndpoint verifies the health payload reflects registry counts.
func TestHealthEndpoint(t *testing.T) {
	c, _ := setupTestController(t)
	router, err := c.NewRouter()
	require.NoError(t, err)

	_, err = c.App.Registry.RegisterGenesis("alice", 10*unit, 1000)
	require.NoError(t, err)

	rec := doJSON(t, router, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["validators_total"])
	assert.EqualValues(t, 1, body["validators_genesis"])
}

// TestRegisterGenesisEndpoint verifies registration round-trips through the
// HTTP surface and failures carry their code's status.
func TestRegisterGenesisEndpoint(t *testing.T) {
	c, _ := setupTestController(t)
	router, err := c.NewRouter()
	require.NoError(t, err)

	rec := doJSON(t, router, "POST", "/validators/genesis",
		`{"address":"alice","stake":10000000000}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, "POST", "/validators/genesis",
		`{"address":"alice","stake":10000000000}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, "GET", "/validators/alice", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "GET", "/validators/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestSlashRequiresCapability verifies the slash route is gated while the
// admin token passes through.
func TestSlashRequiresCapability(t *testing.T) {
	c, _ := setupTestController(t)
	router, err := c.NewRouter()
	require.NoError(t, err)

	body := `{"target":"alice","reason":"lazy_validation","executor":"ops"}`

	rec := doJSON(t, router, "POST", "/slashing", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err = c.App.Registry.RegisterGenesis("alice", 100*unit, 1000)
	require.NoError(t, err)

	rec = doJSON(t, router, "POST", "/slashing", body,
		map[string]string{"Authorization": "Bearer test-admin"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestCreateProposalEscrowAccounting verifies the deposit escrows into the
// governance pool on creation, comes back out when creation is rejected, and
// never strands a proposal without funds.
func TestCreateProposalEscrowAccounting(t *testing.T) {
	c, _ := setupTestController(t)
	router, err := c.NewRouter()
	require.NoError(t, err)

	// A zero deposit is refused by the treasury before any proposal exists.
	rec := doJSON(t, router, "POST", "/proposals",
		`{"proposer":"ghost","type":"parameter_update","title":"t","target_key":"governance.quorum_pct","deposit":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// An unrecognized proposer fails creation; the escrow must come back out.
	body := fmt.Sprintf(`{"proposer":"ghost","type":"parameter_update","title":"t","target_key":"governance.quorum_pct","target_value":25,"deposit":%d}`, 100*unit)
	rec = doJSON(t, router, "POST", "/proposals", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	pool, err := c.App.Treasury.PoolSnapshot(treasury.PoolGovernance)
	require.NoError(t, err)
	assert.Zero(t, pool.Balance)
	assert.Zero(t, countProposals(c))

	// A recognized proposer escrows the deposit in the governance pool.
	_, err = c.App.Registry.RegisterGenesis("alice", 100*unit, 1000)
	require.NoError(t, err)
	body = fmt.Sprintf(`{"proposer":"alice","type":"parameter_update","title":"t","target_key":"governance.quorum_pct","target_value":25,"deposit":%d}`, 100*unit)
	rec = doJSON(t, router, "POST", "/proposals", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	pool, err = c.App.Treasury.PoolSnapshot(treasury.PoolGovernance)
	require.NoError(t, err)
	assert.Equal(t, 100*unit, pool.Balance)
	assert.Equal(t, 1, countProposals(c))
}

func countProposals(c *Controller) int {
	n := 0
	c.App.Proposals.Range(func(*governance.Proposal) bool { n++; return true })
	return n
}

// TestLoginIssuesCapabilityToken verifies the login flow mints a token the
// gated routes accept.
func TestLoginIssuesCapabilityToken(t *testing.T) {
	c, _ := setupTestController(t)
	router, err := c.NewRouter()
	require.NoError(t, err)

	rec := doJSON(t, router, "POST", "/auth/login",
		`{"username":"admin","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, "POST", "/auth/login",
		`{"username":"admin","password":"hunter2","capabilities":["governance"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	rec = doJSON(t, router, "PUT", "/params/governance.quorum_pct",
		`{"value":25}`, map[string]string{"Authorization": "Bearer " + login.Token})
	assert.Equal(t, http.StatusOK, rec.Code)

	value, err := c.App.Params.Get(params.KeyQuorumPct)
	require.NoError(t, err)
	assert.Equal(t, int64(25), value)
}

// TestParamUpdateRequiresAuth verifies parameter writes reject anonymous
// callers.
func TestParamUpdateRequiresAuth(t *testing.T) {
	c, _ := setupTestController(t)
	router, err := c.NewRouter()
	require.NoError(t, err)

	rec := doJSON(t, router, "PUT", "/params/governance.quorum_pct", `{"value":25}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
