package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/poknet/pokengine/app/engine/types"
	"github.com/poknet/pokengine/pkg/auth"
	"github.com/poknet/pokengine/pkg/codes"
	"github.com/poknet/pokengine/pkg/utils"
)

type Controller struct {
	App        *types.App
	AdminToken string
	AuthUser   string
	AuthHash   []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("ADMIN_TOKEN", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")

	phash, _ := utils.HashOrRead(adminPass)

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		AuthUser:   adminUser,
		AuthHash:   phash,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")
	r.HandleFunc("/auth/login", c.HandleLogin).Methods("POST")

	r.HandleFunc("/validators", c.HandleRegister).Methods("POST")
	r.HandleFunc("/validators", c.HandleListValidators).Methods("GET")
	r.HandleFunc("/validators/genesis", c.HandleRegisterGenesis).Methods("POST")
	r.HandleFunc("/validators/{address}", c.HandleValidator).Methods("GET")
	r.HandleFunc("/validators/{address}/stake", c.HandleAddStake).Methods("POST")
	r.HandleFunc("/validators/{address}/certificates", c.HandleAddCertificate).Methods("POST")
	r.HandleFunc("/validators/{address}/certificates/{cert}/boost", c.HandleBoostCertificate).Methods("POST")
	r.HandleFunc("/validators/{address}/accuracy", c.HandleRecordAccuracy).Methods("POST")
	r.HandleFunc("/validators/{address}/retire", c.HandleRetire).Methods("POST")
	r.HandleFunc("/validators/{address}/revalue", c.HandleRevalue).Methods("POST")

	r.HandleFunc("/selection", c.HandleSelect).Methods("POST")
	r.Handle("/slashing", c.RequireCapability(auth.CapSlashing, c.HandleSlash)).Methods("POST")

	r.HandleFunc("/params", c.HandleParams).Methods("GET")
	r.HandleFunc("/params/batch", c.requireGovernance(c.HandleBatchUpdate)).Methods("POST")
	r.HandleFunc("/params/{key}", c.HandleParam).Methods("GET")
	r.HandleFunc("/params/{key}", c.requireGovernance(c.HandleUpdateParam)).Methods("PUT")
	r.HandleFunc("/params/{key}/history", c.HandleParamHistory).Methods("GET")
	r.HandleFunc("/params/{key}/lock", c.requireGovernance(c.HandleLockParam)).Methods("POST")
	r.HandleFunc("/params/{key}/lock", c.requireGovernance(c.HandleUnlockParam)).Methods("DELETE")

	r.HandleFunc("/proposals", c.HandleCreateProposal).Methods("POST")
	r.HandleFunc("/proposals", c.HandleListProposals).Methods("GET")
	r.HandleFunc("/proposals/{id}", c.HandleProposal).Methods("GET")
	r.HandleFunc("/proposals/{id}/votes", c.HandleVote).Methods("POST")
	r.HandleFunc("/proposals/{id}/finalize", c.HandleFinalize).Methods("POST")
	r.HandleFunc("/proposals/{id}/execute", c.HandleExecute).Methods("POST")
	r.HandleFunc("/proposals/{id}/cancel", c.HandleCancel).Methods("POST")

	r.HandleFunc("/treasury/stats", c.HandleTreasuryStats).Methods("GET")
	r.HandleFunc("/treasury/transfers", c.requireGovernance(c.HandleTransfer)).Methods("POST")
	r.Handle("/treasury/emergency", c.RequireCapability(auth.CapEmergency, c.HandleActivateEmergency)).Methods("POST")
	r.Handle("/treasury/emergency", c.RequireCapability(auth.CapEmergency, c.HandleDeactivateEmergency)).Methods("DELETE")
	r.Handle("/treasury/signers", c.RequireCapability(auth.CapEmergency, c.HandleConfigureSigners)).Methods("PUT")
	r.HandleFunc("/treasury/actions", c.HandleProposeAction).Methods("POST")
	r.HandleFunc("/treasury/actions", c.HandleListActions).Methods("GET")
	r.HandleFunc("/treasury/actions/{id}/signatures", c.HandleSignAction).Methods("POST")
	r.HandleFunc("/treasury/pools/{pool}", c.HandlePool).Methods("GET")
	r.HandleFunc("/treasury/pools/{pool}/history", c.HandlePoolHistory).Methods("GET")
	r.HandleFunc("/treasury/pools/{pool}/deposits", c.HandleDeposit).Methods("POST")
	r.HandleFunc("/treasury/pools/{pool}/withdrawals", c.requireGovernance(c.HandleWithdraw)).Methods("POST")
	r.HandleFunc("/treasury/pools/{pool}/cap", c.requireGovernance(c.HandleSetDailyCap)).Methods("PUT")

	r.HandleFunc("/staking/positions", c.HandleOpenPosition).Methods("POST")
	r.HandleFunc("/staking/positions/{staker}", c.HandlePosition).Methods("GET")
	r.HandleFunc("/staking/positions/{staker}/stake", c.HandleStakeMore).Methods("POST")
	r.HandleFunc("/staking/positions/{staker}/reduce", c.HandleReduceStake).Methods("POST")
	r.HandleFunc("/staking/positions/{staker}/claim", c.HandleClaimRewards).Methods("POST")

	r.HandleFunc("/audit/tail", c.HandleAuditTail).Methods("GET")
	r.HandleFunc("/events/live", c.HandleWebSocket).Methods("GET")

	return r, nil
}

// WithCORS wraps a handler with permissive CORS headers.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSON(w, statusCode, map[string]string{"error": msg})
}

// writeCoded maps an engine error to an HTTP status and writes it.
func writeCoded(w http.ResponseWriter, err error) {
	writeError(w, statusFor(codes.CodeOf(err)), err.Error())
}

// statusFor maps engine error codes to HTTP status codes.
func statusFor(code codes.Code) int {
	switch code {
	case codes.ValidatorNotFound, codes.CertificateNotFound, codes.ProposalNotFound,
		codes.PoolNotFound, codes.PositionNotFound, codes.ActionNotFound,
		codes.ParameterNotFound:
		return http.StatusNotFound
	case codes.Unauthorized:
		return http.StatusUnauthorized
	case codes.CapabilityRequired, codes.NotAuthorized, codes.NotProposer, codes.ParameterDenied:
		return http.StatusForbidden
	case codes.AlreadyRegistered, codes.AlreadyVoted, codes.AlreadySigned,
		codes.InvalidProposalState, codes.InvalidValidatorState,
		codes.EmergencyMode, codes.EmergencyCooldown, codes.LockNotExpired,
		codes.ParameterLocked:
		return http.StatusConflict
	case codes.RecordBusy:
		return http.StatusServiceUnavailable
	case 0:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// decode reads a JSON request body into dst.
func decode(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}
