package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poknet/pokengine/pkg/treasury"
)

func poolFromVars(r *http.Request) (treasury.PoolType, bool) {
	t := treasury.PoolType(mux.Vars(r)["pool"])
	for _, known := range treasury.PoolTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

func (c *Controller) HandleTreasuryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Treasury.GetStats())
}

func (c *Controller) HandlePool(w http.ResponseWriter, r *http.Request) {
	t, ok := poolFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pool")
		return
	}

	p, err := c.App.Treasury.PoolSnapshot(t)
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *Controller) HandlePoolHistory(w http.ResponseWriter, r *http.Request) {
	t, ok := poolFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pool")
		return
	}

	hist, err := c.App.Treasury.PoolHistory(t)
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
	Source string `json:"source"`
}

func (c *Controller) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	t, ok := poolFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pool")
		return
	}

	var req depositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.App.Treasury.Deposit(t, req.Amount, req.Source, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": req.Amount})
}

type withdrawRequest struct {
	Amount    uint64 `json:"amount"`
	Reason    string `json:"reason"`
	Recipient string `json:"recipient"`
}

func (c *Controller) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	t, ok := poolFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pool")
		return
	}

	var req withdrawRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.App.Treasury.Withdraw(t, req.Amount, req.Reason, req.Recipient, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": req.Amount})
}

type transferRequest struct {
	From   treasury.PoolType `json:"from"`
	To     treasury.PoolType `json:"to"`
	Amount uint64            `json:"amount"`
	Reason string            `json:"reason"`
}

func (c *Controller) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.App.Treasury.Transfer(req.From, req.To, req.Amount, req.Reason, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": req.Amount})
}

type dailyCapRequest struct {
	Cap uint64 `json:"cap"`
}

func (c *Controller) HandleSetDailyCap(w http.ResponseWriter, r *http.Request) {
	t, ok := poolFromVars(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pool")
		return
	}

	var req dailyCapRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.App.Treasury.SetDailyCap(t, req.Cap); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"cap": req.Cap})
}

func (c *Controller) HandleActivateEmergency(w http.ResponseWriter, r *http.Request) {
	if err := c.App.Treasury.ActivateEmergency(c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"emergency": true})
}

func (c *Controller) HandleDeactivateEmergency(w http.ResponseWriter, r *http.Request) {
	if err := c.App.Treasury.DeactivateEmergency(c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"emergency": false})
}

type configureSignersRequest struct {
	Signers  []string `json:"signers"`
	Required int      `json:"required"`
}

func (c *Controller) HandleConfigureSigners(w http.ResponseWriter, r *http.Request) {
	var req configureSignersRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.App.Treasury.ConfigureSigners(req.Signers, req.Required); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"signers": len(req.Signers), "required": req.Required})
}

type proposeActionRequest struct {
	Kind      string            `json:"kind"`
	Pool      treasury.PoolType `json:"pool,omitempty"`
	Amount    uint64            `json:"amount,omitempty"`
	Recipient string            `json:"recipient,omitempty"`
	Strategy  string            `json:"strategy,omitempty"`
	Reason    string            `json:"reason"`
	Proposer  string            `json:"proposer"`
}

func (c *Controller) HandleProposeAction(w http.ResponseWriter, r *http.Request) {
	var req proposeActionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := treasury.ActionKind(req.Kind)
	switch kind {
	case treasury.ActionEmergencyWithdrawal, treasury.ActionStrategyChange:
	default:
		writeError(w, http.StatusBadRequest, "unknown action kind: "+req.Kind)
		return
	}

	a, err := c.App.Treasury.ProposeAction(kind, req.Pool, req.Amount,
		req.Recipient, req.Strategy, req.Reason, req.Proposer, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (c *Controller) HandleListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Treasury.PendingActions())
}

type signActionRequest struct {
	Signer string `json:"signer"`
}

func (c *Controller) HandleSignAction(w http.ResponseWriter, r *http.Request) {
	var req signActionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := c.App.Treasury.SignAction(mux.Vars(r)["id"], req.Signer, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
