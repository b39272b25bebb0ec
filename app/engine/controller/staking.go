package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/weight"
)

type openPositionRequest struct {
	Staker       string       `json:"staker"`
	Amount       uint64       `json:"amount"`
	LockPeriod   clock.Millis `json:"lock_period"`
	AutoCompound bool         `json:"auto_compound"`
}

// HandleOpenPosition opens a staking position. The reward rate multiplier
// comes from the staker's validator tier; non-validators stake at the base
// rate.
func (c *Controller) HandleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Staker == "" {
		writeError(w, http.StatusBadRequest, "missing staker")
		return
	}

	multiplier := weight.TierStarter.RewardMultiplierBps()
	if v, err := c.App.Registry.Get(req.Staker); err == nil {
		multiplier = v.Tier.RewardMultiplierBps()
	}

	sp, err := c.App.Treasury.OpenPosition(req.Staker, req.Amount, req.LockPeriod,
		multiplier, req.AutoCompound, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (c *Controller) HandlePosition(w http.ResponseWriter, r *http.Request) {
	sp, err := c.App.Treasury.Position(mux.Vars(r)["staker"])
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (c *Controller) HandleStakeMore(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sp, err := c.App.Treasury.AddStake(mux.Vars(r)["staker"], req.Amount, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (c *Controller) HandleReduceStake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sp, err := c.App.Treasury.ReduceStake(mux.Vars(r)["staker"], req.Amount, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

type claimRequest struct {
	Compound bool `json:"compound"`
}

func (c *Controller) HandleClaimRewards(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reward, err := c.App.Treasury.ClaimRewards(mux.Vars(r)["staker"], req.Compound, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"reward": reward})
}
