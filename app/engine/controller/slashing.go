package controller

import (
	"net/http"

	"github.com/poknet/pokengine/pkg/slashing"
)

type slashRequest struct {
	Target   string `json:"target"`
	Reason   string `json:"reason"`
	Evidence string `json:"evidence,omitempty"`
	Executor string `json:"executor"`
}

// HandleSlash executes a slash against a validator. Gated behind the slashing
// capability at the router.
func (c *Controller) HandleSlash(w http.ResponseWriter, r *http.Request) {
	var req slashRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}

	reason := slashing.Reason(req.Reason)
	switch reason {
	case slashing.ReasonLazyValidation, slashing.ReasonWrongConsensus,
		slashing.ReasonMalicious, slashing.ReasonCollusion:
	default:
		writeError(w, http.StatusBadRequest, "unknown slash reason: "+req.Reason)
		return
	}

	ev, err := c.App.Slashing.Slash(req.Target, reason, req.Evidence, req.Executor, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
