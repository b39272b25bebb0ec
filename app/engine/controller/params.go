package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poknet/pokengine/pkg/params"
)

func (c *Controller) HandleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Params.Snapshot())
}

type paramResponse struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
	// Lock metadata, present only while the key is locked.
	Locked      bool   `json:"locked,omitempty"`
	LockType    string `json:"lock_type,omitempty"`
	LockedUntil int64  `json:"locked_until,omitempty"`
}

func (c *Controller) HandleParam(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, err := c.App.Params.Get(key)
	if err != nil {
		writeCoded(w, err)
		return
	}

	resp := paramResponse{Key: key, Value: value}
	if lock, ok := c.App.Params.LockOf(key, c.App.Now()); ok {
		resp.Locked = true
		resp.LockType = lock.Type.String()
		resp.LockedUntil = lock.Until
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) HandleParamHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Params.History(mux.Vars(r)["key"]))
}

type updateParamRequest struct {
	Value      int64  `json:"value"`
	ProposalID string `json:"proposal_id,omitempty"`
}

func (c *Controller) HandleUpdateParam(w http.ResponseWriter, r *http.Request) {
	var req updateParamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := mux.Vars(r)["key"]
	if err := c.App.Params.Update(key, req.Value, req.ProposalID, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paramResponse{Key: key, Value: req.Value})
}

type batchUpdateRequest struct {
	Updates    []params.Update `json:"updates"`
	ProposalID string          `json:"proposal_id,omitempty"`
}

func (c *Controller) HandleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.App.Params.BatchUpdate(req.Updates, req.ProposalID, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": len(req.Updates)})
}

type lockParamRequest struct {
	Type     string `json:"type"`
	Until    int64  `json:"until,omitempty"`
	LockedBy string `json:"locked_by"`
}

func (c *Controller) HandleLockParam(w http.ResponseWriter, r *http.Request) {
	var req lockParamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var typ params.LockType
	switch req.Type {
	case "governance":
		typ = params.LockGovernance
	case "emergency":
		typ = params.LockEmergency
	case "bootstrap":
		typ = params.LockBootstrap
	default:
		writeError(w, http.StatusBadRequest, "unknown lock type: "+req.Type)
		return
	}

	key := mux.Vars(r)["key"]
	if err := c.App.Params.LockKey(key, typ, req.Until, req.LockedBy, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "lock": req.Type})
}

func (c *Controller) HandleUnlockParam(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	viaEmergency := r.URL.Query().Get("emergency") == "true"

	if err := c.App.Params.UnlockKey(key, !viaEmergency, viaEmergency, c.App.Now()); err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}
