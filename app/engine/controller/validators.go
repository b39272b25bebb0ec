package controller

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/poknet/pokengine/pkg/certificate"
	"github.com/poknet/pokengine/pkg/registry"
)

type registerGenesisRequest struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

func (c *Controller) HandleRegisterGenesis(w http.ResponseWriter, r *http.Request) {
	var req registerGenesisRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	v, err := c.App.Registry.RegisterGenesis(req.Address, req.Stake, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

type registerRequest struct {
	Address      string                     `json:"address"`
	Stake        uint64                     `json:"stake"`
	Certificates []*certificate.Certificate `json:"certificates"`
}

func (c *Controller) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	v, err := c.App.Registry.Register(req.Address, req.Certificates, req.Stake, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

type validatorListResponse struct {
	Data        []*registry.Validator `json:"data"`
	Total       int                   `json:"total"`
	TotalWeight uint64                `json:"total_weight"`
}

func (c *Controller) HandleListValidators(w http.ResponseWriter, r *http.Request) {
	var out []*registry.Validator
	c.App.Registry.Range(func(v *registry.Validator) bool {
		out = append(out, v)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })

	writeJSON(w, http.StatusOK, validatorListResponse{
		Data:        out,
		Total:       len(out),
		TotalWeight: c.App.Registry.TotalWeight(),
	})
}

func (c *Controller) HandleValidator(w http.ResponseWriter, r *http.Request) {
	v, err := c.App.Registry.Get(mux.Vars(r)["address"])
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func (c *Controller) HandleAddStake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := c.App.Registry.AddStake(mux.Vars(r)["address"], req.Amount)
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *Controller) HandleAddCertificate(w http.ResponseWriter, r *http.Request) {
	var cert certificate.Certificate
	if err := decode(r, &cert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cert.ID == "" {
		writeError(w, http.StatusBadRequest, "missing certificate id")
		return
	}

	v, err := c.App.Registry.AddCertificate(mux.Vars(r)["address"], &cert, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *Controller) HandleBoostCertificate(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vars := mux.Vars(r)
	v, err := c.App.Registry.BoostCertificate(vars["address"], vars["cert"], req.Amount, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type accuracyRequest struct {
	Accuracy uint64 `json:"accuracy"`
}

func (c *Controller) HandleRecordAccuracy(w http.ResponseWriter, r *http.Request) {
	var req accuracyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := c.App.Registry.RecordAccuracy(mux.Vars(r)["address"], req.Accuracy)
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *Controller) HandleRetire(w http.ResponseWriter, r *http.Request) {
	v, err := c.App.Registry.Retire(mux.Vars(r)["address"])
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleRevalue re-derives certificate values, knowledge, and weight for one
// validator at the current time. Normally the decay shows up lazily on reads;
// this forces a stored refresh.
func (c *Controller) HandleRevalue(w http.ResponseWriter, r *http.Request) {
	v, err := c.App.Registry.Revalue(mux.Vars(r)["address"], c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
