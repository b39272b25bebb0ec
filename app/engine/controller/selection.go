package controller

import (
	"net/http"

	"github.com/poknet/pokengine/pkg/selection"
)

type selectRequest struct {
	Content  selection.Content `json:"content"`
	Count    int               `json:"count"`
	Strategy string            `json:"strategy,omitempty"`
}

type selectResponse struct {
	Strategy   string   `json:"strategy"`
	Validators []string `json:"validators"`
}

// HandleSelect picks validators for a piece of content. The optional strategy
// field overrides the configured default for this one request.
func (c *Controller) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Count <= 0 {
		writeError(w, http.StatusBadRequest, "count must be positive")
		return
	}

	sel := c.App.Selector
	if req.Strategy != "" {
		strategy, ok := c.strategyByName(req.Strategy)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown strategy: "+req.Strategy)
			return
		}
		sel = sel.WithStrategy(strategy)
	}

	picked, err := sel.Select(req.Content, req.Count)
	if err != nil {
		writeCoded(w, err)
		return
	}

	addrs := make([]string, len(picked))
	for i, v := range picked {
		addrs[i] = v.Address
	}
	writeJSON(w, http.StatusOK, selectResponse{Strategy: sel.StrategyName(), Validators: addrs})
}

func (c *Controller) strategyByName(name string) (selection.Strategy, bool) {
	switch name {
	case "uniform":
		return selection.NewUniform(nil), true
	case "weighted":
		return selection.NewWeightProportional(nil), true
	case "domain_topk":
		return selection.DomainTopK{}, true
	default:
		return nil, false
	}
}
