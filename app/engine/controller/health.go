package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if c.App.Events != nil {
		if err := c.App.Events.Health(ctx); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": "redis connection error"})
			return
		}
	}

	total, genesis := c.App.Registry.Counts()

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":             "ok",
		"validators_total":   total,
		"validators_genesis": genesis,
		"emergency":          c.App.Treasury.EmergencyActive(),
	})
}
