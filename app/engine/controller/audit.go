package controller

import (
	"net/http"
	"strconv"
)

// HandleAuditTail returns the most recent audit entries from the in-memory
// ring, newest last. The n query parameter bounds the count (default 100).
func (c *Controller) HandleAuditTail(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid n parameter")
			return
		}
		n = parsed
	}

	writeJSON(w, http.StatusOK, c.App.Recorder.Tail(n))
}
