package controller

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/poknet/pokengine/pkg/auth"
	"github.com/poknet/pokengine/pkg/clock"
)

// sessionTTL bounds capability tokens issued through the login endpoint.
const sessionTTL = 8 * 60 * 60 * 1000 // 8h in millis

// ValidateToken checks if the Authorization header contains a valid AdminToken
func (c *Controller) ValidateToken(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		return token == c.AdminToken
	}
	return false
}

// bearer extracts the raw bearer token from the Authorization header.
func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// RequireCapability gates a handler behind a capability token. The static
// admin token is capability-equivalent for operational tooling.
func (c *Controller) RequireCapability(cap auth.Capability, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.ValidateToken(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := bearer(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := c.App.Auth.Verify(token, cap, c.App.Now()); err != nil {
			writeCoded(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) requireGovernance(next http.HandlerFunc) http.HandlerFunc {
	return c.RequireCapability(auth.CapGovernance, next).ServeHTTP
}

type loginRequest struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	Capabilities []string `json:"capabilities"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt clock.Millis `json:"expires_at"`
}

// HandleLogin verifies operator credentials and issues a capability token.
// Requested capabilities default to governance only.
func (c *Controller) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != c.AuthUser ||
		bcrypt.CompareHashAndPassword(c.AuthHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	caps := []auth.Capability{auth.CapGovernance}
	if len(req.Capabilities) > 0 {
		caps = caps[:0]
		for _, name := range req.Capabilities {
			switch auth.Capability(name) {
			case auth.CapGovernance, auth.CapEmergency, auth.CapSlashing:
				caps = append(caps, auth.Capability(name))
			default:
				writeError(w, http.StatusBadRequest, "unknown capability: "+name)
				return
			}
		}
	}

	now := c.App.Now()
	token, err := c.App.Auth.Issue(req.Username, caps, sessionTTL, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: now + sessionTTL})
}
