package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/service"
)

// PrincipalFunc returns the authenticated caller of a request, or nil.
type PrincipalFunc func(r *http.Request) *service.Principal

// SystemHandler serves the engine-level endpoints that are not scoped to a
// tenant: sessions and the tenant listing.
type SystemHandler struct {
	svc        *service.ContentService
	authSvc    *service.AuthService
	principal  PrincipalFunc
	sessionTTL time.Duration
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(svc *service.ContentService, authSvc *service.AuthService, principal PrincipalFunc, sessionTTL time.Duration) *SystemHandler {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &SystemHandler{
		svc:        svc,
		authSvc:    authSvc,
		principal:  principal,
		sessionTTL: sessionTTL,
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// sessionRequest optionally narrows the tenants of the issued token.
type sessionRequest struct {
	Tenants []string `json:"tenants"`
}

// sessionResponse is the response payload for a successful session.
type sessionResponse struct {
	Token     string   `json:"session_token"`
	TokenType string   `json:"token_type"`
	ExpiresIn int      `json:"expires_in"`
	UserID    string   `json:"user_id"`
	Tenants   []string `json:"tenants"`
}

// Login exchanges the credentials of the current request, typically an API
// key, for a JWT session token carrying the same user and tenants.
// POST /api/v1/system/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	p := h.principal(r)
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req sessionRequest
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	tenants := p.Tenants
	if len(req.Tenants) > 0 {
		for _, t := range req.Tenants {
			if !p.CanAccess(t) {
				writeError(w, http.StatusForbidden, "Access to tenant "+t+" is not allowed")
				return
			}
		}
		tenants = req.Tenants
	}

	token, err := h.authSvc.IssueJWT(r.Context(), p.UserID, tenants, h.sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.Envelope[sessionResponse]{Data: sessionResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
		UserID:    p.UserID,
		Tenants:   tenants,
	}})
}

// Session describes the authenticated caller.
// GET /api/v1/system/session
func (h *SystemHandler) Session(w http.ResponseWriter, r *http.Request) {
	p := h.principal(r)
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, model.Envelope[*service.Principal]{Data: p})
}

// Logout invalidates the current session. Since JWTs are stateless, this is
// a no-op on the server side. Clients should discard their token.
// DELETE /api/v1/system/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Envelope[[]any]{Data: []any{}})
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

// ListTenants returns the provisioned tenants the caller may access.
// GET /api/v1/system/tenants
func (h *SystemHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	env := h.svc.ListTenants(r.Context())
	if p := h.principal(r); env.OK() && p != nil {
		env.Data = slices.DeleteFunc(env.Data, func(t string) bool { return !p.CanAccess(t) })
	}
	writeEnvelope(w, http.StatusOK, env)
}
