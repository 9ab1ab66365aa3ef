package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/api/validate"
	"github.com/dwarpal-ai/dwarpal/internal/auth"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// AuthHandler exposes owner registration, login, logout, and identity.
type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

type ctxKey int

const ownerKey ctxKey = iota

// OwnerFromContext returns the owner attached by RequireAuth.
func OwnerFromContext(ctx context.Context) (*model.Owner, bool) {
	o, ok := ctx.Value(ownerKey).(*model.Owner)
	return o, ok
}

// RequireAuth wraps protected routes: it resolves the bearer token and puts
// the owner on the request context, or answers 401.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		owner, err := h.svc.Verify(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *model.Owner `json:"user"`
	Token string       `json:"token"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Username(req.Username); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	owner, token, err := h.svc.Register(r.Context(), req.Username, req.Password, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, authResponse{User: owner, Token: token})
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	owner, token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, authResponse{User: owner, Token: token})
}

// Logout POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractBearer(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, auth.ErrInvalidToken.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]*model.Owner{"user": owner})
}
