package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/auth"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/services"
)

// MemberHandler exposes the owner's member directory. Every route sits
// behind RequireAuth; members are always scoped to the calling owner.
type MemberHandler struct {
	svc *services.MemberService
}

func NewMemberHandler(svc *services.MemberService) *MemberHandler {
	return &MemberHandler{svc: svc}
}

type createMemberRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	PhotoB64 string `json:"photo_base64"`
}

type updateMemberRequest struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role"`
	Permitted *bool   `json:"permitted"`
	PhotoB64  string  `json:"photo_base64"`
}

// List GET /api/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, auth.ErrInvalidToken.Error())
		return
	}
	members, err := h.svc.List(r.Context(), owner.OwnerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

// Create POST /api/members
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, auth.ErrInvalidToken.Error())
		return
	}
	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	member, err := h.svc.Create(r.Context(), owner.OwnerID, req.Name, req.Phone, model.MemberRole(req.Role), req.PhotoB64)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, member)
}

// Update PUT /api/members/{id}
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, auth.ErrInvalidToken.Error())
		return
	}
	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	upd := services.MemberUpdate{
		Name:      req.Name,
		Phone:     req.Phone,
		Permitted: req.Permitted,
		PhotoB64:  req.PhotoB64,
	}
	if req.Role != nil {
		role := model.MemberRole(*req.Role)
		upd.Role = &role
	}
	member, err := h.svc.Update(r.Context(), owner.OwnerID, mux.Vars(r)["id"], upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, member)
}

// Delete DELETE /api/members/{id}
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, auth.ErrInvalidToken.Error())
		return
	}
	if err := h.svc.Delete(r.Context(), owner.OwnerID, mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
