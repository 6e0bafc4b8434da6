package api

import (
	"encoding/json"
	"net/http"

	"github.com/mirelhart/cantus/internal/identity"
)

func (r *Router) handleCreateIdentity(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	kind := identity.Kind(body.Kind)
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be person or group"})
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	id, err := r.identityService.CreateIdentity(req.Context(), kind, body.Name)
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

func (r *Router) handleGetIdentity(w http.ResponseWriter, req *http.Request) {
	id, err := r.identityService.GetIdentity(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (r *Router) handleListNames(w http.ResponseWriter, req *http.Request) {
	names, err := r.identityService.Names(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	if names == nil {
		names = []identity.ArtistName{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (r *Router) handleSetKind(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	kind := identity.Kind(body.Kind)
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be person or group"})
		return
	}

	if err := r.identityService.SetKind(req.Context(), req.PathValue("id"), kind); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleGetName(w http.ResponseWriter, req *http.Request) {
	name, err := r.identityService.GetName(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, name)
}

func (r *Router) handleSearchNames(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}

	names, err := r.identityService.SearchNames(req.Context(), query)
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	if names == nil {
		names = []identity.ArtistName{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (r *Router) handleRename(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	outcome, err := r.identityService.Rename(req.Context(), req.PathValue("id"), body.Text)
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	if outcome.Status == identity.RenameCollision {
		writeJSON(w, http.StatusConflict, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (r *Router) handleConfirmRename(w http.ResponseWriter, req *http.Request) {
	var body struct {
		CollidingNameID string `json:"colliding_name_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.CollidingNameID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "colliding_name_id is required"})
		return
	}

	if err := r.identityService.ConfirmRename(req.Context(), req.PathValue("id"), body.CollidingNameID); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}

func (r *Router) handleAddAlias(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	outcome, err := r.identityService.AddAlias(req.Context(), req.PathValue("id"), body.Text)
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	if outcome.Status == identity.AliasNeedsConfirm {
		writeJSON(w, http.StatusConflict, outcome)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (r *Router) handleConfirmAddAlias(w http.ResponseWriter, req *http.Request) {
	var body struct {
		CollidingNameID string `json:"colliding_name_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.CollidingNameID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "colliding_name_id is required"})
		return
	}

	if err := r.identityService.ConfirmAddAlias(req.Context(), req.PathValue("id"), body.CollidingNameID); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}

func (r *Router) handleMerge(w http.ResponseWriter, req *http.Request) {
	var body struct {
		SourceNameID string `json:"source_name_id"`
		TargetNameID string `json:"target_name_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.SourceNameID == "" || body.TargetNameID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_name_id and target_name_id are required"})
		return
	}

	if err := r.identityService.Merge(req.Context(), body.SourceNameID, body.TargetNameID); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}

func (r *Router) handleConsume(w http.ResponseWriter, req *http.Request) {
	var body struct {
		SourceNameID string `json:"source_name_id"`
		TargetNameID string `json:"target_name_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.SourceNameID == "" || body.TargetNameID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_name_id and target_name_id are required"})
		return
	}

	if err := r.identityService.Consume(req.Context(), body.SourceNameID, body.TargetNameID); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "consumed"})
}

func (r *Router) handleUnlinkAlias(w http.ResponseWriter, req *http.Request) {
	created, err := r.identityService.UnlinkAlias(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
