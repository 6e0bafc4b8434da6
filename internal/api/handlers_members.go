package api

import (
	"net/http"

	"github.com/mirelhart/cantus/internal/identity"
)

func (r *Router) handleListMembers(w http.ResponseWriter, req *http.Request) {
	members, err := r.identityService.ListMembers(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	if members == nil {
		members = []identity.Identity{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (r *Router) handleAddMember(w http.ResponseWriter, req *http.Request) {
	groupID := req.PathValue("id")
	memberID := req.PathValue("memberId")

	if err := r.identityService.AddMember(req.Context(), groupID, memberID); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleRemoveMember(w http.ResponseWriter, req *http.Request) {
	groupID := req.PathValue("id")
	memberID := req.PathValue("memberId")

	if err := r.identityService.RemoveMember(req.Context(), groupID, memberID); err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (r *Router) handleListGroups(w http.ResponseWriter, req *http.Request) {
	groups, err := r.identityService.ListGroups(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	if groups == nil {
		groups = []identity.Identity{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (r *Router) handleResolveName(w http.ResponseWriter, req *http.Request) {
	view, err := r.identityService.Resolve(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleResolveIdentity(w http.ResponseWriter, req *http.Request) {
	view, err := r.identityService.ResolveIdentity(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
