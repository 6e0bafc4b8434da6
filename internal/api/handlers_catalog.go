package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mirelhart/cantus/internal/catalog"
	"github.com/mirelhart/cantus/internal/credit"
)

func (r *Router) handleListAlbums(w http.ResponseWriter, req *http.Request) {
	albums, err := r.catalogService.ListAlbums(req.Context())
	if err != nil {
		r.logger.Error("listing albums", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if albums == nil {
		albums = []catalog.Album{}
	}
	writeJSON(w, http.StatusOK, albums)
}

func (r *Router) handleCreateAlbum(w http.ResponseWriter, req *http.Request) {
	var album catalog.Album
	if err := json.NewDecoder(req.Body).Decode(&album); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := r.catalogService.CreateAlbum(req.Context(), &album); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, album)
}

func (r *Router) handleGetAlbum(w http.ResponseWriter, req *http.Request) {
	album, err := r.catalogService.GetAlbum(req.Context(), req.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (r *Router) handleListAlbumSongs(w http.ResponseWriter, req *http.Request) {
	songs, err := r.catalogService.ListSongsByAlbum(req.Context(), req.PathValue("id"))
	if err != nil {
		r.logger.Error("listing album songs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if songs == nil {
		songs = []catalog.Song{}
	}
	writeJSON(w, http.StatusOK, songs)
}

func (r *Router) handleCreateSong(w http.ResponseWriter, req *http.Request) {
	var song catalog.Song
	if err := json.NewDecoder(req.Body).Decode(&song); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := r.catalogService.CreateSong(req.Context(), &song); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, song)
}

func (r *Router) handleGetSong(w http.ResponseWriter, req *http.Request) {
	song, err := r.catalogService.GetSong(req.Context(), req.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (r *Router) handleListRoles(w http.ResponseWriter, req *http.Request) {
	roles, err := r.creditLedger.ListRoles(req.Context())
	if err != nil {
		r.logger.Error("listing roles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if roles == nil {
		roles = []credit.Role{}
	}
	writeJSON(w, http.StatusOK, roles)
}

type creditBody struct {
	NameID string `json:"name_id"`
	RoleID string `json:"role_id"`
}

func decodeCreditBody(w http.ResponseWriter, req *http.Request) (creditBody, bool) {
	var body creditBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return body, false
	}
	if body.NameID == "" || body.RoleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name_id and role_id are required"})
		return body, false
	}
	return body, true
}

func (r *Router) handleAddSongCredit(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeCreditBody(w, req)
	if !ok {
		return
	}

	if err := r.creditLedger.AddSongCredit(req.Context(), req.PathValue("id"), body.NameID, body.RoleID); err != nil {
		writeCreditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (r *Router) handleRemoveSongCredit(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeCreditBody(w, req)
	if !ok {
		return
	}

	if err := r.creditLedger.RemoveSongCredit(req.Context(), req.PathValue("id"), body.NameID, body.RoleID); err != nil {
		writeCreditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (r *Router) handleAddAlbumCredit(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeCreditBody(w, req)
	if !ok {
		return
	}

	if err := r.creditLedger.AddAlbumCredit(req.Context(), req.PathValue("id"), body.NameID, body.RoleID); err != nil {
		writeCreditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (r *Router) handleRemoveAlbumCredit(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeCreditBody(w, req)
	if !ok {
		return
	}

	if err := r.creditLedger.RemoveAlbumCredit(req.Context(), req.PathValue("id"), body.NameID, body.RoleID); err != nil {
		writeCreditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func writeCreditError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if strings.Contains(err.Error(), "not found") {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
