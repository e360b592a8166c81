package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

func (h *Handler) ListSourcePaths(w http.ResponseWriter, r *http.Request) {
	sourceID, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}

	paths, err := h.Store.ListSourcePaths(r.Context(), sourceID)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	respondJSON(w, http.StatusOK, paths)
}

func (h *Handler) CreateSourcePath(w http.ResponseWriter, r *http.Request) {
	sourceID, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}

	var req createSourcePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("malformed request body"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp(err.Error()))
		return
	}

	sp, err := h.Store.CreateSourcePath(r.Context(), sourceID, store.CreateSourcePath{
		Path:     req.Path,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, sp)
}

// sourcePathBelongsTo loads path_id and confirms it belongs to source_id,
// mirroring the nested-resource mismatch check on update/delete.
func (h *Handler) sourcePathBelongsTo(w http.ResponseWriter, r *http.Request, sourceID, pathID int64) bool {
	sp, err := h.Store.GetSourcePath(r.Context(), pathID)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return false
	}
	if sp == nil || sp.SourceID != sourceID {
		respondJSON(w, http.StatusNotFound, errResp("path not found"))
		return false
	}
	return true
}

func (h *Handler) UpdateSourcePath(w http.ResponseWriter, r *http.Request) {
	sourceID, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}
	pathID, err := strconv.ParseInt(chi.URLParam(r, "pathID"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid path id"))
		return
	}
	if !h.sourcePathBelongsTo(w, r, sourceID, pathID) {
		return
	}

	var req updateSourcePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("malformed request body"))
		return
	}

	sp, err := h.Store.UpdateSourcePath(r.Context(), pathID, store.UpdateSourcePath{
		Path:     req.Path,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	respondJSON(w, http.StatusOK, sp)
}

func (h *Handler) DeleteSourcePath(w http.ResponseWriter, r *http.Request) {
	sourceID, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}
	pathID, err := strconv.ParseInt(chi.URLParam(r, "pathID"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid path id"))
		return
	}
	if !h.sourcePathBelongsTo(w, r, sourceID, pathID) {
		return
	}

	found, err := h.Store.DeleteSourcePath(r.Context(), pathID)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, errResp("path not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
