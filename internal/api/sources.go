package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/forwardsync"
	"github.com/RobbyV2/caldav-ics-sync/internal/scheduler"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Store.ListSources(r.Context())
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	respondJSON(w, http.StatusOK, sources)
}

func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("malformed request body"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp(err.Error()))
		return
	}

	src, err := h.Store.CreateSource(r.Context(), store.CreateSource{
		Name:            req.Name,
		CaldavURL:       req.CaldavURL,
		Username:        req.Username,
		Password:        req.Password,
		ICSPath:         req.ICSPath,
		PublicICSPath:   req.PublicICSPath,
		PublicICS:       req.PublicICS,
		SyncIntervalSec: req.SyncIntervalSec,
	})
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}

	h.Scheduler.RegisterSource(*src)
	respondJSON(w, http.StatusCreated, src)
}

func (h *Handler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}

	var req updateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("malformed request body"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp(err.Error()))
		return
	}

	src, err := h.Store.UpdateSource(r.Context(), id, store.UpdateSource{
		Name:            req.Name,
		CaldavURL:       req.CaldavURL,
		Username:        req.Username,
		Password:        req.Password,
		ICSPath:         req.ICSPath,
		PublicICSPath:   req.PublicICSPath,
		PublicICS:       req.PublicICS,
		SyncIntervalSec: req.SyncIntervalSec,
	})
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}

	h.Scheduler.RegisterSource(*src)
	respondJSON(w, http.StatusOK, src)
}

func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}

	found, err := h.Store.DeleteSource(r.Context(), id)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, errResp("source not found"))
		return
	}

	h.Scheduler.Cancel(scheduler.Key{Kind: scheduler.KindSource, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// SyncSource invokes forward sync (C3) synchronously, independent of any
// scheduled task for the same source (§5 — no mutual exclusion).
func (h *Handler) SyncSource(w http.ResponseWriter, r *http.Request) {
	id, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}

	src, err := h.Store.GetSource(r.Context(), id)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if src == nil {
		respondJSON(w, http.StatusNotFound, errResp("source not found"))
		return
	}

	result, err := forwardsync.Run(r.Context(), src.CaldavURL, src.Username, src.Password, h.ForwardLogger)
	if err != nil {
		msg := err.Error()
		_ = h.Store.UpdateSourceSyncStatus(r.Context(), id, store.StatusError, &msg)
		respondStoreErr(w, h.Logger, apperr.Wrap(apperr.NetworkTransient, "forward sync failed", err))
		return
	}

	if err := h.Store.SaveICSBlob(r.Context(), id, result.ICS); err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if err := h.Store.UpdateSourceSyncStatus(r.Context(), id, store.StatusOK, nil); err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"event_count":    result.EventCount,
		"calendar_count": result.CalendarCount,
	})
}

func (h *Handler) SourceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := sourceIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid source id"))
		return
	}

	src, err := h.Store.GetSource(r.Context(), id)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if src == nil {
		respondJSON(w, http.StatusNotFound, errResp("source not found"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"last_synced":      src.LastSynced,
		"last_sync_status": src.LastSyncStatus,
		"last_sync_error":  src.LastSyncError,
	})
}

func sourceIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
