package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/reversesync"
	"github.com/RobbyV2/caldav-ics-sync/internal/scheduler"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

func (h *Handler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.Store.ListDestinations(r.Context())
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	respondJSON(w, http.StatusOK, destinations)
}

func (h *Handler) CreateDestination(w http.ResponseWriter, r *http.Request) {
	var req createDestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("malformed request body"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp(err.Error()))
		return
	}

	dst, err := h.Store.CreateDestination(r.Context(), store.CreateDestination{
		Name:            req.Name,
		ICSUrl:          req.ICSUrl,
		CaldavURL:       req.CaldavURL,
		CalendarName:    req.CalendarName,
		Username:        req.Username,
		Password:        req.Password,
		SyncIntervalSec: req.SyncIntervalSec,
		SyncAll:         req.SyncAll,
		KeepLocal:       req.KeepLocal,
	})
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}

	h.Scheduler.RegisterDestination(*dst)
	respondJSON(w, http.StatusCreated, dst)
}

func (h *Handler) UpdateDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid destination id"))
		return
	}

	var req updateDestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("malformed request body"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, errResp(err.Error()))
		return
	}

	dst, err := h.Store.UpdateDestination(r.Context(), id, store.UpdateDestination{
		Name:            req.Name,
		ICSUrl:          req.ICSUrl,
		CaldavURL:       req.CaldavURL,
		CalendarName:    req.CalendarName,
		Username:        req.Username,
		Password:        req.Password,
		SyncIntervalSec: req.SyncIntervalSec,
		SyncAll:         req.SyncAll,
		KeepLocal:       req.KeepLocal,
	})
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}

	h.Scheduler.RegisterDestination(*dst)
	respondJSON(w, http.StatusOK, dst)
}

func (h *Handler) DeleteDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid destination id"))
		return
	}

	found, err := h.Store.DeleteDestination(r.Context(), id)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, errResp("destination not found"))
		return
	}

	h.Scheduler.Cancel(scheduler.Key{Kind: scheduler.KindDestination, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// SyncDestination invokes reverse sync (C4) synchronously.
func (h *Handler) SyncDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationIDParam(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errResp("invalid destination id"))
		return
	}

	dst, err := h.Store.GetDestination(r.Context(), id)
	if err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}
	if dst == nil {
		respondJSON(w, http.StatusNotFound, errResp("destination not found"))
		return
	}

	stats, err := reversesync.Run(r.Context(), dst.ICSUrl, dst.CaldavURL, dst.CalendarName, dst.Username, dst.Password, dst.SyncAll, dst.KeepLocal, h.ReverseLogger)
	if err != nil {
		msg := err.Error()
		_ = h.Store.UpdateDestinationSyncStatus(r.Context(), id, store.StatusError, &msg)
		if apperr.KindOf(err) == apperr.PartialUpload {
			respondStoreErr(w, h.Logger, err)
		} else {
			respondStoreErr(w, h.Logger, apperr.Wrap(apperr.NetworkTransient, "reverse sync failed", err))
		}
		return
	}
	if err := h.Store.UpdateDestinationSyncStatus(r.Context(), id, store.StatusOK, nil); err != nil {
		respondStoreErr(w, h.Logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uploaded": stats.Uploaded,
		"skipped":  stats.Skipped,
		"deleted":  stats.Deleted,
		"total":    stats.Total,
	})
}

type overlapEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ICSUrl    string `json:"ics_url"`
	SyncAll   bool   `json:"sync_all"`
	KeepLocal bool   `json:"keep_local"`
}

// CheckOverlap reports destinations that already target the same CalDAV
// calendar, so a caller can warn before creating a conflicting one.
func (h *Handler) CheckOverlap(w http.ResponseWriter, r *http.Request) {
	caldavURL := r.URL.Query().Get("caldav_url")
	calendarName := r.URL.Query().Get("calendar_name")
	if caldavURL == "" || calendarName == "" {
		respondJSON(w, http.StatusBadRequest, errResp("caldav_url and calendar_name are required"))
		return
	}

	var excludeID *int64
	if raw := r.URL.Query().Get("exclude_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errResp("invalid exclude_id"))
			return
		}
		excludeID = &id
	}

	dests, err := h.Store.FindOverlappingDestinations(r.Context(), caldavURL, calendarName, excludeID)
	if err != nil {
		h.Logger.Error("check overlap failed", zap.Error(err))
		respondJSON(w, http.StatusOK, map[string]any{"overlapping": []overlapEntry{}})
		return
	}

	entries := make([]overlapEntry, 0, len(dests))
	for _, d := range dests {
		entries = append(entries, overlapEntry{
			ID:        d.ID,
			Name:      d.Name,
			ICSUrl:    d.ICSUrl,
			SyncAll:   d.SyncAll,
			KeepLocal: d.KeepLocal,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"overlapping": entries})
}

func destinationIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
