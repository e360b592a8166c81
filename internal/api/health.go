package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
}

type detailedHealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SourceCount   int    `json:"source_count"`
	DBOk          bool   `json:"db_ok"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *Handler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Store.ListSources(r.Context())
	dbOk := err == nil

	status := "ok"
	if !dbOk {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, detailedHealthResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		SourceCount:   len(sources),
		DBOk:          dbOk,
	})
}
