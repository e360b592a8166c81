package api

import "net/http"

// openAPIDocument is a minimal static description of the HTTP surface.
// The original served a generated utoipa spec; this is a hand-maintained
// stand-in covering the same route table.
var openAPIDocument = map[string]any{
	"openapi": "3.0.3",
	"info": map[string]any{
		"title":   "caldav-ics-sync",
		"version": "1.0.0",
	},
	"paths": map[string]any{
		"/api/health":                       map[string]any{"get": map[string]any{}},
		"/api/health/detailed":              map[string]any{"get": map[string]any{}},
		"/api/sources":                      map[string]any{"get": map[string]any{}, "post": map[string]any{}},
		"/api/sources/{id}":                 map[string]any{"put": map[string]any{}, "delete": map[string]any{}},
		"/api/sources/{id}/sync":            map[string]any{"post": map[string]any{}},
		"/api/sources/{id}/status":          map[string]any{"get": map[string]any{}},
		"/api/sources/{id}/paths":           map[string]any{"get": map[string]any{}, "post": map[string]any{}},
		"/api/sources/{id}/paths/{pathID}":  map[string]any{"put": map[string]any{}, "delete": map[string]any{}},
		"/api/destinations":                 map[string]any{"get": map[string]any{}, "post": map[string]any{}},
		"/api/destinations/check-overlap":   map[string]any{"get": map[string]any{}},
		"/api/destinations/{id}":            map[string]any{"put": map[string]any{}, "delete": map[string]any{}},
		"/api/destinations/{id}/sync":       map[string]any{"post": map[string]any{}},
		"/ics/{path}":                       map[string]any{"get": map[string]any{}},
		"/ics/public/{path}":                map[string]any{"get": map[string]any{}},
	},
}

func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, openAPIDocument)
}
