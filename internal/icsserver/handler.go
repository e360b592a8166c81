// Package icsserver implements the two ICS-serving routes (C7): the
// authenticated general path and the always-anonymous /public/ path.
package icsserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

type Handler struct {
	Store  store.Store
	Logger *zap.Logger
}

func New(st store.Store, logger *zap.Logger) *Handler {
	return &Handler{Store: st, Logger: logger}
}

// ServePath handles GET /ics/{*path}. Authentication (when
// !IsPublicStandard) is enforced by middleware upstream; this handler only
// resolves the blob.
func (h *Handler) ServePath(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	data, found, err := h.Store.GetBlobByPath(r.Context(), path)
	if err != nil {
		h.Logger.Error("serve ics by path failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar")
	w.Write([]byte(data))
}

// ServePublicPath handles GET /ics/public/{*path}. It is always anonymous
// and rejects any path containing ".." or beginning with "/".
func (h *Handler) ServePublicPath(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	data, found, err := h.Store.GetBlobByPublicPath(r.Context(), path)
	if err != nil {
		h.Logger.Error("serve ics by public path failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar")
	w.Write([]byte(data))
}

// RequireAuthUnlessPublicStandard is Basic-Auth middleware for the
// authenticated /ics/{*path} route; it exempts requests whose path the
// store's IsPublicStandard predicate accepts, matching §4.7's requirement
// that handler and middleware agree.
func RequireAuthUnlessPublicStandard(st store.Store, username, password string, logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireAuth(st, username, password, false, logger)
}

// RequireAuth is RequireAuthUnlessPublicStandard generalized to accept a
// password stored as an Argon2id hash instead of plaintext.
func RequireAuth(st store.Store, username, password string, passwordIsHash bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := chi.URLParam(r, "*")

			isPublic, err := st.IsPublicStandard(r.Context(), path)
			if err != nil {
				logger.Error("is_public_standard check failed", zap.String("path", path), zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if isPublic {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 || !verifyPassword(password, pass, passwordIsHash) {
				w.Header().Set("WWW-Authenticate", `Basic realm="caldav-ics-sync"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
