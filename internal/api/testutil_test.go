package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// withURLParam injects a chi route param into req's context so handlers
// under test can read it via chi.URLParam without a live router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
