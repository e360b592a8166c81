package icsserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

type fakeStore struct {
	store.Store
	blobsByPath       map[string]string
	blobsByPublicPath map[string]string
	publicStandard    map[string]bool
}

func (f *fakeStore) GetBlobByPath(ctx context.Context, path string) (string, bool, error) {
	v, ok := f.blobsByPath[path]
	return v, ok, nil
}

func (f *fakeStore) GetBlobByPublicPath(ctx context.Context, path string) (string, bool, error) {
	v, ok := f.blobsByPublicPath[path]
	return v, ok, nil
}

func (f *fakeStore) IsPublicStandard(ctx context.Context, path string) (bool, error) {
	return f.publicStandard[path], nil
}

func newRouter(fs *fakeStore) http.Handler {
	h := New(fs, zap.NewNop())
	r := chi.NewRouter()
	r.With(RequireAuthUnlessPublicStandard(fs, "admin", "secret", zap.NewNop())).Get("/ics/*", h.ServePath)
	r.Get("/ics/public/*", h.ServePublicPath)
	return r
}

func TestServePublicPathBypassesAuth(t *testing.T) {
	fs := &fakeStore{blobsByPublicPath: map[string]string{"cal": "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}}
	r := newRouter(fs)

	req := httptest.NewRequest(http.MethodGet, "/ics/public/cal", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServePathRequiresAuthWhenNotPublicStandard(t *testing.T) {
	fs := &fakeStore{blobsByPath: map[string]string{"private": "x"}, publicStandard: map[string]bool{}}
	r := newRouter(fs)

	req := httptest.NewRequest(http.MethodGet, "/ics/private", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServePathAllowsPublicStandardWithoutAuth(t *testing.T) {
	fs := &fakeStore{
		blobsByPath:    map[string]string{"open": "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"},
		publicStandard: map[string]bool{"open": true},
	}
	r := newRouter(fs)

	req := httptest.NewRequest(http.MethodGet, "/ics/open", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServePublicPathRejectsTraversal(t *testing.T) {
	fs := &fakeStore{}
	r := newRouter(fs)

	req := httptest.NewRequest(http.MethodGet, "/ics/public/foo/../bar", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServePathNotFound(t *testing.T) {
	fs := &fakeStore{publicStandard: map[string]bool{"missing": true}}
	r := newRouter(fs)

	req := httptest.NewRequest(http.MethodGet, "/ics/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
