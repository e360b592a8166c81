package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/scheduler"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

type fakeStore struct {
	store.Store
	sources      map[int64]store.Source
	destinations map[int64]store.Destination
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sources:      make(map[int64]store.Source),
		destinations: make(map[int64]store.Destination),
		nextID:       1,
	}
}

func (f *fakeStore) ListSources(ctx context.Context) ([]store.Source, error) {
	out := make([]store.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) GetSource(ctx context.Context, id int64) (*store.Source, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) CreateSource(ctx context.Context, in store.CreateSource) (*store.Source, error) {
	id := f.nextID
	f.nextID++
	s := store.Source{
		ID:              id,
		Name:            in.Name,
		CaldavURL:       in.CaldavURL,
		ICSPath:         in.ICSPath,
		PublicICS:       in.PublicICS,
		PublicICSPath:   in.PublicICSPath,
		SyncIntervalSec: in.SyncIntervalSec,
	}
	f.sources[id] = s
	return &s, nil
}

func (f *fakeStore) DeleteSource(ctx context.Context, id int64) (bool, error) {
	_, ok := f.sources[id]
	delete(f.sources, id)
	return ok, nil
}

func (f *fakeStore) UpdateSourceSyncStatus(ctx context.Context, id int64, status store.SyncStatus, errMsg *string) error {
	return nil
}

func (f *fakeStore) SaveICSBlob(ctx context.Context, sourceID int64, text string) error {
	return nil
}

func newTestHandler(fs *fakeStore) *Handler {
	sched := scheduler.New(fs, zap.NewNop())
	return NewHandler(fs, sched, zap.NewNop())
}

func TestCreateSourceReturnsCreatedSource(t *testing.T) {
	fs := newFakeStore()
	h := newTestHandler(fs)

	body := `{"name":"home","caldav_url":"https://cal.example.com/dav/","ics_path":"home.ics","sync_interval_secs":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.CreateSource(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got store.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "home", got.Name)
	assert.Len(t, fs.sources, 1)
}

func TestCreateSourceRejectsMissingRequiredFields(t *testing.T) {
	fs := newFakeStore()
	h := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	h.CreateSource(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSourceRemovesScheduledSource(t *testing.T) {
	fs := newFakeStore()
	h := newTestHandler(fs)
	fs.sources[1] = store.Source{ID: 1, Name: "home", SyncIntervalSec: 3600}
	h.Scheduler.RegisterSource(fs.sources[1])

	req := httptest.NewRequest(http.MethodDelete, "/api/sources/1", nil)
	req = withURLParam(req, "id", "1")
	rec := httptest.NewRecorder()

	h.DeleteSource(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, fs.sources, int64(1))
}

func TestDeleteSourceNotFoundReturns404(t *testing.T) {
	fs := newFakeStore()
	h := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodDelete, "/api/sources/99", nil)
	req = withURLParam(req, "id", "99")
	rec := httptest.NewRecorder()

	h.DeleteSource(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAlwaysOK(t *testing.T) {
	fs := newFakeStore()
	h := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthDetailedReportsSourceCount(t *testing.T) {
	fs := newFakeStore()
	fs.sources[1] = store.Source{ID: 1}
	fs.sources[2] = store.Source{ID: 2}
	h := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodGet, "/api/health/detailed", nil)
	rec := httptest.NewRecorder()

	h.HealthDetailed(rec, req)

	var resp detailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SourceCount)
	assert.True(t, resp.DBOk)
}
