package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSourceRejectsReservedPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateSource(ctx, store.CreateSource{Name: "n", CaldavURL: "https://x", ICSPath: "public"})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestCreateSourceRejectsReservedPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateSource(ctx, store.CreateSource{Name: "n", CaldavURL: "https://x", ICSPath: "public/foo"})
	require.Error(t, err)
}

func TestCreateSourceRejectsDuplicatePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "mine"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, store.CreateSource{Name: "b", CaldavURL: "https://x", ICSPath: "mine"})
	require.Error(t, err)
}

func TestCreateSourceRejectsPublicPathEqualToICSPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := "cal"
	_, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: path, PublicICS: true, PublicICSPath: &path})
	require.Error(t, err)
}

func TestPublicICSFalseClearsPublicPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pub := "alias"
	src, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "mine", PublicICS: false, PublicICSPath: &pub})
	require.NoError(t, err)
	assert.Nil(t, src.PublicICSPath)
}

func TestUpdateSourceEmptyPasswordKeepsPrior(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "p", Password: "secret"})
	require.NoError(t, err)

	empty := "   "
	updated, err := s.UpdateSource(ctx, src.ID, store.UpdateSource{Password: &empty})
	require.NoError(t, err)
	assert.Equal(t, "secret", updated.Password)
}

func TestSourcePathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "p"})
	require.NoError(t, err)

	_, err = s.CreateSourcePath(ctx, src.ID, store.CreateSourcePath{Path: "foo/../bar"})
	require.Error(t, err)
}

func TestDeleteSourceCascadesToPathsAndBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "p"})
	require.NoError(t, err)
	_, err = s.CreateSourcePath(ctx, src.ID, store.CreateSourcePath{Path: "alias1"})
	require.NoError(t, err)
	require.NoError(t, s.SaveICSBlob(ctx, src.ID, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))

	ok, err := s.DeleteSource(ctx, src.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	paths, err := s.ListSourcePaths(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, paths)

	_, found, err := s.GetBlobByPath(ctx, "p")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsPublicStandardRequiresNullPublicPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pub := "alias"
	_, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "standard", PublicICS: true, PublicICSPath: &pub})
	require.NoError(t, err)

	isPublic, err := s.IsPublicStandard(ctx, "standard")
	require.NoError(t, err)
	assert.False(t, isPublic, "a custom public alias means the standard path still requires auth")

	isPublic, err = s.IsPublicStandard(ctx, "alias")
	require.NoError(t, err)
	assert.False(t, isPublic, "public_ics_path is only reachable via GetBlobByPublicPath, not is_public_standard")
}

func TestGetBlobByPublicPathServesAlias(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pub := "alias"
	src, err := s.CreateSource(ctx, store.CreateSource{Name: "a", CaldavURL: "https://x", ICSPath: "standard", PublicICS: true, PublicICSPath: &pub})
	require.NoError(t, err)
	require.NoError(t, s.SaveICSBlob(ctx, src.ID, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))

	_, found, err := s.GetBlobByPublicPath(ctx, "alias")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestFindOverlappingDestinationsExcludesSelf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d1, err := s.CreateDestination(ctx, store.CreateDestination{Name: "a", ICSUrl: "https://x/f.ics", CaldavURL: "https://dav", CalendarName: "work"})
	require.NoError(t, err)
	_, err = s.CreateDestination(ctx, store.CreateDestination{Name: "b", ICSUrl: "https://y/f.ics", CaldavURL: "https://dav", CalendarName: "work"})
	require.NoError(t, err)

	overlap, err := s.FindOverlappingDestinations(ctx, "https://dav", "work", &d1.ID)
	require.NoError(t, err)
	require.Len(t, overlap, 1)
	assert.Equal(t, "b", overlap[0].Name)
}
