package reversesync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sameEvent = "BEGIN:VEVENT\r\nUID:uid-same\r\nDTSTAMP:20260101T000000Z\r\nSUMMARY:Same\r\nEND:VEVENT\r\n"
const newEvent = "BEGIN:VEVENT\r\nUID:uid-new\r\nDTSTAMP:20260101T000000Z\r\nSUMMARY:New\r\nEND:VEVENT\r\n"

func feedServer(t *testing.T, feed string, existing string, puts *int, deletes *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/feed.ics":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(feed))
		case r.Method == "REPORT":
			w.WriteHeader(http.StatusMultiStatus)
			w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response><D:propstat><D:prop><C:calendar-data>` + existing + `</C:calendar-data></D:prop></D:propstat></D:response>
</D:multistatus>`))
		case r.Method == http.MethodPut:
			if puts != nil {
				*puts++
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodDelete:
			if deletes != nil {
				*deletes++
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestRunSkipsIdenticalUploadsNew(t *testing.T) {
	var puts, deletes int
	feed := "BEGIN:VCALENDAR\r\n" + sameEvent + newEvent + "END:VCALENDAR\r\n"
	existing := sameEvent
	srv := feedServer(t, feed, existing, &puts, &deletes)
	defer srv.Close()

	stats, err := Run(context.Background(), srv.URL+"/feed.ics", srv.URL, "cal", "u", "p", true, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, puts)
}

func TestRunFeedEmptyGuardSkipsEntirely(t *testing.T) {
	var puts, deletes int
	srv := feedServer(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", "", &puts, &deletes)
	defer srv.Close()

	stats, err := Run(context.Background(), srv.URL+"/feed.ics", srv.URL, "cal", "u", "p", true, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Equal(t, 0, puts)
	assert.Equal(t, 0, deletes)
}

func TestRunIdempotentSecondRunUploadsNothing(t *testing.T) {
	var puts, deletes int
	feed := "BEGIN:VCALENDAR\r\n" + sameEvent + "END:VCALENDAR\r\n"
	srv := feedServer(t, feed, sameEvent, &puts, &deletes)
	defer srv.Close()

	stats, err := Run(context.Background(), srv.URL+"/feed.ics", srv.URL, "cal", "u", "p", true, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Uploaded)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Deleted)
}

func TestEffectiveBaseAppendsCalendarNameWhenAbsent(t *testing.T) {
	assert.Equal(t, "https://dav.example.com/cal/", effectiveBase("https://dav.example.com", "cal"))
}

func TestEffectiveBaseReusesCaldavURLWhenAlreadySuffixed(t *testing.T) {
	assert.Equal(t, "https://dav.example.com/cal/", effectiveBase("https://dav.example.com/cal", "cal"))
}

func TestDeleteOrphansRemovesUIDsMissingFromFeed(t *testing.T) {
	var puts, deletes int
	feed := "BEGIN:VCALENDAR\r\n" + newEvent + "END:VCALENDAR\r\n"
	srv := feedServer(t, feed, sameEvent, &puts, &deletes)
	defer srv.Close()

	stats, err := Run(context.Background(), srv.URL+"/feed.ics", srv.URL, "cal", "u", "p", true, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 1, deletes)
}

func TestKeepLocalSuppressesDeletion(t *testing.T) {
	var puts, deletes int
	feed := "BEGIN:VCALENDAR\r\n" + newEvent + "END:VCALENDAR\r\n"
	srv := feedServer(t, feed, sameEvent, &puts, &deletes)
	defer srv.Close()

	stats, err := Run(context.Background(), srv.URL+"/feed.ics", srv.URL, "cal", "u", "p", true, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, 0, deletes)
}
