package caldavclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multistatusCalendars = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/calendars/user/home/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/><C:calendar/></D:resourcetype>
      </D:prop>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/calendars/user/inbox/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/></D:resourcetype>
      </D:prop>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestDiscoverCalendarsFiltersByResourcetype(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "1", r.Header.Get("Depth"))
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(multistatusCalendars))
	}))
	defer srv.Close()

	c := New("user", "pass")
	hrefs, err := c.DiscoverCalendars(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, hrefs, 1)
	assert.Equal(t, "/calendars/user/home/", hrefs[0])
}

func TestDiscoverCalendarsRetriesWithToggledSlash(t *testing.T) {
	var gotPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		if len(gotPaths) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(multistatusCalendars))
	}))
	defer srv.Close()

	c := New("user", "pass")
	_, err := c.DiscoverCalendars(context.Background(), srv.URL+"/dav")
	require.NoError(t, err)
	require.Len(t, gotPaths, 2)
	assert.NotEqual(t, gotPaths[0], gotPaths[1])
}

func TestFetchEventsDecodesCalendarData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "REPORT", r.Method)
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/cal/ev1.ics</D:href>
    <D:propstat>
      <D:prop>
        <C:calendar-data>BEGIN:VEVENT
UID:ev1
END:VEVENT</C:calendar-data>
      </D:prop>
    </D:propstat>
  </D:response>
</D:multistatus>`))
	}))
	defer srv.Close()

	c := New("", "")
	events, err := c.FetchEvents(context.Background(), srv.URL, "/cal/")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0], "UID:ev1")
}

func TestResolveHrefAbsolutePath(t *testing.T) {
	got, err := ResolveHref("https://example.com:8443/base/", "/calendars/x/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443/calendars/x/", got)
}

func TestResolveHrefRelative(t *testing.T) {
	got, err := ResolveHref("https://example.com/base/", "sub/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/base/sub/", got)
}

func TestPutEventTreats2xxAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	c := New("u", "p")
	err := c.PutEvent(context.Background(), srv.URL+"/x.ics", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	assert.NoError(t, err)
}

func TestDeleteEventTreats404AsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := New("u", "p")
	err := c.DeleteEvent(context.Background(), srv.URL+"/gone.ics")
	assert.NoError(t, err)
}
