// Package caldavclient is a minimal CalDAV client limited to the three
// operations the sync engine needs: calendar discovery, event retrieval,
// and single-resource PUT/DELETE. It deliberately does not attempt general
// WebDAV compliance.
package caldavclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the suggested per-request timeout (§5 Timeouts).
const DefaultTimeout = 60 * time.Second

type Client struct {
	HTTP     *http.Client
	Username string
	Password string
}

// New builds a client with Basic-Auth credentials. One Client is meant to be
// built per sync invocation, not cached across ticks (§9 Ownership of HTTP
// clients) since credentials may change between runs.
func New(username, password string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Username: username,
		Password: password,
	}
}

func (c *Client) authedRequest(ctx context.Context, method, u string, body []byte, contentType string) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	if c.Username != "" || c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func toggleTrailingSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return strings.TrimSuffix(base, "/")
	}
	return base + "/"
}

const propfindBody = `<?xml version="1.0" encoding="utf-8" ?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:resourcetype/>
    <D:displayname/>
  </D:prop>
</D:propfind>`

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href     string   `xml:"href"`
	Propstat propstat `xml:"propstat"`
}

type propstat struct {
	Prop prop `xml:"prop"`
}

type prop struct {
	Resourcetype resourcetype `xml:"resourcetype"`
	CalendarData string       `xml:"calendar-data"`
}

type resourcetype struct {
	Collection *struct{} `xml:"collection"`
	Calendar   *struct{} `xml:"calendar"`
}

// DiscoverCalendars issues PROPFIND against baseURL with Depth:1 and returns
// the href of every response whose resourcetype is both a DAV collection
// and a CalDAV calendar. On non-2xx/207 or a transport error it retries
// exactly once with the base URL's trailing slash toggled.
func (c *Client) DiscoverCalendars(ctx context.Context, baseURL string) ([]string, error) {
	hrefs, err := c.discoverOnce(ctx, baseURL)
	if err == nil {
		return hrefs, nil
	}
	return c.discoverOnce(ctx, toggleTrailingSlash(baseURL))
}

func (c *Client) discoverOnce(ctx context.Context, baseURL string) ([]string, error) {
	req, err := c.authedRequest(ctx, "PROPFIND", baseURL, []byte(propfindBody), "application/xml")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("caldav: propfind %s returned %d", baseURL, resp.StatusCode)
	}

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("caldav: decode multistatus: %w", err)
	}

	var hrefs []string
	for _, r := range ms.Responses {
		rt := r.Propstat.Prop.Resourcetype
		if rt.Collection != nil && rt.Calendar != nil {
			hrefs = append(hrefs, r.Href)
		}
	}
	return hrefs, nil
}

const calendarQueryBody = `<?xml version="1.0" encoding="utf-8" ?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    <D:getetag/>
    <C:calendar-data/>
  </D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT"/>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`

// ResolveHref resolves a calendar_href (absolute, origin-relative, or
// path-relative) against baseURL's scheme+authority, preserving
// non-standard ports.
func ResolveHref(baseURL, href string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(href, "/") {
		return fmt.Sprintf("%s://%s%s", base.Scheme, base.Host, href), nil
	}
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// FetchEvents issues REPORT (calendar-query) against the resolved calendar
// URL and returns the decoded calendar-data ICS text of each response.
func (c *Client) FetchEvents(ctx context.Context, baseURL, calendarHref string) ([]string, error) {
	resolved, err := ResolveHref(baseURL, calendarHref)
	if err != nil {
		return nil, err
	}

	req, err := c.authedRequest(ctx, "REPORT", resolved, []byte(calendarQueryBody), "application/xml")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("caldav: report %s returned %d", resolved, resp.StatusCode)
	}

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("caldav: decode multistatus: %w", err)
	}

	var events []string
	for _, r := range ms.Responses {
		if r.Propstat.Prop.CalendarData != "" {
			events = append(events, r.Propstat.Prop.CalendarData)
		}
	}
	return events, nil
}

func isSuccessStatus(code int) bool {
	return code == 200 || code == 201 || code == 204
}

// PutEvent uploads body as a single event resource at eventURL.
func (c *Client) PutEvent(ctx context.Context, eventURL, body string) error {
	req, err := c.authedRequest(ctx, http.MethodPut, eventURL, []byte(body), "text/calendar; charset=utf-8")
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("caldav: put %s returned %d", eventURL, resp.StatusCode)
	}
	return nil
}

// DeleteEvent removes the resource at eventURL. A 404 is treated as success
// (already gone).
func (c *Client) DeleteEvent(ctx context.Context, eventURL string) error {
	req, err := c.authedRequest(ctx, http.MethodDelete, eventURL, nil, "")
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccessStatus(resp.StatusCode) && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("caldav: delete %s returned %d", eventURL, resp.StatusCode)
	}
	return nil
}
