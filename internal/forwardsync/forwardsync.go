// Package forwardsync implements the CalDAV → ICS aggregation pipeline
// (C3): discover calendars, fetch their events, and wrap them into one
// VCALENDAR blob.
package forwardsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/caldavclient"
	"github.com/RobbyV2/caldav-ics-sync/internal/icsnorm"
)

type Result struct {
	EventCount    int
	CalendarCount int
	ICS           string
}

// Run discovers every calendar under caldavURL, fetches its VEVENTs, and
// concatenates them into a single aggregated VCALENDAR. Calendars are not
// deduplicated against each other: if two discovered calendars share an
// event UID, the aggregate contains both blocks verbatim (preserved
// upstream behavior, see open questions).
//
// Each fetched calendar-data value is itself a full VCALENDAR document, not
// a bare VEVENT, so every one is run through icsnorm.ExtractEvents and only
// its VEVENT/VTIMEZONE blocks are carried into the aggregate.
func Run(ctx context.Context, caldavURL, username, password string, logger *zap.Logger) (Result, error) {
	client := caldavclient.New(username, password)

	calendars, err := client.DiscoverCalendars(ctx, caldavURL)
	if err != nil {
		return Result{}, fmt.Errorf("discover calendars: %w", err)
	}
	logger.Info("discovered calendars", zap.Int("calendar_count", len(calendars)))

	var events []string
	var vtimezones []string
	for _, href := range calendars {
		blobs, err := client.FetchEvents(ctx, caldavURL, href)
		if err != nil {
			return Result{}, fmt.Errorf("fetch events from %s: %w", href, err)
		}
		for _, blob := range blobs {
			extracted := icsnorm.ExtractEvents(blob)
			for _, uid := range extracted.UIDOrder {
				events = append(events, extracted.EventsByUID[uid]...)
			}
			vtimezones = append(vtimezones, extracted.VTimezones...)
		}
	}

	if len(events) == 0 {
		logger.Warn("forward sync found no events", zap.String("caldav_url", caldavURL), zap.Int("calendar_count", len(calendars)))
	}

	return Result{
		EventCount:    len(events),
		CalendarCount: len(calendars),
		ICS:           icsnorm.WrapVCalendar(vtimezones, events),
	}, nil
}
