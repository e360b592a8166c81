// Package reversesync implements the ICS → CalDAV push pipeline (C4):
// fetch a remote feed, diff it against the existing calendar, upload
// additions/changes, and optionally delete orphans.
package reversesync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/caldavclient"
	"github.com/RobbyV2/caldav-ics-sync/internal/icsnorm"
)

type Stats struct {
	Uploaded int
	Skipped  int
	Deleted  int
	Total    int
}

// Run fetches icsURL, diffs it against the calendar reached through
// caldavURL/calendarName, uploads changed or new events, and (unless
// keepLocal) deletes orphans no longer present upstream.
func Run(ctx context.Context, icsURL, caldavURL, calendarName, username, password string, syncAll, keepLocal bool, logger *zap.Logger) (Stats, error) {
	feed, err := fetchFeed(ctx, icsURL)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch feed %s: %w", icsURL, err)
	}

	extracted := icsnorm.ExtractEvents(feed)
	if len(extracted.EventsByUID) == 0 {
		// A remote feed returning zero events is not an error: guard against
		// wiping the destination calendar on a transient empty response.
		logger.Warn("remote feed returned zero events, skipping reverse sync", zap.String("ics_url", icsURL))
		return Stats{}, nil
	}

	base := effectiveBase(caldavURL, calendarName)
	client := caldavclient.New(username, password)

	existingRaw, err := client.FetchEvents(ctx, base, base)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch existing events: %w", err)
	}
	existing := groupByUID(existingRaw)

	now := time.Now().UTC()
	uploadSet := selectUploadSet(extracted, syncAll, now)

	uploaded, skipped, errs := uploadLoop(ctx, client, base, extracted, existing, uploadSet)
	stats := Stats{Uploaded: uploaded, Skipped: skipped, Total: len(uploadSet)}
	logger.Info("reverse sync uploaded events",
		zap.Int("uploaded", uploaded), zap.Int("skipped", skipped), zap.Int("errors", errs))

	if errs > 0 {
		return stats, apperr.Wrap(apperr.PartialUpload, fmt.Sprintf("Uploaded %d events but %d failed", uploaded, errs), nil)
	}

	if !keepLocal {
		deleted, err := deleteOrphans(ctx, client, base, extracted, existing, syncAll, now, logger)
		if err != nil {
			return stats, err
		}
		stats.Deleted = deleted
		logger.Info("reverse sync deleted orphaned events", zap.Int("deleted", deleted))
	}

	return stats, nil
}

func fetchFeed(ctx context.Context, icsURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, icsURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// effectiveBase computes the calendar base URL per §4.4 step 2: strip
// trailing slash, then append calendarName unless caldavURL already ends
// with it.
func effectiveBase(caldavURL, calendarName string) string {
	base := strings.TrimSuffix(caldavURL, "/")
	if strings.HasSuffix(base, "/"+calendarName) {
		return base + "/"
	}
	return base + "/" + calendarName + "/"
}

func groupByUID(blocks []string) map[string][]string {
	groups := make(map[string][]string)
	for _, b := range blocks {
		ex := icsnorm.ExtractEvents(b)
		for uid, blks := range ex.EventsByUID {
			groups[uid] = append(groups[uid], blks...)
		}
	}
	return groups
}

func selectUploadSet(extracted icsnorm.Extracted, syncAll bool, now time.Time) []string {
	if syncAll {
		return append([]string(nil), extracted.UIDOrder...)
	}
	var out []string
	for _, uid := range extracted.UIDOrder {
		if icsnorm.GroupHasFuture(extracted.EventsByUID[uid], now) {
			out = append(out, uid)
		}
	}
	return out
}

func uploadLoop(ctx context.Context, client *caldavclient.Client, base string, extracted icsnorm.Extracted, existing map[string][]string, uploadSet []string) (uploaded, skipped, errs int) {
	for _, uid := range uploadSet {
		remote, exists := existing[uid]
		if exists && icsnorm.GroupsEqual(remote, extracted.EventsByUID[uid]) {
			skipped++
			continue
		}

		body := icsnorm.WrapVCalendar(extracted.VTimezones, extracted.EventsByUID[uid])
		eventURL := base + uid + ".ics"
		if err := client.PutEvent(ctx, eventURL, body); err != nil {
			errs++
			continue
		}
		uploaded++
	}
	return
}

func deleteOrphans(ctx context.Context, client *caldavclient.Client, base string, extracted icsnorm.Extracted, existing map[string][]string, syncAll bool, now time.Time, logger *zap.Logger) (int, error) {
	feedUIDs := make(map[string]bool, len(extracted.UIDOrder))
	for _, uid := range extracted.UIDOrder {
		feedUIDs[uid] = true
	}

	deleted := 0
	for uid, blocks := range existing {
		if feedUIDs[uid] {
			continue
		}
		if !syncAll && !icsnorm.GroupHasFuture(blocks, now) {
			continue
		}
		eventURL := base + uid + ".ics"
		// Non-success statuses (other than 404, already handled inside
		// DeleteEvent) are logged here; they do not fail the overall
		// operation.
		if err := client.DeleteEvent(ctx, eventURL); err != nil {
			logger.Warn("failed to delete orphaned event", zap.String("uid", uid), zap.Error(err))
			continue
		}
		deleted++
		logger.Info("deleted orphaned event", zap.String("uid", uid))
	}
	return deleted, nil
}
