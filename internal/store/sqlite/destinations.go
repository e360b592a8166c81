package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

const destColumns = `id, name, ics_url, caldav_url, calendar_name, username, password, sync_interval_secs, sync_all, keep_local, created_at, last_synced, last_sync_status, last_sync_error`

func scanDestination(row interface{ Scan(...any) error }) (*store.Destination, error) {
	var d store.Destination
	var lastSynced, lastSyncStatus, lastSyncError sql.NullString
	var createdAt string
	var syncAll, keepLocal int

	if err := row.Scan(&d.ID, &d.Name, &d.ICSUrl, &d.CaldavURL, &d.CalendarName, &d.Username, &d.Password,
		&d.SyncIntervalSec, &syncAll, &keepLocal, &createdAt, &lastSynced, &lastSyncStatus, &lastSyncError); err != nil {
		return nil, err
	}
	d.SyncAll = syncAll != 0
	d.KeepLocal = keepLocal != 0
	d.LastSyncStatus = store.SyncStatus(lastSyncStatus.String)
	d.LastSyncError = stringPtr(lastSyncError)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		d.CreatedAt = t
	}
	if lastSynced.Valid {
		if t, err := time.Parse(time.RFC3339, lastSynced.String); err == nil {
			d.LastSynced = &t
		}
	}
	return &d, nil
}

func (s *Store) ListDestinations(ctx context.Context) ([]store.Destination, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+destColumns+" FROM destinations ORDER BY id")
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "list destinations", err)
	}
	defer rows.Close()

	var out []store.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "scan destination", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) GetDestination(ctx context.Context, id int64) (*store.Destination, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+destColumns+" FROM destinations WHERE id = ?", id)
	d, err := scanDestination(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "get destination", err)
	}
	return d, nil
}

func validateDestFields(name, icsURL, caldavURL, calendarName string, interval int) error {
	if err := store.NonEmpty("name", name); err != nil {
		return err
	}
	if err := store.NonEmpty("ics_url", icsURL); err != nil {
		return err
	}
	if err := store.NonEmpty("caldav_url", caldavURL); err != nil {
		return err
	}
	if err := store.NonEmpty("calendar_name", calendarName); err != nil {
		return err
	}
	return store.NonNegativeInterval(interval)
}

func (s *Store) CreateDestination(ctx context.Context, in store.CreateDestination) (*store.Destination, error) {
	if err := validateDestFields(in.Name, in.ICSUrl, in.CaldavURL, in.CalendarName, in.SyncIntervalSec); err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO destinations (name, ics_url, caldav_url, calendar_name, username, password, sync_interval_secs, sync_all, keep_local, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.ICSUrl, in.CaldavURL, in.CalendarName, in.Username, in.Password, in.SyncIntervalSec, in.SyncAll, in.KeepLocal, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "insert destination", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "insert destination", err)
	}
	return s.GetDestination(ctx, id)
}

func (s *Store) UpdateDestination(ctx context.Context, id int64, in store.UpdateDestination) (*store.Destination, error) {
	existing, err := s.GetDestination(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFoundf("destination %d not found", id)
	}

	name := existing.Name
	if in.Name != nil {
		name = *in.Name
	}
	icsURL := existing.ICSUrl
	if in.ICSUrl != nil {
		icsURL = *in.ICSUrl
	}
	caldavURL := existing.CaldavURL
	if in.CaldavURL != nil {
		caldavURL = *in.CaldavURL
	}
	calendarName := existing.CalendarName
	if in.CalendarName != nil {
		calendarName = *in.CalendarName
	}
	username := existing.Username
	if in.Username != nil {
		username = *in.Username
	}
	password := store.ResolvePassword(existing.Password, in.Password)
	interval := existing.SyncIntervalSec
	if in.SyncIntervalSec != nil {
		interval = *in.SyncIntervalSec
	}
	syncAll := existing.SyncAll
	if in.SyncAll != nil {
		syncAll = *in.SyncAll
	}
	keepLocal := existing.KeepLocal
	if in.KeepLocal != nil {
		keepLocal = *in.KeepLocal
	}

	if err := validateDestFields(name, icsURL, caldavURL, calendarName, interval); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE destinations SET name=?, ics_url=?, caldav_url=?, calendar_name=?, username=?, password=?, sync_interval_secs=?, sync_all=?, keep_local=?
		WHERE id=?`,
		name, icsURL, caldavURL, calendarName, username, password, interval, syncAll, keepLocal, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "update destination", err)
	}
	return s.GetDestination(ctx, id)
}

func (s *Store) DeleteDestination(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM destinations WHERE id = ?", id)
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "delete destination", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "delete destination", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateDestinationSyncStatus(ctx context.Context, id int64, status store.SyncStatus, errMsg *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if status == store.StatusOK {
		_, err := s.db.ExecContext(ctx, `UPDATE destinations SET last_synced=?, last_sync_status=?, last_sync_error=NULL WHERE id=?`, now, string(status), id)
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE destinations SET last_sync_status=?, last_sync_error=? WHERE id=?`, string(status), nullableString(errMsg), id)
	return err
}

func (s *Store) FindOverlappingDestinations(ctx context.Context, caldavURL, calendarName string, excludeID *int64) ([]store.Destination, error) {
	var exclude int64 = -1
	if excludeID != nil {
		exclude = *excludeID
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+destColumns+` FROM destinations WHERE caldav_url = ? AND calendar_name = ? AND id != ?`,
		caldavURL, calendarName, exclude)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "find overlapping destinations", err)
	}
	defer rows.Close()

	var out []store.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "scan destination", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
