package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

func scanSource(row interface{ Scan(...any) error }) (*store.Source, error) {
	var s store.Source
	var publicPath, lastSyncStatus, lastSyncError sql.NullString
	var lastSynced sql.NullString
	var createdAt string
	var publicICS int

	if err := row.Scan(&s.ID, &s.Name, &s.CaldavURL, &s.Username, &s.Password, &s.ICSPath,
		&publicPath, &publicICS, &s.SyncIntervalSec, &createdAt, &lastSynced, &lastSyncStatus, &lastSyncError); err != nil {
		return nil, err
	}

	s.PublicICSPath = stringPtr(publicPath)
	s.PublicICS = publicICS != 0
	s.LastSyncStatus = store.SyncStatus(lastSyncStatus.String)
	s.LastSyncError = stringPtr(lastSyncError)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		s.CreatedAt = t
	}
	if lastSynced.Valid {
		if t, err := time.Parse(time.RFC3339, lastSynced.String); err == nil {
			s.LastSynced = &t
		}
	}
	return &s, nil
}

const sourceColumns = `id, name, caldav_url, username, password, ics_path, public_ics_path, public_ics, sync_interval_secs, created_at, last_synced, last_sync_status, last_sync_error`

func (s *Store) ListSources(ctx context.Context) ([]store.Source, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sourceColumns+" FROM sources ORDER BY id")
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "list sources", err)
	}
	defer rows.Close()

	var out []store.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "scan source", err)
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func (s *Store) GetSource(ctx context.Context, id int64) (*store.Source, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sourceColumns+" FROM sources WHERE id = ?", id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "get source", err)
	}
	return src, nil
}

func validateSourceFields(name, caldavURL, icsPath string, interval int, publicPath *string) error {
	if err := store.NonEmpty("name", name); err != nil {
		return err
	}
	if err := store.NonEmpty("caldav_url", caldavURL); err != nil {
		return err
	}
	if err := store.NonEmpty("ics_path", icsPath); err != nil {
		return err
	}
	if err := store.NonNegativeInterval(interval); err != nil {
		return err
	}
	if publicPath != nil && *publicPath == icsPath {
		return apperr.Validationf("public_ics_path must not equal ics_path")
	}
	return nil
}

func (s *Store) CreateSource(ctx context.Context, in store.CreateSource) (*store.Source, error) {
	if err := validateSourceFields(in.Name, in.CaldavURL, in.ICSPath, in.SyncIntervalSec, in.PublicICSPath); err != nil {
		return nil, err
	}
	if err := checkNamespace(ctx, s.db, in.ICSPath, nil, nil); err != nil {
		return nil, err
	}
	if in.PublicICSPath != nil && *in.PublicICSPath != "" {
		if err := checkNamespace(ctx, s.db, *in.PublicICSPath, nil, nil); err != nil {
			return nil, err
		}
	}

	publicICSPath := in.PublicICSPath
	if !in.PublicICS {
		publicICSPath = nil // I4
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (name, caldav_url, username, password, ics_path, public_ics_path, public_ics, sync_interval_secs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.CaldavURL, in.Username, in.Password, in.ICSPath, nullableString(publicICSPath), in.PublicICS, in.SyncIntervalSec, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "insert source", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "insert source", err)
	}
	return s.GetSource(ctx, id)
}

func (s *Store) UpdateSource(ctx context.Context, id int64, in store.UpdateSource) (*store.Source, error) {
	existing, err := s.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFoundf("source %d not found", id)
	}

	name := existing.Name
	if in.Name != nil {
		name = *in.Name
	}
	caldavURL := existing.CaldavURL
	if in.CaldavURL != nil {
		caldavURL = *in.CaldavURL
	}
	username := existing.Username
	if in.Username != nil {
		username = *in.Username
	}
	password := store.ResolvePassword(existing.Password, in.Password)
	icsPath := existing.ICSPath
	if in.ICSPath != nil {
		icsPath = *in.ICSPath
	}
	publicICS := existing.PublicICS
	if in.PublicICS != nil {
		publicICS = *in.PublicICS
	}
	publicICSPath := existing.PublicICSPath
	if in.PublicICSPath != nil {
		publicICSPath = in.PublicICSPath
	}
	interval := existing.SyncIntervalSec
	if in.SyncIntervalSec != nil {
		interval = *in.SyncIntervalSec
	}

	if err := validateSourceFields(name, caldavURL, icsPath, interval, publicICSPath); err != nil {
		return nil, err
	}
	if !publicICS {
		publicICSPath = nil // I4
	}

	if icsPath != existing.ICSPath {
		if err := checkNamespace(ctx, s.db, icsPath, &id, nil); err != nil {
			return nil, err
		}
	}
	if publicICSPath != nil && (existing.PublicICSPath == nil || *publicICSPath != *existing.PublicICSPath) {
		if err := checkNamespace(ctx, s.db, *publicICSPath, &id, nil); err != nil {
			return nil, err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sources SET name=?, caldav_url=?, username=?, password=?, ics_path=?, public_ics_path=?, public_ics=?, sync_interval_secs=?
		WHERE id=?`,
		name, caldavURL, username, password, icsPath, nullableString(publicICSPath), publicICS, interval, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "update source", err)
	}
	return s.GetSource(ctx, id)
}

func (s *Store) DeleteSource(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "delete source", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "delete source", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateSourceSyncStatus(ctx context.Context, id int64, status store.SyncStatus, errMsg *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if status == store.StatusOK {
		_, err := s.db.ExecContext(ctx, `UPDATE sources SET last_synced=?, last_sync_status=?, last_sync_error=NULL WHERE id=?`, now, string(status), id)
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET last_sync_status=?, last_sync_error=? WHERE id=?`, string(status), nullableString(errMsg), id)
	return err
}
