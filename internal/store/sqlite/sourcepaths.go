package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

const sourcePathColumns = `id, source_id, path, is_public, created_at`

func scanSourcePath(row interface{ Scan(...any) error }) (*store.SourcePath, error) {
	var sp store.SourcePath
	var createdAt string
	var isPublic int
	if err := row.Scan(&sp.ID, &sp.SourceID, &sp.Path, &isPublic, &createdAt); err != nil {
		return nil, err
	}
	sp.IsPublic = isPublic != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		sp.CreatedAt = t
	}
	return &sp, nil
}

func (s *Store) ListSourcePaths(ctx context.Context, sourceID int64) ([]store.SourcePath, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sourcePathColumns+" FROM source_paths WHERE source_id = ? ORDER BY id", sourceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "list source paths", err)
	}
	defer rows.Close()

	var out []store.SourcePath
	for rows.Next() {
		sp, err := scanSourcePath(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "scan source path", err)
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

func (s *Store) GetSourcePath(ctx context.Context, id int64) (*store.SourcePath, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sourcePathColumns+" FROM source_paths WHERE id = ?", id)
	sp, err := scanSourcePath(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "get source path", err)
	}
	return sp, nil
}

func (s *Store) CreateSourcePath(ctx context.Context, sourceID int64, in store.CreateSourcePath) (*store.SourcePath, error) {
	if err := store.ValidateAliasPath(in.Path); err != nil {
		return nil, err
	}
	src, err := s.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, apperr.NotFoundf("source %d not found", sourceID)
	}
	if err := checkNamespace(ctx, s.db, in.Path, nil, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `INSERT INTO source_paths (source_id, path, is_public, created_at) VALUES (?, ?, ?, ?)`,
		sourceID, in.Path, in.IsPublic, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "insert source path", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "insert source path", err)
	}
	return s.GetSourcePath(ctx, id)
}

func (s *Store) UpdateSourcePath(ctx context.Context, id int64, in store.UpdateSourcePath) (*store.SourcePath, error) {
	existing, err := s.GetSourcePath(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	path := existing.Path
	if in.Path != nil {
		path = *in.Path
	}
	isPublic := existing.IsPublic
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	if err := store.ValidateAliasPath(path); err != nil {
		return nil, err
	}
	if path != existing.Path {
		if err := checkNamespace(ctx, s.db, path, nil, &id); err != nil {
			return nil, err
		}
	}

	_, err = s.db.ExecContext(ctx, `UPDATE source_paths SET path=?, is_public=? WHERE id=?`, path, isPublic, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "update source path", err)
	}
	return s.GetSourcePath(ctx, id)
}

func (s *Store) DeleteSourcePath(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM source_paths WHERE id = ?", id)
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "delete source path", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "delete source path", err)
	}
	return n > 0, nil
}
