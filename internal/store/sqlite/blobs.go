package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
)

func (s *Store) SaveICSBlob(ctx context.Context, sourceID int64, text string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ics_data (source_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sourceID, text, now)
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, "save ics blob", err)
	}
	return nil
}

// GetBlobByPath resolves path against ics_path ∪ source_paths.path
// regardless of visibility; used by the authenticated /ics/{*path} route.
func (s *Store) GetBlobByPath(ctx context.Context, path string) (string, bool, error) {
	return s.lookupBlob(ctx, `
		SELECT d.data FROM ics_data d JOIN sources s ON s.id = d.source_id WHERE s.ics_path = ?
		UNION ALL
		SELECT d.data FROM ics_data d JOIN source_paths sp ON sp.source_id = d.source_id WHERE sp.path = ?
		LIMIT 1`, path, path)
}

// GetBlobByPublicPath resolves path against public_ics_path (where
// public_ics=true) ∪ public source_paths; used by the anonymous
// /ics/public/{*path} route.
func (s *Store) GetBlobByPublicPath(ctx context.Context, path string) (string, bool, error) {
	return s.lookupBlob(ctx, `
		SELECT d.data FROM ics_data d JOIN sources s ON s.id = d.source_id WHERE s.public_ics_path = ? AND s.public_ics = 1
		UNION ALL
		SELECT d.data FROM ics_data d JOIN source_paths sp ON sp.source_id = d.source_id WHERE sp.path = ? AND sp.is_public = 1
		LIMIT 1`, path, path)
}

func (s *Store) lookupBlob(ctx context.Context, query string, args ...any) (string, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.StoreFailure, "lookup blob", err)
	}
	return data, true, nil
}

// IsPublicStandard implements the predicate shared with the auth
// middleware: true iff path equals a Source's ics_path with public_ics=true
// and public_ics_path IS NULL, or a SourcePath with is_public=true. Per the
// preserved open question, a custom public alias means the standard path
// still requires authentication.
func (s *Store) IsPublicStandard(ctx context.Context, path string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sources WHERE ics_path = ? AND public_ics = 1 AND public_ics_path IS NULL) +
			(SELECT COUNT(*) FROM source_paths WHERE path = ? AND is_public = 1)
	`, path, path).Scan(&count)
	if err != nil {
		return false, apperr.Wrap(apperr.StoreFailure, "is_public_standard", err)
	}
	return count > 0, nil
}
