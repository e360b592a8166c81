package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

// pathInUse implements I1: checks whether path already appears anywhere in
// the shared namespace (sources.ics_path, sources.public_ics_path,
// source_paths.path), optionally excluding one source/source_path row (for
// updates that keep their own current value).
func pathInUse(ctx context.Context, q querier, path string, excludeSourceID, excludeSourcePathID *int64) (bool, error) {
	var excSrc int64 = -1
	if excludeSourceID != nil {
		excSrc = *excludeSourceID
	}
	var excSP int64 = -1
	if excludeSourcePathID != nil {
		excSP = *excludeSourcePathID
	}

	var count int
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sources WHERE ics_path = ? AND id != ?) +
			(SELECT COUNT(*) FROM sources WHERE public_ics_path = ? AND id != ?) +
			(SELECT COUNT(*) FROM source_paths WHERE path = ? AND id != ?)
	`, path, excSrc, path, excSrc, path, excSP).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check path namespace: %w", err)
	}
	return count > 0, nil
}

func checkNamespace(ctx context.Context, q querier, path string, excludeSourceID, excludeSourcePathID *int64) error {
	if err := store.ValidatePathReservation(path); err != nil {
		return err
	}
	inUse, err := pathInUse(ctx, q, path, excludeSourceID, excludeSourcePathID)
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, "namespace check failed", err)
	}
	if inUse {
		return apperr.Validationf("path %q is already in use", path)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
