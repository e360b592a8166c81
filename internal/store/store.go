// Package store defines the persistence contract (C5): CRUD for Source,
// Destination and SourcePath, the latest ICS blob per Source, and the
// path-namespace invariants that must hold after every mutation.
package store

import (
	"context"
	"time"
)

type SyncStatus string

const (
	StatusNone  SyncStatus = ""
	StatusOK    SyncStatus = "ok"
	StatusError SyncStatus = "error"
)

// Source is a CalDAV account mirrored outward as an ICS feed.
type Source struct {
	ID              int64
	Name            string
	CaldavURL       string
	Username        string
	Password        string
	ICSPath         string
	PublicICSPath   *string
	PublicICS       bool
	SyncIntervalSec int
	CreatedAt       time.Time
	LastSynced      *time.Time
	LastSyncStatus  SyncStatus
	LastSyncError   *string
}

type CreateSource struct {
	Name            string
	CaldavURL       string
	Username        string
	Password        string
	ICSPath         string
	PublicICSPath   *string
	PublicICS       bool
	SyncIntervalSec int
}

type UpdateSource struct {
	Name            *string
	CaldavURL       *string
	Username        *string
	Password        *string
	ICSPath         *string
	PublicICSPath   *string
	PublicICS       *bool
	SyncIntervalSec *int
}

// Destination is a remote ICS feed pushed into a CalDAV calendar.
type Destination struct {
	ID              int64
	Name            string
	ICSUrl          string
	CaldavURL       string
	CalendarName    string
	Username        string
	Password        string
	SyncIntervalSec int
	SyncAll         bool
	KeepLocal       bool
	CreatedAt       time.Time
	LastSynced      *time.Time
	LastSyncStatus  SyncStatus
	LastSyncError   *string
}

type CreateDestination struct {
	Name            string
	ICSUrl          string
	CaldavURL       string
	CalendarName    string
	Username        string
	Password        string
	SyncIntervalSec int
	SyncAll         bool
	KeepLocal       bool
}

type UpdateDestination struct {
	Name            *string
	ICSUrl          *string
	CaldavURL       *string
	CalendarName    *string
	Username        *string
	Password        *string
	SyncIntervalSec *int
	SyncAll         *bool
	KeepLocal       *bool
}

// SourcePath is an additional alias serving a Source's ICS blob.
type SourcePath struct {
	ID        int64
	SourceID  int64
	Path      string
	IsPublic  bool
	CreatedAt time.Time
}

type CreateSourcePath struct {
	Path     string
	IsPublic bool
}

type UpdateSourcePath struct {
	Path     *string
	IsPublic *bool
}

// Store is the full persistence contract the sync engine, scheduler and API
// depend on. Implementations must enforce the invariants in spec §3 (I1-I5)
// on every create/update and surface violations as *apperr.Error with Kind
// Validation or NotFound as appropriate.
type Store interface {
	ListSources(ctx context.Context) ([]Source, error)
	GetSource(ctx context.Context, id int64) (*Source, error)
	CreateSource(ctx context.Context, in CreateSource) (*Source, error)
	UpdateSource(ctx context.Context, id int64, in UpdateSource) (*Source, error)
	DeleteSource(ctx context.Context, id int64) (bool, error)
	UpdateSourceSyncStatus(ctx context.Context, id int64, status SyncStatus, errMsg *string) error

	ListDestinations(ctx context.Context) ([]Destination, error)
	GetDestination(ctx context.Context, id int64) (*Destination, error)
	CreateDestination(ctx context.Context, in CreateDestination) (*Destination, error)
	UpdateDestination(ctx context.Context, id int64, in UpdateDestination) (*Destination, error)
	DeleteDestination(ctx context.Context, id int64) (bool, error)
	UpdateDestinationSyncStatus(ctx context.Context, id int64, status SyncStatus, errMsg *string) error
	FindOverlappingDestinations(ctx context.Context, caldavURL, calendarName string, excludeID *int64) ([]Destination, error)

	ListSourcePaths(ctx context.Context, sourceID int64) ([]SourcePath, error)
	GetSourcePath(ctx context.Context, id int64) (*SourcePath, error)
	CreateSourcePath(ctx context.Context, sourceID int64, in CreateSourcePath) (*SourcePath, error)
	UpdateSourcePath(ctx context.Context, id int64, in UpdateSourcePath) (*SourcePath, error)
	DeleteSourcePath(ctx context.Context, id int64) (bool, error)

	SaveICSBlob(ctx context.Context, sourceID int64, text string) error
	GetBlobByPath(ctx context.Context, path string) (string, bool, error)
	GetBlobByPublicPath(ctx context.Context, path string) (string, bool, error)
	IsPublicStandard(ctx context.Context, path string) (bool, error)

	Close() error
}
