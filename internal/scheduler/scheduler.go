// Package scheduler implements the per-entity auto-sync scheduler (C6): a
// process-wide registry mapping each Source/Destination to at most one live
// periodic task, generation-tagged so a stale task can never evict a newer
// registration's slot.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
	"github.com/RobbyV2/caldav-ics-sync/internal/forwardsync"
	"github.com/RobbyV2/caldav-ics-sync/internal/reversesync"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

// EntityKind tags a registry Key; Go has no sum types, so this is the
// struct-with-discriminator form recommended for implementations without
// one (§9).
type EntityKind int

const (
	KindSource EntityKind = iota
	KindDestination
)

type Key struct {
	Kind EntityKind
	ID   int64
}

func (k Key) String() string {
	if k.Kind == KindSource {
		return fmt.Sprintf("source:%d", k.ID)
	}
	return fmt.Sprintf("destination:%d", k.ID)
}

const (
	defaultRetryBase = 30 * time.Second
	defaultRetryMax  = 300 * time.Second
	retryTries       = 5
)

type task struct {
	generation uint64
	cancel     chan struct{}
}

// Scheduler owns the registry and the generation counter. It is safe for
// concurrent use. RetryBase/RetryMax default to the spec values (30s/300s)
// but are exported so tests can shrink them without touching production
// callers.
type Scheduler struct {
	mu         sync.Mutex
	tasks      map[Key]*task
	generation atomic.Uint64

	RetryBase time.Duration
	RetryMax  time.Duration

	store         store.Store
	logger        *zap.Logger
	forwardLogger *zap.Logger
	reverseLogger *zap.Logger
}

func New(st store.Store, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tasks:         make(map[Key]*task),
		RetryBase:     defaultRetryBase,
		RetryMax:      defaultRetryMax,
		store:         st,
		logger:        logger,
		forwardLogger: logger.Named("sync.forward"),
		reverseLogger: logger.Named("sync.reverse"),
	}
}

// RegisterAll loads every Source and Destination at boot and registers each.
func (s *Scheduler) RegisterAll(ctx context.Context) error {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		s.RegisterSource(src)
	}

	destinations, err := s.store.ListDestinations(ctx)
	if err != nil {
		return err
	}
	for _, d := range destinations {
		s.RegisterDestination(d)
	}
	return nil
}

// RegisterSource cancels any existing task for this source and, if its
// sync_interval_secs is positive, spawns a new periodic forward-sync task.
func (s *Scheduler) RegisterSource(src store.Source) {
	key := Key{Kind: KindSource, ID: src.ID}
	s.register(key, src.SyncIntervalSec,
		func(ctx context.Context) error {
			return s.runForwardSyncTick(ctx, src.ID)
		},
		func(ctx context.Context, tickErr error) error {
			if tickErr != nil {
				msg := tickErr.Error()
				return s.store.UpdateSourceSyncStatus(ctx, src.ID, store.StatusError, &msg)
			}
			return s.store.UpdateSourceSyncStatus(ctx, src.ID, store.StatusOK, nil)
		},
	)
}

// RegisterDestination mirrors RegisterSource for reverse sync.
func (s *Scheduler) RegisterDestination(dst store.Destination) {
	key := Key{Kind: KindDestination, ID: dst.ID}
	s.register(key, dst.SyncIntervalSec,
		func(ctx context.Context) error {
			return s.runReverseSyncTick(ctx, dst.ID)
		},
		func(ctx context.Context, tickErr error) error {
			if tickErr != nil {
				msg := tickErr.Error()
				return s.store.UpdateDestinationSyncStatus(ctx, dst.ID, store.StatusError, &msg)
			}
			return s.store.UpdateDestinationSyncStatus(ctx, dst.ID, store.StatusOK, nil)
		},
	)
}

// register spawns a periodic task for key. writeStatus persists the tick's
// final outcome at most once per tick (not at all when the tick ends because
// the entity no longer exists), after retryTick's whole backoff
// sequence resolves — never on an individual retry attempt — so a status
// poll mid-retry never observes a stale "error" that the same tick goes on
// to overwrite with "ok".
func (s *Scheduler) register(key Key, intervalSecs int, tick func(context.Context) error, writeStatus func(context.Context, error) error) {
	s.Cancel(key)

	if intervalSecs <= 0 {
		return
	}

	g := s.generation.Add(1)
	cancel := make(chan struct{})

	s.mu.Lock()
	s.tasks[key] = &task{generation: g, cancel: cancel}
	s.mu.Unlock()

	go s.runLoop(key, g, cancel, time.Duration(intervalSecs)*time.Second, tick, writeStatus)
}

// Cancel removes key's registry entry, if any, and signals its task to
// stop. Idempotent.
func (s *Scheduler) Cancel(key Key) {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if ok {
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if ok {
		close(t.cancel)
	}
}

func (s *Scheduler) runLoop(key Key, generation uint64, cancel chan struct{}, interval time.Duration, tick func(context.Context) error, writeStatus func(context.Context, error) error) {
	defer s.teardown(key, generation)

	for {
		ctx, cancelCtx := context.WithCancel(context.Background())
		go func() {
			select {
			case <-cancel:
				cancelCtx()
			case <-ctx.Done():
			}
		}()

		runID := uuid.NewString()
		err := s.retryTick(ctx, key, tick)
		cancelCtx()

		notFound := err != nil && apperr.KindOf(err) == apperr.NotFound
		if !notFound {
			if werr := writeStatus(context.Background(), err); werr != nil {
				s.logger.Error("failed to persist sync status", zap.Stringer("key", key), zap.String("run_id", runID), zap.Error(werr))
			}
		}

		if err != nil {
			s.logger.Info("auto-sync tick failed", zap.Stringer("key", key), zap.String("run_id", runID), zap.Error(err))
			if notFound {
				return
			}
		} else {
			s.logger.Info("auto-sync tick succeeded", zap.Stringer("key", key), zap.String("run_id", runID))
		}

		select {
		case <-cancel:
			return
		case <-time.After(interval):
		}
	}
}

// retryTick runs tick with exponential backoff (base 30s, cap 300s, 5
// attempts). NotFound is treated as permanent and stops retrying within
// this tick; every other error is retried.
func (s *Scheduler) retryTick(ctx context.Context, key Key, tick func(context.Context) error) error {
	backoff := s.RetryBase
	var lastErr error
	for attempt := 0; attempt < retryTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.RetryMax {
				backoff = s.RetryMax
			}
		}

		err := tick(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if apperr.KindOf(err) == apperr.NotFound {
			return err
		}
	}
	return lastErr
}

// teardown removes the registry slot iff it still belongs to this
// generation, preventing a stale task from evicting a newer registration.
func (s *Scheduler) teardown(key Key, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[key]; ok && t.generation == generation {
		delete(s.tasks, key)
	}
}

func (s *Scheduler) runForwardSyncTick(ctx context.Context, sourceID int64) error {
	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if src == nil {
		return apperr.NotFoundf("source %d no longer exists", sourceID)
	}

	result, err := forwardsync.Run(ctx, src.CaldavURL, src.Username, src.Password, s.forwardLogger)
	if err != nil {
		return apperr.Wrap(apperr.NetworkTransient, "forward sync failed", err)
	}

	return s.store.SaveICSBlob(ctx, sourceID, result.ICS)
}

func (s *Scheduler) runReverseSyncTick(ctx context.Context, destID int64) error {
	dst, err := s.store.GetDestination(ctx, destID)
	if err != nil {
		return err
	}
	if dst == nil {
		return apperr.NotFoundf("destination %d no longer exists", destID)
	}

	_, err = reversesync.Run(ctx, dst.ICSUrl, dst.CaldavURL, dst.CalendarName, dst.Username, dst.Password, dst.SyncAll, dst.KeepLocal, s.reverseLogger)
	if err != nil {
		return apperr.Wrap(apperr.NetworkTransient, "reverse sync failed", err)
	}
	return nil
}
