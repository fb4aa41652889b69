// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package tracker keeps the position state of a single user session. It acquires readings on
// request, records them into the position history when the user moved and hands them to the
// store for persistence.
package tracker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/positioning"
	"github.com/wneessen/geotrail/internal/store"
)

const (
	// DefaultHistoryLimit is the maximum number of persisted readings loaded on mount.
	DefaultHistoryLimit = 100

	persistTimeout = time.Second * 10
)

// Status is the lifecycle status of a Tracker.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusUpdating Status = "updating"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

// State is a snapshot of the tracker state.
type State struct {
	Status Status
	// Position is nil until the first successful acquisition.
	Position  *geo.GeoPoint
	Accuracy  float64
	UpdatedAt time.Time
	Loading   bool
	Updating  bool
	Err       error
	History   []geo.HistoryPoint
}

// Options configures a Tracker.
type Options struct {
	Acquire positioning.Options
	// HistoryDays is the number of days of persisted history loaded on mount. Zero loads the
	// history of the current day.
	HistoryDays  int
	HistoryLimit int
}

// DefaultOptions returns the default acquisition options and one day of history.
func DefaultOptions() Options {
	return Options{
		Acquire:      positioning.DefaultOptions(),
		HistoryDays:  1,
		HistoryLimit: DefaultHistoryLimit,
	}
}

// Tracker owns the State of one session. Only one acquisition is in flight at any time.
type Tracker struct {
	source   positioning.Source
	store    store.Store
	identity *store.Identity
	logger   *logger.Logger
	opts     Options

	mu       sync.RWMutex
	state    State
	sem      chan struct{}
	persist  sync.WaitGroup
	onChange func(State)
	now      func() time.Time
}

// New returns a tracker for the given source. Without identity nothing is loaded or persisted.
func New(source positioning.Source, st store.Store, identity *store.Identity, log *logger.Logger,
	opts Options,
) *Tracker {
	return &Tracker{
		source:   source,
		store:    st,
		identity: identity,
		logger:   log,
		opts:     opts,
		state:    State{Status: StatusIdle, Loading: true},
		sem:      make(chan struct{}, 1),
		now:      time.Now,
	}
}

// OnChange registers fn to be called with a snapshot after every state transition.
func (t *Tracker) OnChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Mount checks the positioning capability, loads the persisted history of the user and
// performs the initial acquisition. A missing capability is returned as error and leaves the
// tracker in StatusError; acquisition failures are only reflected in the state.
func (t *Tracker) Mount(ctx context.Context) error {
	t.transition(func(s *State) {
		s.Status = StatusLoading
		s.Loading = true
	})

	if err := positioning.Probe(ctx, t.source); err != nil {
		t.logger.Error("no positioning source available", logger.Err(err))
		t.transition(func(s *State) {
			s.Status = StatusError
			s.Loading = false
			s.Updating = false
			s.Err = err
		})
		return err
	}

	if t.identity != nil && t.store != nil {
		t.loadHistory(ctx)
	}

	t.Update(ctx)
	return nil
}

// Update acquires a new reading. It returns false without doing anything if an acquisition
// is already in flight.
func (t *Tracker) Update(ctx context.Context) bool {
	select {
	case t.sem <- struct{}{}:
	default:
		t.logger.Debug("acquisition already in flight, ignoring update request")
		return false
	}
	defer func() { <-t.sem }()

	t.transition(func(s *State) {
		s.Status = StatusUpdating
		s.Updating = true
	})

	reading, err := positioning.Acquire(ctx, t.source, t.opts.Acquire)
	if err != nil {
		t.logger.Warn("failed to acquire position", logger.Err(err))
		t.transition(func(s *State) {
			s.Status = StatusError
			s.Loading = false
			s.Updating = false
			s.Err = err
		})
		return true
	}

	if t.identity != nil && t.store != nil {
		t.persistReading(ctx, reading)
	}

	t.transition(func(s *State) {
		position := reading.Position
		s.Status = StatusReady
		s.Position = &position
		s.Accuracy = reading.Accuracy
		s.UpdatedAt = reading.At
		s.Loading = false
		s.Updating = false
		s.Err = nil

		if !geo.ShouldRecord(geo.Tail(s.History), reading) {
			t.logger.Debug("position did not change significantly, not recording",
				"position", reading.Position.String())
			return
		}
		s.History = append(s.History, reading.Point())
		t.logger.Debug("recorded position", "position", reading.Position.String(),
			"accuracy", reading.Accuracy)
	})
	return true
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot()
}

// Wait blocks until all pending persistence calls have returned.
func (t *Tracker) Wait() {
	t.persist.Wait()
}

// ClearHistory removes the in-memory history and, with an identity present, the persisted
// history of the user. The in-memory history is kept if the store fails.
func (t *Tracker) ClearHistory(ctx context.Context) error {
	if t.identity != nil && t.store != nil {
		if err := t.store.Clear(ctx, t.identity.ID); err != nil {
			return fmt.Errorf("failed to clear persisted history: %w", err)
		}
	}
	t.transition(func(s *State) {
		s.History = nil
	})
	return nil
}

// DailyWindow returns the start of the local day of now.
func DailyWindow(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}

func (t *Tracker) historySince() time.Time {
	now := t.now()
	if t.opts.HistoryDays <= 0 {
		return DailyWindow(now)
	}
	return now.AddDate(0, 0, -t.opts.HistoryDays)
}

// loadHistory merges the persisted history into the in-memory history. Failures are logged
// only, the session continues with whatever history it already has.
func (t *Tracker) loadHistory(ctx context.Context) {
	limit := t.opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	readings, err := t.store.QueryHistory(ctx, t.identity.ID, t.historySince(), limit)
	if err != nil {
		t.logger.Error("failed to load location history", logger.Err(err))
		return
	}
	if len(readings) == 0 {
		return
	}

	t.transition(func(s *State) {
		s.History = mergeHistory(s.History, readings)
	})
	t.logger.Debug("loaded location history", "points", len(readings))
}

// persistReading stores the reading in the background. Errors are logged and never affect
// the tracker state.
func (t *Tracker) persistReading(ctx context.Context, reading geo.Reading) {
	userID := t.identity.ID
	ctx = context.WithoutCancel(ctx)
	t.persist.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := t.store.Append(ctx, userID, reading); err != nil {
			t.logger.Error("failed to persist location", logger.Err(err))
			return
		}
		t.logger.Debug("persisted location", "position", reading.Position.String())
	})
}

// transition mutates the state under the lock and notifies the change handler afterwards.
func (t *Tracker) transition(fn func(*State)) {
	t.mu.Lock()
	fn(&t.state)
	snapshot := t.snapshot()
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}

func (t *Tracker) snapshot() State {
	state := t.state
	state.History = slices.Clone(t.state.History)
	if t.state.Position != nil {
		position := *t.state.Position
		state.Position = &position
	}
	return state
}

// mergeHistory combines the existing history with persisted readings in ascending timestamp
// order. Points with identical timestamp and position are kept once.
func mergeHistory(history []geo.HistoryPoint, readings []geo.Reading) []geo.HistoryPoint {
	merged := slices.Clone(history)
	for _, reading := range readings {
		merged = append(merged, reading.Point())
	}
	slices.SortStableFunc(merged, func(a, b geo.HistoryPoint) int {
		return cmp.Compare(a.Timestamp(), b.Timestamp())
	})
	return slices.CompactFunc(merged, func(a, b geo.HistoryPoint) bool {
		return a.Timestamp() == b.Timestamp() && a.Position == b.Position
	})
}

// IsCapabilityError reports whether err means the host has no positioning source.
func IsCapabilityError(err error) bool {
	return errors.Is(err, positioning.ErrNoCapability)
}
