// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/geotrail/internal/geo"
)

// Memory is an in-process Store. Its contents are lost when the process ends.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]Identity
	events []Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]Identity)}
}

func (m *Memory) Append(ctx context.Context, userID string, reading geo.Reading) error {
	if userID == "" {
		return ErrUserRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.users[userID]
	if !ok {
		identity = Identity{ID: userID}
	}
	m.events = append(m.events, Event{
		ID:       uuid.NewString(),
		Identity: identity,
		Reading:  reading,
	})
	return nil
}

func (m *Memory) QueryHistory(ctx context.Context, userID string, since time.Time, limit int) ([]geo.Reading, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var readings []geo.Reading
	for _, event := range m.sorted() {
		if event.Identity.ID != userID || event.At.Before(since) {
			continue
		}
		readings = append(readings, event.Reading)
		if limit > 0 && len(readings) == limit {
			break
		}
	}
	return readings, nil
}

func (m *Memory) QueryAllUsers(ctx context.Context, since time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []Event
	for _, event := range m.sorted() {
		if event.At.Before(since) {
			continue
		}
		if identity, ok := m.users[event.Identity.ID]; ok {
			event.Identity = identity
		}
		events = append(events, event)
	}
	return events, nil
}

func (m *Memory) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = slices.DeleteFunc(m.events, func(e Event) bool {
		return e.Identity.ID == userID
	})
	return nil
}

func (m *Memory) UpsertUser(ctx context.Context, identity Identity) error {
	if identity.ID == "" {
		return ErrUserRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[identity.ID] = identity
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// sorted returns a copy of the events in ascending timestamp order. Callers must hold the lock.
func (m *Memory) sorted() []Event {
	events := slices.Clone(m.events)
	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(a.Timestamp(), b.Timestamp())
	})
	return events
}
