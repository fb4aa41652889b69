// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package timeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/store"
)

// ErrUnauthorized is returned when a non-admin requests the timelines of all users.
var ErrUnauthorized = errors.New("admin privileges required")

// LatestPosition is the most recent known position of a user.
type LatestPosition struct {
	Identity store.Identity
	Point    geo.HistoryPoint
}

// Admin serves the admin-only views over the events of all users.
type Admin struct {
	store store.Store
	authz store.Authorizer
	now   func() time.Time
}

// NewAdmin returns an Admin reading from st and authorizing requests through authz.
func NewAdmin(st store.Store, authz store.Authorizer) *Admin {
	return &Admin{
		store: st,
		authz: authz,
		now:   time.Now,
	}
}

// Timelines returns the timelines of all users with events in the last days.
func (a *Admin) Timelines(ctx context.Context, requester string, days int) ([]UserTimeline, error) {
	if err := a.authorize(ctx, requester); err != nil {
		return nil, err
	}
	window := WindowForDays(a.now(), days)
	events, err := a.store.QueryAllUsers(ctx, window.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return Aggregate(events, window), nil
}

// LatestPositions returns the most recent position of every user that ever reported one.
func (a *Admin) LatestPositions(ctx context.Context, requester string) ([]LatestPosition, error) {
	if err := a.authorize(ctx, requester); err != nil {
		return nil, err
	}
	events, err := a.store.QueryAllUsers(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	timelines := Aggregate(events, Window{})
	positions := make([]LatestPosition, 0, len(timelines))
	for _, tl := range timelines {
		positions = append(positions, LatestPosition{Identity: tl.Identity, Point: *tl.LastLocation})
	}
	return positions, nil
}

// SelectUser re-queries the events of userID for the last days and returns a copy of
// timelines in which only the points and the latest location of that user are replaced. The
// entry is kept even if the user has no events in the window. A user not present in timelines
// is ignored and timelines is returned unchanged.
func (a *Admin) SelectUser(ctx context.Context, requester string, timelines []UserTimeline, userID string,
	days int,
) ([]UserTimeline, error) {
	if userID == "" {
		return nil, store.ErrUserRequired
	}
	if err := a.authorize(ctx, requester); err != nil {
		return nil, err
	}

	result := slices.Clone(timelines)
	idx := slices.IndexFunc(result, func(tl UserTimeline) bool {
		return tl.Identity.ID == userID
	})
	if idx < 0 {
		return result, nil
	}

	window := WindowForDays(a.now(), days)
	readings, err := a.store.QueryHistory(ctx, userID, window.Start, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of user %q: %w", userID, err)
	}
	points := make([]geo.HistoryPoint, 0, len(readings))
	for _, reading := range readings {
		points = append(points, reading.Point())
	}
	result[idx].Points = points
	result[idx].LastLocation = latest(points)
	return result, nil
}

func (a *Admin) authorize(ctx context.Context, requester string) error {
	if requester == "" {
		return ErrUnauthorized
	}
	if a.authz == nil {
		return ErrUnauthorized
	}
	isAdmin, err := a.authz.IsAdmin(ctx, requester)
	if err != nil {
		return fmt.Errorf("failed to check admin privileges: %w", err)
	}
	if !isAdmin {
		return ErrUnauthorized
	}
	return nil
}
