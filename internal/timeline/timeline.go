// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package timeline reconstructs per user location timelines from the flat event stream of
// the store.
package timeline

import (
	"time"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/store"
)

// Window selects the events taken at or after Start. The zero Window selects all events.
type Window struct {
	Start time.Time
}

// Contains reports whether t lies within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start)
}

// WindowForDays returns the window covering the last days*24 hours before now. Values below
// one are treated as one day.
func WindowForDays(now time.Time, days int) Window {
	days = max(days, 1)
	return Window{Start: now.Add(-time.Duration(days) * 24 * time.Hour)}
}

// UserTimeline is the ordered location history of a single user.
type UserTimeline struct {
	Identity store.Identity
	Points   []geo.HistoryPoint
	// LastLocation is the point with the highest timestamp, nil without points.
	LastLocation *geo.HistoryPoint
}

// Aggregate groups the events within window by user. Users appear in the order of their first
// event, points keep the order of the events. Callers pass events in ascending timestamp order
// when the points need to be chronological. Users without events in the window are omitted.
// The input is not modified.
func Aggregate(events []store.Event, window Window) []UserTimeline {
	var order []string
	groups := make(map[string]*UserTimeline)

	for _, event := range events {
		if !window.Contains(event.At) {
			continue
		}
		group, ok := groups[event.Identity.ID]
		if !ok {
			group = &UserTimeline{Identity: event.Identity}
			groups[event.Identity.ID] = group
			order = append(order, event.Identity.ID)
		}
		group.Points = append(group.Points, event.Point())
	}

	timelines := make([]UserTimeline, 0, len(order))
	for _, id := range order {
		group := groups[id]
		group.LastLocation = latest(group.Points)
		timelines = append(timelines, *group)
	}
	return timelines
}

// latest returns a copy of the point with the maximum timestamp. On ties the later point in
// the sequence wins.
func latest(points []geo.HistoryPoint) *geo.HistoryPoint {
	if len(points) == 0 {
		return nil
	}
	last := points[0]
	for _, point := range points[1:] {
		if point.Timestamp() >= last.Timestamp() {
			last = point
		}
	}
	return &last
}
