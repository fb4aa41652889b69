// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package store persists location readings per user and provides the batch reads the tracker
// and the admin timelines are built from.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
)

// ErrUserRequired is returned when an operation needs a user id and none was given.
var ErrUserRequired = errors.New("user id is required")

// Identity identifies the owner of persisted readings.
type Identity struct {
	ID    string `json:"id" fig:"id"`
	Name  string `json:"name" fig:"name"`
	Email string `json:"email" fig:"email"`
}

// DisplayName returns the name of the identity, falling back to the email address and the id.
func (i Identity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return i.ID
	}
}

// Event is a persisted reading together with its owner.
type Event struct {
	ID       string   `json:"id"`
	Identity Identity `json:"user"`
	geo.Reading
}

// Store is the persistence collaborator of the tracker and the admin timelines.
type Store interface {
	// Append persists a reading for the given user.
	Append(ctx context.Context, userID string, reading geo.Reading) error
	// QueryHistory returns the readings of a user taken at or after since in ascending order.
	// At most limit readings are returned; a limit <= 0 returns all of them.
	QueryHistory(ctx context.Context, userID string, since time.Time, limit int) ([]geo.Reading, error)
	// QueryAllUsers returns the events of all users taken at or after since in ascending order.
	QueryAllUsers(ctx context.Context, since time.Time) ([]Event, error)
	// Clear removes all readings of a user.
	Clear(ctx context.Context, userID string) error
	// UpsertUser creates or updates the identity of a user.
	UpsertUser(ctx context.Context, identity Identity) error
	Close() error
}

// Authorizer decides whether a user may read the events of all users.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// StaticAuthorizer grants admin access to a fixed list of user ids.
type StaticAuthorizer []string

func (s StaticAuthorizer) IsAdmin(_ context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUserRequired
	}
	return slices.Contains(s, userID), nil
}

// AnyAuthorizer grants admin access if any of its authorizers does. Errors are only returned
// if no authorizer granted access.
type AnyAuthorizer []Authorizer

func (a AnyAuthorizer) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var errs []error
	for _, authz := range a {
		isAdmin, err := authz.IsAdmin(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if isAdmin {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
