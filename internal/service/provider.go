// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/geotrail/internal/geocode"
	"github.com/wneessen/geotrail/internal/geocode/nominatim"
	"github.com/wneessen/geotrail/internal/geocode/opencage"
	"github.com/wneessen/geotrail/internal/http"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/positioning"
	"github.com/wneessen/geotrail/internal/store"
	"github.com/wneessen/geotrail/internal/tracker"
)

// selectSource returns the configured positioning source. The "none" source returns a nil
// source, which the tracker reports as missing capability.
func (s *Service) selectSource() (positioning.Source, error) {
	name := strings.ToLower(s.config.Positioning.Source)
	switch name {
	case "none":
		return nil, nil
	case "auto":
		return s.autoSource()
	default:
		return s.newSource(name)
	}
}

// autoSource chains all sources that need no further configuration. The file source is only
// added if a file is configured.
func (s *Service) autoSource() (positioning.Source, error) {
	names := []string{"geoclue", "gpsd", "ichnaea", "geoip"}
	if s.config.Positioning.File != "" {
		names = append([]string{"file"}, names...)
	}
	sources := make([]positioning.Source, 0, len(names))
	for _, name := range names {
		src, err := s.newSource(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s source: %w", name, err)
		}
		sources = append(sources, src)
	}
	return positioning.NewChain(sources...), nil
}

func (s *Service) newSource(name string) (positioning.Source, error) {
	conf := s.config.Positioning
	switch name {
	case "gpsd":
		return positioning.NewGPSD(conf.GPSDAddress), nil
	case "file":
		return positioning.NewFile(conf.File), nil
	case "ichnaea":
		src, err := positioning.NewIchnaea(http.New(s.logger), conf.Endpoint)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "geoip":
		src, err := positioning.NewGeoIP(http.New(s.logger), conf.GeoIPEndpoint)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "geoclue":
		return positioning.NewGeoClue(conf.DesktopID), nil
	default:
		return nil, fmt.Errorf("unsupported positioning source: %s", conf.Source)
	}
}

// geocoderMissTTL is the cache duration of positions without a known place.
const geocoderMissTTL = time.Minute * 10

// selectGeocoder returns the configured reverse geocoder wrapped in a cache, or nil if place
// lookups are disabled.
func (s *Service) selectGeocoder() (geocode.Geocoder, error) {
	client := http.New(s.logger)
	lang := s.localizer.Language()

	var coder geocode.Geocoder
	switch strings.ToLower(s.config.Geocoder.Provider) {
	case "nominatim":
		coder = nominatim.New(client, lang)
	case "opencage":
		oc, err := opencage.New(client, lang, s.config.Geocoder.APIKey)
		if err != nil {
			return nil, err
		}
		coder = oc
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported geocoder provider: %s", s.config.Geocoder.Provider)
	}
	return geocode.NewCache(coder, s.config.Geocoder.CacheTTL, geocoderMissTTL), nil
}

// openStore opens the configured store and the authorizer admin requests are checked against.
// The admin users of the config are always granted, the postgres store additionally grants
// users flagged as admin in the database.
func (s *Service) openStore(ctx context.Context) (store.Store, store.Authorizer, error) {
	static := store.StaticAuthorizer(s.config.Admin.Users)
	switch strings.ToLower(s.config.Store.Driver) {
	case "memory":
		return store.NewMemory(), static, nil
	case "postgres":
		if s.config.Store.Migrate {
			if err := store.Migrate(s.config.Store.DSN); err != nil {
				return nil, nil, err
			}
			s.logger.Debug("database migrations applied")
		}
		pg, err := store.Open(ctx, s.config.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, store.AnyAuthorizer{static, pg}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", s.config.Store.Driver)
	}
}

// identity returns the configured user, or nil if no user id is configured.
func (s *Service) identity() *store.Identity {
	if s.config.User.ID == "" {
		return nil
	}
	return &store.Identity{
		ID:    s.config.User.ID,
		Name:  s.config.User.Name,
		Email: s.config.User.Email,
	}
}

// lookupPlace resolves the place of the current position and renders the details again once
// it is known. Lookups run in the background and never change the tracker state.
func (s *Service) lookupPlace(ctx context.Context, state tracker.State) {
	if s.geocoder == nil || state.Status != tracker.StatusReady || state.Position == nil {
		return
	}
	pos := *state.Position
	s.updates.Go(func() {
		place, err := s.geocoder.Reverse(ctx, pos)
		if err != nil {
			s.logger.Warn("failed to resolve place of position", logger.Err(err),
				slog.String("position", pos.String()))
			return
		}

		// Lookups may finish out of order. Only the place of the current position is kept.
		current := s.tracker.Snapshot()
		if current.Position == nil || *current.Position != pos {
			s.logger.Debug("dropping place of outdated position", slog.String("position", pos.String()))
			return
		}
		s.placeLock.Lock()
		s.place = &place
		s.placePos = pos
		s.placeLock.Unlock()
		if place.Found {
			s.printDetails(current)
		}
	})
}

// registerUser stores the configured identity so it shows up in the admin timelines.
func (s *Service) registerUser(ctx context.Context, st store.Store) {
	identity := s.identity()
	if identity == nil {
		s.logger.Warn("no user configured, readings will not be persisted")
		return
	}
	if err := st.UpsertUser(ctx, *identity); err != nil {
		s.logger.Error("failed to register user", logger.Err(err), slog.String("user", identity.ID))
	}
}
