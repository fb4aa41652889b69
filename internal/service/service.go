// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geocode"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/positioning"
	"github.com/wneessen/geotrail/internal/presenter"
	"github.com/wneessen/geotrail/internal/store"
	"github.com/wneessen/geotrail/internal/timeline"
	"github.com/wneessen/geotrail/internal/tracker"
)

const (
	OutputClass = "geotrail"

	// placeRadius is the maximum distance in meters between the current position and the
	// position a place was resolved for.
	placeRadius = 250
)

type trackerOutput struct {
	Text     string             `json:"text"`
	Tooltip  string             `json:"tooltip"`
	Class    []string           `json:"class"`
	Position *geo.GeoPoint      `json:"position,omitempty"`
	Accuracy float64            `json:"accuracy,omitempty"`
	Place    *geocode.Place     `json:"place,omitempty"`
	History  []geo.HistoryPoint `json:"history"`
}

type adminOutput struct {
	Text         string                  `json:"text"`
	Class        []string                `json:"class"`
	Layer        presenter.Layer         `json:"layer"`
	TileURL      string                  `json:"tile_url"`
	Selected     string                  `json:"selected,omitempty"`
	Instructions []presenter.Instruction `json:"instructions"`
	Bounds       []geo.GeoPoint          `json:"bounds"`
}

type latestOutput struct {
	UserID    string       `json:"user_id"`
	Label     string       `json:"label"`
	Position  geo.GeoPoint `json:"position"`
	Timestamp time.Time    `json:"timestamp"`
}

type Service struct {
	config    *config.Config
	logger    *logger.Logger
	localizer *spreak.Localizer
	presenter *presenter.Presenter
	scheduler gocron.Scheduler
	SignalSrc signalSource

	outputLock sync.Mutex
	output     io.Writer
	storeFn    func(context.Context) (store.Store, store.Authorizer, error)

	tracker  *tracker.Tracker
	updates  sync.WaitGroup
	geocoder geocode.Geocoder

	placeLock sync.RWMutex
	place     *geocode.Place
	placePos  geo.GeoPoint

	admin      *timeline.Admin
	viewLock   sync.RWMutex
	timelines  []timeline.UserTimeline
	selected   string
	layer      presenter.Layer
	visibility map[string]bool
}

func New(conf *config.Config, log *logger.Logger, loc *spreak.Localizer) (*Service, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.New(conf.LogLevel)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		config:     conf,
		logger:     log,
		localizer:  loc,
		presenter:  pres,
		scheduler:  scheduler,
		SignalSrc:  stdLibSignalSource{},
		output:     os.Stdout,
		layer:      presenter.LayerStandard,
		visibility: make(map[string]bool),
	}
	service.storeFn = service.openStore
	return service, nil
}

// Select highlights the given user in the admin timelines.
func (s *Service) Select(userID string) {
	s.viewLock.Lock()
	defer s.viewLock.Unlock()
	s.selected = userID
}

// Hide toggles the visibility of a user on the admin map.
func (s *Service) Hide(userID string, hidden bool) {
	s.viewLock.Lock()
	defer s.viewLock.Unlock()
	s.visibility[userID] = !hidden
}

// Run starts a tracker session for the configured user. It performs the initial acquisition
// and afterward only acquires on request. Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	st, _, err := s.storeFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.closeStore(st)
	s.registerUser(ctx, st)

	src, err := s.selectSource()
	if err != nil {
		return fmt.Errorf("failed to create positioning source: %w", err)
	}
	if s.geocoder, err = s.selectGeocoder(); err != nil {
		return fmt.Errorf("failed to create geocoder: %w", err)
	}
	s.tracker = tracker.New(src, st, s.identity(), s.logger, s.trackerOptions())
	s.tracker.OnChange(func(state tracker.State) {
		s.printDetails(state)
		s.lookupPlace(ctx, state)
	})

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer s.SignalSrc.Stop(sigChan)

	if err = s.tracker.Mount(ctx); err != nil {
		return fmt.Errorf("failed to start location tracking: %w", err)
	}
	handled := make(chan struct{})
	go func() {
		defer close(handled)
		s.HandleSignals(ctx, sigChan)
	}()

	// Wait for the context to cancel
	<-ctx.Done()
	<-handled
	s.updates.Wait()
	s.tracker.Wait()
	return nil
}

// RunAdmin periodically renders the timelines of all users. A requester without admin
// privileges is rejected before anything is rendered. RunAdmin blocks until ctx is canceled.
func (s *Service) RunAdmin(ctx context.Context) error {
	st, authz, err := s.storeFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.closeStore(st)
	s.admin = timeline.NewAdmin(st, authz)

	if err = s.loadTimelines(ctx); err != nil {
		return err
	}
	s.viewLock.RLock()
	selected := s.selected
	s.viewLock.RUnlock()
	if selected != "" {
		if err = s.selectUser(ctx, selected); err != nil {
			return err
		}
	}
	s.printTimeline(ctx)

	if err = s.createScheduledJob(ctx, s.config.Admin.Refresh, s.refreshTimelines,
		"timeline_refresh_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer s.SignalSrc.Stop(sigChan)
	go s.HandleAdminSignals(ctx, sigChan)

	// Wait for the context to cancel
	<-ctx.Done()
	return s.scheduler.Shutdown()
}

// PrintLatest writes the latest known position of every user as a single JSON document.
func (s *Service) PrintLatest(ctx context.Context) error {
	st, authz, err := s.storeFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.closeStore(st)

	positions, err := timeline.NewAdmin(st, authz).LatestPositions(ctx, s.config.User.ID)
	if err != nil {
		return fmt.Errorf("failed to query latest positions: %w", err)
	}
	output := make([]latestOutput, 0, len(positions))
	for _, pos := range positions {
		output = append(output, latestOutput{
			UserID:    pos.Identity.ID,
			Label:     pos.Identity.DisplayName(),
			Position:  pos.Point.Position,
			Timestamp: pos.Point.At,
		})
	}
	return s.encode(output)
}

func (s *Service) trackerOptions() tracker.Options {
	opts := tracker.Options{
		Acquire: positioning.Options{
			HighAccuracy: !s.config.Positioning.LowAccuracy,
			Timeout:      s.config.Positioning.Timeout,
			MaximumAge:   s.config.Positioning.MaximumAge,
		},
		HistoryDays:  s.config.History.Days,
		HistoryLimit: s.config.History.Limit,
	}
	if s.config.History.Today {
		opts.HistoryDays = 0
	}
	return opts
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// loadTimelines replaces the admin timelines with a fresh aggregation.
func (s *Service) loadTimelines(ctx context.Context) error {
	timelines, err := s.admin.Timelines(ctx, s.config.User.ID, s.config.Admin.Days)
	if err != nil {
		return fmt.Errorf("failed to load timelines: %w", err)
	}
	s.viewLock.Lock()
	s.timelines = timelines
	s.viewLock.Unlock()
	s.logger.Debug("timelines loaded", slog.Int("users", len(timelines)))
	return nil
}

// selectUser re-queries the timeline of userID and marks it as selected.
func (s *Service) selectUser(ctx context.Context, userID string) error {
	s.viewLock.RLock()
	current := s.timelines
	s.viewLock.RUnlock()

	timelines, err := s.admin.SelectUser(ctx, s.config.User.ID, current, userID, s.config.Admin.Days)
	if err != nil {
		return fmt.Errorf("failed to select user %q: %w", userID, err)
	}
	s.viewLock.Lock()
	s.timelines = timelines
	s.selected = userID
	s.viewLock.Unlock()
	return nil
}

func (s *Service) refreshTimelines(ctx context.Context) {
	if err := s.loadTimelines(ctx); err != nil {
		s.logger.Error("failed to refresh timelines", logger.Err(err))
		return
	}
	s.printTimeline(ctx)
}

// printDetails outputs the rendered tracker state. It is called on every state transition.
func (s *Service) printDetails(state tracker.State) {
	details := s.presenter.BuildDetails(state)
	place := s.currentPlace(state)
	if place != nil {
		details.Place = place.Label()
	}
	text, err := s.presenter.Details(details)
	if err != nil {
		s.logger.Error("failed to render details template", logger.Err(err))
		return
	}

	output := trackerOutput{
		Text:     text,
		Tooltip:  fmt.Sprintf("%d %s", len(state.History), s.localizer.Get("points")),
		Class:    []string{OutputClass, string(state.Status)},
		Position: state.Position,
		Accuracy: state.Accuracy,
		Place:    place,
		History:  state.History,
	}
	if err = s.encode(output); err != nil {
		s.logger.Error("failed to encode location details", logger.Err(err))
	}
}

// printTimeline outputs the rendered admin timelines together with the map instructions.
func (s *Service) printTimeline(context.Context) {
	s.viewLock.RLock()
	timelines := s.timelines
	selected := s.selected
	layer := s.layer
	instructions := presenter.Render(timelines, s.visibility, selected, layer)
	bounds := presenter.Bounds(timelines, s.visibility, selected)
	s.viewLock.RUnlock()

	text, err := s.presenter.Timeline(s.presenter.BuildTimeline(timelines, selected))
	if err != nil {
		s.logger.Error("failed to render timeline template", logger.Err(err))
		return
	}

	output := adminOutput{
		Text:         text,
		Class:        []string{OutputClass, "admin"},
		Layer:        layer,
		TileURL:      layer.TileURL(),
		Selected:     selected,
		Instructions: instructions,
		Bounds:       bounds,
	}
	if err = s.encode(output); err != nil {
		s.logger.Error("failed to encode timelines", logger.Err(err))
	}
}

// currentPlace returns the resolved place if it belongs to the current position.
func (s *Service) currentPlace(state tracker.State) *geocode.Place {
	if state.Position == nil {
		return nil
	}
	s.placeLock.RLock()
	defer s.placeLock.RUnlock()
	if s.place == nil || !s.place.Found || geo.Distance(s.placePos, *state.Position) > placeRadius {
		return nil
	}
	place := *s.place
	return &place
}

func (s *Service) encode(v any) error {
	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	return json.NewEncoder(s.output).Encode(v)
}

func (s *Service) closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		s.logger.Error("failed to close store", logger.Err(err))
	}
}
