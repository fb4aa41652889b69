// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"
	"github.com/vorlif/spreak"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/i18n"
	"github.com/wneessen/geotrail/internal/positioning"
	"github.com/wneessen/geotrail/internal/timeline"
	"github.com/wneessen/geotrail/internal/tracker"
)

// DetailsContext is the template context of the location details of a tracker session.
type DetailsContext struct {
	HasPosition bool
	Latitude    float64
	Longitude   float64
	Accuracy    float64
	UpdatedAt   time.Time
	Status      string
	Loading     bool
	Updating    bool
	Error       string
	Points      int
	// Place is the resolved place name of the position, empty if unknown.
	Place string
}

// TimelineRow is a single user of the admin timeline view.
type TimelineRow struct {
	UserID      string
	Name        string
	Email       string
	Color       string
	Selected    bool
	Points      int
	Latitude    float64
	Longitude   float64
	LastUpdated time.Time
}

// TimelineContext is the template context of the admin timeline view.
type TimelineContext struct {
	Rows []TimelineRow
	// NameWidth is the display width of the longest name, for column alignment.
	NameWidth int
}

type Presenter struct {
	details   *template.Template
	timeline  *template.Template
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// New parses the configured templates.
func New(conf *config.Config, loc *spreak.Localizer) (*Presenter, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	if loc == nil {
		return nil, errors.New("localizer is required")
	}
	pres := &Presenter{
		localizer: loc,
		humanizer: i18n.NewHumanizer(loc),
	}

	tpl, err := template.New("details").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to parse details template: %w", err)
	}
	pres.details = tpl

	tpl, err = template.New("timeline").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Timeline)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timeline template: %w", err)
	}
	pres.timeline = tpl

	return pres, nil
}

// BuildDetails builds the details context from a tracker state.
func (p *Presenter) BuildDetails(state tracker.State) DetailsContext {
	ctx := DetailsContext{
		Accuracy:  state.Accuracy,
		UpdatedAt: state.UpdatedAt,
		Status:    string(state.Status),
		Loading:   state.Loading,
		Updating:  state.Updating,
		Error:     p.errorMessage(state.Err),
		Points:    len(state.History),
	}
	if state.Position != nil {
		ctx.HasPosition = true
		ctx.Latitude = state.Position.Lat
		ctx.Longitude = state.Position.Lon
	}
	return ctx
}

// BuildTimeline builds the admin timeline context. Users without a latest location are left out.
func (p *Presenter) BuildTimeline(timelines []timeline.UserTimeline, selected string) TimelineContext {
	var ctx TimelineContext
	for _, tl := range timelines {
		if tl.LastLocation == nil {
			continue
		}
		row := TimelineRow{
			UserID:      tl.Identity.ID,
			Name:        tl.Identity.DisplayName(),
			Email:       tl.Identity.Email,
			Color:       UserColor(tl.Identity.ID),
			Selected:    tl.Identity.ID == selected,
			Points:      len(tl.Points),
			Latitude:    tl.LastLocation.Position.Lat,
			Longitude:   tl.LastLocation.Position.Lon,
			LastUpdated: tl.LastLocation.At,
		}
		if row.Selected {
			row.Color = SelectedColor
		}
		ctx.NameWidth = max(ctx.NameWidth, runewidth.StringWidth(row.Name))
		ctx.Rows = append(ctx.Rows, row)
	}
	return ctx
}

// Details renders the details template.
func (p *Presenter) Details(ctx DetailsContext) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := p.details.Execute(buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render details template: %w", err)
	}
	return buf.String(), nil
}

// Timeline renders the timeline template.
func (p *Presenter) Timeline(ctx TimelineContext) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := p.timeline.Execute(buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render timeline template: %w", err)
	}
	return buf.String(), nil
}

// errorMessage returns a localized, user facing message for tracker errors.
func (p *Presenter) errorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, positioning.ErrNoCapability) {
		return p.localizer.Get(msgNoCapability)
	}
	var failure *positioning.Failure
	if errors.As(err, &failure) {
		if msg, ok := failureMessages[failure.Kind]; ok {
			return p.localizer.Get(msg)
		}
	}
	return err.Error()
}
