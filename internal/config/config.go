// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv         = "GEOTRAIL"
	DefaultDetailsTpl = `{{if .HasPosition}}{{loc "Latitude"}}: {{coord .Latitude}} ` +
		`{{loc "Longitude"}}: {{coord .Longitude}} {{loc "Accuracy"}}: ±{{floatFormat .Accuracy 0}} {{loc "meters"}}` +
		`{{if .Place}} · {{.Place}}{{end}}` +
		`{{else}}{{loc "Locating..."}}{{end}}` +
		`{{if .Error}} ({{loc "Error"}}: {{.Error}}){{end}}` +
		`{{if .Updating}} · {{loc "Updating location..."}}` +
		`{{else if .HasPosition}} · {{loc "Last updated"}}: {{since .UpdatedAt}}{{end}}`
	DefaultTimelineTpl = `{{range .Rows}}{{if .Selected}}>{{else}} {{end}} {{pad .Name $.NameWidth}}  ` +
		`{{.Points}} {{loc "points"}}  {{coord .Latitude}},{{coord .Longitude}}  ` +
		`{{loc "Last updated"}}: {{since .LastUpdated}}` + "\n{{end}}"
)

var (
	sources   = []string{"gpsd", "file", "ichnaea", "geoclue", "geoip", "auto", "none"}
	drivers   = []string{"memory", "postgres"}
	geocoders = []string{"nominatim", "opencage", "none"}
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	// User is the identity readings are persisted for. Without an id, nothing is persisted.
	User struct {
		ID    string `fig:"id"`
		Name  string `fig:"name"`
		Email string `fig:"email"`
	} `fig:"user"`

	Positioning struct {
		// Allowed values: gpsd, file, ichnaea, geoclue, geoip, auto, none
		Source        string        `fig:"source" default:"gpsd"`
		GPSDAddress   string        `fig:"gpsd_address" default:"localhost:2947"`
		File          string        `fig:"file"`
		Endpoint      string        `fig:"endpoint" default:"https://api.beacondb.net/v1/geolocate"`
		GeoIPEndpoint string        `fig:"geoip_endpoint" default:"https://reallyfreegeoip.org/json/"`
		DesktopID     string        `fig:"desktop_id" default:"geotrail"`
		LowAccuracy   bool          `fig:"low_accuracy"`
		Timeout       time.Duration `fig:"timeout" default:"10s"`
		MaximumAge    time.Duration `fig:"maximum_age"`
	} `fig:"positioning"`

	Geocoder struct {
		// Allowed values: nominatim, opencage, none
		Provider string        `fig:"provider" default:"nominatim"`
		APIKey   string        `fig:"apikey"`
		CacheTTL time.Duration `fig:"cache_ttl" default:"1h"`
	} `fig:"geocoder"`

	Store struct {
		// Allowed values: memory, postgres
		Driver  string `fig:"driver" default:"memory"`
		DSN     string `fig:"dsn"`
		Migrate bool   `fig:"migrate"`
	} `fig:"store"`

	History struct {
		// Days of history loaded on start
		Days  int  `fig:"days" default:"1"`
		Limit int  `fig:"limit" default:"100"`
		// Today loads the history since local midnight instead of Days
		Today bool `fig:"today"`
	} `fig:"history"`

	Admin struct {
		Users   []string      `fig:"users"`
		Days    int           `fig:"days" default:"1"`
		Refresh time.Duration `fig:"refresh" default:"1m"`
	} `fig:"admin"`

	Templates struct {
		Details  string `fig:"details"`
		Timeline string `fig:"timeline"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if !slices.Contains(sources, c.Positioning.Source) {
		return fmt.Errorf("invalid positioning source: %s", c.Positioning.Source)
	}
	if c.Positioning.Source == "file" && c.Positioning.File == "" {
		return errors.New("positioning source file requires a file path")
	}
	if c.Positioning.Timeout <= 0 {
		return fmt.Errorf("invalid positioning timeout: %s", c.Positioning.Timeout)
	}
	if c.Positioning.MaximumAge < 0 {
		return fmt.Errorf("invalid positioning maximum age: %s", c.Positioning.MaximumAge)
	}
	if !slices.Contains(geocoders, c.Geocoder.Provider) {
		return fmt.Errorf("invalid geocoder provider: %s", c.Geocoder.Provider)
	}
	if c.Geocoder.Provider == "opencage" && c.Geocoder.APIKey == "" {
		return errors.New("geocoder provider opencage requires an API key")
	}
	if c.Geocoder.CacheTTL < 0 {
		return fmt.Errorf("invalid geocoder cache TTL: %s", c.Geocoder.CacheTTL)
	}
	if !slices.Contains(drivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return errors.New("store driver postgres requires a DSN")
	}
	if c.History.Days < 1 {
		return fmt.Errorf("invalid history days: %d", c.History.Days)
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("invalid history limit: %d", c.History.Limit)
	}
	if c.Admin.Days < 1 {
		return fmt.Errorf("invalid admin days: %d", c.Admin.Days)
	}
	if c.Admin.Refresh < time.Second {
		return fmt.Errorf("invalid admin refresh interval: %s", c.Admin.Refresh)
	}
	if c.Templates.Details == "" {
		c.Templates.Details = DefaultDetailsTpl
	}
	if c.Templates.Timeline == "" {
		c.Templates.Timeline = DefaultTimelineTpl
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
