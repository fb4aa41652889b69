// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/http"
)

const (
	DefaultGeoIPEndpoint = "https://reallyfreegeoip.org/json/"
	geoipName            = "geoip"
	geoipPrecision       = 4
)

// Accuracy radii in meters derived from the most detailed field of a GeoIP result.
const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
)

// GeoIP locates the host by its public IP address. Readings are coarse, city level at best.
type GeoIP struct {
	name     string
	endpoint string
	http     *http.Client
}

type geoipResponse struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	RegionCode  string  `json:"region_code,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func NewGeoIP(client *http.Client, endpoint string) (*GeoIP, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if endpoint == "" {
		endpoint = DefaultGeoIPEndpoint
	}
	return &GeoIP{
		name:     geoipName,
		endpoint: endpoint,
		http:     client,
	}, nil
}

func (g *GeoIP) Name() string {
	return g.name
}

// Request looks up the public IP address of the host. The accuracy option is ignored.
func (g *GeoIP) Request(ctx context.Context, _ Options) (geo.Reading, error) {
	var zero geo.Reading

	result := new(geoipResponse)
	status, err := g.http.Get(ctx, g.endpoint, result, nil, nil)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return zero, err
	case status == stdhttp.StatusTooManyRequests:
		return zero, NewFailure(KindUnavailable, "GeoIP API rate limit exceeded", err)
	case err != nil:
		return zero, err
	case status >= stdhttp.StatusBadRequest:
		return zero, NewFailure(KindUnavailable, fmt.Sprintf("GeoIP API returned status %d", status), nil)
	case result.Latitude == 0 && result.Longitude == 0:
		return zero, NewFailure(KindUnavailable, "GeoIP API has no position for this address", nil)
	}

	return geo.Reading{
		Position: geo.GeoPoint{
			Lat: geo.Truncate(result.Latitude, geoipPrecision),
			Lon: geo.Truncate(result.Longitude, geoipPrecision),
		},
		Accuracy: geoipAccuracy(result),
		At:       time.Now(),
	}, nil
}

func geoipAccuracy(result *geoipResponse) float64 {
	switch {
	case result.ZipCode != "":
		return AccuracyZip
	case result.City != "":
		return AccuracyCity
	case result.RegionCode != "":
		return AccuracyRegion
	case result.CountryCode != "":
		return AccuracyCountry
	default:
		return AccuracyUnknown
	}
}
