// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package nominatim implements reverse geocoding through the OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/text/language"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geocode"
	"github.com/wneessen/geotrail/internal/http"
)

const (
	APIReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	name               = "osm-nominatim"
)

type Nominatim struct {
	endpoint string
	http     *http.Client
	lang     language.Tag
}

type reverseResult struct {
	APILat      string  `json:"lat"`
	APILon      string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	// Error is set if no place is known at the position
	Error string `json:"error"`
}

type address struct {
	HouseNumber  string `json:"house_number"`
	Road         string `json:"road"`
	Suburb       string `json:"suburb"`
	CityDistrict string `json:"city_district"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

func New(client *http.Client, lang language.Tag) *Nominatim {
	return &Nominatim{
		endpoint: APIReverseEndpoint,
		lang:     lang,
		http:     client,
	}
}

func (n *Nominatim) Name() string {
	return name
}

func (n *Nominatim) Reverse(ctx context.Context, pos geo.GeoPoint) (geocode.Place, error) {
	var result reverseResult
	var err error

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(pos.Lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(pos.Lon, 'f', 6, 64))
	query.Set("accept-language", n.lang.String())

	status, err := n.http.Get(ctx, n.endpoint, &result, query, nil)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to fetch reverse address details from Nominatim API: %w", err)
	}
	if status >= 400 {
		return geocode.Place{}, fmt.Errorf("nominatim API returned status %d", status)
	}
	if result.Error != "" {
		return geocode.Place{Position: pos}, nil
	}

	place := geocode.Place{
		Found:       true,
		DisplayName: result.DisplayName,
		Country:     result.Address.Country,
		State:       result.Address.State,
		City:        result.Address.City,
		District:    result.Address.CityDistrict,
		Postcode:    result.Address.Postcode,
		Street:      result.Address.Road,
		HouseNumber: result.Address.HouseNumber,
	}
	if place.City == "" && result.Address.Town != "" {
		place.City = result.Address.Town
	}
	if place.City == "" && result.Address.Village != "" {
		place.City = result.Address.Village
	}
	if place.District == "" {
		place.District = result.Address.Suburb
	}
	place.Position.Lat, err = strconv.ParseFloat(result.APILat, 64)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	place.Position.Lon, err = strconv.ParseFloat(result.APILon, 64)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}

	return place, nil
}
