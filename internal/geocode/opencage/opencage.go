// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package opencage implements reverse geocoding through the OpenCage API.
package opencage

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/text/language"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geocode"
	"github.com/wneessen/geotrail/internal/http"
)

const (
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	name        = "opencage"
)

var ErrMissingAPIKey = errors.New("opencage requires an API key")

type OpenCage struct {
	apikey   string
	endpoint string
	http     *http.Client
	lang     language.Tag
}

type response struct {
	Results      []result `json:"results"`
	TotalResults int      `json:"total_results"`
	Status       struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

type result struct {
	Components  components `json:"components"`
	DisplayName string     `json:"formatted"`
	Geometry    struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lng"`
	} `json:"geometry"`
}

type components struct {
	NormalizedCity string `json:"_normalized_city"`
	City           string `json:"city"`
	CityDistrict   string `json:"city_district"`
	Country        string `json:"country"`
	HouseNumber    string `json:"house_number"`
	Postcode       string `json:"postcode"`
	Road           string `json:"road"`
	State          string `json:"state"`
	Suburb         string `json:"suburb"`
	Town           string `json:"town"`
	Village        string `json:"village"`
}

func New(client *http.Client, lang language.Tag, apikey string) (*OpenCage, error) {
	if apikey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenCage{
		apikey:   apikey,
		endpoint: APIEndpoint,
		lang:     lang,
		http:     client,
	}, nil
}

func (o *OpenCage) Name() string {
	return name
}

func (o *OpenCage) Reverse(ctx context.Context, pos geo.GeoPoint) (geocode.Place, error) {
	var resp response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", fmt.Sprintf("%f,%f", pos.Lat, pos.Lon))
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("limit", "1")
	query.Set("language", o.lang.String())

	status, err := o.http.Get(ctx, o.endpoint, &resp, query, nil)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to retrieve address details from OpenCage API: %w", err)
	}
	if status >= 400 {
		return geocode.Place{}, fmt.Errorf("opencage API returned status %d: %s", status, resp.Status.Message)
	}
	if len(resp.Results) == 0 {
		return geocode.Place{Position: pos}, nil
	}

	res := resp.Results[0]
	place := geocode.Place{
		Found:       true,
		Position:    geo.GeoPoint{Lat: res.Geometry.Lat, Lon: res.Geometry.Lon},
		DisplayName: res.DisplayName,
		Country:     res.Components.Country,
		State:       res.Components.State,
		City:        res.Components.NormalizedCity,
		District:    res.Components.CityDistrict,
		Postcode:    res.Components.Postcode,
		Street:      res.Components.Road,
		HouseNumber: res.Components.HouseNumber,
	}
	switch {
	case place.City != "":
	case res.Components.City != "":
		place.City = res.Components.City
	case res.Components.Town != "":
		place.City = res.Components.Town
	case res.Components.Village != "":
		place.City = res.Components.Village
	}
	if place.District == "" {
		place.District = res.Components.Suburb
	}

	return place, nil
}
