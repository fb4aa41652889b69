// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode resolves positions into human readable places.
package geocode

import (
	"context"
	"strings"

	"github.com/wneessen/geotrail/internal/geo"
)

// Place is the result of a reverse lookup. Found is false if the provider knows no place at the
// position, e.g. on open sea.
type Place struct {
	Found       bool         `json:"found"`
	Position    geo.GeoPoint `json:"position"`
	DisplayName string       `json:"display_name"`
	Country     string       `json:"country,omitempty"`
	State       string       `json:"state,omitempty"`
	City        string       `json:"city,omitempty"`
	District    string       `json:"district,omitempty"`
	Postcode    string       `json:"postcode,omitempty"`
	Street      string       `json:"street,omitempty"`
	HouseNumber string       `json:"house_number,omitempty"`
	CacheHit    bool         `json:"-"`
}

// Label returns a short label for the place: street and city if known, the display name
// otherwise.
func (p Place) Label() string {
	if !p.Found {
		return ""
	}
	street := strings.TrimSpace(p.Street + " " + p.HouseNumber)
	switch {
	case street != "" && p.City != "":
		return street + ", " + p.City
	case p.City != "" && p.District != "":
		return p.District + ", " + p.City
	case p.City != "":
		return p.City
	default:
		return p.DisplayName
	}
}

type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, pos geo.GeoPoint) (Place, error)
}
