// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo holds the geographic primitives of geotrail: points, raw readings, recorded
// history points and the distance based sampling filter deciding which readings are recorded.
package geo

import (
	"fmt"
	"math"
	"time"
)

// TruncPrecision is the number of decimal places readings are truncated to by sources that
// report noisy coordinates.
const TruncPrecision = 6

// GeoPoint represents a geographic coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid checks if the point is within the EPSG:4326 coordinate bounds.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// String returns the point formatted with six decimal places.
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Reading is a single raw positioning sample.
type Reading struct {
	Position GeoPoint  `json:"position"`
	Accuracy float64   `json:"accuracy"` // horizontal accuracy radius in meters
	At       time.Time `json:"timestamp"`
}

// HistoryPoint is a reading that was accepted into a position history.
type HistoryPoint struct {
	Position GeoPoint  `json:"position"`
	At       time.Time `json:"timestamp"`
}

// Point returns the HistoryPoint for the reading.
func (r Reading) Point() HistoryPoint {
	return HistoryPoint{Position: r.Position, At: r.At}
}

// Timestamp returns the reading timestamp in milliseconds since the epoch.
func (r Reading) Timestamp() int64 {
	return r.At.UnixMilli()
}

// Timestamp returns the point timestamp in milliseconds since the epoch.
func (h HistoryPoint) Timestamp() int64 {
	return h.At.UnixMilli()
}

// Truncate cuts x down to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
