// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geo

import "math"

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

// Distance returns the great-circle distance between a and b in meters. We are using the
// Haversine formula to calculate the distance between two points on a sphere (in our case: Earth).
func Distance(a, b GeoPoint) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h slightly outside [0,1] for antipodal or identical points
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
