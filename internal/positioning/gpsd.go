// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/geotrail/internal/geo"
)

const (
	DefaultGPSDAddress = "localhost:2947"

	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable

	gpsdName     = "gpsd"
	watchRequest = `?WATCH={"enable":true,"json":true}` + "\n"
	watchTimeout = time.Second * 10
)

// GPSD reads the first usable TPV report from a gpsd daemon. Every request uses its own
// connection, which is closed before Request returns.
type GPSD struct {
	name string
	addr string
}

// NewGPSD returns a gpsd source for the daemon listening on addr.
func NewGPSD(addr string) *GPSD {
	if addr == "" {
		addr = DefaultGPSDAddress
	}
	return &GPSD{
		name: gpsdName,
		addr: addr,
	}
}

func (g *GPSD) Name() string {
	return g.name
}

// Request waits for a TPV report with at least a 2D fix. The reading carries the time of the
// fix as reported by gpsd, so stale fixes are caught by the maximum age check.
func (g *GPSD) Request(ctx context.Context, _ Options) (geo.Reading, error) {
	var zero geo.Reading

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, NewFailure(KindUnavailable, "failed to connect to gpsd at "+g.addr, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	// Unblock the scanner once ctx is done. Without a deadline on ctx the watch timeout applies.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	if _, ok := ctx.Deadline(); !ok {
		_ = conn.SetDeadline(time.Now().Add(watchTimeout))
	}

	if _, err = fmt.Fprint(conn, watchRequest); err != nil {
		return zero, NewFailure(KindUnavailable, "failed to send watch request to gpsd", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var tpv gpsd.TPVReport
		if err = json.Unmarshal(scanner.Bytes(), &tpv); err != nil {
			continue
		}
		if tpv.Class != "TPV" || tpv.Mode < gpsd.Mode2D {
			continue
		}
		return readingFromTPV(&tpv), nil
	}

	err = scanner.Err()
	switch {
	case ctx.Err() != nil:
		return zero, ctx.Err()
	case errors.Is(err, os.ErrDeadlineExceeded):
		return zero, NewFailure(KindTimeout, "no fix received from gpsd", err)
	case err != nil:
		return zero, NewFailure(KindUnavailable, "failed to read from gpsd", err)
	default:
		return zero, NewFailure(KindUnavailable, "gpsd closed the connection", nil)
	}
}

func readingFromTPV(tpv *gpsd.TPVReport) geo.Reading {
	at := tpv.Time
	if at.IsZero() {
		at = time.Now()
	}
	return geo.Reading{
		Position: geo.GeoPoint{
			Lat: geo.Truncate(tpv.Lat, geo.TruncPrecision),
			Lon: geo.Truncate(tpv.Lon, geo.TruncPrecision),
		},
		Accuracy: horizontalAccuracyMeters(tpv),
		At:       at,
	}
}

func horizontalAccuracyMeters(tpv *gpsd.TPVReport) float64 {
	switch {
	case tpv.Eph > 0:
		return tpv.Eph
	case tpv.Epx > 0 && tpv.Epy > 0:
		// sqrt(epx² + epy²)
		return math.Hypot(tpv.Epx, tpv.Epy)
	case tpv.Mode >= gpsd.Mode3D:
		return fallbackAccuracy3DFix
	case tpv.Mode == gpsd.Mode2D:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
