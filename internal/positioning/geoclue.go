// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/geotrail/internal/geo"
)

const (
	geoclueService    = "org.freedesktop.GeoClue2"
	geoclueManager    = "/org/freedesktop/GeoClue2/Manager"
	geoclueManagerIfc = "org.freedesktop.GeoClue2.Manager"
	geoclueClientIfc  = "org.freedesktop.GeoClue2.Client"
	geoclueLocIfc     = "org.freedesktop.GeoClue2.Location"
	dbusListNames     = "org.freedesktop.DBus.ListNames"
	dbusAccessDenied  = "org.freedesktop.DBus.Error.AccessDenied"
	geoclueName       = "geoclue"

	DefaultDesktopID = "geotrail"
)

// GeoClue accuracy levels as defined by the GeoClue2 D-Bus API.
const (
	AccuracyLevelCity  uint32 = 4
	AccuracyLevelExact uint32 = 8
)

// GeoClue acquires the position via the GeoClue2 service on the system bus. GeoClue enforces
// the desktop's location permissions, denied requests are reported as permission-denied.
type GeoClue struct {
	name      string
	desktopID string
}

// NewGeoClue returns a GeoClue source that identifies itself with desktopID.
func NewGeoClue(desktopID string) *GeoClue {
	if desktopID == "" {
		desktopID = DefaultDesktopID
	}
	return &GeoClue{
		name:      geoclueName,
		desktopID: desktopID,
	}
}

func (g *GeoClue) Name() string {
	return g.name
}

// Probe checks that the GeoClue2 service is registered on the system bus.
func (g *GeoClue) Probe(ctx context.Context) (err error) {
	var names []string
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close system bus: %w", closeErr))
		}
	}()

	if err = conn.BusObject().CallWithContext(ctx, dbusListNames, 0).Store(&names); err != nil {
		return fmt.Errorf("failed to call DBus ListNames: %w", err)
	}
	for _, name := range names {
		if strings.EqualFold(name, geoclueService) {
			return nil
		}
	}
	return errors.New("GeoClue2 service is not available")
}

// Request starts a GeoClue client and waits for its first LocationUpdated signal.
func (g *GeoClue) Request(ctx context.Context, opts Options) (reading geo.Reading, err error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return reading, NewFailure(KindUnavailable, "failed to connect to system bus", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	var clientPath dbus.ObjectPath
	manager := conn.Object(geoclueService, geoclueManager)
	if err = manager.CallWithContext(ctx, geoclueManagerIfc+".GetClient", 0).Store(&clientPath); err != nil {
		return reading, dbusFailure("failed to get GeoClue client", err)
	}

	client := conn.Object(geoclueService, clientPath)
	if err = client.SetProperty(geoclueClientIfc+".DesktopId", dbus.MakeVariant(g.desktopID)); err != nil {
		return reading, dbusFailure("failed to set desktop id", err)
	}
	if err = client.SetProperty(geoclueClientIfc+".RequestedAccuracyLevel",
		dbus.MakeVariant(accuracyLevel(opts))); err != nil {
		return reading, dbusFailure("failed to set requested accuracy level", err)
	}

	if err = conn.AddMatchSignalContext(ctx, dbus.WithMatchObjectPath(clientPath),
		dbus.WithMatchInterface(geoclueClientIfc), dbus.WithMatchMember("LocationUpdated")); err != nil {
		return reading, dbusFailure("failed to subscribe to location updates", err)
	}
	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	if err = client.CallWithContext(ctx, geoclueClientIfc+".Start", 0).Err; err != nil {
		return reading, dbusFailure("failed to start GeoClue client", err)
	}
	defer func() {
		_ = client.Call(geoclueClientIfc+".Stop", 0).Err
	}()

	for {
		select {
		case <-ctx.Done():
			return reading, ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return reading, NewFailure(KindUnavailable, "system bus connection closed", nil)
			}
			if sig.Name != geoclueClientIfc+".LocationUpdated" || len(sig.Body) != 2 {
				continue
			}
			locPath, ok := sig.Body[1].(dbus.ObjectPath)
			if !ok {
				continue
			}
			return readLocation(conn.Object(geoclueService, locPath))
		}
	}
}

func readLocation(obj dbus.BusObject) (geo.Reading, error) {
	var reading geo.Reading
	props := map[string]*float64{
		"Latitude":  &reading.Position.Lat,
		"Longitude": &reading.Position.Lon,
		"Accuracy":  &reading.Accuracy,
	}
	for prop, target := range props {
		variant, err := obj.GetProperty(geoclueLocIfc + "." + prop)
		if err != nil {
			return reading, dbusFailure("failed to read location "+strings.ToLower(prop), err)
		}
		val, ok := variant.Value().(float64)
		if !ok {
			return reading, NewFailure(KindUnavailable, "unexpected type for location "+
				strings.ToLower(prop), nil)
		}
		*target = val
	}
	reading.At = time.Now()
	return reading, nil
}

func accuracyLevel(opts Options) uint32 {
	if opts.HighAccuracy {
		return AccuracyLevelExact
	}
	return AccuracyLevelCity
}

// dbusFailure maps D-Bus access errors to permission-denied, anything else is unavailable.
func dbusFailure(message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if isAccessDenied(err) {
		return NewFailure(KindPermissionDenied, message, err)
	}
	return NewFailure(KindUnavailable, message, err)
}

func isAccessDenied(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == dbusAccessDenied
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil {
		return dbusErrPtr.Name == dbusAccessDenied
	}
	return false
}
