// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/http"
)

const (
	DefaultIchnaeaEndpoint = "https://api.beacondb.net/v1/geolocate"
	ichnaeaName            = "ichnaea"
)

// Ichnaea asks an ichnaea compatible geolocation API (e.g. beaconDB) for the position of the
// host, based on the visible Wi-Fi access points and the public IP address.
type Ichnaea struct {
	name     string
	endpoint string
	http     *http.Client
	scanFn   func() ([]WirelessNetwork, error)
}

type ichnaeaRequest struct {
	ConsiderIP   bool              `json:"considerIp"`
	Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
}

type ichnaeaResponse struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// WirelessNetwork is a visible access point as reported to the geolocation API.
type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// NewIchnaea returns a network geolocation source. If the host has no usable Wi-Fi interface
// the source falls back to IP based geolocation.
func NewIchnaea(client *http.Client, endpoint string) (*Ichnaea, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if endpoint == "" {
		endpoint = DefaultIchnaeaEndpoint
	}
	source := &Ichnaea{
		name:     ichnaeaName,
		endpoint: endpoint,
		http:     client,
		scanFn:   func() ([]WirelessNetwork, error) { return nil, nil },
	}
	if wlan, err := wifi.New(); err == nil {
		source.scanFn = func() ([]WirelessNetwork, error) { return wifiAccessPoints(wlan) }
	}
	return source, nil
}

func (i *Ichnaea) Name() string {
	return i.name
}

// Request performs a fresh Wi-Fi scan and geolocation lookup. With high accuracy requested and
// access points visible, the IP address is not considered.
func (i *Ichnaea) Request(ctx context.Context, opts Options) (geo.Reading, error) {
	var zero geo.Reading

	aps, err := i.scanFn()
	if err != nil {
		aps = nil
	}
	req := ichnaeaRequest{
		ConsiderIP:   !opts.HighAccuracy || len(aps) == 0,
		Accesspoints: aps,
	}
	body := bytes.NewBuffer(nil)
	if err = json.NewEncoder(body).Encode(req); err != nil {
		return zero, fmt.Errorf("failed to encode geolocation request: %w", err)
	}

	result := new(ichnaeaResponse)
	status, err := i.http.Post(ctx, i.endpoint, result, body, map[string]string{"Content-Type": "application/json"})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return zero, err
	case status == stdhttp.StatusUnauthorized || status == stdhttp.StatusForbidden:
		return zero, NewFailure(KindPermissionDenied, "geolocation API refused the request", err)
	case status == stdhttp.StatusNotFound:
		return zero, NewFailure(KindUnavailable, "geolocation API has no position for this host", err)
	case err != nil:
		return zero, err
	case result.Error != nil:
		return zero, NewFailure(KindUnavailable, result.Error.Message, nil)
	case status >= stdhttp.StatusBadRequest:
		return zero, NewFailure(KindUnavailable, fmt.Sprintf("geolocation API returned status %d", status), nil)
	case result.Accuracy == 0 && result.Location.Latitude == 0 && result.Location.Longitude == 0:
		return zero, NewFailure(KindUnavailable, "geolocation API returned an empty position", nil)
	}

	return geo.Reading{
		Position: geo.GeoPoint{
			Lat: geo.Truncate(result.Location.Latitude, geo.TruncPrecision),
			Lon: geo.Truncate(result.Location.Longitude, geo.TruncPrecision),
		},
		Accuracy: result.Accuracy,
		At:       time.Now(),
	}, nil
}

func wifiAccessPoints(wlan *wifi.Client) ([]WirelessNetwork, error) {
	var list []WirelessNetwork

	ifaces, err := wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}
