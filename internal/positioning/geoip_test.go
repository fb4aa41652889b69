// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/wneessen/geotrail/internal/http"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/testhelper"
)

const geoipBerlin = `{"ip":"198.51.100.7","country_code":"DE","country_name":"Germany","region_code":"BE",` +
	`"region_name":"Land Berlin","city":"Berlin","zip_code":"10117","time_zone":"Europe/Berlin",` +
	`"latitude":52.5162749,"longitude":13.3777041,"metro_code":0}`

func testGeoIP(t *testing.T, fn func(*stdhttp.Request) (*stdhttp.Response, error)) *GeoIP {
	t.Helper()
	client := http.New(logger.NewLogger(slog.LevelError, io.Discard))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	src, err := NewGeoIP(client, "")
	if err != nil {
		t.Fatalf("failed to create geoip source: %s", err)
	}
	return src
}

func jsonReply(status int, body string) func(*stdhttp.Request) (*stdhttp.Response, error) {
	return func(*stdhttp.Request) (*stdhttp.Response, error) {
		return &stdhttp.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(stdhttp.Header),
		}, nil
	}
}

func TestNewGeoIP(t *testing.T) {
	t.Run("default endpoint is used", func(t *testing.T) {
		src, err := NewGeoIP(http.New(logger.NewLogger(slog.LevelError, io.Discard)), "")
		if err != nil {
			t.Fatalf("failed to create geoip source: %s", err)
		}
		if src.endpoint != DefaultGeoIPEndpoint {
			t.Errorf("expected endpoint %q, got %q", DefaultGeoIPEndpoint, src.endpoint)
		}
		if src.Name() != "geoip" {
			t.Errorf("expected name %q, got %q", "geoip", src.Name())
		}
	})
	t.Run("nil client fails", func(t *testing.T) {
		if _, err := NewGeoIP(nil, ""); err == nil {
			t.Fatal("expected geoip source creation to fail")
		}
	})
}

func TestGeoIP_Request(t *testing.T) {
	t.Run("position is truncated and accuracy derived from the zip code", func(t *testing.T) {
		src := testGeoIP(t, jsonReply(stdhttp.StatusOK, geoipBerlin))
		reading, err := src.Request(t.Context(), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to request reading: %s", err)
		}
		if reading.Position.Lat != 52.5162 || reading.Position.Lon != 13.3777 {
			t.Errorf("expected position 52.5162,13.3777, got %s", reading.Position)
		}
		if reading.Accuracy != AccuracyZip {
			t.Errorf("expected accuracy %d, got %f", AccuracyZip, reading.Accuracy)
		}
		if reading.At.IsZero() {
			t.Error("expected reading timestamp to be set")
		}
	})
	t.Run("failures are classified", func(t *testing.T) {
		tests := []struct {
			name string
			fn   func(*stdhttp.Request) (*stdhttp.Response, error)
			kind Kind
		}{
			{"rate limited", jsonReply(stdhttp.StatusTooManyRequests, `{}`), KindUnavailable},
			{"server error", jsonReply(stdhttp.StatusInternalServerError, `{}`), KindUnavailable},
			{"empty position", jsonReply(stdhttp.StatusOK, `{"ip":"198.51.100.7"}`), KindUnavailable},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := testGeoIP(t, tc.fn).Request(t.Context(), DefaultOptions())
				assertKind(t, err, tc.kind)
			})
		}
	})
	t.Run("transport errors are returned", func(t *testing.T) {
		src := testGeoIP(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		})
		if _, err := src.Request(t.Context(), DefaultOptions()); err == nil {
			t.Fatal("expected request to fail")
		}
	})
	t.Run("deadline is returned unwrapped", func(t *testing.T) {
		src := testGeoIP(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, context.DeadlineExceeded
		})
		_, err := src.Request(t.Context(), DefaultOptions())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestGeoipAccuracy(t *testing.T) {
	tests := []struct {
		name   string
		result geoipResponse
		want   float64
	}{
		{"zip", geoipResponse{CountryCode: "DE", City: "Berlin", ZipCode: "10117"}, AccuracyZip},
		{"city", geoipResponse{CountryCode: "DE", RegionCode: "BE", City: "Berlin"}, AccuracyCity},
		{"region", geoipResponse{CountryCode: "DE", RegionCode: "BE"}, AccuracyRegion},
		{"country", geoipResponse{CountryCode: "DE"}, AccuracyCountry},
		{"unknown", geoipResponse{}, AccuracyUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := geoipAccuracy(&tc.result); got != tc.want {
				t.Errorf("expected accuracy %f, got %f", tc.want, got)
			}
		})
	}
}
