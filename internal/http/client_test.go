// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/testhelper"
)

type testType struct {
	String string  `json:"string"`
	Int    int     `json:"int"`
	Float  float64 `json:"float"`
	Bool   bool    `json:"bool"`
}

const testJSON = `{"string":"test","int":123,"float":123.456,"bool":true}`

func jsonResponse(status int, body string) func(*stdhttp.Request) (*stdhttp.Response, error) {
	return func(*stdhttp.Request) (*stdhttp.Response, error) {
		return &stdhttp.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(stdhttp.Header),
		}, nil
	}
}

func TestNew(t *testing.T) {
	client := New(logger.New(slog.LevelInfo))
	if client == nil {
		t.Fatal("expected client to be non-nil")
	}
}

func TestClient_Get(t *testing.T) {
	t.Run("getting and serializing JSON should work", func(t *testing.T) {
		var gotReq *stdhttp.Request
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			gotReq = req
			return jsonResponse(200, testJSON)(req)
		}

		client := New(logger.NewLogger(slog.LevelInfo, io.Discard))
		client.Transport = testhelper.MockRoundTripper{Fn: rtFn}
		query := url.Values{}
		query.Add("key", "value")

		target := new(testType)
		status, err := client.Get(t.Context(), "https://example.com", target, query,
			map[string]string{"X-Custom-Header": "custom-value"})
		if err != nil {
			t.Fatalf("failed to get JSON response: %s", err)
		}
		if status != 200 {
			t.Errorf("expected status code 200, got %d", status)
		}
		if target.String != "test" || target.Int != 123 || target.Float != 123.456 || !target.Bool {
			t.Errorf("unexpected target: %+v", target)
		}
		if gotReq.URL.Query().Get("key") != "value" {
			t.Errorf("expected query to be forwarded, got %q", gotReq.URL.RawQuery)
		}
		if gotReq.Header.Get("X-Custom-Header") != "custom-value" {
			t.Error("expected custom header to be set")
		}
		if gotReq.Header.Get("User-Agent") != UserAgent {
			t.Errorf("expected user agent to be %q, got %q", UserAgent, gotReq.Header.Get("User-Agent"))
		}
	})
	t.Run("unmarshalling into non-pointer should fail", func(t *testing.T) {
		client := New(logger.New(slog.LevelInfo))
		var target testType
		_, err := client.Get(t.Context(), "https://example.com", target, nil, nil)
		if !errors.Is(err, ErrNonPointerTarget) {
			t.Errorf("expected error to be %s, got %s", ErrNonPointerTarget, err)
		}
	})
	t.Run("parsing an invalid url should fail", func(t *testing.T) {
		client := New(logger.New(slog.LevelInfo))
		_, err := client.Get(t.Context(), "http://example.com/xyz%", new(testType), nil, nil)
		if err == nil {
			t.Fatal("expected get to fail")
		}
		if !strings.Contains(err.Error(), "failed to parse URL") {
			t.Errorf("expected error to contain 'failed to parse URL', got %s", err)
		}
	})
	t.Run("get request fails", func(t *testing.T) {
		client := New(logger.New(slog.LevelInfo))
		client.Transport = testhelper.MockRoundTripper{Fn: func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		}}
		_, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		if err == nil {
			t.Fatal("expected get request to fail")
		}
	})
	t.Run("broken JSON returns the status code", func(t *testing.T) {
		client := New(logger.NewLogger(slog.LevelInfo, io.Discard))
		client.Transport = testhelper.MockRoundTripper{Fn: jsonResponse(404, "not json")}
		status, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		if err == nil {
			t.Fatal("expected decoding to fail")
		}
		if status != 404 {
			t.Errorf("expected status code 404, got %d", status)
		}
	})
}

func TestClient_Post(t *testing.T) {
	t.Run("post request succeeds", func(t *testing.T) {
		var method string
		var body []byte
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			method = req.Method
			body, _ = io.ReadAll(req.Body)
			return jsonResponse(200, testJSON)(req)
		}

		client := New(logger.NewLogger(slog.LevelInfo, io.Discard))
		client.Transport = testhelper.MockRoundTripper{Fn: rtFn}

		target := new(testType)
		_, err := client.Post(t.Context(), "https://example.com", target, strings.NewReader(`{"a":1}`), nil)
		if err != nil {
			t.Fatalf("post request failed: %s", err)
		}
		if method != stdhttp.MethodPost {
			t.Errorf("expected method to be POST, got %s", method)
		}
		if string(body) != `{"a":1}` {
			t.Errorf("expected body to be forwarded, got %q", body)
		}
	})
	t.Run("closing the body fails but the request succeeds", func(t *testing.T) {
		client := New(logger.NewLogger(slog.LevelInfo, io.Discard))
		client.Transport = testhelper.MockRoundTripper{Fn: func(*stdhttp.Request) (*stdhttp.Response, error) {
			return &stdhttp.Response{
				StatusCode: 200,
				Body:       failCloser{strings.NewReader(testJSON)},
				Header:     make(stdhttp.Header),
			}, nil
		}}
		if _, err := client.Post(t.Context(), "https://example.com", new(testType), nil, nil); err != nil {
			t.Fatalf("post request failed: %s", err)
		}
	})
}

type failCloser struct {
	io.Reader
}

func (failCloser) Close() error { return errors.New("failed to close") }
