// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"bufio"
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stratoberry/go-gpsd"
)

const (
	tpvNoFix = `{"class":"TPV","device":"/dev/ttyACM0","mode":1,"lat":1.0,"lon":1.0}`
	tpvFull  = `{"class":"TPV","device":"/dev/ttyACM0","mode":3,"time":"2025-11-24T10:44:41.000Z",` +
		`"lat":52.1234567891,"lon":13.9876543219,"alt":75.0,"epx":3.0,"epy":4.0}`
	tpvNoTime = `{"class":"TPV","device":"/dev/ttyACM0","mode":2,"lat":51.0,"lon":7.0}`
	gpsdHello = `{"class":"VERSION","release":"3.25","rev":"3.25","proto_major":3,"proto_minor":15}`
)

// mockGPSD is a gpsd stand-in that answers every watch request with the configured lines.
type mockGPSD struct {
	addr   string
	lines  []string
	closed chan struct{}

	mu       sync.Mutex
	accepted int
}

func startMockGPSD(t *testing.T, lines ...string) *mockGPSD {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen for mock gpsd: %s", err)
	}
	mock := &mockGPSD{addr: ln.Addr().String(), lines: lines, closed: make(chan struct{}, 64)}

	var wg sync.WaitGroup
	wg.Go(func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mock.mu.Lock()
			mock.accepted++
			mock.mu.Unlock()
			wg.Go(func() { mock.handle(conn) })
		}
	})
	t.Cleanup(func() {
		if err := ln.Close(); err != nil {
			t.Logf("failed to close mock gpsd listener: %s", err)
		}
		wg.Wait()
	})
	return mock
}

// handle writes the lines after the watch request and reports once the client hung up.
func (m *mockGPSD) handle(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		m.closed <- struct{}{}
	}()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)
	if _, err := reader.ReadString('\n'); err != nil {
		return
	}
	if _, err := conn.Write([]byte(gpsdHello + "\n")); err != nil {
		return
	}
	for _, line := range m.lines {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			return
		}
	}
	// Block until the client closes the connection.
	_, _ = reader.ReadString('\n')
}

func (m *mockGPSD) connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepted
}

func TestNewGPSD(t *testing.T) {
	src := NewGPSD("")
	if src.addr != DefaultGPSDAddress {
		t.Errorf("expected default address %q, got %q", DefaultGPSDAddress, src.addr)
	}
	if src.Name() != "gpsd" {
		t.Errorf("expected name gpsd, got %q", src.Name())
	}
}

func TestGPSD_Request(t *testing.T) {
	t.Run("first report with a fix is used", func(t *testing.T) {
		mock := startMockGPSD(t, tpvNoFix, tpvFull)
		reading, err := NewGPSD(mock.addr).Request(t.Context(), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to request reading: %s", err)
		}
		if reading.Position.Lat != 52.123456 || reading.Position.Lon != 13.987654 {
			t.Errorf("unexpected position: %s", reading.Position)
		}
		if reading.Accuracy != 5 {
			t.Errorf("expected accuracy 5, got %f", reading.Accuracy)
		}
		want := time.Date(2025, 11, 24, 10, 44, 41, 0, time.UTC)
		if !reading.At.Equal(want) {
			t.Errorf("expected the fix time %s, got %s", want, reading.At)
		}
	})
	t.Run("reports without a time are stamped now", func(t *testing.T) {
		mock := startMockGPSD(t, tpvNoTime)
		before := time.Now()
		reading, err := NewGPSD(mock.addr).Request(t.Context(), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to request reading: %s", err)
		}
		if reading.At.Before(before) {
			t.Errorf("expected reading to be stamped with the current time, got %s", reading.At)
		}
	})
	t.Run("stale fixes are rejected", func(t *testing.T) {
		mock := startMockGPSD(t, tpvFull)
		_, err := Acquire(t.Context(), NewGPSD(mock.addr), DefaultOptions())
		assertKind(t, err, KindUnavailable)
	})
	t.Run("connections are closed after each request", func(t *testing.T) {
		mock := startMockGPSD(t, tpvNoTime)
		src := NewGPSD(mock.addr)
		const requests = 5
		for range requests {
			if _, err := Acquire(t.Context(), src, DefaultOptions()); err != nil {
				t.Fatalf("failed to acquire reading: %s", err)
			}
		}
		for i := range requests {
			select {
			case <-mock.closed:
			case <-time.After(2 * time.Second):
				t.Fatalf("expected all gpsd connections to be closed, %d still open", requests-i)
			}
		}
		if got := mock.connections(); got != requests {
			t.Errorf("expected %d connections, got %d", requests, got)
		}
	})
	t.Run("connection failure is unavailable", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %s", err)
		}
		addr := ln.Addr().String()
		_ = ln.Close()
		_, err = NewGPSD(addr).Request(t.Context(), DefaultOptions())
		assertKind(t, err, KindUnavailable)
	})
	t.Run("closed stream is unavailable", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %s", err)
		}
		t.Cleanup(func() { _ = ln.Close() })
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte(tpvNoFix + "\n"))
			_ = conn.Close()
		}()
		_, err = NewGPSD(ln.Addr().String()).Request(t.Context(), DefaultOptions())
		assertKind(t, err, KindUnavailable)
	})
	t.Run("waiting for a fix times out", func(t *testing.T) {
		mock := startMockGPSD(t, tpvNoFix)
		_, err := Acquire(t.Context(), NewGPSD(mock.addr), Options{Timeout: 200 * time.Millisecond})
		assertKind(t, err, KindTimeout)
		select {
		case <-mock.closed:
		case <-time.After(2 * time.Second):
			t.Error("expected the connection to be closed after the timeout")
		}
	})
	t.Run("canceled context", func(t *testing.T) {
		mock := startMockGPSD(t, tpvFull)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if _, err := NewGPSD(mock.addr).Request(ctx, DefaultOptions()); err == nil {
			t.Fatal("expected request to fail with a canceled context")
		}
	})
}

func TestHorizontalAccuracyMeters(t *testing.T) {
	tests := []struct {
		name string
		tpv  *gpsd.TPVReport
		want float64
	}{
		{"horizontal error", &gpsd.TPVReport{Mode: gpsd.Mode3D, Eph: 17.67, Epx: 6, Epy: 8}, 17.67},
		{"error estimates", &gpsd.TPVReport{Mode: gpsd.Mode3D, Epx: 8.1, Epy: 11.4}, math.Hypot(8.1, 11.4)},
		{"3D fix fallback", &gpsd.TPVReport{Mode: gpsd.Mode3D}, fallbackAccuracy3DFix},
		{"2D fix fallback", &gpsd.TPVReport{Mode: gpsd.Mode2D}, fallbackAccuracy2DFix},
		{"no fix fallback", &gpsd.TPVReport{Mode: gpsd.NoFix}, fallbackAccuracyNoFix},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := horizontalAccuracyMeters(tc.tpv); got != tc.want {
				t.Errorf("expected accuracy %f, got %f", tc.want, got)
			}
		})
	}
}
