// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("default logger is enabled for the given level only", func(t *testing.T) {
		l := New(slog.LevelWarn)
		if l == nil {
			t.Fatal("expected logger to be non-nil")
		}
		if l.Enabled(t.Context(), slog.LevelInfo) {
			t.Error("expected info level to be disabled")
		}
		if !l.Enabled(t.Context(), slog.LevelWarn) {
			t.Error("expected warn level to be enabled")
		}
	})
}

func TestNewLogger(t *testing.T) {
	levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			l := NewLogger(level, buf)
			for _, msgLevel := range levels {
				l.Log(t.Context(), msgLevel, "position acquired")
			}

			// one record for the configured level and every level above it
			want := 0
			for _, msgLevel := range levels {
				if msgLevel >= level {
					want++
				}
			}
			if got := strings.Count(buf.String(), `msg="position acquired"`); got != want {
				t.Errorf("expected %d records, got %d: %s", want, got, buf.String())
			}
			if !strings.Contains(buf.String(), "level="+level.String()) {
				t.Errorf("expected a record with level %s, got: %s", level, buf.String())
			}
		})
	}
}

func TestErr(t *testing.T) {
	t.Run("error attribute is logged", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		l := NewLogger(slog.LevelDebug, buf)
		l.Error("failed to persist reading", Err(errors.New("connection refused")))

		want := `error="connection refused"`
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected log to contain %q, got: %q", want, buf.String())
		}
	})
	t.Run("nil error is logged as empty value", func(t *testing.T) {
		attr := Err(nil)
		if attr.Key != "error" {
			t.Errorf("expected key to be %q, got %q", "error", attr.Key)
		}
		if attr.Value.Any() != nil {
			t.Errorf("expected nil value, got %v", attr.Value.Any())
		}
	})
}
