// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"regexp"
	"strconv"
	"testing"
)

func TestUserColor(t *testing.T) {
	t.Run("known hashes", func(t *testing.T) {
		tests := []struct {
			id   string
			want string
		}{
			{"", "hsl(0, 70%, 40%)"},
			{"a", "hsl(97, 70%, 40%)"},
			{"ab", "hsl(105, 70%, 40%)"},
		}
		for _, tt := range tests {
			t.Run(tt.id, func(t *testing.T) {
				if got := UserColor(tt.id); got != tt.want {
					t.Errorf("expected %s, got %s", tt.want, got)
				}
			})
		}
	})
	t.Run("colors are deterministic and never red", func(t *testing.T) {
		pattern := regexp.MustCompile(`^hsl\((\d+), 70%, 40%\)$`)
		ids := []string{
			"alice", "bob", "3f0c7a8e-5b8e-4a56-9d4e-1c2b3a4d5e6f", "ünïcödé", "😀", "a-very-long-user-id-that-overflows-the-hash",
		}
		for _, id := range ids {
			color := UserColor(id)
			if color != UserColor(id) {
				t.Errorf("expected color of %q to be deterministic", id)
			}
			match := pattern.FindStringSubmatch(color)
			if match == nil {
				t.Fatalf("unexpected color format: %s", color)
			}
			hue, _ := strconv.Atoi(match[1])
			if hue < 0 || hue >= 300 {
				t.Errorf("expected hue below 300 for %q, got %d", id, hue)
			}
		}
	})
}

func TestRender(t *testing.T) {
	t.Run("paths and markers for visible users", func(t *testing.T) {
		got := Render(testTimelines(), nil, "", LayerStandard)
		if len(got) != 3 {
			t.Fatalf("expected 3 instructions, got %d", len(got))
		}
		if got[0].Kind != KindPath || got[0].UserID != "alice" || len(got[0].Points) != 2 {
			t.Errorf("expected path for alice first, got %+v", got[0])
		}
		if got[1].Kind != KindMarker || got[1].UserID != "alice" {
			t.Errorf("expected marker for alice second, got %+v", got[1])
		}
		if got[1].Points[0] != testTimelines()[0].LastLocation.Position {
			t.Errorf("expected marker at the latest location, got %v", got[1].Points)
		}
		if got[2].Kind != KindMarker || got[2].UserID != "bob" || got[2].Label != "bob@example.com" {
			t.Errorf("expected only a marker for bob, got %+v", got[2])
		}
		for _, in := range got {
			if in.Color != UserColor(in.UserID) || in.Layer != LayerStandard {
				t.Errorf("unexpected color or layer: %+v", in)
			}
		}
	})
	t.Run("selected user is highlighted and drawn last", func(t *testing.T) {
		got := Render(testTimelines(), nil, "alice", LayerSatellite)
		if len(got) != 3 {
			t.Fatalf("expected 3 instructions, got %d", len(got))
		}
		if got[0].UserID != "bob" {
			t.Errorf("expected bob first, got %s", got[0].UserID)
		}
		for _, in := range got[1:] {
			if in.UserID != "alice" || in.Color != SelectedColor {
				t.Errorf("expected highlighted alice, got %+v", in)
			}
		}
		if got[1].Weight != 5 || got[1].Opacity != 0.8 {
			t.Errorf("expected highlighted path style, got %+v", got[1])
		}
		if got[2].ZIndex != 1000 || got[0].ZIndex != 500 {
			t.Errorf("expected selected marker on top, got %d and %d", got[2].ZIndex, got[0].ZIndex)
		}
	})
	t.Run("hidden users are skipped", func(t *testing.T) {
		got := Render(testTimelines(), map[string]bool{"alice": false, "bob": true}, "", LayerStandard)
		if len(got) != 1 || got[0].UserID != "bob" {
			t.Errorf("expected only bob, got %+v", got)
		}
	})
	t.Run("no timelines", func(t *testing.T) {
		if got := Render(nil, nil, "", LayerStandard); len(got) != 0 {
			t.Errorf("expected no instructions, got %d", len(got))
		}
	})
}

func TestBounds(t *testing.T) {
	t.Run("selected user path", func(t *testing.T) {
		if got := Bounds(testTimelines(), nil, "alice"); len(got) != 2 {
			t.Errorf("expected the path of alice, got %v", got)
		}
	})
	t.Run("latest locations of visible users", func(t *testing.T) {
		got := Bounds(testTimelines(), map[string]bool{"bob": false}, "")
		if len(got) != 1 || got[0].Lat != 52.6 {
			t.Errorf("expected the latest location of alice only, got %v", got)
		}
	})
}

func TestLayer(t *testing.T) {
	if LayerStandard.Toggle() != LayerSatellite || LayerSatellite.Toggle() != LayerStandard {
		t.Error("expected layers to toggle")
	}
	if Layer("unknown").TileURL() != LayerStandard.TileURL() {
		t.Error("expected unknown layers to use the standard tiles")
	}
	if LayerSatellite.TileURL() == LayerStandard.TileURL() {
		t.Error("expected distinct tile URLs")
	}
}
