// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestNew(t *testing.T) {
	t.Run("new i18n provider with empty locale string succeeds", func(t *testing.T) {
		provider, err := New("")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if provider == nil {
			t.Fatal("expected i18n provider to be non-nil")
		}
	})
	t.Run("german translations are loaded", func(t *testing.T) {
		provider, err := New("de")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if provider.Language() != language.German {
			t.Errorf("expected language to be german, got %s", provider.Language())
		}
		if got := provider.Get("Latitude"); got != "Breitengrad" {
			t.Errorf("expected translation Breitengrad, got %q", got)
		}
	})
	t.Run("english uses the source strings", func(t *testing.T) {
		provider, err := New("en")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Latitude"); got != "Latitude" {
			t.Errorf("expected source string, got %q", got)
		}
	})
}

func TestNewHumanizer(t *testing.T) {
	provider, err := New("en")
	if err != nil {
		t.Fatalf("failed to create i18n provider: %s", err)
	}
	humanizer := NewHumanizer(provider)
	if got := humanizer.NaturalTime(time.Now().Add(-time.Hour * 3)); got != "3 hours ago" {
		t.Errorf("expected 3 hours ago, got %q", got)
	}
}
