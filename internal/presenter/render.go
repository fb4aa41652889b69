// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/timeline"
)

// SelectedColor is reserved for the selected user. UserColor never returns a red hue.
const SelectedColor = "red"

// Layer is a map base layer.
type Layer string

const (
	LayerStandard  Layer = "standard"
	LayerSatellite Layer = "satellite"
)

// TileURL returns the tile URL template of the layer. Unknown layers use the standard layer.
func (l Layer) TileURL() string {
	if url, ok := tileURLs[l]; ok {
		return url
	}
	return tileURLs[LayerStandard]
}

// Toggle returns the other layer.
func (l Layer) Toggle() Layer {
	if l == LayerSatellite {
		return LayerStandard
	}
	return LayerSatellite
}

// InstructionKind is the kind of map element to draw.
type InstructionKind string

const (
	KindMarker InstructionKind = "marker"
	KindPath   InstructionKind = "path"
)

// Instruction describes a single map element.
type Instruction struct {
	Kind        InstructionKind `json:"kind"`
	Layer       Layer           `json:"layer"`
	UserID      string          `json:"user_id"`
	Label       string          `json:"label"`
	Color       string          `json:"color"`
	Weight      int             `json:"weight,omitempty"`
	Opacity     float64         `json:"opacity,omitempty"`
	ZIndex      int             `json:"z_index,omitempty"`
	Points      []geo.GeoPoint  `json:"points"`
	Locations   int             `json:"locations"`
	LastUpdated time.Time       `json:"last_updated"`
}

// UserColor returns a deterministic color for a user id. The hue is limited to 0-299 so red
// stays reserved for the selected user.
func UserColor(userID string) string {
	var hash int64
	for _, c := range utf16.Encode([]rune(userID)) {
		hash = int64(c) + (int64(int32(hash)<<5) - hash)
	}
	if hash < 0 {
		hash = -hash
	}
	return fmt.Sprintf("hsl(%d, 70%%, 40%%)", hash%300)
}

// Render returns the map elements for the visible users. Users missing from visibility are
// visible. The selected user is drawn in SelectedColor, above and after all other users. Users
// without a latest location are skipped.
func Render(timelines []timeline.UserTimeline, visibility map[string]bool, selected string,
	layer Layer,
) []Instruction {
	var instructions, highlighted []Instruction
	for _, tl := range timelines {
		if tl.LastLocation == nil {
			continue
		}
		if visible, ok := visibility[tl.Identity.ID]; ok && !visible {
			continue
		}

		isSelected := tl.Identity.ID == selected
		color := UserColor(tl.Identity.ID)
		weight, opacity, zIndex := 3, 0.6, 500
		if isSelected {
			color = SelectedColor
			weight, opacity, zIndex = 5, 0.8, 1000
		}

		var elements []Instruction
		if len(tl.Points) > 1 {
			path := make([]geo.GeoPoint, 0, len(tl.Points))
			for _, point := range tl.Points {
				path = append(path, point.Position)
			}
			elements = append(elements, Instruction{
				Kind:      KindPath,
				Layer:     layer,
				UserID:    tl.Identity.ID,
				Label:     tl.Identity.DisplayName(),
				Color:     color,
				Weight:    weight,
				Opacity:   opacity,
				Points:    path,
				Locations: len(tl.Points),
			})
		}
		elements = append(elements, Instruction{
			Kind:        KindMarker,
			Layer:       layer,
			UserID:      tl.Identity.ID,
			Label:       tl.Identity.DisplayName(),
			Color:       color,
			ZIndex:      zIndex,
			Points:      []geo.GeoPoint{tl.LastLocation.Position},
			Locations:   len(tl.Points),
			LastUpdated: tl.LastLocation.At,
		})

		if isSelected {
			highlighted = append(highlighted, elements...)
			continue
		}
		instructions = append(instructions, elements...)
	}
	return append(instructions, highlighted...)
}

// Bounds returns the points the map view should fit: the path of the selected user, or the
// latest locations of all visible users without a selection.
func Bounds(timelines []timeline.UserTimeline, visibility map[string]bool, selected string) []geo.GeoPoint {
	var bounds []geo.GeoPoint
	for _, tl := range timelines {
		if selected != "" {
			if tl.Identity.ID != selected {
				continue
			}
			for _, point := range tl.Points {
				bounds = append(bounds, point.Position)
			}
			return bounds
		}
		if visible, ok := visibility[tl.Identity.ID]; (ok && !visible) || tl.LastLocation == nil {
			continue
		}
		bounds = append(bounds, tl.LastLocation.Position)
	}
	return bounds
}
