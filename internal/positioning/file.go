// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
)

// FileAccuracy is the accuracy assumed for a position file without an explicit accuracy.
const FileAccuracy = 5

const fileName = "file"

var ErrNoCoordinates = errors.New("no valid coordinates found in position file")

// File reads the position from a text file. The first line that is not a comment has to
// be in the form "lat,lon" or "lat,lon,accuracy".
type File struct {
	name string
	path string
}

// NewFile returns a file source for path.
func NewFile(path string) *File {
	return &File{
		name: fileName,
		path: path,
	}
}

func (f *File) Name() string {
	return f.name
}

// Probe fails if the position file does not exist.
func (f *File) Probe(context.Context) error {
	if _, err := os.Stat(f.path); err != nil {
		return fmt.Errorf("position file not accessible: %w", err)
	}
	return nil
}

// Request reads the file on every call, so every reading is fresh.
func (f *File) Request(ctx context.Context, _ Options) (geo.Reading, error) {
	if err := ctx.Err(); err != nil {
		return geo.Reading{}, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return geo.Reading{}, NewFailure(KindPermissionDenied, "position file not readable", err)
		}
		return geo.Reading{}, NewFailure(KindUnavailable, "failed to read position file", err)
	}

	reading, err := parsePosition(string(data))
	if err != nil {
		return geo.Reading{}, NewFailure(KindUnavailable, "failed to parse position file", err)
	}
	reading.At = time.Now()
	return reading, nil
}

func parsePosition(data string) (geo.Reading, error) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 && len(fields) != 3 {
			continue
		}
		values := make([]float64, len(fields))
		valid := true
		for i, field := range fields {
			val, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				valid = false
				break
			}
			values[i] = val
		}
		if !valid {
			continue
		}

		reading := geo.Reading{
			Position: geo.GeoPoint{Lat: values[0], Lon: values[1]},
			Accuracy: FileAccuracy,
		}
		if len(values) == 3 {
			reading.Accuracy = values[2]
		}
		return reading, nil
	}
	return geo.Reading{}, ErrNoCoordinates
}
