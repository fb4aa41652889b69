// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package positioning acquires single, fresh position readings from the positioning sources
// available on the host (gpsd, GeoClue, network geolocation or a static file).
package positioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
)

const (
	// DefaultTimeout is the maximum time a single acquisition may take.
	DefaultTimeout = time.Second * 10
)

// ErrNoCapability is returned when the host has no usable positioning source.
var ErrNoCapability = errors.New("geolocation is not supported on this host")

// Kind classifies why an acquisition failed.
type Kind string

const (
	KindPermissionDenied Kind = "permission-denied"
	KindTimeout          Kind = "timeout"
	KindUnavailable      Kind = "unavailable"
)

// Failure is the error returned for a failed acquisition. Failures are recoverable, a new
// acquisition may succeed.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

// NewFailure returns a Failure of the given kind.
func NewFailure(kind Kind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Options configures a single acquisition.
type Options struct {
	// HighAccuracy asks the source for the most precise fix it can provide.
	HighAccuracy bool
	// Timeout bounds the acquisition. Zero disables the bound.
	Timeout time.Duration
	// MaximumAge is the maximum age of an acceptable reading. Zero means the reading must have
	// been taken during the acquisition.
	MaximumAge time.Duration
}

// DefaultOptions returns high accuracy, a 10 second timeout and no reuse of cached readings.
func DefaultOptions() Options {
	return Options{
		HighAccuracy: true,
		Timeout:      DefaultTimeout,
		MaximumAge:   0,
	}
}

// Source defines an interface for positioning sources. Request returns a single reading.
type Source interface {
	Name() string
	Request(ctx context.Context, opts Options) (geo.Reading, error)
}

// Prober is implemented by sources that can tell up front whether they are usable on the host.
type Prober interface {
	Probe(ctx context.Context) error
}

// Probe reports ErrNoCapability if src is nil or its Prober reports an error.
func Probe(ctx context.Context, src Source) error {
	if src == nil {
		return ErrNoCapability
	}
	prober, ok := src.(Prober)
	if !ok {
		return nil
	}
	if err := prober.Probe(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoCapability, src.Name(), err)
	}
	return nil
}

// Acquire requests a single reading from src, bounded by opts.Timeout. Every error returned
// apart from ErrNoCapability is a *Failure.
func Acquire(ctx context.Context, src Source, opts Options) (geo.Reading, error) {
	var zero geo.Reading
	if src == nil {
		return zero, ErrNoCapability
	}

	started := time.Now()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reading, err := src.Request(ctx, opts)
	if err != nil {
		return zero, classify(ctx, err)
	}
	if reading.At.IsZero() {
		reading.At = time.Now()
	}
	if !reading.Position.Valid() {
		return zero, NewFailure(KindUnavailable, "source returned invalid coordinates "+
			reading.Position.String(), nil)
	}
	if reading.Accuracy < 0 {
		return zero, NewFailure(KindUnavailable, "source returned a negative accuracy", nil)
	}
	if reading.At.Before(started.Add(-opts.MaximumAge)) {
		return zero, NewFailure(KindUnavailable, "source returned a cached reading", nil)
	}

	return reading, nil
}

// classify turns source errors into a Failure. Failures created by the source are kept as is.
func classify(ctx context.Context, err error) error {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewFailure(KindTimeout, "timeout expired", err)
	}
	return NewFailure(KindUnavailable, "position unavailable", err)
}
