// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package positioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wneessen/geotrail/internal/geo"
)

const chainName = "auto"

// Chain asks several sources concurrently and returns the most accurate reading. Sources that
// failed their probe are not asked.
type Chain struct {
	sources []Source

	mu        sync.RWMutex
	available []Source
}

// NewChain returns a chain of the given sources in order of preference. Nil sources are
// skipped.
func NewChain(sources ...Source) *Chain {
	chain := &Chain{}
	for _, src := range sources {
		if src != nil {
			chain.sources = append(chain.sources, src)
		}
	}
	chain.available = chain.sources
	return chain
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, src := range c.sources {
		names = append(names, src.Name())
	}
	return chainName + "(" + strings.Join(names, ",") + ")"
}

// Probe probes all sources and keeps the available ones. It fails only if no source is
// available.
func (c *Chain) Probe(ctx context.Context) error {
	var available []Source
	var errs []error
	for _, src := range c.sources {
		if err := Probe(ctx, src); err != nil {
			errs = append(errs, err)
			continue
		}
		available = append(available, src)
	}

	c.mu.Lock()
	c.available = available
	c.mu.Unlock()
	if len(available) == 0 {
		errs = append(errs, errors.New("no positioning source available"))
		return errors.Join(errs...)
	}
	return nil
}

// Request asks all available sources. On ties the source listed first wins. If all sources
// fail, the error of the source listed first is returned.
func (c *Chain) Request(ctx context.Context, opts Options) (geo.Reading, error) {
	c.mu.RLock()
	sources := c.available
	c.mu.RUnlock()
	if len(sources) == 0 {
		return geo.Reading{}, NewFailure(KindUnavailable, "no positioning source available", nil)
	}

	readings := make([]geo.Reading, len(sources))
	errs := make([]error, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Go(func() {
			readings[i], errs[i] = safeRequest(ctx, src, opts)
		})
	}
	wg.Wait()

	best := -1
	for i := range sources {
		if errs[i] != nil {
			continue
		}
		if best < 0 || readings[i].Accuracy < readings[best].Accuracy {
			best = i
		}
	}
	if best < 0 {
		return geo.Reading{}, errs[0]
	}
	return readings[best], nil
}

// safeRequest recovers from panics in a source, so a single broken source does not take down
// the tracker.
func safeRequest(ctx context.Context, src Source, opts Options) (reading geo.Reading, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewFailure(KindUnavailable, fmt.Sprintf("source %s panicked: %v", src.Name(), r), nil)
		}
	}()
	return src.Request(ctx, opts)
}
