// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wneessen/geotrail/internal/logger"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals requests a location update on SIGUSR1 and clears the history of the
// configured user on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.requestUpdate(ctx)
			case syscall.SIGUSR2:
				if err := s.tracker.ClearHistory(ctx); err != nil {
					s.logger.Error("failed to clear location history", logger.Err(err))
				}
			}
		}
	}
}

// HandleAdminSignals toggles the map layer on SIGUSR1 and refreshes the timelines on SIGUSR2.
func (s *Service) HandleAdminSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.viewLock.Lock()
				s.layer = s.layer.Toggle()
				s.viewLock.Unlock()
				s.printTimeline(ctx)
			case syscall.SIGUSR2:
				s.refreshTimelines(ctx)
			}
		}
	}
}

// requestUpdate starts an acquisition without blocking the signal loop. A request while an
// acquisition is in flight is ignored by the tracker.
func (s *Service) requestUpdate(ctx context.Context) {
	s.updates.Go(func() {
		if !s.tracker.Update(ctx) {
			s.logger.Debug("location update already in progress, ignoring request")
		}
	})
}
