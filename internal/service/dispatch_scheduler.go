package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vogiaan1904/rediclaim/config"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

type DispatchScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

type dispatchScheduler struct {
	gateSvc GateService
	cfg     config.GateConfig
	l       logger.Logger

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup

	// One lock per event id. A tick that is still working an event makes
	// the next tick skip that event instead of double-dispatching the
	// same popped batch.
	eventLocks map[string]*sync.Mutex
}

func NewDispatchScheduler(gateSvc GateService, cfg config.GateConfig, l logger.Logger) DispatchScheduler {
	locks := make(map[string]*sync.Mutex, len(cfg.EventIDs))
	for _, eventID := range cfg.EventIDs {
		locks[eventID] = &sync.Mutex{}
	}

	return &dispatchScheduler{
		gateSvc:    gateSvc,
		cfg:        cfg,
		l:          l,
		stopCh:     make(chan struct{}),
		eventLocks: locks,
	}
}

func (s *dispatchScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return errors.New("dispatch scheduler is already running")
	}

	s.l.Infof(ctx, "Starting dispatch scheduler: interval=%s batchSize=%d events=%v",
		s.cfg.DispatchInterval, s.cfg.DispatchBatchSize, s.cfg.EventIDs)

	s.isRunning = true
	s.ticker = time.NewTicker(s.cfg.DispatchInterval)

	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

func (s *dispatchScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return errors.New("dispatch scheduler is not running")
	}

	close(s.stopCh)
	s.ticker.Stop()
	s.wg.Wait()
	s.isRunning = false

	return nil
}

func (s *dispatchScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.l.Info(ctx, "Dispatch scheduler stopped: context cancelled")
			return
		case <-s.stopCh:
			s.l.Info(ctx, "Dispatch scheduler stopped")
			return
		case <-s.ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *dispatchScheduler) tick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, eventID := range s.cfg.EventIDs {
		lock := s.eventLocks[eventID]
		if !lock.TryLock() {
			s.l.Warnf(ctx, "Previous dispatch still running for event %s, skipping tick", eventID)
			continue
		}

		wg.Add(1)
		go func(eventID string, lock *sync.Mutex) {
			defer wg.Done()
			defer lock.Unlock()
			s.processEvent(ctx, eventID)
		}(eventID, lock)
	}
	wg.Wait()
}

// processEvent handles one event per tick: return stale processing entries to
// the queue first, then admit the next batch. A failure in either step is
// logged and never aborts the tick for other events.
func (s *dispatchScheduler) processEvent(ctx context.Context, eventID string) {
	tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.gateSvc.SweepStale(tickCtx, eventID); err != nil {
		s.l.Errorf(tickCtx, "service.dispatch_scheduler.processEvent: sweep failed for event %s: %v", eventID, err)
	}

	dispatched, err := s.gateSvc.DispatchOnce(tickCtx, eventID)
	if err != nil {
		s.l.Errorf(tickCtx, "service.dispatch_scheduler.processEvent: dispatch failed for event %s: %v", eventID, err)
		return
	}

	if dispatched > 0 {
		s.l.Debugf(tickCtx, "Event %s dispatched %d users to processing", eventID, dispatched)
	}
}
