package service

import (
	"context"
	"fmt"

	"github.com/vogiaan1904/rediclaim/config"
	"github.com/vogiaan1904/rediclaim/internal/dispatcher"
	"github.com/vogiaan1904/rediclaim/internal/models"
	repo "github.com/vogiaan1904/rediclaim/internal/repository/redis"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

type EnqueueOutput struct {
	Status models.EnqueueStatus `json:"status"`
	Rank   int64                `json:"rank"`
}

type QueueStatusOutput struct {
	Status models.QueueStatus `json:"status"`
	Rank   *int64             `json:"rank,omitempty"`
}

type GateService interface {
	Enqueue(ctx context.Context, eventID, userID string) (EnqueueOutput, error)
	GetStatus(ctx context.Context, eventID, userID string) (QueueStatusOutput, error)
	DispatchOnce(ctx context.Context, eventID string) (int, error)
	SweepStale(ctx context.Context, eventID string) (int, error)
}

type gateService struct {
	gateRepo repo.GateRepository
	disp     dispatcher.Dispatcher
	cfg      config.GateConfig
	l        logger.Logger
}

func NewGateService(
	gateRepo repo.GateRepository,
	disp dispatcher.Dispatcher,
	cfg config.GateConfig,
	l logger.Logger,
) GateService {
	return &gateService{
		gateRepo: gateRepo,
		disp:     disp,
		cfg:      cfg,
		l:        l,
	}
}

func (s *gateService) Enqueue(ctx context.Context, eventID, userID string) (EnqueueOutput, error) {
	enqueued, rank, err := s.gateRepo.Enqueue(ctx, eventID, userID)
	if err != nil {
		return EnqueueOutput{}, fmt.Errorf("failed to enqueue: %w", err)
	}

	status := models.EnqueueStatusEnqueued
	if !enqueued {
		// Duplicate enqueue is a normal outcome: report the existing rank.
		status = models.EnqueueStatusAlreadyEnqueued
	}

	s.l.Debugf(ctx, "Enqueue: eventID=%s userID=%s status=%s rank=%d", eventID, userID, status, rank)

	return EnqueueOutput{
		Status: status,
		Rank:   rank,
	}, nil
}

func (s *gateService) GetStatus(ctx context.Context, eventID, userID string) (QueueStatusOutput, error) {
	rank, err := s.gateRepo.GetRank(ctx, eventID, userID)
	if err != nil {
		return QueueStatusOutput{}, fmt.Errorf("failed to get rank: %w", err)
	}
	if rank >= 0 {
		return QueueStatusOutput{
			Status: models.QueueStatusWaiting,
			Rank:   &rank,
		}, nil
	}

	processing, err := s.gateRepo.IsProcessing(ctx, eventID, userID)
	if err != nil {
		return QueueStatusOutput{}, fmt.Errorf("failed to check processing: %w", err)
	}
	if processing {
		return QueueStatusOutput{Status: models.QueueStatusProcessing}, nil
	}

	// Not in the queue and not processing: issued, timed out, or never
	// entered. The gate cannot distinguish these.
	return QueueStatusOutput{Status: models.QueueStatusUnknown}, nil
}

func (s *gateService) DispatchOnce(ctx context.Context, eventID string) (int, error) {
	batchSize := s.cfg.DispatchBatchSize
	if batchSize <= 0 {
		return 0, nil
	}

	entries, err := s.gateRepo.PopToProcessing(ctx, eventID, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to pop batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.disp.DispatchBatch(ctx, eventID, entries); err != nil {
		// Entries stay in processing; the stale sweep returns them to the
		// queue with their original tickets once the timeout elapses.
		return 0, fmt.Errorf("failed to dispatch batch: %w", err)
	}

	s.l.Infof(ctx, "Dispatched %d entries for event %s", len(entries), eventID)

	return len(entries), nil
}

func (s *gateService) SweepStale(ctx context.Context, eventID string) (int, error) {
	requeued, err := s.gateRepo.RequeueStale(ctx, eventID, s.cfg.StaleTimeout, s.cfg.MaxRequeue)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale entries: %w", err)
	}

	return requeued, nil
}
