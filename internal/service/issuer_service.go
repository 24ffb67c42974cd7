package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/rediclaim/internal/delivery/kafka"
	"github.com/vogiaan1904/rediclaim/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/rediclaim/internal/models"
	pgrepo "github.com/vogiaan1904/rediclaim/internal/repository/postgres"
	repo "github.com/vogiaan1904/rediclaim/internal/repository/redis"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

type CreateCouponInput struct {
	Name      string
	Quantity  int64
	CreatorID string
}

type IssuerService interface {
	// AllocateAndIssue makes the final stock decision and, on success,
	// hands the allocation to the durability pipeline. Safe to call
	// repeatedly: a retried success resolves to ALREADY_ISSUED.
	AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error)
	// ProcessIssueRequest is AllocateAndIssue for a gate-admitted request:
	// after any terminal verdict it confirms the requester's departure
	// from the gate's processing set.
	ProcessIssueRequest(ctx context.Context, eventID, userID string) (models.IssueResult, error)
	CreateCoupon(ctx context.Context, inp CreateCouponInput) (*models.Coupon, error)
	GetCoupon(ctx context.Context, id string) (*models.Coupon, error)
	ListValidCoupons(ctx context.Context) ([]models.Coupon, error)
	ListUserCoupons(ctx context.Context, userID string) ([]models.IssuedCoupon, error)
}

type issuerService struct {
	stockRepo  repo.StockRepository
	gateRepo   repo.GateRepository
	couponRepo pgrepo.CouponRepository
	issuedRepo pgrepo.IssuedCouponRepository
	prod       producer.Producer
	l          logger.Logger
}

func NewIssuerService(
	stockRepo repo.StockRepository,
	gateRepo repo.GateRepository,
	couponRepo pgrepo.CouponRepository,
	issuedRepo pgrepo.IssuedCouponRepository,
	prod producer.Producer,
	l logger.Logger,
) IssuerService {
	return &issuerService{
		stockRepo:  stockRepo,
		gateRepo:   gateRepo,
		couponRepo: couponRepo,
		issuedRepo: issuedRepo,
		prod:       prod,
		l:          l,
	}
}

func (s *issuerService) AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error) {
	result, err := s.stockRepo.AllocateAndIssue(ctx, userID, couponID)
	if err != nil {
		return "", fmt.Errorf("failed to allocate stock: %w", err)
	}

	if result != models.IssueResultSuccess {
		return result, nil
	}

	event := kafka.CouponIssuedEvent{
		ID:       uuid.New().String(),
		UserID:   userID,
		CouponID: couponID,
		IssuedAt: time.Now(),
	}
	if err := s.prod.PublishCouponIssued(ctx, event); err != nil {
		// The allocation only counts once it is on its way to durable
		// storage. Roll it back so a caller retry re-enters cleanly.
		if compErr := s.stockRepo.Compensate(ctx, userID, couponID); compErr != nil {
			s.l.Errorf(ctx, "service.issuer_service.AllocateAndIssue: compensation failed: %v", compErr)
		}
		return "", fmt.Errorf("failed to publish issuance event: %w", err)
	}

	s.l.Infof(ctx, "Coupon issued: userID=%s couponID=%s", userID, couponID)

	return models.IssueResultSuccess, nil
}

func (s *issuerService) ProcessIssueRequest(ctx context.Context, eventID, userID string) (models.IssueResult, error) {
	result, err := s.AllocateAndIssue(ctx, userID, eventID)
	if err != nil {
		return "", err
	}

	// Every verdict is terminal for the admission attempt, so the gate's
	// processing entry can go either way.
	if err := s.gateRepo.RemoveFromProcessing(ctx, eventID, []string{userID}); err != nil {
		s.l.Errorf(ctx, "service.issuer_service.ProcessIssueRequest: confirm failed for user %s: %v", userID, err)
		// The entry will be swept back and resolved as ALREADY_ISSUED.
	}

	return result, nil
}

func (s *issuerService) CreateCoupon(ctx context.Context, inp CreateCouponInput) (*models.Coupon, error) {
	coupon := &models.Coupon{
		ID:             uuid.New().String(),
		Name:           inp.Name,
		RemainingCount: inp.Quantity,
		CreatorID:      inp.CreatorID,
	}

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	// Initialize the fast-path counter. Until this lands the issue script
	// reports NOT_FOUND, so creation is not complete without it.
	if err := s.stockRepo.InitStock(ctx, coupon.ID, inp.Quantity); err != nil {
		return nil, fmt.Errorf("failed to initialize stock: %w", err)
	}

	s.l.Infof(ctx, "Coupon created: id=%s name=%s quantity=%d", coupon.ID, coupon.Name, inp.Quantity)

	return coupon, nil
}

func (s *issuerService) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	return s.couponRepo.GetByID(ctx, id)
}

func (s *issuerService) ListValidCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.couponRepo.ListValid(ctx)
}

func (s *issuerService) ListUserCoupons(ctx context.Context, userID string) ([]models.IssuedCoupon, error) {
	return s.issuedRepo.ListByUser(ctx, userID)
}
