package service

import (
	"context"
	"errors"
	"time"

	"github.com/creatorhub/payout-service/internal/metrics"
	"github.com/creatorhub/payout-service/internal/model"
	"github.com/creatorhub/payout-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusPublisher publishes payout status changes for downstream consumers
type StatusPublisher interface {
	PublishStatus(ctx context.Context, record *model.PayoutRecord) error
}

// PayoutService wraps the dispatcher with persistence, events and metrics.
// The dispatcher itself stays stateless; everything shared lives here or
// behind the repository.
type PayoutService struct {
	dispatcher *Dispatcher
	repo       repository.PayoutRepository
	publisher  StatusPublisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPayoutService creates a new payout service. publisher and m may be
// nil (tests, or running without Kafka).
func NewPayoutService(
	dispatcher *Dispatcher,
	repo repository.PayoutRepository,
	publisher StatusPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PayoutService {
	return &PayoutService{
		dispatcher: dispatcher,
		repo:       repo,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

// Dispatch routes the withdrawal to its provider rail and persists the
// outcome. The persisted record wraps the immutable PayoutResult; no
// retry happens here, duplicating a financial transfer is worse than
// surfacing the failure.
func (s *PayoutService) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutRecord, error) {
	// Routing and validation failures must leave no record behind
	method, err := model.ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	req.Method = method
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	record := &model.PayoutRecord{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Method:    req.Method,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    model.PayoutStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.SavePayout(ctx, record); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.dispatcher.Dispatch(ctx, req)
	elapsed := time.Since(start).Seconds()

	record.UpdatedAt = time.Now()

	if err != nil {
		record.Status = model.PayoutStatusFailed
		record.Message = err.Error()
		if saveErr := s.repo.SavePayout(ctx, record); saveErr != nil {
			s.logger.Error("Failed to persist failed payout",
				zap.String("payoutId", record.ID), zap.Error(saveErr))
		}
		s.observeDispatch(req.Method, string(model.PayoutStatusFailed), elapsed, err)
		s.publish(ctx, record)
		s.logger.Error("Payout dispatch failed",
			zap.String("payoutId", record.ID),
			zap.String("method", string(req.Method)),
			zap.Error(err),
		)
		return nil, err
	}

	record.Status = result.Status
	record.RequiresAction = result.RequiresAction
	record.ProviderReference = result.ProviderReference
	record.InternalReference = result.InternalReference
	record.Message = result.Message

	if err := s.repo.SavePayout(ctx, record); err != nil {
		// The transfer is already in flight; surface the record anyway
		s.logger.Error("Failed to persist payout result",
			zap.String("payoutId", record.ID), zap.Error(err))
	}

	s.observeDispatch(req.Method, string(result.Status), elapsed, nil)
	s.publish(ctx, record)

	s.logger.Info("Payout dispatched",
		zap.String("payoutId", record.ID),
		zap.String("method", string(req.Method)),
		zap.String("status", string(result.Status)),
		zap.String("providerRef", result.ProviderReference),
	)

	return record, nil
}

// Verify polls the owning provider for the payout identified by the
// stored reference. It never mutates the original result; the known
// record, if any, gets its LastVerifiedStatus annotated.
func (s *PayoutService) Verify(ctx context.Context, reference, rawMethod string) (*model.VerificationResult, error) {
	result, err := s.dispatcher.Verify(ctx, reference, rawMethod)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordProviderError(providerFor(rawMethod), errorKind(err))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordVerification(providerFor(rawMethod), result.Status)
	}

	record, lookupErr := s.repo.GetByProviderReference(ctx, reference)
	if lookupErr == nil {
		record.LastVerifiedStatus = result.Status
		record.UpdatedAt = time.Now()
		if saveErr := s.repo.SavePayout(ctx, record); saveErr != nil {
			s.logger.Warn("Failed to annotate verified status",
				zap.String("payoutId", record.ID), zap.Error(saveErr))
		} else {
			s.publish(ctx, record)
		}
	} else if !errors.Is(lookupErr, repository.ErrNotFound) {
		s.logger.Warn("Payout lookup failed during verification",
			zap.String("reference", reference), zap.Error(lookupErr))
	}

	return result, nil
}

// GetPayout retrieves a payout record by ID
func (s *PayoutService) GetPayout(ctx context.Context, id string) (*model.PayoutRecord, error) {
	return s.repo.GetPayout(ctx, id)
}

// ListPayouts retrieves payout records with filters
func (s *PayoutService) ListPayouts(ctx context.Context, filter repository.PayoutFilter) ([]*model.PayoutRecord, error) {
	return s.repo.ListPayouts(ctx, filter)
}

func (s *PayoutService) observeDispatch(method model.Method, status string, seconds float64, err error) {
	if s.metrics == nil {
		return
	}
	provider := string(method.Family())
	s.metrics.RecordDispatch(string(method), status, provider, seconds)
	if err != nil {
		s.metrics.RecordProviderError(provider, errorKind(err))
	}
}

func (s *PayoutService) publish(ctx context.Context, record *model.PayoutRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatus(ctx, record); err != nil {
		s.logger.Warn("Failed to publish payout status",
			zap.String("payoutId", record.ID), zap.Error(err))
	}
}

func providerFor(rawMethod string) string {
	method, err := model.ParseMethod(rawMethod)
	if err != nil {
		return "unknown"
	}
	return string(method.Family())
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrAuthenticationFailed):
		return "authentication"
	case errors.Is(err, model.ErrUnsupportedMethod):
		return "unsupported_method"
	case errors.Is(err, model.ErrInvalidInstrument):
		return "invalid_instrument"
	case errors.Is(err, model.ErrPayoutFailed):
		return "payout_failed"
	case errors.Is(err, model.ErrVerificationFailed):
		return "verification_failed"
	default:
		return "unknown"
	}
}
