// Package service contains the business logic layer.
//
// This file implements the quota guard that admits or refuses new analyses
// based on the owner's plan.
package service

import (
	"context"
	"log/slog"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines admission and reporting against the free plan limit.
// Usage is advanced only by the completion transaction in CallbackService.
type QuotaService interface {
	// Admit returns nil when userID may submit another analysis, or a
	// domain.EQUOTA error when a free profile has used its limit.
	// It never mutates usage.
	Admit(ctx context.Context, userID uuid.UUID) error

	// GetUsage returns the current quota usage for a user.
	GetUsage(ctx context.Context, userID uuid.UUID) (*domain.QuotaUsage, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	queries repository.Querier
	limit   int64
	logger  *slog.Logger
}

// NewQuotaService creates a new QuotaService. A non-positive limit falls
// back to domain.DefaultFreeTierLimit.
func NewQuotaService(queries repository.Querier, limit int64, logger *slog.Logger) QuotaService {
	if limit <= 0 {
		limit = domain.DefaultFreeTierLimit
	}
	return &quotaService{
		queries: queries,
		limit:   limit,
		logger:  logger,
	}
}

// Admit checks the owner's usage against the plan limit.
func (s *quotaService) Admit(ctx context.Context, userID uuid.UUID) error {
	const op = "quota.admit"

	usage, err := s.usage(ctx, op, userID)
	if err != nil {
		return err
	}

	if usage.Exhausted() {
		s.logger.Info("Analysis quota exceeded",
			"user_id", userID,
			"plan", usage.Plan,
			"used", usage.Used,
			"limit", usage.Limit,
		)
		metrics.QuotaRejected()
		return domain.QuotaExceeded(op, domain.QuotaTypeAnalysis, usage.Used, usage.Limit)
	}

	return nil
}

// GetUsage returns the current quota usage for a user.
func (s *quotaService) GetUsage(ctx context.Context, userID uuid.UUID) (*domain.QuotaUsage, error) {
	return s.usage(ctx, "quota.get_usage", userID)
}

// usage reads the profile, provisioning a free profile on first sight.
func (s *quotaService) usage(ctx context.Context, op string, userID uuid.UUID) (*domain.QuotaUsage, error) {
	if err := s.queries.EnsureProfile(ctx, userID); err != nil {
		s.logger.Error("failed to ensure profile", "error", err, "op", op, "user_id", userID)
		return nil, domain.Persistence(err, op, "failed to load usage profile")
	}

	rp, err := s.queries.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get profile", "error", err, "op", op, "user_id", userID)
		return nil, domain.Persistence(err, op, "failed to load usage profile")
	}

	profile := repoProfileToDomain(rp)
	if !profile.Plan.IsValid() {
		s.logger.Warn("unrecognized plan, metering as free", "op", op, "user_id", userID, "plan", profile.Plan)
		profile.Plan = domain.PlanFree
	}

	usage := domain.NewQuotaUsage(profile, s.limit)
	return &usage, nil
}
