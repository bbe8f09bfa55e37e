// Package service contains the business logic layer.
//
// This file implements the analysis job store: submission, owner-scoped
// reads, daily summaries and the guarded failure transition.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/bjhnbjh/vibecoding-camera/internal/storage"
	"github.com/bjhnbjh/vibecoding-camera/internal/worker"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AnalysisService defines the operations on analysis jobs.
type AnalysisService interface {
	// Submit admits, stores and enqueues a new analysis. The returned
	// analysis is in status processing; dispatch happens in the background.
	// Returns domain.EQUOTA, domain.EINVALID, domain.ETOOLARGE or
	// domain.EPERSISTENCE. Nothing is created when an error is returned.
	Submit(ctx context.Context, params domain.SubmitAnalysisParams) (*domain.Analysis, error)

	// Get returns the analysis if userID owns it, and domain.ENOTFOUND
	// otherwise, including for other owners' analyses.
	Get(ctx context.Context, id, userID uuid.UUID) (*domain.Analysis, error)

	// DailySummary sums userID's completed meals for the UTC day containing day.
	DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.DailySummary, error)

	// Fail moves a processing analysis to failed. The bool reports whether
	// this call made the transition; false means it was already terminal.
	Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Analysis, bool, error)
}

// AnalysisCache stores terminal analyses for fast polling reads.
type AnalysisCache interface {
	// Get returns the cached analysis and whether it was found.
	Get(ctx context.Context, id uuid.UUID) (*domain.Analysis, bool, error)

	// Set caches a terminal analysis. Non-terminal analyses are ignored.
	Set(ctx context.Context, a *domain.Analysis) error
}

// AnalysisConfig holds the tunables of AnalysisService.
type AnalysisConfig struct {
	MaxUploadSize       int64
	MaxImageDimension   int
	DispatchMaxAttempts int32
}

// =============================================================================
// Implementation
// =============================================================================

type analysisService struct {
	store     repository.Store
	quota     QuotaService
	storage   storage.Storage
	processor ImageProcessor
	cache     AnalysisCache
	config    AnalysisConfig
	logger    *slog.Logger
}

// NewAnalysisService creates a new AnalysisService. cache may be nil.
func NewAnalysisService(
	store repository.Store,
	quota QuotaService,
	storage storage.Storage,
	processor ImageProcessor,
	cache AnalysisCache,
	config AnalysisConfig,
	logger *slog.Logger,
) AnalysisService {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = domain.MaxImageSize
	}
	if config.MaxImageDimension <= 0 {
		config.MaxImageDimension = domain.DefaultImageMaxDimension
	}
	if config.DispatchMaxAttempts <= 0 {
		config.DispatchMaxAttempts = worker.DefaultMaxAttempts
	}
	return &analysisService{
		store:     store,
		quota:     quota,
		storage:   storage,
		processor: processor,
		cache:     cache,
		config:    config,
		logger:    logger,
	}
}

// Submit admits, stores and enqueues a new analysis.
func (s *analysisService) Submit(ctx context.Context, params domain.SubmitAnalysisParams) (*domain.Analysis, error) {
	const op = "analysis.submit"

	if err := s.quota.Admit(ctx, params.UserID); err != nil {
		return nil, err
	}

	if err := s.validateImage(op, params); err != nil {
		return nil, err
	}

	normalized, err := s.processor.Normalize(params.Image, s.config.MaxImageDimension)
	if err != nil {
		s.logger.Info("rejected undecodable image", "error", err, "op", op, "user_id", params.UserID)
		return nil, domain.NewValidationError(op, "image", "Image could not be decoded")
	}

	id := uuid.New()
	key := storage.AnalysisImageKey(id, normalized.ContentType)

	err = s.storage.Put(ctx, key, normalized.Data, storage.PutOptions{
		ContentType: normalized.ContentType,
	})
	if err != nil {
		s.logger.Error("failed to store image", "error", err, "op", op, "analysis_id", id)
		return nil, domain.Persistence(err, op, "failed to store image")
	}

	var created repository.Analysis
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.CreateAnalysis(ctx, repository.CreateAnalysisParams{
			ID:          id,
			UserID:      params.UserID,
			ImageKey:    key,
			ContentType: normalized.ContentType,
		})
		if err != nil {
			return fmt.Errorf("create analysis: %w", err)
		}
		if _, err := worker.EnqueueDispatchAnalysis(ctx, q, id, params.UserID,
			worker.WithMaxAttempts(s.config.DispatchMaxAttempts)); err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		s.logger.Error("failed to create analysis", "error", err, "op", op, "analysis_id", id)
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("failed to remove orphaned image", "error", delErr, "key", key)
		}
		return nil, domain.Persistence(err, op, "failed to create analysis")
	}

	metrics.AnalysisSubmitted()
	s.logger.Info("analysis submitted",
		"analysis_id", id,
		"user_id", params.UserID,
		"original_size", len(params.Image),
		"normalized_size", len(normalized.Data),
		"width", normalized.Width,
		"height", normalized.Height,
	)

	return repoAnalysisToDomain(created), nil
}

// validateImage checks presence, size and sniffed format of the upload.
func (s *analysisService) validateImage(op string, params domain.SubmitAnalysisParams) error {
	if len(params.Image) == 0 {
		return domain.NewValidationError(op, "image", "Image is required")
	}
	if int64(len(params.Image)) > s.config.MaxUploadSize {
		return domain.TooLarge(op, fmt.Sprintf("Image exceeds the %d MB upload limit", s.config.MaxUploadSize/(1024*1024)))
	}
	sniffed := http.DetectContentType(params.Image)
	if !domain.IsSupportedImageType(sniffed) {
		return domain.NewValidationError(op, "image", "Unsupported image format; use JPEG, PNG or GIF")
	}
	return nil
}

// Get returns the analysis if userID owns it.
func (s *analysisService) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Analysis, error) {
	const op = "analysis.get"

	if cached := s.cached(ctx, id); cached != nil {
		if !cached.IsOwnedBy(userID) {
			return nil, domain.NotFound(op, "analysis", id.String())
		}
		return cached, nil
	}

	row, err := s.store.GetAnalysisByIDAndUser(ctx, repository.GetAnalysisByIDAndUserParams{
		ID:     id,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "analysis", id.String())
		}
		s.logger.Error("failed to get analysis", "error", err, "op", op, "analysis_id", id)
		return nil, domain.Persistence(err, op, "failed to retrieve analysis")
	}

	a := repoAnalysisToDomain(row)
	s.remember(ctx, a)
	return a, nil
}

// DailySummary sums userID's completed meals for one UTC day.
func (s *analysisService) DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.DailySummary, error) {
	const op = "analysis.daily_summary"

	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)

	rows, err := s.store.ListAnalysesByUserBetween(ctx, repository.ListAnalysesByUserBetweenParams{
		UserID:      userID,
		CreatedAt:   start,
		CreatedAt_2: start.AddDate(0, 0, 1),
	})
	if err != nil {
		s.logger.Error("failed to list analyses", "error", err, "op", op, "user_id", userID)
		return nil, domain.Persistence(err, op, "failed to list analyses")
	}

	meals := make([]domain.Analysis, len(rows))
	for i, row := range rows {
		meals[i] = *repoAnalysisToDomain(row)
	}

	summary := domain.NewDailySummary(start, meals)
	return &summary, nil
}

// Fail moves a processing analysis to failed.
func (s *analysisService) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Analysis, bool, error) {
	a, transitioned, err := failAnalysis(ctx, s.store, "analysis.fail", id, reason)
	if err != nil {
		return nil, false, err
	}
	if transitioned {
		metrics.AnalysisFinalized(string(domain.AnalysisStatusFailed))
		s.remember(ctx, a)
		s.logger.Info("analysis failed", "analysis_id", id, "reason", reason)
	}
	return a, transitioned, nil
}

// cached returns the cached analysis, or nil on miss, error or no cache.
func (s *analysisService) cached(ctx context.Context, id uuid.UUID) *domain.Analysis {
	if s.cache == nil {
		return nil
	}
	a, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("analysis cache read failed", "error", err, "analysis_id", id)
		return nil
	}
	if !ok {
		return nil
	}
	return a
}

// remember caches a terminal analysis.
func (s *analysisService) remember(ctx context.Context, a *domain.Analysis) {
	if s.cache == nil || !a.Status.IsTerminal() {
		return
	}
	if err := s.cache.Set(ctx, a); err != nil {
		s.logger.Warn("analysis cache write failed", "error", err, "analysis_id", a.ID)
	}
}

// failAnalysis performs the guarded processing -> failed update with q.
// Unknown ids are domain.ENOTFOUND; already-terminal ids return the current
// record and false.
func failAnalysis(ctx context.Context, q repository.Querier, op string, id uuid.UUID, reason string) (*domain.Analysis, bool, error) {
	row, err := q.FailAnalysis(ctx, repository.FailAnalysisParams{
		ID:            id,
		FailureReason: toNullString(reason),
	})
	if err == nil {
		return repoAnalysisToDomain(row), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, domain.Persistence(err, op, "failed to update analysis")
	}

	current, err := q.GetAnalysisByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, domain.NotFound(op, "analysis", id.String())
		}
		return nil, false, domain.Persistence(err, op, "failed to retrieve analysis")
	}
	return repoAnalysisToDomain(current), false, nil
}
