// Package service contains the business logic layer.
//
// This file implements callback ingestion: the analyzer's report finalizes
// an analysis and, on completion, advances the owner's free usage.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// maxFailureReason bounds the analyzer message stored on a failed analysis.
const maxFailureReason = 500

// =============================================================================
// Secret Verification
// =============================================================================

// SecretVerifier checks the shared secret presented by the analyzer.
type SecretVerifier interface {
	Verify(presented string) bool
}

type plainSecret struct {
	digest [sha256.Size]byte
}

// Verify compares digests in constant time so neither content nor length leaks.
func (v plainSecret) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	d := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(d[:], v.digest[:]) == 1
}

type bcryptSecret struct {
	hash []byte
}

func (v bcryptSecret) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
}

// NewSecretVerifier returns a verifier for the bcrypt hash when set, and
// for the plaintext secret otherwise. One of the two is required.
func NewSecretVerifier(secret, bcryptHash string) (SecretVerifier, error) {
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, fmt.Errorf("invalid callback secret hash: %w", err)
		}
		return bcryptSecret{hash: []byte(bcryptHash)}, nil
	}
	if secret == "" {
		return nil, fmt.Errorf("callback secret is required")
	}
	return plainSecret{digest: sha256.Sum256([]byte(secret))}, nil
}

// =============================================================================
// Interface Definition
// =============================================================================

// CallbackService finalizes analyses from analyzer reports.
type CallbackService interface {
	// Ingest applies an authenticated analyzer report. Duplicate reports for
	// an already-terminal analysis succeed with AlreadyFinalized set and
	// change nothing.
	//
	// Returns domain.EMISSINGPARAM, domain.EANALYZER or domain.EINVALID for
	// unusable reports, domain.ENOTFOUND for unknown analyses and
	// domain.EPERSISTENCE when the transaction fails (safe to retry).
	Ingest(ctx context.Context, params domain.CallbackParams) (*domain.CallbackOutcome, error)
}

// =============================================================================
// Implementation
// =============================================================================

type callbackService struct {
	store  repository.Store
	cache  AnalysisCache
	logger *slog.Logger
}

// NewCallbackService creates a new CallbackService. cache may be nil.
func NewCallbackService(store repository.Store, cache AnalysisCache, logger *slog.Logger) CallbackService {
	return &callbackService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Ingest applies an authenticated analyzer report.
func (s *callbackService) Ingest(ctx context.Context, params domain.CallbackParams) (*domain.CallbackOutcome, error) {
	const op = "callback.ingest"

	if params.AnalysisID == uuid.Nil {
		return nil, domain.MissingParameter(op, "analysisId")
	}

	current, err := s.store.GetAnalysisByID(ctx, params.AnalysisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.CallbackHandled(metrics.CallbackRejected)
			return nil, domain.NotFound(op, "analysis", params.AnalysisID.String())
		}
		s.logger.Error("failed to load analysis", "error", err, "op", op, "analysis_id", params.AnalysisID)
		metrics.CallbackHandled(metrics.CallbackError)
		return nil, domain.Persistence(err, op, "failed to load analysis")
	}

	if params.UserID != nil && *params.UserID != current.UserID {
		s.logger.Warn("callback owner mismatch",
			"analysis_id", params.AnalysisID,
			"reported_user_id", *params.UserID,
		)
		metrics.CallbackHandled(metrics.CallbackRejected)
		return nil, domain.Invalid(op, "userId does not match the analysis owner")
	}

	if params.Failed {
		return s.ingestFailure(ctx, op, params)
	}
	return s.ingestResult(ctx, op, params)
}

// ingestFailure records an analyzer-reported failure.
func (s *callbackService) ingestFailure(ctx context.Context, op string, params domain.CallbackParams) (*domain.CallbackOutcome, error) {
	reason := domain.FailureReasonAnalyzer
	if params.FailureMsg != "" {
		reason = truncate(fmt.Sprintf("%s: %s", domain.FailureReasonAnalyzer, params.FailureMsg), maxFailureReason)
	}

	a, transitioned, err := failAnalysis(ctx, s.store, op, params.AnalysisID, reason)
	if err != nil {
		metrics.CallbackHandled(metrics.CallbackError)
		return nil, err
	}

	if !transitioned {
		metrics.CallbackHandled(metrics.CallbackDuplicate)
		s.logger.Info("duplicate callback ignored", "analysis_id", a.ID, "status", a.Status)
		return &domain.CallbackOutcome{Analysis: a, AlreadyFinalized: true}, nil
	}

	metrics.CallbackHandled(metrics.CallbackFailed)
	metrics.AnalysisFinalized(string(domain.AnalysisStatusFailed))
	s.remember(ctx, a)
	s.logger.Info("analysis failed by analyzer", "analysis_id", a.ID, "user_id", a.UserID, "reason", reason)

	return &domain.CallbackOutcome{Analysis: a}, nil
}

// ingestResult completes the analysis and increments free usage in one
// transaction. The increment only runs when this call made the transition.
func (s *callbackService) ingestResult(ctx context.Context, op string, params domain.CallbackParams) (*domain.CallbackOutcome, error) {
	if params.Result == nil {
		metrics.CallbackHandled(metrics.CallbackRejected)
		return nil, domain.AnalyzerError(nil, op, "analysisResult is required")
	}
	if err := params.Result.Validate(); err != nil {
		metrics.CallbackHandled(metrics.CallbackRejected)
		return nil, domain.AnalyzerError(err, op, "analysisResult is malformed: "+domain.ErrorMessage(err))
	}

	update, err := completeParams(params)
	if err != nil {
		metrics.CallbackHandled(metrics.CallbackRejected)
		return nil, domain.AnalyzerError(err, op, "analysisResult could not be encoded")
	}

	var (
		completed   repository.Analysis
		finalized   bool
		incremented bool
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.CompleteAnalysis(ctx, update)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				finalized = true
				return nil
			}
			return fmt.Errorf("complete analysis: %w", err)
		}
		completed = row

		n, err := q.IncrementFreeUsage(ctx, row.UserID)
		if err != nil {
			return fmt.Errorf("increment usage: %w", err)
		}
		incremented = n > 0
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record analysis result", "error", err, "op", op, "analysis_id", params.AnalysisID)
		metrics.CallbackHandled(metrics.CallbackError)
		return nil, domain.Persistence(err, op, "failed to record analysis result")
	}

	if finalized {
		row, err := s.store.GetAnalysisByID(ctx, params.AnalysisID)
		if err != nil {
			s.logger.Error("failed to reload analysis", "error", err, "op", op, "analysis_id", params.AnalysisID)
			metrics.CallbackHandled(metrics.CallbackError)
			return nil, domain.Persistence(err, op, "failed to load analysis")
		}
		a := repoAnalysisToDomain(row)
		metrics.CallbackHandled(metrics.CallbackDuplicate)
		s.logger.Info("duplicate callback ignored", "analysis_id", a.ID, "status", a.Status)
		return &domain.CallbackOutcome{Analysis: a, AlreadyFinalized: true}, nil
	}

	a := repoAnalysisToDomain(completed)
	metrics.CallbackHandled(metrics.CallbackCompleted)
	metrics.AnalysisFinalized(string(domain.AnalysisStatusComplete))
	if a.CompletedAt != nil {
		metrics.AnalysisCompleted(a.CompletedAt.Sub(a.CreatedAt))
	}
	if incremented {
		metrics.UsageIncremented()
	}
	s.remember(ctx, a)

	s.logger.Info("analysis completed",
		"analysis_id", a.ID,
		"user_id", a.UserID,
		"items", len(params.Result.Items),
		"total_calories", params.Result.Summary.TotalCalories,
		"usage_incremented", incremented,
	)

	return &domain.CallbackOutcome{Analysis: a, UsageIncremented: incremented}, nil
}

func (s *callbackService) remember(ctx context.Context, a *domain.Analysis) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, a); err != nil {
		s.logger.Warn("analysis cache write failed", "error", err, "analysis_id", a.ID)
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
