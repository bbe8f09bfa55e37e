package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/dispatch"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/bjhnbjh/vibecoding-camera/internal/storage"
	"github.com/bjhnbjh/vibecoding-camera/internal/worker"
	"github.com/google/uuid"
)

// Sender delivers one analysis request to the analyzer.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) error
}

// AnalysisFailer moves a processing analysis to failed.
type AnalysisFailer interface {
	Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Analysis, bool, error)
}

// DispatchAnalysisHandler hands stored meal images to the analyzer.
// Dispatch outcomes never reach the submitting client; the analysis stays
// processing until a callback arrives, unless failOnError is set, in which
// case a job that fails for good marks the analysis failed.
type DispatchAnalysisHandler struct {
	queries     repository.Querier
	storage     storage.Storage
	sender      Sender
	failer      AnalysisFailer
	failOnError bool
	logger      *slog.Logger
}

// NewDispatchAnalysisHandler creates a new handler for dispatch jobs.
func NewDispatchAnalysisHandler(
	queries repository.Querier,
	storage storage.Storage,
	sender Sender,
	failer AnalysisFailer,
	failOnError bool,
	logger *slog.Logger,
) *DispatchAnalysisHandler {
	return &DispatchAnalysisHandler{
		queries:     queries,
		storage:     storage,
		sender:      sender,
		failer:      failer,
		failOnError: failOnError,
		logger:      logger,
	}
}

// Type returns the job type identifier.
func (h *DispatchAnalysisHandler) Type() string {
	return worker.JobTypeDispatchAnalysis
}

// Handle loads the analysis and its image and posts them to the analyzer.
func (h *DispatchAnalysisHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.DispatchAnalysisPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	logger := h.logger.With("analysis_id", p.AnalysisID, "user_id", p.UserID)

	analysis, err := h.queries.GetAnalysisByID(ctx, p.AnalysisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("analysis not found: %w", err))
		}
		return fmt.Errorf("fetch analysis: %w", err)
	}

	if analysis.UserID != p.UserID {
		return worker.NewPermanentError(fmt.Errorf("analysis does not belong to user"))
	}

	status := domain.AnalysisStatus(analysis.Status)
	if !status.IsValid() {
		return worker.NewPermanentError(fmt.Errorf("analysis has unrecognized status %q", analysis.Status))
	}

	// A callback may already have finalized it (e.g. a retried dispatch that
	// the analyzer did receive).
	if status.IsTerminal() {
		logger.Info("Skipping dispatch of finalized analysis", "status", analysis.Status)
		return nil
	}

	image, info, err := storage.ReadAll(ctx, h.storage, analysis.ImageKey, domain.MaxImageSize)
	if err != nil {
		if storage.IsNotFound(err) || storage.IsTooLarge(err) {
			return worker.NewPermanentError(fmt.Errorf("load image: %w", err))
		}
		return fmt.Errorf("load image: %w", err)
	}

	contentType := analysis.ContentType
	if contentType == "" {
		contentType = info.ContentType
	}

	err = h.sender.Send(ctx, dispatch.Request{
		AnalysisID:  analysis.ID,
		UserID:      analysis.UserID,
		Image:       image,
		Filename:    "meal" + extension(contentType),
		ContentType: contentType,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		logger.Error("Analyzer dispatch failed", "error", err, "retryable", dispatch.IsRetryable(err))
		if !dispatch.IsRetryable(err) {
			return worker.NewPermanentError(err)
		}
		return err
	}

	logger.Info("Analysis dispatched", "bytes", len(image))
	return nil
}

// OnFinalFailure marks the analysis failed when failure marking is enabled.
func (h *DispatchAnalysisHandler) OnFinalFailure(ctx context.Context, payload []byte, jobErr error) {
	var p worker.DispatchAnalysisPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.logger.Error("Cannot decode failed dispatch payload", "error", err)
		return
	}

	if !h.failOnError || h.failer == nil {
		h.logger.Warn("Dispatch abandoned; analysis left processing",
			"analysis_id", p.AnalysisID,
			"error", jobErr,
		)
		return
	}

	_, transitioned, err := h.failer.Fail(ctx, p.AnalysisID, domain.FailureReasonDispatch)
	if err != nil {
		h.logger.Error("Failed to mark analysis failed", "error", err, "analysis_id", p.AnalysisID)
		return
	}
	h.logger.Info("Dispatch abandoned; analysis marked failed",
		"analysis_id", p.AnalysisID,
		"transitioned", transitioned,
		"error", jobErr,
	)
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
