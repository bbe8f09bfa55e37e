// Package handler contains the HTTP handlers of the meal analysis API.
//
// This file implements submission, polling reads, the daily summary and
// the usage endpoint.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/auth"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/service"
	"github.com/google/uuid"
)

// multipartOverhead is allowed on top of the image limit for form framing.
const multipartOverhead = 1 << 20

// imageField is the multipart field carrying the photo.
const imageField = "image"

// =============================================================================
// Handler Configuration
// =============================================================================

// AnalysisHandler handles analysis-related HTTP requests.
type AnalysisHandler struct {
	analysisService service.AnalysisService
	quotaService    service.QuotaService
	maxUploadSize   int64
	logger          *slog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(
	analysisService service.AnalysisService,
	quotaService service.QuotaService,
	maxUploadSize int64,
	logger *slog.Logger,
) *AnalysisHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = domain.MaxImageSize
	}
	return &AnalysisHandler{
		analysisService: analysisService,
		quotaService:    quotaService,
		maxUploadSize:   maxUploadSize,
		logger:          logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all analysis routes with the provided mux.
//
// All routes require authentication via the requireUser middleware.
// submitLimit wraps the submit route only.
//
// Routes:
// - POST /api/analyses          -> Submit
// - GET  /api/analyses/summary  -> Summary
// - GET  /api/analyses/{id}     -> Get
// - GET  /api/usage             -> Usage
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux, requireUser, submitLimit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/analyses", requireUser(submitLimit(http.HandlerFunc(h.Submit))))
	mux.Handle("GET /api/analyses/summary", requireUser(http.HandlerFunc(h.Summary)))
	mux.Handle("GET /api/analyses/{id}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Usage)))
}

// =============================================================================
// POST /api/analyses - Submit
// =============================================================================

// Submit accepts a meal photo and answers 202 once the analysis is recorded
// and queued for dispatch.
func (h *AnalysisHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	file, header, err := r.FormFile(imageField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			ErrorResponse(w, r, h.logger, domain.TooLarge("handler.submit", "Image exceeds the upload limit"))
		case errors.Is(err, http.ErrMissingFile):
			ErrorResponse(w, r, h.logger, domain.NewValidationError("handler.submit", imageField, "Image is required"))
		default:
			ErrorResponse(w, r, h.logger, domain.Invalid("handler.submit", "Request must be multipart/form-data with an image field"))
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	analysis, err := h.analysisService.Submit(r.Context(), domain.SubmitAnalysisParams{
		UserID:      user.ID,
		Image:       data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, domain.SubmitAnalysisResponse{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		CreatedAt:  analysis.CreatedAt,
	})
}

// =============================================================================
// GET /api/analyses/{id} - Get
// =============================================================================

// Get returns the caller's analysis. Foreign and unknown ids are both 404.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundResponse(w, r, h.logger)
		return
	}

	analysis, err := h.analysisService.Get(r.Context(), id, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// =============================================================================
// GET /api/analyses/summary - Summary
// =============================================================================

// Summary returns the completed meals and totals for ?date=YYYY-MM-DD (UTC),
// defaulting to today.
func (h *AnalysisHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.NewValidationError("handler.summary", "date", "date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	summary, err := h.analysisService.DailySummary(r.Context(), user.ID, day)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// GET /api/usage - Usage
// =============================================================================

// Usage returns the caller's plan and quota figures.
func (h *AnalysisHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	usage, err := h.quotaService.GetUsage(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}
