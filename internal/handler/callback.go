// Package handler contains the HTTP handlers of the meal analysis API.
//
// This file implements the analyzer callback endpoint.
//
// Route:
//   - POST /api/webhook/analysis-callback -> Handle
//
// This route is PUBLIC (no user auth) because the analyzer calls it
// directly. Authentication is the shared secret in the Authorization header.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/bjhnbjh/vibecoding-camera/internal/service"
	"github.com/google/uuid"
)

// maxCallbackBody limits the analyzer's JSON report.
const maxCallbackBody = 1 << 20

// CallbackHandler handles analyzer reports.
type CallbackHandler struct {
	callbackService service.CallbackService
	verifier        service.SecretVerifier
	logger          *slog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(callbackService service.CallbackService, verifier service.SecretVerifier, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackService: callbackService,
		verifier:        verifier,
		logger:          logger,
	}
}

// RegisterRoutes registers the callback route. limit wraps it for rate limiting.
func (h *CallbackHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/webhook/analysis-callback", limit(http.HandlerFunc(h.Handle)))
}

// Handle authenticates the analyzer, then parses and ingests its report.
// The body is not read until the secret matches.
func (h *CallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	const op = "handler.callback"

	if !h.verifier.Verify(bearerToken(r)) {
		metrics.CallbackHandled(metrics.CallbackUnauthorized)
		h.logger.Warn("callback secret mismatch", "ip", r.RemoteAddr)
		ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "Invalid callback credentials"))
		return
	}

	var payload domain.CallbackPayload
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody))
	if err := dec.Decode(&payload); err != nil {
		metrics.CallbackHandled(metrics.CallbackRejected)
		ErrorResponse(w, r, h.logger, domain.AnalyzerError(err, op, "Callback body is not valid JSON"))
		return
	}

	params, err := callbackParams(op, payload)
	if err != nil {
		metrics.CallbackHandled(metrics.CallbackRejected)
		ErrorResponse(w, r, h.logger, err)
		return
	}

	outcome, err := h.callbackService.Ingest(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.CallbackAck{
		Success:          true,
		AnalysisID:       outcome.Analysis.ID,
		Status:           outcome.Analysis.Status,
		AlreadyFinalized: outcome.AlreadyFinalized,
	})
}

// callbackParams validates the wire payload into service parameters.
func callbackParams(op string, p domain.CallbackPayload) (domain.CallbackParams, error) {
	if strings.TrimSpace(p.AnalysisID) == "" {
		return domain.CallbackParams{}, domain.MissingParameter(op, "analysisId")
	}
	id, err := uuid.Parse(p.AnalysisID)
	if err != nil {
		return domain.CallbackParams{}, domain.AnalyzerError(err, op, "analysisId is not a valid id")
	}

	params := domain.CallbackParams{
		AnalysisID: id,
		MealName:   p.MealName,
	}

	if p.UserID != "" {
		userID, err := uuid.Parse(p.UserID)
		if err != nil {
			return domain.CallbackParams{}, domain.AnalyzerError(err, op, "userId is not a valid id")
		}
		params.UserID = &userID
	}

	if p.Failed() {
		params.Failed = true
		params.FailureMsg = p.Error
		return params, nil
	}

	params.Result = p.Result()
	if params.Result == nil {
		return domain.CallbackParams{}, domain.AnalyzerError(nil, op, "analysisResult with a summary is required")
	}
	return params, nil
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
