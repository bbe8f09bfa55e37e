// Package analyzer is a stand-in for the external meal analyzer. It accepts
// the dispatch form post, acknowledges with 202, analyzes the photo in the
// background and reports the outcome to the callback endpoint.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bjhnbjh/vibecoding-camera/internal/ai"
	"github.com/bjhnbjh/vibecoding-camera/internal/dispatch"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

// WebhookPath is where the dispatcher posts images.
const WebhookPath = "/webhook/meal-analysis"

// failureMessage is reported when the model found no food.
const failureMessage = "no food detected"

// Config configures a Server.
type Config struct {
	MaxImageSize    int64         // Upload limit in bytes
	Concurrency     int           // Analyses running at once; extra posts get 503
	AnalysisTimeout time.Duration // Bound on one model call plus callback delivery
}

// reporter delivers outcomes; *Reporter implements it.
type reporter interface {
	Report(ctx context.Context, payload domain.CallbackPayload) (*domain.CallbackAck, error)
}

// Server handles dispatch posts.
type Server struct {
	analyzer ai.Analyzer
	reporter reporter
	config   Config
	logger   *slog.Logger

	slots  chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a Server. Call Shutdown to wait for running analyses.
func NewServer(analyzer ai.Analyzer, rep reporter, config Config, logger *slog.Logger) *Server {
	if config.MaxImageSize <= 0 {
		config.MaxImageSize = domain.MaxImageSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.AnalysisTimeout <= 0 {
		config.AnalysisTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		analyzer: analyzer,
		reporter: rep,
		config:   config,
		logger:   logger,
		slots:    make(chan struct{}, config.Concurrency),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterRoutes registers the webhook and a health check.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+WebhookPath, s.HandleDispatch)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type job struct {
	analysisID  uuid.UUID
	userID      uuid.UUID
	image       []byte
	contentType string
}

// HandleDispatch validates the form, reserves a slot and starts the analysis.
func (s *Server) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	// Multipart overhead on top of the image.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxImageSize+1<<20)

	j, status, msg := s.parseDispatch(r)
	if status != 0 {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.Warn("analyzer busy", "analysis_id", j.analysisID)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		s.process(j)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "analysisId": j.analysisID})
}

func (s *Server) parseDispatch(r *http.Request) (job, int, string) {
	var j job

	file, header, err := r.FormFile(dispatch.FieldImage)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return j, http.StatusRequestEntityTooLarge, "image too large"
		}
		return j, http.StatusBadRequest, "image is required"
	}
	defer file.Close()

	if j.analysisID, err = uuid.Parse(r.FormValue(dispatch.FieldAnalysisID)); err != nil {
		return j, http.StatusBadRequest, "analysisId must be a uuid"
	}
	if j.userID, err = uuid.Parse(r.FormValue(dispatch.FieldUserID)); err != nil {
		return j, http.StatusBadRequest, "userId must be a uuid"
	}

	j.image, err = io.ReadAll(io.LimitReader(file, s.config.MaxImageSize+1))
	if err != nil {
		return j, http.StatusBadRequest, "unreadable image"
	}
	if int64(len(j.image)) > s.config.MaxImageSize {
		return j, http.StatusRequestEntityTooLarge, "image too large"
	}
	j.contentType = partContentType(header, j.image)
	return j, 0, ""
}

func partContentType(h *multipart.FileHeader, data []byte) string {
	ct := h.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// process runs one analysis and reports it. It never returns an error; the
// outcome goes to the callback endpoint.
func (s *Server) process(j job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.AnalysisTimeout)
	defer cancel()

	logger := s.logger.With("analysis_id", j.analysisID, "user_id", j.userID)
	start := time.Now()

	payload := domain.CallbackPayload{
		AnalysisID: j.analysisID.String(),
		UserID:     j.userID.String(),
	}

	res, err := s.analyzer.AnalyzeMeal(ctx, ai.AnalyzeMealParams{
		ImageData:   j.image,
		ContentType: j.contentType,
		AnalysisID:  j.analysisID,
		UserID:      j.userID,
	})
	if err != nil {
		logger.Warn("analysis failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		failed := false
		payload.Success = &failed
		payload.Error = failureReason(err)
	} else {
		ok := true
		summary := res.Result.Summary
		payload.Success = &ok
		payload.MealName = res.MealName
		payload.AnalysisResult = &domain.CallbackResult{Items: res.Result.Items, Summary: &summary}
		payload.Summary = &summary
		logger.Info("analysis finished", "items", len(res.Result.Items), "duration_ms", time.Since(start).Milliseconds())
	}

	ack, err := s.reporter.Report(ctx, payload)
	if err != nil {
		logger.Error("callback delivery failed", "error", err)
		return
	}
	if ack.AlreadyFinalized {
		logger.Info("analysis was already finalized")
	}
}

// failureReason maps provider errors to the message sent to the service.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ai.EAINoFood):
		return failureMessage
	case errors.Is(err, ai.EAIInvalidImage):
		return "unsupported or unreadable image"
	case errors.Is(err, ai.EAIContentPolicy):
		return "image rejected by content policy"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ai.EAITimeout):
		return "analysis timed out"
	}
	return "analysis unavailable"
}

// Shutdown waits for running analyses until ctx expires, then cancels them.
// Stop the HTTP server first so no new analysis starts.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
