package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/auth"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Mock Services
// =============================================================================

// mockAnalysisService implements the service.AnalysisService interface for testing.
type mockAnalysisService struct {
	SubmitFunc       func(ctx context.Context, params domain.SubmitAnalysisParams) (*domain.Analysis, error)
	GetFunc          func(ctx context.Context, id, userID uuid.UUID) (*domain.Analysis, error)
	DailySummaryFunc func(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.DailySummary, error)
	FailFunc         func(ctx context.Context, id uuid.UUID, reason string) (*domain.Analysis, bool, error)

	submitCalls int
}

func (m *mockAnalysisService) Submit(ctx context.Context, params domain.SubmitAnalysisParams) (*domain.Analysis, error) {
	m.submitCalls++
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, params)
	}
	return nil, errors.New("SubmitFunc not implemented")
}

func (m *mockAnalysisService) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Analysis, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, userID)
	}
	return nil, errors.New("GetFunc not implemented")
}

func (m *mockAnalysisService) DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.DailySummary, error) {
	if m.DailySummaryFunc != nil {
		return m.DailySummaryFunc(ctx, userID, day)
	}
	return nil, errors.New("DailySummaryFunc not implemented")
}

func (m *mockAnalysisService) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Analysis, bool, error) {
	if m.FailFunc != nil {
		return m.FailFunc(ctx, id, reason)
	}
	return nil, false, errors.New("FailFunc not implemented")
}

// mockQuotaService implements the service.QuotaService interface for testing.
type mockQuotaService struct {
	AdmitFunc    func(ctx context.Context, userID uuid.UUID) error
	GetUsageFunc func(ctx context.Context, userID uuid.UUID) (*domain.QuotaUsage, error)
}

func (m *mockQuotaService) Admit(ctx context.Context, userID uuid.UUID) error {
	if m.AdmitFunc != nil {
		return m.AdmitFunc(ctx, userID)
	}
	return nil
}

func (m *mockQuotaService) GetUsage(ctx context.Context, userID uuid.UUID) (*domain.QuotaUsage, error) {
	if m.GetUsageFunc != nil {
		return m.GetUsageFunc(ctx, userID)
	}
	return nil, errors.New("GetUsageFunc not implemented")
}

// mockCallbackService implements the service.CallbackService interface for testing.
type mockCallbackService struct {
	IngestFunc func(ctx context.Context, params domain.CallbackParams) (*domain.CallbackOutcome, error)

	calls int
	last  domain.CallbackParams
}

func (m *mockCallbackService) Ingest(ctx context.Context, params domain.CallbackParams) (*domain.CallbackOutcome, error) {
	m.calls++
	m.last = params
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, params)
	}
	return nil, errors.New("IngestFunc not implemented")
}

// staticVerifier accepts exactly one secret.
type staticVerifier string

func (v staticVerifier) Verify(presented string) bool {
	return presented != "" && presented == string(v)
}

// =============================================================================
// Helpers
// =============================================================================

func passthrough(next http.Handler) http.Handler { return next }

func withUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(auth.SetUser(r.Context(), &domain.User{ID: id}))
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.WriteField("note", "lunch"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
