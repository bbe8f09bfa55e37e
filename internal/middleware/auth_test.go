package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bjhnbjh/vibecoding-camera/internal/auth"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Mock TokenVerifier Implementation
// =============================================================================

// mockVerifier implements TokenVerifier for testing.
type mockVerifier struct {
	VerifyFunc func(token string) (*domain.User, error)
	calls      int
}

func (m *mockVerifier) Verify(token string) (*domain.User, error) {
	m.calls++
	if m.VerifyFunc != nil {
		return m.VerifyFunc(token)
	}
	return nil, errors.New("VerifyFunc not implemented")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthMiddleware(v TokenVerifier) *AuthMiddleware {
	return NewAuthMiddleware(v, testLogger())
}

// =============================================================================
// WithUser Middleware Tests
// =============================================================================

func TestWithUser_NoHeader_ContinuesWithoutUser(t *testing.T) {
	mock := &mockVerifier{}
	mw := newTestAuthMiddleware(mock)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if user := auth.GetUser(r.Context()); user != nil {
			t.Errorf("expected nil user, got %+v", user)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()
	mw.WithUser(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("handler was not called")
	}
	if mock.calls != 0 {
		t.Errorf("verifier called %d times without a token", mock.calls)
	}
}

func TestWithUser_ValidToken_SetsUserInContext(t *testing.T) {
	expectedUser := &domain.User{ID: uuid.New(), Email: "cook@example.com"}

	mock := &mockVerifier{
		VerifyFunc: func(token string) (*domain.User, error) {
			if token != "valid-token-123" {
				t.Errorf("Verify called with token = %q, want %q", token, "valid-token-123")
			}
			return expectedUser, nil
		},
	}
	mw := newTestAuthMiddleware(mock)

	var capturedUser *domain.User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUser = auth.GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer valid-token-123")
	rec := httptest.NewRecorder()
	mw.WithUser(handler).ServeHTTP(rec, req)

	if capturedUser == nil {
		t.Fatal("user not set in context")
	}
	if capturedUser.ID != expectedUser.ID {
		t.Errorf("user.ID = %v, want %v", capturedUser.ID, expectedUser.ID)
	}
}

func TestWithUser_InvalidToken_Continues(t *testing.T) {
	mock := &mockVerifier{
		VerifyFunc: func(token string) (*domain.User, error) {
			return nil, auth.ErrInvalidToken
		},
	}
	mw := newTestAuthMiddleware(mock)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if user := auth.GetUser(r.Context()); user != nil {
			t.Errorf("expected nil user, got %+v", user)
		}
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer expired")
	mw.WithUser(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !handlerCalled {
		t.Error("handler was not called")
	}
}

func TestWithUser_IgnoresOtherSchemes(t *testing.T) {
	mock := &mockVerifier{}
	mw := newTestAuthMiddleware(mock)

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(httptest.NewRecorder(), req)

	if mock.calls != 0 {
		t.Errorf("verifier called for Basic auth")
	}
}

// =============================================================================
// RequireUser Middleware Tests
// =============================================================================

func TestRequireUser_WithUser_ContinuesToHandler(t *testing.T) {
	mw := newTestAuthMiddleware(&mockVerifier{})

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req = req.WithContext(auth.SetUser(req.Context(), &domain.User{ID: uuid.New()}))
	rec := httptest.NewRecorder()
	mw.RequireUser(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("handler was not called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireUser_NoUser_Returns401JSON(t *testing.T) {
	mw := newTestAuthMiddleware(&mockVerifier{})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest("GET", "/api/analyses/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mw.RequireUser(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), domain.EUNAUTHORIZED) {
		t.Errorf("body = %s, want unauthorized code", rec.Body.String())
	}
}

func TestStack_OrderAndAuth(t *testing.T) {
	userID := uuid.New()
	mw := newTestAuthMiddleware(&mockVerifier{
		VerifyFunc: func(token string) (*domain.User, error) {
			if token == "good" {
				return &domain.User{ID: userID}, nil
			}
			return nil, auth.ErrInvalidToken
		},
	})

	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(tag("outer"), mw.WithUser, mw.RequireUser, tag("inner"))
	final := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()).ID != userID {
			t.Error("wrong user in context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	final.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v, want [outer inner]", order)
	}

	order = nil
	req = httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	final.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if strings.Join(order, ",") != "outer" {
		t.Errorf("order = %v, want [outer]", order)
	}
}
