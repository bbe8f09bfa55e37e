package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjhnbjh/vibecoding-camera/internal/auth"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/poller"
)

func init() {
	color.NoColor = true
}

// run executes the command tree with an isolated config file and env.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := root.Execute()
	return out.String(), err
}

func completeAnalysis(id uuid.UUID) domain.Analysis {
	return domain.Analysis{
		ID:       id,
		Status:   domain.AnalysisStatusComplete,
		MealName: "bibimbap lunch",
		Result: &domain.AnalysisResult{
			Items: []domain.FoodItem{{
				FoodName: "bibimbap", Confidence: 0.92, Quantity: "1 bowl", Calories: 560,
				Nutrients: domain.Nutrients{
					Carbohydrates: domain.Nutrient{Value: 85, Unit: "g"},
					Protein:       domain.Nutrient{Value: 20, Unit: "g"},
					Fat:           domain.Nutrient{Value: 15, Unit: "g"},
				},
			}},
			Summary: domain.Summary{TotalCalories: 560},
		},
	}
}

func TestResolve(t *testing.T) {
	file := FileConfig{Server: "http://file", Token: "file-token"}

	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")
	server, token := resolve("", "", file)
	assert.Equal(t, "http://file", server)
	assert.Equal(t, "file-token", token)

	t.Setenv(EnvServer, "http://env")
	t.Setenv(EnvToken, "env-token")
	server, token = resolve("", "", file)
	assert.Equal(t, "http://env", server)
	assert.Equal(t, "env-token", token)

	server, token = resolve("http://flag", "flag-token", file)
	assert.Equal(t, "http://flag", server)
	assert.Equal(t, "flag-token", token)

	t.Setenv(EnvServer, "")
	server, _ = resolve("", "", FileConfig{})
	assert.Equal(t, DefaultServer, server)
}

func TestFileConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, FileConfig{}, cfg)

	require.NoError(t, SaveFileConfig(path, FileConfig{Server: "https://api.example.com", Token: "abc"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err = LoadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.Server)
	assert.Equal(t, "abc", cfg.Token)

	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	_, err = LoadFileConfig(path)
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	id := uuid.New()
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/analyses":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(domain.SubmitAnalysisResponse{AnalysisID: id, Status: domain.AnalysisStatusProcessing})
		case r.URL.Path == "/api/analyses/"+id.String():
			if polls.Add(1) < 2 {
				_ = json.NewEncoder(w).Encode(domain.Analysis{ID: id, Status: domain.AnalysisStatusProcessing})
				return
			}
			_ = json.NewEncoder(w).Encode(completeAnalysis(id))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "lunch.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	out, err := run(t, "analyze", "--server", srv.URL, "--token", "tok", "--interval", "5ms", img)

	require.NoError(t, err)
	assert.Contains(t, out, "Submitted analysis "+id.String())
	assert.Contains(t, out, "check 1: processing")
	assert.Contains(t, out, "check 2: complete")
	assert.Contains(t, out, "Bibimbap Lunch")
	assert.Contains(t, out, "92%")
	assert.Contains(t, out, "TOTAL")
}

func TestAnalyzeCommand_NoWait(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(domain.SubmitAnalysisResponse{AnalysisID: id, Status: domain.AnalysisStatusProcessing})
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "dinner.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))

	out, err := run(t, "analyze", "--no-wait", "--server", srv.URL, "--token", "tok", img)

	require.NoError(t, err)
	assert.Contains(t, out, "camera status "+id.String())
}

func TestAnalyzeCommand_RequiresToken(t *testing.T) {
	_, err := run(t, "analyze", "--server", "http://127.0.0.1:1", "meal.jpg")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token configured")
}

func TestWatchCommand_FailedAnalysis(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Analysis{
			ID: id, Status: domain.AnalysisStatusFailed, FailureReason: "analyzer_failed: no food detected",
		})
	}))
	defer srv.Close()

	out, err := run(t, "watch", "--server", srv.URL, "--token", "tok", "--interval", "5ms", id.String())

	assert.ErrorIs(t, err, errAnalysisFailed)
	assert.Contains(t, out, "no food detected")
}

func TestWatchCommand_Timeout(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Analysis{ID: id, Status: domain.AnalysisStatusProcessing})
	}))
	defer srv.Close()

	out, err := run(t, "watch", "--server", srv.URL, "--token", "tok",
		"--interval", "5ms", "--timeout", "30ms", id.String())

	assert.Equal(t, domain.ETIMEOUT, domain.ErrorCode(err))
	assert.Contains(t, out, "Still processing")
}

func TestStatusCommand(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completeAnalysis(id))
	}))
	defer srv.Close()

	out, err := run(t, "status", "--server", srv.URL, "--token", "tok", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "complete")

	_, err = run(t, "status", "--server", srv.URL, "--token", "tok", "not-a-uuid")
	assert.Error(t, err)
}

func TestUsageCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.QuotaUsage{Plan: domain.PlanFree, Used: 5, Limit: 5, Remaining: 0})
	}))
	defer srv.Close()

	out, err := run(t, "usage", "--server", srv.URL, "--token", "tok")

	require.NoError(t, err)
	assert.Contains(t, out, "Free")
	assert.Contains(t, out, "upgrade to premium")
}

func TestSummaryCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-14", r.URL.Query().Get("date"))
		a := completeAnalysis(uuid.New())
		_ = json.NewEncoder(w).Encode(domain.DailySummary{
			Date: "2026-03-14", Meals: []domain.Analysis{a}, TotalCalories: 560,
		})
	}))
	defer srv.Close()

	out, err := run(t, "summary", "--server", srv.URL, "--token", "tok", "--date", "2026-03-14")
	require.NoError(t, err)
	assert.Contains(t, out, "Meals on 2026-03-14")
	assert.Contains(t, out, "560 kcal")

	_, err = run(t, "summary", "--token", "tok", "--date", "14/03/2026")
	assert.Error(t, err)
}

func TestTokenCommand_Save(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	userID := uuid.New()

	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"--config", cfgPath, "--server", "https://api.example.com",
		"token", "--secret", "dev-secret-dev-secret-dev-secret", "--user", userID.String(),
		"--ttl", time.Hour.String(), "--save",
	})
	require.NoError(t, root.Execute())

	cfg, err := LoadFileConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.Server)

	v, err := auth.NewTokenVerifier([]byte("dev-secret-dev-secret-dev-secret"), "")
	require.NoError(t, err)
	user, err := v.Verify(cfg.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token")
	assert.Error(t, err)
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "analysis not found (not_found)",
		describeError(domain.Errorf(domain.ENOTFOUND, "client.get", "analysis not found")))
	assert.Equal(t, "image: image is required",
		describeError(domain.NewValidationError("op", "image", "image is required")))
	assert.Equal(t, "boom", describeError(errors.New("boom")))
}

func TestEnvDuration(t *testing.T) {
	t.Setenv(EnvPollInterval, "1s")
	assert.Equal(t, time.Second, envDuration(EnvPollInterval, poller.DefaultInterval))

	t.Setenv(EnvPollInterval, "soon")
	assert.Equal(t, poller.DefaultInterval, envDuration(EnvPollInterval, poller.DefaultInterval))

	t.Setenv(EnvPollTimeout, "")
	assert.Equal(t, poller.DefaultTimeout, envDuration(EnvPollTimeout, poller.DefaultTimeout))
}
