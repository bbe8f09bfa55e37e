package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/bjhnbjh/vibecoding-camera/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// memStore
// =============================================================================

// memStore is an in-memory repository.Store. ExecTx restores a snapshot
// when fn fails. Worker queries are not implemented.
type memStore struct {
	repository.Querier

	mu       sync.Mutex
	now      time.Time
	profiles map[uuid.UUID]repository.Profile
	analyses map[uuid.UUID]repository.Analysis
	jobs     []repository.EnqueueJobParams
	errs     map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		profiles: map[uuid.UUID]repository.Profile{},
		analyses: map[uuid.UUID]repository.Analysis{},
		errs:     map[string]error{},
	}
}

func (s *memStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[method] = err
}

func (s *memStore) err(method string) error {
	return s.errs[method]
}

func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *memStore) ExecTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	profiles := make(map[uuid.UUID]repository.Profile, len(s.profiles))
	for k, v := range s.profiles {
		profiles[k] = v
	}
	analyses := make(map[uuid.UUID]repository.Analysis, len(s.analyses))
	for k, v := range s.analyses {
		analyses[k] = v
	}
	jobs := append([]repository.EnqueueJobParams(nil), s.jobs...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.profiles, s.analyses, s.jobs = profiles, analyses, jobs
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) setProfile(id uuid.UUID, plan domain.Plan, used int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = repository.Profile{ID: id, Plan: string(plan), UsageCount: used, CreatedAt: s.now, UpdatedAt: s.now}
}

func (s *memStore) usage(id uuid.UUID) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id].UsageCount
}

func (s *memStore) analysis(id uuid.UUID) (repository.Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[id]
	return a, ok
}

func (s *memStore) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// seedAnalysis inserts a processing analysis directly.
func (s *memStore) seedAnalysis(userID uuid.UUID) repository.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	a := repository.Analysis{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      string(domain.AnalysisStatusProcessing),
		ImageKey:    "analyses/seed/image.jpg",
		ContentType: domain.NormalizedContentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.analyses[a.ID] = a
	return a
}

func (s *memStore) EnsureProfile(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("EnsureProfile"); err != nil {
		return err
	}
	if _, ok := s.profiles[id]; !ok {
		s.profiles[id] = repository.Profile{ID: id, Plan: string(domain.PlanFree), CreatedAt: s.now, UpdatedAt: s.now}
	}
	return nil
}

func (s *memStore) GetProfile(ctx context.Context, id uuid.UUID) (repository.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("GetProfile"); err != nil {
		return repository.Profile{}, err
	}
	p, ok := s.profiles[id]
	if !ok {
		return repository.Profile{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *memStore) IncrementFreeUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("IncrementFreeUsage"); err != nil {
		return 0, err
	}
	p, ok := s.profiles[id]
	if !ok || p.Plan != string(domain.PlanFree) {
		return 0, nil
	}
	p.UsageCount++
	s.profiles[id] = p
	return 1, nil
}

func (s *memStore) CreateAnalysis(ctx context.Context, arg repository.CreateAnalysisParams) (repository.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("CreateAnalysis"); err != nil {
		return repository.Analysis{}, err
	}
	now := s.tick()
	a := repository.Analysis{
		ID:          arg.ID,
		UserID:      arg.UserID,
		Status:      string(domain.AnalysisStatusProcessing),
		ImageKey:    arg.ImageKey,
		ContentType: arg.ContentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.analyses[a.ID] = a
	return a, nil
}

func (s *memStore) GetAnalysisByID(ctx context.Context, id uuid.UUID) (repository.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("GetAnalysisByID"); err != nil {
		return repository.Analysis{}, err
	}
	a, ok := s.analyses[id]
	if !ok {
		return repository.Analysis{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *memStore) GetAnalysisByIDAndUser(ctx context.Context, arg repository.GetAnalysisByIDAndUserParams) (repository.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("GetAnalysisByIDAndUser"); err != nil {
		return repository.Analysis{}, err
	}
	a, ok := s.analyses[arg.ID]
	if !ok || a.UserID != arg.UserID {
		return repository.Analysis{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *memStore) CompleteAnalysis(ctx context.Context, arg repository.CompleteAnalysisParams) (repository.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("CompleteAnalysis"); err != nil {
		return repository.Analysis{}, err
	}
	a, ok := s.analyses[arg.ID]
	if !ok || a.Status != string(domain.AnalysisStatusProcessing) {
		return repository.Analysis{}, sql.ErrNoRows
	}
	now := s.tick()
	a.Status = string(domain.AnalysisStatusComplete)
	a.Result = arg.Result
	a.MealName = arg.MealName
	a.TotalCalories = arg.TotalCalories
	a.TotalCarbohydrates = arg.TotalCarbohydrates
	a.TotalProtein = arg.TotalProtein
	a.TotalFat = arg.TotalFat
	a.UpdatedAt = now
	a.CompletedAt = sql.NullTime{Time: now, Valid: true}
	s.analyses[a.ID] = a
	return a, nil
}

func (s *memStore) FailAnalysis(ctx context.Context, arg repository.FailAnalysisParams) (repository.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("FailAnalysis"); err != nil {
		return repository.Analysis{}, err
	}
	a, ok := s.analyses[arg.ID]
	if !ok || a.Status != string(domain.AnalysisStatusProcessing) {
		return repository.Analysis{}, sql.ErrNoRows
	}
	now := s.tick()
	a.Status = string(domain.AnalysisStatusFailed)
	a.FailureReason = arg.FailureReason
	a.UpdatedAt = now
	a.CompletedAt = sql.NullTime{Time: now, Valid: true}
	s.analyses[a.ID] = a
	return a, nil
}

func (s *memStore) ListAnalysesByUserBetween(ctx context.Context, arg repository.ListAnalysesByUserBetweenParams) ([]repository.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("ListAnalysesByUserBetween"); err != nil {
		return nil, err
	}
	var out []repository.Analysis
	for _, a := range s.analyses {
		if a.UserID == arg.UserID && !a.CreatedAt.Before(arg.CreatedAt) && a.CreatedAt.Before(arg.CreatedAt_2) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("EnqueueJob"); err != nil {
		return repository.Job{}, err
	}
	s.jobs = append(s.jobs, arg)
	return repository.Job{ID: uuid.New(), JobType: arg.JobType, Payload: arg.Payload, Status: "pending"}, nil
}

// =============================================================================
// memCache
// =============================================================================

type memCache struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.Analysis
	sets  int
}

func newMemCache() *memCache {
	return &memCache{items: map[uuid.UUID]domain.Analysis{}}
}

func (c *memCache) Get(ctx context.Context, id uuid.UUID) (*domain.Analysis, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.items[id]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (c *memCache) Set(ctx context.Context, a *domain.Analysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !a.Status.IsTerminal() {
		return nil
	}
	c.items[a.ID] = *a
	c.sets++
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, testLogger())
	require.NoError(t, err)
	return s
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func mealResult(calories float64) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Items: []domain.FoodItem{{
			FoodName:   "bibimbap",
			Confidence: 0.92,
			Quantity:   "1 bowl",
			Calories:   calories,
			Nutrients: domain.Nutrients{
				Carbohydrates: domain.Nutrient{Value: 80, Unit: "g"},
				Protein:       domain.Nutrient{Value: 22, Unit: "g"},
				Fat:           domain.Nutrient{Value: 14, Unit: "g"},
			},
		}},
		Summary: domain.Summary{
			TotalCalories:      calories,
			TotalCarbohydrates: domain.Nutrient{Value: 80, Unit: "g"},
			TotalProtein:       domain.Nutrient{Value: 22, Unit: "g"},
			TotalFat:           domain.Nutrient{Value: 14, Unit: "g"},
		},
	}
}
