package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bjhnbjh/vibecoding-camera/internal/dispatch"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/bjhnbjh/vibecoding-camera/internal/storage"
	"github.com/bjhnbjh/vibecoding-camera/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	repository.Querier
	analyses map[uuid.UUID]repository.Analysis
	err      error
}

func (f *fakeQuerier) GetAnalysisByID(ctx context.Context, id uuid.UUID) (repository.Analysis, error) {
	if f.err != nil {
		return repository.Analysis{}, f.err
	}
	a, ok := f.analyses[id]
	if !ok {
		return repository.Analysis{}, sql.ErrNoRows
	}
	return a, nil
}

type fakeSender struct {
	mu       sync.Mutex
	requests []dispatch.Request
	err      error
}

func (f *fakeSender) Send(ctx context.Context, req dispatch.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

type fakeFailer struct {
	ids     []uuid.UUID
	reasons []string
}

func (f *fakeFailer) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Analysis, bool, error) {
	f.ids = append(f.ids, id)
	f.reasons = append(f.reasons, reason)
	return &domain.Analysis{ID: id, Status: domain.AnalysisStatusFailed}, true, nil
}

type dispatchFixture struct {
	querier *fakeQuerier
	storage storage.Storage
	sender  *fakeSender
	failer  *fakeFailer
	row     repository.Analysis
	payload []byte
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, logger)
	require.NoError(t, err)

	row := repository.Analysis{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Status:      string(domain.AnalysisStatusProcessing),
		ContentType: domain.NormalizedContentType,
	}
	row.ImageKey = storage.AnalysisImageKey(row.ID, row.ContentType)
	require.NoError(t, st.Put(context.Background(), row.ImageKey, []byte("\xff\xd8\xff jpeg bytes"), storage.PutOptions{
		ContentType: domain.NormalizedContentType,
	}))

	payload, err := json.Marshal(worker.DispatchAnalysisPayload{AnalysisID: row.ID, UserID: row.UserID})
	require.NoError(t, err)

	return &dispatchFixture{
		querier: &fakeQuerier{analyses: map[uuid.UUID]repository.Analysis{row.ID: row}},
		storage: st,
		sender:  &fakeSender{},
		failer:  &fakeFailer{},
		row:     row,
		payload: payload,
	}
}

func (f *dispatchFixture) handler(failOnError bool) *DispatchAnalysisHandler {
	return NewDispatchAnalysisHandler(f.querier, f.storage, f.sender, f.failer, failOnError,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchAnalysisHandler_Sends(t *testing.T) {
	f := newDispatchFixture(t)
	h := f.handler(false)

	assert.Equal(t, worker.JobTypeDispatchAnalysis, h.Type())
	require.NoError(t, h.Handle(context.Background(), f.payload))

	require.Len(t, f.sender.requests, 1)
	req := f.sender.requests[0]
	assert.Equal(t, f.row.ID, req.AnalysisID)
	assert.Equal(t, f.row.UserID, req.UserID)
	assert.Equal(t, []byte("\xff\xd8\xff jpeg bytes"), req.Image)
	assert.Equal(t, "meal.jpg", req.Filename)
	assert.Equal(t, domain.NormalizedContentType, req.ContentType)
	assert.False(t, req.Timestamp.IsZero())
}

func TestDispatchAnalysisHandler_SkipsFinalized(t *testing.T) {
	f := newDispatchFixture(t)
	row := f.row
	row.Status = string(domain.AnalysisStatusComplete)
	f.querier.analyses[row.ID] = row

	require.NoError(t, f.handler(false).Handle(context.Background(), f.payload))
	assert.Empty(t, f.sender.requests)
}

func TestDispatchAnalysisHandler_Errors(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(f *dispatchFixture)
		payload       []byte
		wantPermanent bool
	}{
		{
			name:          "malformed payload",
			payload:       []byte("{"),
			wantPermanent: true,
		},
		{
			name:          "unknown analysis",
			setup:         func(f *dispatchFixture) { delete(f.querier.analyses, f.row.ID) },
			wantPermanent: true,
		},
		{
			name:          "database error",
			setup:         func(f *dispatchFixture) { f.querier.err = errors.New("connection reset") },
			wantPermanent: false,
		},
		{
			name: "owner mismatch",
			setup: func(f *dispatchFixture) {
				row := f.row
				row.UserID = uuid.New()
				f.querier.analyses[row.ID] = row
			},
			wantPermanent: true,
		},
		{
			name: "unrecognized status",
			setup: func(f *dispatchFixture) {
				row := f.row
				row.Status = "queued"
				f.querier.analyses[row.ID] = row
			},
			wantPermanent: true,
		},
		{
			name: "image missing",
			setup: func(f *dispatchFixture) {
				require.NoError(t, f.storage.Delete(context.Background(), f.row.ImageKey))
			},
			wantPermanent: true,
		},
		{
			name: "analyzer unavailable",
			setup: func(f *dispatchFixture) {
				f.sender.err = &dispatch.StatusError{StatusCode: 503, Err: dispatch.EDispatchUnavailable}
			},
			wantPermanent: false,
		},
		{
			name: "analyzer rejected",
			setup: func(f *dispatchFixture) {
				f.sender.err = fmt.Errorf("send: %w", dispatch.EDispatchRejected)
			},
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			payload := f.payload
			if tt.payload != nil {
				payload = tt.payload
			}

			err := f.handler(true).Handle(context.Background(), payload)

			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, worker.IsPermanent(err))
		})
	}
}

func TestDispatchAnalysisHandler_OnFinalFailure(t *testing.T) {
	t.Run("leaves analysis processing by default", func(t *testing.T) {
		f := newDispatchFixture(t)
		f.handler(false).OnFinalFailure(context.Background(), f.payload, dispatch.EDispatchUnavailable)
		assert.Empty(t, f.failer.ids)
	})

	t.Run("marks analysis failed when enabled", func(t *testing.T) {
		f := newDispatchFixture(t)
		f.handler(true).OnFinalFailure(context.Background(), f.payload, dispatch.EDispatchUnavailable)
		require.Equal(t, []uuid.UUID{f.row.ID}, f.failer.ids)
		assert.Equal(t, []string{domain.FailureReasonDispatch}, f.failer.reasons)
	})

	t.Run("ignores undecodable payload", func(t *testing.T) {
		f := newDispatchFixture(t)
		f.handler(true).OnFinalFailure(context.Background(), []byte("nope"), errors.New("boom"))
		assert.Empty(t, f.failer.ids)
	})
}
