package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

type response struct {
	status domain.AnalysisStatus
	err    error
}

// scriptedFetcher replays responses in order and repeats the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []response
	calls     int
}

func (f *scriptedFetcher) GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++

	r := f.responses[i]
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Analysis{ID: id, Status: r.status}, nil
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func processing() response { return response{status: domain.AnalysisStatusProcessing} }

func newTestPoller(f Fetcher, interval, timeout time.Duration) *Poller {
	return New(f, Config{Interval: interval, Timeout: timeout}, nil)
}

func TestPoll_CompletesAndStops(t *testing.T) {
	f := &scriptedFetcher{responses: []response{
		processing(),
		processing(),
		{status: domain.AnalysisStatusComplete},
	}}
	p := newTestPoller(f, 5*time.Millisecond, time.Second)

	res := p.Poll(context.Background(), uuid.New())

	assert.Equal(t, OutcomeComplete, res.Outcome)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, domain.AnalysisStatusComplete, res.Analysis.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, f.count(), "no fetch after the completing tick")
}

func TestPoll_FailedAnalysis(t *testing.T) {
	f := &scriptedFetcher{responses: []response{processing(), {status: domain.AnalysisStatusFailed}}}
	p := newTestPoller(f, 5*time.Millisecond, time.Second)

	res := p.Poll(context.Background(), uuid.New())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, domain.AnalysisStatusFailed, res.Analysis.Status)
	assert.Equal(t, 2, res.Attempts)
}

func TestPoll_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", domain.Unauthorized("client.get", "token expired")},
		{"not found", domain.NotFound("client.get", "analysis", "x")},
		{"forbidden", domain.Errorf(domain.EFORBIDDEN, "client.get", "server returned 403 Forbidden")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{responses: []response{{err: tt.err}}}
			p := newTestPoller(f, 5*time.Millisecond, time.Second)

			res := p.Poll(context.Background(), uuid.New())

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.Equal(t, domain.ErrorCode(tt.err), domain.ErrorCode(res.Err))
			assert.Nil(t, res.Analysis)
			assert.Equal(t, 1, f.count())
		})
	}
}

func TestPoll_TransientErrorsKeepPolling(t *testing.T) {
	f := &scriptedFetcher{responses: []response{
		{err: errors.New("connection reset by peer")},
		{err: domain.Persistence(nil, "client.get", "database unavailable")},
		{status: domain.AnalysisStatusComplete},
	}}
	p := newTestPoller(f, 5*time.Millisecond, time.Second)

	res := p.Poll(context.Background(), uuid.New())

	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
}

func TestPoll_TimeoutWhileProcessing(t *testing.T) {
	f := &scriptedFetcher{responses: []response{processing()}}
	p := newTestPoller(f, 10*time.Millisecond, 55*time.Millisecond)

	start := time.Now()
	res := p.Poll(context.Background(), uuid.New())

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, domain.ETIMEOUT, domain.ErrorCode(res.Err))
	require.NotNil(t, res.Analysis)
	assert.Equal(t, domain.AnalysisStatusProcessing, res.Analysis.Status)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	assert.LessOrEqual(t, res.Attempts, 5)

	seen := f.count()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, seen, f.count(), "no fetch after timeout")
}

func TestSession_Cancel(t *testing.T) {
	f := &scriptedFetcher{responses: []response{processing()}}
	p := newTestPoller(f, 5*time.Millisecond, time.Second)

	s := p.Start(context.Background(), uuid.New())
	time.Sleep(20 * time.Millisecond)
	s.Cancel()
	s.Cancel()

	select {
	case res := <-s.Done():
		assert.Equal(t, OutcomeCanceled, res.Outcome)
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("session did not terminate after Cancel")
	}

	_, open := <-s.Done()
	assert.False(t, open, "Done is closed after the single result")

	seen := f.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, f.count())
	s.Cancel()
}

func TestPoll_ParentContextCanceled(t *testing.T) {
	f := &scriptedFetcher{responses: []response{processing()}}
	p := newTestPoller(f, 5*time.Millisecond, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	res := p.Poll(ctx, uuid.New())

	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestPoll_FirstFetchAfterOneInterval(t *testing.T) {
	f := &scriptedFetcher{responses: []response{{status: domain.AnalysisStatusComplete}}}
	p := newTestPoller(f, 100*time.Millisecond, time.Second)

	s := p.Start(context.Background(), uuid.New())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.count())

	res := <-s.Done()
	assert.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, 1, f.count())
}

func TestPoll_OnUpdate(t *testing.T) {
	f := &scriptedFetcher{responses: []response{processing(), {status: domain.AnalysisStatusComplete}}}

	var statuses []domain.AnalysisStatus
	p := New(f, Config{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		OnUpdate: func(attempt int, a *domain.Analysis, err error) {
			statuses = append(statuses, a.Status)
		},
	}, nil)

	p.Poll(context.Background(), uuid.New())

	assert.Equal(t, []domain.AnalysisStatus{domain.AnalysisStatusProcessing, domain.AnalysisStatusComplete}, statuses)
}

func TestNew_Defaults(t *testing.T) {
	p := New(&scriptedFetcher{}, Config{}, nil)

	assert.Equal(t, DefaultInterval, p.interval)
	assert.Equal(t, DefaultTimeout, p.timeout)
}
