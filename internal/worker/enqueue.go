package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeDispatchAnalysis = "dispatch_analysis"
)

// PriorityNormal is the scheduling priority of dispatch jobs.
const PriorityNormal = 10

// DefaultMaxAttempts is the attempt budget of a job unless overridden.
const DefaultMaxAttempts = 3

// DispatchAnalysisPayload is the payload for analyzer dispatch jobs.
type DispatchAnalysisPayload struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	UserID     uuid.UUID `json:"user_id"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		if attempts > 0 {
			p.MaxAttempts = attempts
		}
	}
}

// EnqueueJob marshals payload and inserts a pending job. Pass a transactional
// Querier to enqueue atomically with other writes.
func EnqueueJob(
	ctx context.Context,
	q repository.Querier,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: DefaultMaxAttempts,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueDispatchAnalysis enqueues delivery of an analysis image to the
// external analyzer. Called in the same transaction that creates the analysis.
func EnqueueDispatchAnalysis(
	ctx context.Context,
	q repository.Querier,
	analysisID uuid.UUID,
	userID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := DispatchAnalysisPayload{
		AnalysisID: analysisID,
		UserID:     userID,
	}

	return EnqueueJob(ctx, q, JobTypeDispatchAnalysis, payload, opts...)
}
