package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

type fakeJobRepo struct {
	due       []*model.ScheduledJob
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	deleted   int64
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{failed: map[uuid.UUID]string{}}
}

func (f *fakeJobRepo) Create(_ context.Context, job *model.ScheduledJob) error {
	f.due = append(f.due, job)
	return nil
}

func (f *fakeJobRepo) ClaimDue(_ context.Context, limit int) ([]*model.ScheduledJob, error) {
	jobs := f.due
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	f.due = nil
	return jobs, nil
}

func (f *fakeJobRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeJobRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobRepo) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return f.deleted, nil
}

type recordingHandler struct {
	kind    model.JobKind
	handled []uuid.UUID
	err     error
}

func (h *recordingHandler) Kind() model.JobKind { return h.kind }

func (h *recordingHandler) Handle(_ context.Context, job *model.ScheduledJob) error {
	h.handled = append(h.handled, job.ID)
	return h.err
}

func newProcessor(repo *fakeJobRepo, handlers ...JobHandler) *JobProcessor {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewJobProcessor(repo, JobProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Millisecond,
	}, log, metrics.NewUnregistered("test"), handlers...)
}

func job(kind model.JobKind) *model.ScheduledJob {
	return &model.ScheduledJob{
		ID:      uuid.New(),
		Kind:    kind,
		Payload: []byte("{}"),
		Status:  model.JobStatusPending,
		RunAt:   time.Now().Add(-time.Second),
	}
}

func TestProcessJobsDispatchesByKind(t *testing.T) {
	repo := newFakeJobRepo()
	push := &recordingHandler{kind: model.JobKindPushDispatch}
	digest := &recordingHandler{kind: model.JobKindEmailDigest}

	j1 := job(model.JobKindPushDispatch)
	j2 := job(model.JobKindEmailDigest)
	repo.due = []*model.ScheduledJob{j1, j2}

	p := newProcessor(repo, push, digest)
	require.NoError(t, p.processJobs(context.Background()))

	assert.Equal(t, []uuid.UUID{j1.ID}, push.handled)
	assert.Equal(t, []uuid.UUID{j2.ID}, digest.handled)
	assert.ElementsMatch(t, []uuid.UUID{j1.ID, j2.ID}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestProcessJobHandlerErrorMarksFailed(t *testing.T) {
	repo := newFakeJobRepo()
	h := &recordingHandler{kind: model.JobKindPushDispatch, err: assert.AnError}

	j := job(model.JobKindPushDispatch)
	repo.due = []*model.ScheduledJob{j}

	p := newProcessor(repo, h)
	require.NoError(t, p.processJobs(context.Background()))

	assert.Empty(t, repo.processed)
	assert.Contains(t, repo.failed, j.ID)
}

func TestProcessJobUnknownKindMarksFailed(t *testing.T) {
	repo := newFakeJobRepo()
	j := job(model.JobKind("unknown"))
	repo.due = []*model.ScheduledJob{j}

	p := newProcessor(repo)
	require.NoError(t, p.processJobs(context.Background()))

	assert.Contains(t, repo.failed, j.ID)
	assert.Contains(t, repo.failed[j.ID], "no handler registered")
}

func TestProcessJobsRespectsBatchSize(t *testing.T) {
	repo := newFakeJobRepo()
	h := &recordingHandler{kind: model.JobKindPushDispatch}
	for i := 0; i < 15; i++ {
		repo.due = append(repo.due, job(model.JobKindPushDispatch))
	}

	p := newProcessor(repo, h)
	require.NoError(t, p.processJobs(context.Background()))
	assert.Len(t, h.handled, 10)
}

func TestNewJobProcessorValidatesConfig(t *testing.T) {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	m := metrics.NewUnregistered("test")

	assert.Panics(t, func() {
		NewJobProcessor(newFakeJobRepo(), JobProcessorConfig{BatchSize: 0, PollInterval: time.Second}, log, m)
	})
	assert.Panics(t, func() {
		NewJobProcessor(newFakeJobRepo(), JobProcessorConfig{BatchSize: 1, PollInterval: 0}, log, m)
	})
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := newFakeJobRepo()
	p := newProcessor(repo, &recordingHandler{kind: model.JobKindPushDispatch})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop on cancel")
	}
}
