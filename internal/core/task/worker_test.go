package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsRegisteredHandler(t *testing.T) {
	repos := sqlitetest.NewManager(t)
	ctx := context.Background()
	q := NewQueue(nil)

	job := NewJob(TaskTypeSummarizeCall, domain.JSONB{PayloadSessionID: "s1"}, "summarize:CA1")
	inserted, err := q.Enqueue(ctx, repos.Job(), job)
	require.NoError(t, err)
	require.True(t, inserted)

	w := NewWorker(repos.Job(), nil, nil, WorkerConfig{})
	var seen string
	w.Register(TaskTypeSummarizeCall, func(ctx context.Context, j *domain.Job) error {
		seen = PayloadString(j, PayloadSessionID)
		return nil
	})

	ran, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "s1", seen)

	stored, err := repos.Job().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	ran, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestWorkerRetriesThenFailsPermanently(t *testing.T) {
	repos := sqlitetest.NewManager(t)
	ctx := context.Background()

	job := NewJob(TaskTypeLeadNotification, domain.JSONB{PayloadLeadID: "l1"}, "")
	job.MaxAttempts = 2
	_, err := repos.Job().Enqueue(ctx, job)
	require.NoError(t, err)

	clock := time.Now()
	w := NewWorker(repos.Job(), nil, nil, WorkerConfig{Backoff: time.Second})
	w.now = func() time.Time { return clock }
	calls := 0
	w.Register(TaskTypeLeadNotification, func(ctx context.Context, j *domain.Job) error {
		calls++
		return errors.New("sms gateway down")
	})

	ran, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	stored, err := repos.Job().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)

	// not due yet
	ran, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	clock = clock.Add(5 * time.Second)
	ran, err = w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	stored, err = repos.Job().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, "sms gateway down", stored.LastError)
	assert.Equal(t, 2, calls)
}

func TestWorkerFailsUnknownJobType(t *testing.T) {
	repos := sqlitetest.NewManager(t)
	ctx := context.Background()

	job := &domain.Job{Type: "mystery"}
	_, err := repos.Job().Enqueue(ctx, job)
	require.NoError(t, err)

	w := NewWorker(repos.Job(), nil, nil, WorkerConfig{})
	ran, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	stored, err := repos.Job().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}

func TestWorkerRecoversHandlerPanic(t *testing.T) {
	repos := sqlitetest.NewManager(t)
	ctx := context.Background()

	job := NewJob(TaskTypeArchiveRecording, nil, "")
	_, err := repos.Job().Enqueue(ctx, job)
	require.NoError(t, err)

	w := NewWorker(repos.Job(), nil, nil, WorkerConfig{})
	w.Register(TaskTypeArchiveRecording, func(ctx context.Context, j *domain.Job) error {
		panic("nil bucket")
	})

	ran, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	stored, err := repos.Job().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
	assert.Contains(t, stored.LastError, "nil bucket")
}

func TestQueueAnnounceWakesWorker(t *testing.T) {
	repos := sqlitetest.NewManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus()
	q := NewQueue(bus)
	w := NewWorker(repos.Job(), bus, nil, WorkerConfig{PollInterval: time.Hour, Workers: 1})

	done := make(chan string, 1)
	w.Register(TaskTypeVoicemailNotification, func(ctx context.Context, j *domain.Job) error {
		done <- j.ID
		return nil
	})
	go w.Run(ctx)

	// give the loop time to finish its first idle pass
	time.Sleep(50 * time.Millisecond)

	job := NewJob(TaskTypeVoicemailNotification, domain.JSONB{PayloadCallSid: "CA1"}, "")
	_, err := q.Enqueue(ctx, repos.Job(), job)
	require.NoError(t, err)
	q.Announce(ctx, job)

	select {
	case id := <-done:
		assert.Equal(t, job.ID, id)
	case <-time.After(3 * time.Second):
		t.Fatal("worker was not woken")
	}
}
