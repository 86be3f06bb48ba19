package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiwumi/typemyaudio/internal/extractor"
	"github.com/akiwumi/typemyaudio/internal/pipeline"
	"github.com/akiwumi/typemyaudio/internal/queue"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/storage"
	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/transcription"
	"github.com/akiwumi/typemyaudio/internal/types"
)

type runnerFunc func(ctx context.Context, msg types.QueueMessage) error

func (f runnerFunc) Run(ctx context.Context, msg types.QueueMessage) error { return f(ctx, msg) }

func startDriver(t *testing.T, d *Driver) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Start(ctx))
	}()
	return func() {
		stop()
		<-done
	}
}

func TestDriverProcessesQueuedJobsEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierEnterprise}))

	fs := afero.NewMemMapFs()
	objects := storage.NewLocal(fs, "/objects")
	q := queue.NewMemory(8)

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("job-%d", i)
		key := storage.Key("acc-1", id, "clip.mp3")
		require.NoError(t, objects.Upload(ctx, key, strings.NewReader("audio"), "audio/mpeg"))
		require.NoError(t, st.CreateJob(ctx, types.Job{ID: id, AccountID: "acc-1", StorageKey: key, Status: types.StatusPending}))
		require.NoError(t, q.Enqueue(ctx, types.QueueMessage{JobID: id, AccountID: "acc-1", StorageKey: key}))
	}

	scratch := storage.NewScratch(fs, "/scratch", 2)
	p := pipeline.New(pipeline.Deps{
		Jobs:        st,
		Profiles:    st,
		Storage:     objects,
		Scratch:     scratch,
		Transcriber: &transcription.Mock{},
		Enricher:    extractor.NewEnricher(&extractor.Mock{}),
		Ledger:      quota.NewLedger(st, st, nil),
	})
	stop := startDriver(t, NewDriver(q, p, st, 2))
	defer stop()

	require.Eventually(t, func() bool {
		acked, _ := q.Counts()
		return acked == 4
	}, 5*time.Second, 10*time.Millisecond)

	jobs, err := st.ListJobs(ctx, "acc-1")
	require.NoError(t, err)
	for _, j := range jobs {
		assert.Equal(t, types.StatusCompleted, j.Status, j.ID)
		assert.NotEmpty(t, j.SentenceTimecodes, j.ID)
	}
	assert.Zero(t, scratch.InUse())

	usage, err := st.ListUsage(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, usage, 4)
}

func TestDriverBoundsConcurrency(t *testing.T) {
	q := queue.NewMemory(10)
	for i := 0; i < 6; i++ {
		require.NoError(t, q.Enqueue(context.Background(), types.QueueMessage{JobID: fmt.Sprintf("job-%d", i), AccountID: "acc"}))
	}

	var inFlight, peak int32
	var mu sync.Mutex
	runner := runnerFunc(func(ctx context.Context, msg types.QueueMessage) error {
		n := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	stop := startDriver(t, NewDriver(q, runner, store.NewMemory(), 2))
	defer stop()

	require.Eventually(t, func() bool {
		acked, _ := q.Counts()
		return acked == 6
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int32(2))
}

func TestDriverDropsMalformedMessages(t *testing.T) {
	q := queue.NewMemory(2)
	require.NoError(t, q.EnqueueRaw(context.Background(), []byte("{not json")))

	var calls int32
	runner := runnerFunc(func(ctx context.Context, msg types.QueueMessage) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	stop := startDriver(t, NewDriver(q, runner, store.NewMemory(), 1))
	defer stop()

	require.Eventually(t, func() bool {
		_, nacked := q.Counts()
		return nacked == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDriverMarksPanickedJobFailed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.CreateJob(ctx, types.Job{ID: "job-1", AccountID: "acc", Status: types.StatusProcessing}))

	q := queue.NewMemory(1)
	require.NoError(t, q.Enqueue(ctx, types.QueueMessage{JobID: "job-1", AccountID: "acc"}))

	runner := runnerFunc(func(ctx context.Context, msg types.QueueMessage) error {
		panic("nil map")
	})
	stop := startDriver(t, NewDriver(q, runner, st, 1))
	defer stop()

	require.Eventually(t, func() bool {
		acked, _ := q.Counts()
		return acked == 1
	}, time.Second, 5*time.Millisecond)

	j, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, j.Status)
	assert.Equal(t, pipeline.GenericFailure, j.ErrorMessage)
}

func TestDriverFinishesInFlightJobOnShutdown(t *testing.T) {
	q := queue.NewMemory(1)
	require.NoError(t, q.Enqueue(context.Background(), types.QueueMessage{JobID: "job-1", AccountID: "acc"}))

	started := make(chan struct{})
	var sawCancel atomic.Bool
	runner := runnerFunc(func(ctx context.Context, msg types.QueueMessage) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})

	stop := startDriver(t, NewDriver(q, runner, store.NewMemory(), 1))
	<-started
	stop()

	acked, _ := q.Counts()
	assert.Equal(t, 1, acked)
	assert.False(t, sawCancel.Load())
}
