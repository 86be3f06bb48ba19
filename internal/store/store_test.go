package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiwumi/typemyaudio/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.toml")
	cfg := viper.New()
	cfg.Set(StatePathKey, path)
	s, err := NewFile(cfg)
	require.NoError(t, err)
	return s.WithClock(fixedClock{testNow}), path
}

func stores(t *testing.T) map[string]*Store {
	file, _ := newFileStore(t)
	return map[string]*Store{
		"memory": NewMemory().WithClock(fixedClock{testNow}),
		"file":   file,
	}
}

func TestProfileCounters(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierFree}))
			period := types.PeriodStart(testNow)
			_, err := s.RecordUsage(ctx, types.UsageRecord{AccountID: "acc-1", JobID: "job-1", PeriodStart: period}, true)
			require.NoError(t, err)
			_, err = s.RecordUsage(ctx, types.UsageRecord{AccountID: "acc-1", JobID: "job-2", PeriodStart: period}, true)
			require.NoError(t, err)
			require.NoError(t, s.AddPurchasedTokens(ctx, "acc-1", 5))

			p, err := s.GetProfile(ctx, "acc-1")
			require.NoError(t, err)
			assert.Equal(t, 2, p.LifetimeUsed)
			assert.Equal(t, 5, p.PurchasedTokens)
			assert.Equal(t, testNow, p.UpdatedAt)

			_, err = s.GetProfile(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUsageIsIdempotentPerJob(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			period := types.PeriodStart(testNow)
			record := types.UsageRecord{AccountID: "acc-1", JobID: "job-1", PeriodStart: period, CreatedAt: testNow}

			inserted, err := s.RecordUsage(ctx, record, false)
			require.NoError(t, err)
			assert.True(t, inserted)

			inserted, err = s.RecordUsage(ctx, record, false)
			require.NoError(t, err)
			assert.False(t, inserted)

			_, err = s.RecordUsage(ctx, types.UsageRecord{AccountID: "acc-1", JobID: "job-2", PeriodStart: period.AddDate(0, -1, 0)}, false)
			require.NoError(t, err)

			n, err := s.CountUsage(ctx, "acc-1", period)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			all, err := s.ListUsage(ctx, "acc-1")
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestTokenPurchasesDedupeOnPaymentID(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := types.TokenPurchase{ID: "tp-1", AccountID: "acc-1", Quantity: 10, PaymentID: "pay-1", CreatedAt: testNow}

			inserted, err := s.AppendTokenPurchase(ctx, p)
			require.NoError(t, err)
			assert.True(t, inserted)

			p.ID = "tp-2"
			inserted, err = s.AppendTokenPurchase(ctx, p)
			require.NoError(t, err)
			assert.False(t, inserted)

			list, err := s.ListTokenPurchases(ctx, "acc-1")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "tp-1", list[0].ID)
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := types.Job{ID: "job-1", AccountID: "acc-1", Title: "call", Status: types.StatusPending, CreatedAt: testNow}
			require.NoError(t, s.CreateJob(ctx, job))
			assert.ErrorIs(t, s.CreateJob(ctx, job), ErrExists)

			updated, err := s.UpdateJob(ctx, "job-1", func(j *types.Job) error {
				j.Status = types.StatusCompleted
				j.Segments = []types.Segment{{Start: 0, End: 1.5, Text: "hello"}}
				j.SentenceTimecodes = []types.SentenceTimecode{{Sentence: "hello", End: 1.5, StartFmt: "00:00:00.000", EndFmt: "00:00:01.500"}}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, types.StatusCompleted, updated.Status)

			_, err = s.UpdateJob(ctx, "job-1", func(j *types.Job) error {
				j.Status = types.StatusFailed
				return errors.New("boom")
			})
			require.Error(t, err)

			got, err := s.GetJob(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, types.StatusCompleted, got.Status)
			assert.Equal(t, updated.Segments, got.Segments)
			assert.Equal(t, updated.SentenceTimecodes, got.SentenceTimecodes)

			got.Segments[0].Text = "mutated"
			again, err := s.GetJob(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, "hello", again.Segments[0].Text)

			require.NoError(t, s.CreateJob(ctx, types.Job{ID: "job-2", AccountID: "acc-1", CreatedAt: testNow.Add(time.Minute)}))
			require.NoError(t, s.CreateJob(ctx, types.Job{ID: "job-3", AccountID: "acc-2", CreatedAt: testNow}))
			jobs, err := s.ListJobs(ctx, "acc-1")
			require.NoError(t, err)
			require.Len(t, jobs, 2)
			assert.Equal(t, "job-2", jobs[0].ID)

			require.NoError(t, s.DeleteJob(ctx, "job-1"))
			assert.ErrorIs(t, s.DeleteJob(ctx, "job-1"), ErrNotFound)
			_, err = s.GetJob(ctx, "job-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	s, path := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierAnnual, PurchasedTokens: 3}))
	_, err := s.RecordUsage(ctx, types.UsageRecord{AccountID: "acc-1", JobID: "job-1", PeriodStart: types.PeriodStart(testNow), CreatedAt: testNow}, false)
	require.NoError(t, err)

	cfg := viper.New()
	cfg.Set(StatePathKey, path)
	reopened, err := NewFile(cfg)
	require.NoError(t, err)

	p, err := reopened.GetProfile(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, types.TierAnnual, p.Tier)
	assert.Equal(t, 3, p.PurchasedTokens)

	n, err := reopened.CountUsage(ctx, "acc-1", types.PeriodStart(testNow))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentUsageAppends(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			period := types.PeriodStart(testNow)
			require.NoError(t, s.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierFree}))

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.RecordUsage(ctx, types.UsageRecord{AccountID: "acc-1", JobID: fmt.Sprintf("job-%d", i%10), PeriodStart: period}, true)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			n, err := s.CountUsage(ctx, "acc-1", period)
			require.NoError(t, err)
			assert.Equal(t, 10, n)

			p, err := s.GetProfile(ctx, "acc-1")
			require.NoError(t, err)
			assert.Equal(t, 10, p.LifetimeUsed)
		})
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().GetJob(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecordUsageFailureLeavesNothingBehind(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := types.UsageRecord{AccountID: "acc-1", JobID: "job-1", PeriodStart: types.PeriodStart(testNow)}

			_, err := s.RecordUsage(ctx, record, true)
			require.ErrorIs(t, err, ErrNotFound)

			all, err := s.ListUsage(ctx, "acc-1")
			require.NoError(t, err)
			assert.Empty(t, all)

			require.NoError(t, s.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierFree}))
			inserted, err := s.RecordUsage(ctx, record, true)
			require.NoError(t, err)
			assert.True(t, inserted)

			inserted, err = s.RecordUsage(ctx, record, true)
			require.NoError(t, err)
			assert.False(t, inserted)

			p, err := s.GetProfile(ctx, "acc-1")
			require.NoError(t, err)
			assert.Equal(t, 1, p.LifetimeUsed)
		})
	}
}
