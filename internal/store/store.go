package store

import (
	"context"
	"sync"
	"time"

	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

// engine loads and saves the whole state. Callers hold Store.mu.
type engine interface {
	load() (*state, error)
	save(*state) error
}

// Store implements every repository port over one engine.
type Store struct {
	mu    *sync.RWMutex
	eng   engine
	clock ports.Clock
}

var (
	_ ports.ProfileRepository = (*Store)(nil)
	_ ports.UsageRepository   = (*Store)(nil)
	_ ports.JobRepository     = (*Store)(nil)
)

type memoryEngine struct {
	st *state
}

func (m *memoryEngine) load() (*state, error) { return m.st, nil }
func (m *memoryEngine) save(*state) error     { return nil }

// NewMemory returns an empty in-process store.
func NewMemory() *Store {
	return &Store{mu: &sync.RWMutex{}, eng: &memoryEngine{st: newState()}, clock: ports.SystemClock{}}
}

// WithClock replaces the clock used for UpdatedAt stamps.
func (s *Store) WithClock(c ports.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) view(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.eng.load()
	if err != nil {
		return err
	}
	return fn(st)
}

func (s *Store) update(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.eng.load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.eng.save(st)
}

func (s *Store) now() time.Time { return s.clock.Now().UTC() }

// --------------------------------------------
// Profiles
// --------------------------------------------

func (s *Store) GetProfile(ctx context.Context, accountID string) (types.Profile, error) {
	var p types.Profile
	err := s.view(ctx, func(st *state) error {
		var err error
		p, err = st.profile(accountID)
		return err
	})
	return p, err
}

func (s *Store) SaveProfile(ctx context.Context, profile types.Profile) error {
	return s.update(ctx, func(st *state) error {
		st.putProfile(profile, s.now())
		return nil
	})
}

func (s *Store) AddPurchasedTokens(ctx context.Context, accountID string, quantity int) error {
	return s.update(ctx, func(st *state) error {
		return st.addTokens(accountID, quantity, s.now())
	})
}

// ListProfiles returns every profile, used by reporting.
func (s *Store) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	var out []types.Profile
	err := s.view(ctx, func(st *state) error {
		for _, p := range st.profiles {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// --------------------------------------------
// Ledger log
// --------------------------------------------

func (s *Store) RecordUsage(ctx context.Context, record types.UsageRecord, countLifetime bool) (bool, error) {
	var inserted bool
	err := s.update(ctx, func(st *state) error {
		if st.hasUsage(record.AccountID, record.JobID) {
			return nil
		}
		if countLifetime {
			if err := st.incrementLifetime(record.AccountID, s.now()); err != nil {
				return err
			}
		}
		inserted = st.appendUsage(record)
		return nil
	})
	return inserted, err
}

func (s *Store) CountUsage(ctx context.Context, accountID string, periodStart time.Time) (int, error) {
	var n int
	err := s.view(ctx, func(st *state) error {
		n = st.countUsage(accountID, periodStart)
		return nil
	})
	return n, err
}

// ListUsage returns the account's records in insertion order; an empty accountID lists all.
func (s *Store) ListUsage(ctx context.Context, accountID string) ([]types.UsageRecord, error) {
	var out []types.UsageRecord
	err := s.view(ctx, func(st *state) error {
		out = st.listUsage(accountID)
		return nil
	})
	return out, err
}

func (s *Store) AppendTokenPurchase(ctx context.Context, purchase types.TokenPurchase) (bool, error) {
	var inserted bool
	err := s.update(ctx, func(st *state) error {
		inserted = st.appendPurchase(purchase)
		return nil
	})
	return inserted, err
}

func (s *Store) ListTokenPurchases(ctx context.Context, accountID string) ([]types.TokenPurchase, error) {
	var out []types.TokenPurchase
	err := s.view(ctx, func(st *state) error {
		out = st.listPurchases(accountID)
		return nil
	})
	return out, err
}

// --------------------------------------------
// Jobs
// --------------------------------------------

func (s *Store) CreateJob(ctx context.Context, job types.Job) error {
	return s.update(ctx, func(st *state) error {
		return st.createJob(job)
	})
}

func (s *Store) GetJob(ctx context.Context, id string) (types.Job, error) {
	var j types.Job
	err := s.view(ctx, func(st *state) error {
		var err error
		j, err = st.job(id)
		return err
	})
	return j, err
}

func (s *Store) UpdateJob(ctx context.Context, id string, fn func(*types.Job) error) (types.Job, error) {
	var j types.Job
	err := s.update(ctx, func(st *state) error {
		var err error
		j, err = st.updateJob(id, fn, s.now())
		return err
	})
	return j, err
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.update(ctx, func(st *state) error {
		return st.deleteJob(id)
	})
}

func (s *Store) ListJobs(ctx context.Context, accountID string) ([]types.Job, error) {
	var out []types.Job
	err := s.view(ctx, func(st *state) error {
		out = st.listJobs(accountID)
		return nil
	})
	return out, err
}
