// Package store persists profiles, jobs and the append-only ledger log.
// Memory keeps everything in process; File keeps the same state in a TOML document.
package store

import (
	"errors"
	"sort"
	"time"

	"github.com/akiwumi/typemyaudio/internal/types"
)

var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating a job whose id is already taken.
var ErrExists = errors.New("already exists")

type state struct {
	profiles  map[string]types.Profile
	jobs      map[string]types.Job
	usage     []types.UsageRecord
	purchases []types.TokenPurchase
}

func newState() *state {
	return &state{
		profiles: map[string]types.Profile{},
		jobs:     map[string]types.Job{},
	}
}

func (s *state) profile(accountID string) (types.Profile, error) {
	p, ok := s.profiles[accountID]
	if !ok {
		return types.Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *state) putProfile(p types.Profile, now time.Time) {
	p.UpdatedAt = now
	s.profiles[p.AccountID] = p
}

func (s *state) incrementLifetime(accountID string, now time.Time) error {
	p, err := s.profile(accountID)
	if err != nil {
		return err
	}
	p.LifetimeUsed++
	s.putProfile(p, now)
	return nil
}

func (s *state) addTokens(accountID string, quantity int, now time.Time) error {
	p, err := s.profile(accountID)
	if err != nil {
		return err
	}
	p.PurchasedTokens += quantity
	if p.PurchasedTokens < 0 {
		p.PurchasedTokens = 0
	}
	s.putProfile(p, now)
	return nil
}

func (s *state) hasUsage(accountID, jobID string) bool {
	for _, existing := range s.usage {
		if existing.AccountID == accountID && existing.JobID == jobID {
			return true
		}
	}
	return false
}

func (s *state) appendUsage(r types.UsageRecord) bool {
	if s.hasUsage(r.AccountID, r.JobID) {
		return false
	}
	s.usage = append(s.usage, r)
	return true
}

func (s *state) countUsage(accountID string, periodStart time.Time) int {
	n := 0
	for _, r := range s.usage {
		if r.AccountID == accountID && r.PeriodStart.Equal(periodStart) {
			n++
		}
	}
	return n
}

func (s *state) listUsage(accountID string) []types.UsageRecord {
	out := []types.UsageRecord{}
	for _, r := range s.usage {
		if accountID == "" || r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out
}

func (s *state) appendPurchase(p types.TokenPurchase) bool {
	for _, existing := range s.purchases {
		if existing.PaymentID == p.PaymentID {
			return false
		}
	}
	s.purchases = append(s.purchases, p)
	return true
}

func (s *state) listPurchases(accountID string) []types.TokenPurchase {
	out := []types.TokenPurchase{}
	for _, p := range s.purchases {
		if accountID == "" || p.AccountID == accountID {
			out = append(out, p)
		}
	}
	return out
}

func (s *state) createJob(j types.Job) error {
	if _, ok := s.jobs[j.ID]; ok {
		return ErrExists
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

func (s *state) job(id string) (types.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return types.Job{}, ErrNotFound
	}
	return cloneJob(j), nil
}

// updateJob runs fn on a copy so a failing fn leaves the stored job untouched.
func (s *state) updateJob(id string, fn func(*types.Job) error, now time.Time) (types.Job, error) {
	j, err := s.job(id)
	if err != nil {
		return types.Job{}, err
	}
	if err := fn(&j); err != nil {
		return types.Job{}, err
	}
	j.ID = id
	j.UpdatedAt = now
	s.jobs[id] = cloneJob(j)
	return j, nil
}

func (s *state) deleteJob(id string) error {
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// listJobs returns the account's jobs newest first.
func (s *state) listJobs(accountID string) []types.Job {
	out := []types.Job{}
	for _, j := range s.jobs {
		if accountID == "" || j.AccountID == accountID {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func cloneJob(j types.Job) types.Job {
	if j.Segments != nil {
		j.Segments = append([]types.Segment(nil), j.Segments...)
	}
	if j.SentenceTimecodes != nil {
		j.SentenceTimecodes = append([]types.SentenceTimecode(nil), j.SentenceTimecodes...)
	}
	return j
}
