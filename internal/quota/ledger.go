// Package quota decides whether an account may start another transcription and
// records completed ones against the account's allowance.
//
// Admission and accounting are split: Admit runs at submission, Record runs after the
// job completes. Two submissions admitted concurrently can therefore both pass with one
// unit of headroom left. That overshoot is bounded by the worker pool size and accepted.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/entitlements"
	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/types"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidQuantity = errors.New("token quantity must be positive")
	ErrTokensNotUsable = errors.New("tier does not use purchased tokens")
)

const (
	ReasonFreeLimit    = "Free tier limit reached. Please upgrade your plan."
	ReasonMonthlyLimit = "Monthly limit reached. Purchase more tokens or wait for your next billing cycle."
	ReasonNoProfile    = "profile not found"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Summary is the account's current standing. Limit and Remaining are -1 when unbounded.
type Summary struct {
	Tier            types.Tier `json:"tier"`
	Used            int        `json:"used"`
	Limit           int        `json:"limit"`
	PurchasedTokens int        `json:"purchased_tokens"`
	Remaining       int        `json:"remaining"`
}

type Ledger struct {
	profiles ports.ProfileRepository
	usage    ports.UsageRepository
	clock    ports.Clock
	log      *logrus.Entry
}

func NewLedger(profiles ports.ProfileRepository, usage ports.UsageRepository, clock ports.Clock) *Ledger {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Ledger{
		profiles: profiles,
		usage:    usage,
		clock:    clock,
		log:      logger.New().WithField("component", "quota"),
	}
}

func (l *Ledger) profile(ctx context.Context, accountID string) (types.Profile, error) {
	p, err := l.profiles.GetProfile(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// Admit decides whether accountID may start a new job right now. A missing profile
// yields a denial together with ErrProfileNotFound.
func (l *Ledger) Admit(ctx context.Context, accountID string) (Decision, error) {
	p, err := l.profile(ctx, accountID)
	if errors.Is(err, ErrProfileNotFound) {
		return Decision{Reason: ReasonNoProfile}, err
	}
	if err != nil {
		return Decision{}, err
	}

	ent := entitlements.For(p.Tier)
	switch {
	case ent.Unlimited:
		return Decision{Allowed: true}, nil

	case ent.LifetimeCap > 0:
		if p.LifetimeUsed >= ent.LifetimeCap {
			return Decision{Reason: ReasonFreeLimit}, nil
		}
		return Decision{Allowed: true}, nil

	default:
		used, err := l.usage.CountUsage(ctx, accountID, types.PeriodStart(l.clock.Now()))
		if err != nil {
			return Decision{}, fmt.Errorf("count usage: %w", err)
		}
		if available(ent, p, used) <= 0 {
			return Decision{Reason: ReasonMonthlyLimit}, nil
		}
		return Decision{Allowed: true}, nil
	}
}

func available(ent entitlements.Entitlements, p types.Profile, used int) int {
	n := ent.MonthlyCap - used
	if ent.UsesPurchasedTokens {
		n += p.PurchasedTokens
	}
	return n
}

// Record accounts one completed job. It is a no-op when the job was already recorded.
// Every tier gets a usage record; free accounts also advance their lifetime counter.
func (l *Ledger) Record(ctx context.Context, accountID, jobID string, periodStart time.Time) error {
	p, err := l.profile(ctx, accountID)
	if err != nil {
		return err
	}

	inserted, err := l.usage.RecordUsage(ctx, types.UsageRecord{
		AccountID:   accountID,
		JobID:       jobID,
		PeriodStart: periodStart.UTC(),
		CreatedAt:   l.clock.Now(),
	}, entitlements.For(p.Tier).LifetimeCap > 0)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if !inserted {
		l.log.WithFields(logrus.Fields{"account_id": accountID, "job_id": jobID}).Debug("usage already recorded")
	}
	return nil
}

// RecordNow records against the period containing the ledger clock's current time.
func (l *Ledger) RecordNow(ctx context.Context, accountID, jobID string) error {
	return l.Record(ctx, accountID, jobID, types.PeriodStart(l.clock.Now()))
}

func (l *Ledger) Usage(ctx context.Context, accountID string) (Summary, error) {
	p, err := l.profile(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}

	ent := entitlements.For(p.Tier)
	s := Summary{Tier: p.Tier, PurchasedTokens: p.PurchasedTokens}
	switch {
	case ent.Unlimited:
		used, err := l.usage.CountUsage(ctx, accountID, types.PeriodStart(l.clock.Now()))
		if err != nil {
			return Summary{}, fmt.Errorf("count usage: %w", err)
		}
		s.Used, s.Limit, s.Remaining = used, -1, -1
	case ent.LifetimeCap > 0:
		s.Used, s.Limit = p.LifetimeUsed, ent.LifetimeCap
		if n := ent.LifetimeCap - p.LifetimeUsed; n > 0 {
			s.Remaining = n
		}
	default:
		used, err := l.usage.CountUsage(ctx, accountID, types.PeriodStart(l.clock.Now()))
		if err != nil {
			return Summary{}, fmt.Errorf("count usage: %w", err)
		}
		s.Used, s.Limit = used, ent.MonthlyCap
		if n := available(ent, p, used); n > 0 {
			s.Remaining = n
		}
	}
	return s, nil
}

// GrantTokens applies a confirmed token purchase. Replaying the same paymentID is a no-op.
func (l *Ledger) GrantTokens(ctx context.Context, accountID string, quantity int, paymentID, provider string) (types.TokenPurchase, bool, error) {
	if quantity <= 0 {
		return types.TokenPurchase{}, false, ErrInvalidQuantity
	}
	p, err := l.profile(ctx, accountID)
	if err != nil {
		return types.TokenPurchase{}, false, err
	}
	if !entitlements.For(p.Tier).UsesPurchasedTokens {
		return types.TokenPurchase{}, false, fmt.Errorf("%w: %s", ErrTokensNotUsable, p.Tier)
	}
	if paymentID == "" {
		paymentID = uuid.NewString()
	}

	purchase := types.TokenPurchase{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Quantity:  quantity,
		PaymentID: paymentID,
		Provider:  provider,
		CreatedAt: l.clock.Now(),
	}
	inserted, err := l.usage.AppendTokenPurchase(ctx, purchase)
	if err != nil {
		return types.TokenPurchase{}, false, fmt.Errorf("append token purchase: %w", err)
	}
	if !inserted {
		return purchase, false, nil
	}
	if err := l.profiles.AddPurchasedTokens(ctx, accountID, quantity); err != nil {
		return types.TokenPurchase{}, false, fmt.Errorf("add purchased tokens: %w", err)
	}

	l.log.WithFields(logrus.Fields{"account_id": accountID, "quantity": quantity, "payment_id": paymentID}).Info("tokens granted")
	return purchase, true, nil
}
