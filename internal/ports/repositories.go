package ports

import (
	"context"
	"time"

	"github.com/akiwumi/typemyaudio/internal/types"
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, accountID string) (types.Profile, error)
	SaveProfile(ctx context.Context, profile types.Profile) error
	AddPurchasedTokens(ctx context.Context, accountID string, quantity int) error
}

// UsageRepository is the append-only ledger log.
type UsageRepository interface {
	// RecordUsage inserts the record unless one already exists for the same
	// account and job. With countLifetime set, the account's lifetime counter is
	// advanced in the same write. inserted reports whether a new record was written.
	RecordUsage(ctx context.Context, record types.UsageRecord, countLifetime bool) (inserted bool, err error)
	CountUsage(ctx context.Context, accountID string, periodStart time.Time) (int, error)
	ListUsage(ctx context.Context, accountID string) ([]types.UsageRecord, error)
	// AppendTokenPurchase inserts the purchase unless its payment ID was seen before.
	AppendTokenPurchase(ctx context.Context, purchase types.TokenPurchase) (inserted bool, err error)
	ListTokenPurchases(ctx context.Context, accountID string) ([]types.TokenPurchase, error)
}

type JobRepository interface {
	CreateJob(ctx context.Context, job types.Job) error
	GetJob(ctx context.Context, id string) (types.Job, error)
	// UpdateJob applies fn to the stored job under the repository lock and persists the result.
	UpdateJob(ctx context.Context, id string, fn func(*types.Job) error) (types.Job, error)
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, accountID string) ([]types.Job, error)
}
