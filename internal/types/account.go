package types

import "time"

type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierAnnual     Tier = "annual"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStarter, TierAnnual, TierEnterprise:
		return true
	default:
		return false
	}
}

// --------------------------------------------
// Account profile (one per account)
// --------------------------------------------
type Profile struct {
	AccountID       string    `json:"id"`
	Tier            Tier      `json:"tier"`
	LifetimeUsed    int       `json:"total_free_used"`
	PurchasedTokens int       `json:"purchased_tokens"`
	SubscriptionEnd time.Time `json:"subscription_end,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// --------------------------------------------
// Append-only ledger facts
// --------------------------------------------
type UsageRecord struct {
	AccountID   string    `json:"user_id"`
	JobID       string    `json:"transcription_id"`
	PeriodStart time.Time `json:"period_start"`
	CreatedAt   time.Time `json:"created_at"`
}

type TokenPurchase struct {
	ID        string    `json:"id"`
	AccountID string    `json:"user_id"`
	Quantity  int       `json:"quantity"`
	PaymentID string    `json:"payment_id"`
	Provider  string    `json:"payment_provider"`
	CreatedAt time.Time `json:"created_at"`
}

// PeriodStart returns the first instant of t's calendar month in UTC.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
