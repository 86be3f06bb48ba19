package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/akiwumi/typemyaudio/internal/types"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version   int              `toml:"version"`
	Profiles  []profileSchema  `toml:"profiles"`
	Jobs      []jobSchema      `toml:"jobs"`
	Usage     []usageSchema    `toml:"usage"`
	Purchases []purchaseSchema `toml:"token_purchases"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}
	return nil
}

type profileSchema struct {
	AccountID       string `toml:"account_id"`
	Tier            string `toml:"tier"`
	LifetimeUsed    int    `toml:"lifetime_used"`
	PurchasedTokens int    `toml:"purchased_tokens"`
	SubscriptionEnd string `toml:"subscription_end,omitempty"`
	UpdatedAt       string `toml:"updated_at"`
}

type jobSchema struct {
	ID                   string                   `toml:"id"`
	AccountID            string                   `toml:"account_id"`
	Title                string                   `toml:"title"`
	OriginalFilename     string                   `toml:"original_filename"`
	FileSize             int64                    `toml:"file_size,omitempty"`
	StorageKey           string                   `toml:"storage_key"`
	Status               string                   `toml:"status"`
	DetectedLanguage     string                   `toml:"detected_language,omitempty"`
	DetectedLanguageName string                   `toml:"detected_language_name,omitempty"`
	TargetLanguage       string                   `toml:"target_language,omitempty"`
	RawText              string                   `toml:"raw_text,omitempty"`
	FormattedText        string                   `toml:"formatted_text,omitempty"`
	TranslatedText       string                   `toml:"translated_text,omitempty"`
	TranslationLanguage  string                   `toml:"translation_language,omitempty"`
	Summary              string                   `toml:"summary,omitempty"`
	Segments             []types.Segment          `toml:"segments,omitempty"`
	SentenceTimecodes    []types.SentenceTimecode `toml:"sentence_timecodes,omitempty"`
	WordCount            int                      `toml:"word_count,omitempty"`
	ErrorMessage         string                   `toml:"error_message,omitempty"`
	CreatedAt            string                   `toml:"created_at"`
	UpdatedAt            string                   `toml:"updated_at"`
}

type usageSchema struct {
	AccountID   string `toml:"account_id"`
	JobID       string `toml:"job_id"`
	PeriodStart string `toml:"period_start"`
	CreatedAt   string `toml:"created_at"`
}

type purchaseSchema struct {
	ID        string `toml:"id"`
	AccountID string `toml:"account_id"`
	Quantity  int    `toml:"quantity"`
	PaymentID string `toml:"payment_id"`
	Provider  string `toml:"provider,omitempty"`
	CreatedAt string `toml:"created_at"`
}

func toSchema(st *state) fileSchema {
	file := fileSchema{Version: currentSchemaVersion}
	for _, p := range st.profiles {
		file.Profiles = append(file.Profiles, profileSchema{
			AccountID:       p.AccountID,
			Tier:            string(p.Tier),
			LifetimeUsed:    p.LifetimeUsed,
			PurchasedTokens: p.PurchasedTokens,
			SubscriptionEnd: formatTime(p.SubscriptionEnd),
			UpdatedAt:       formatTime(p.UpdatedAt),
		})
	}
	sort.Slice(file.Profiles, func(a, b int) bool {
		return file.Profiles[a].AccountID < file.Profiles[b].AccountID
	})
	for _, j := range st.listJobs("") {
		file.Jobs = append(file.Jobs, jobSchema{
			ID:                   j.ID,
			AccountID:            j.AccountID,
			Title:                j.Title,
			OriginalFilename:     j.OriginalFilename,
			FileSize:             j.FileSize,
			StorageKey:           j.StorageKey,
			Status:               string(j.Status),
			DetectedLanguage:     j.DetectedLanguage,
			DetectedLanguageName: j.DetectedLanguageName,
			TargetLanguage:       j.TargetLanguage,
			RawText:              j.RawText,
			FormattedText:        j.FormattedText,
			TranslatedText:       j.TranslatedText,
			TranslationLanguage:  j.TranslationLanguage,
			Summary:              j.Summary,
			Segments:             j.Segments,
			SentenceTimecodes:    j.SentenceTimecodes,
			WordCount:            j.WordCount,
			ErrorMessage:         j.ErrorMessage,
			CreatedAt:            formatTime(j.CreatedAt),
			UpdatedAt:            formatTime(j.UpdatedAt),
		})
	}
	for _, r := range st.usage {
		file.Usage = append(file.Usage, usageSchema{
			AccountID:   r.AccountID,
			JobID:       r.JobID,
			PeriodStart: formatTime(r.PeriodStart),
			CreatedAt:   formatTime(r.CreatedAt),
		})
	}
	for _, p := range st.purchases {
		file.Purchases = append(file.Purchases, purchaseSchema{
			ID:        p.ID,
			AccountID: p.AccountID,
			Quantity:  p.Quantity,
			PaymentID: p.PaymentID,
			Provider:  p.Provider,
			CreatedAt: formatTime(p.CreatedAt),
		})
	}
	return file
}

func fromSchema(file fileSchema) *state {
	st := newState()
	for _, p := range file.Profiles {
		st.profiles[p.AccountID] = types.Profile{
			AccountID:       p.AccountID,
			Tier:            types.Tier(p.Tier),
			LifetimeUsed:    p.LifetimeUsed,
			PurchasedTokens: p.PurchasedTokens,
			SubscriptionEnd: parseTime(p.SubscriptionEnd),
			UpdatedAt:       parseTime(p.UpdatedAt),
		}
	}
	for _, j := range file.Jobs {
		st.jobs[j.ID] = types.Job{
			ID:                   j.ID,
			AccountID:            j.AccountID,
			Title:                j.Title,
			OriginalFilename:     j.OriginalFilename,
			FileSize:             j.FileSize,
			StorageKey:           j.StorageKey,
			Status:               types.JobStatus(j.Status),
			DetectedLanguage:     j.DetectedLanguage,
			DetectedLanguageName: j.DetectedLanguageName,
			TargetLanguage:       j.TargetLanguage,
			RawText:              j.RawText,
			FormattedText:        j.FormattedText,
			TranslatedText:       j.TranslatedText,
			TranslationLanguage:  j.TranslationLanguage,
			Summary:              j.Summary,
			Segments:             j.Segments,
			SentenceTimecodes:    j.SentenceTimecodes,
			WordCount:            j.WordCount,
			ErrorMessage:         j.ErrorMessage,
			CreatedAt:            parseTime(j.CreatedAt),
			UpdatedAt:            parseTime(j.UpdatedAt),
		}
	}
	for _, r := range file.Usage {
		st.usage = append(st.usage, types.UsageRecord{
			AccountID:   r.AccountID,
			JobID:       r.JobID,
			PeriodStart: parseTime(r.PeriodStart),
			CreatedAt:   parseTime(r.CreatedAt),
		})
	}
	for _, p := range file.Purchases {
		st.purchases = append(st.purchases, types.TokenPurchase{
			ID:        p.ID,
			AccountID: p.AccountID,
			Quantity:  p.Quantity,
			PaymentID: p.PaymentID,
			Provider:  p.Provider,
			CreatedAt: parseTime(p.CreatedAt),
		})
	}
	return st
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
