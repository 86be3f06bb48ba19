// Package aggregator rolls an account's ledger and job history up into the figures
// shown in usage reports.
package aggregator

import (
	"sort"

	"github.com/akiwumi/typemyaudio/internal/types"
)

type Insight struct {
	UsageByMonth     map[string]int `json:"usage_by_month"`
	JobsByLanguage   map[string]int `json:"jobs_by_language"`
	JobsByStatus     map[string]int `json:"jobs_by_status"`
	TokensPurchased  int            `json:"tokens_purchased"`
	TotalWords       int            `json:"total_words"`
	FailureRate      float64        `json:"failure_rate"`
	BusiestMonth     string         `json:"busiest_month,omitempty"`
	MostUsedLanguage string         `json:"most_used_language,omitempty"`
}

func Aggregate(usage []types.UsageRecord, jobs []types.Job, purchases []types.TokenPurchase) Insight {
	ins := Insight{
		UsageByMonth:   map[string]int{},
		JobsByLanguage: map[string]int{},
		JobsByStatus:   map[string]int{},
	}
	for _, u := range usage {
		ins.UsageByMonth[u.PeriodStart.UTC().Format("2006-01")]++
	}
	finished, failed := 0, 0
	for _, j := range jobs {
		ins.JobsByStatus[string(j.Status)]++
		if j.Status == types.StatusCompleted {
			ins.TotalWords += j.WordCount
			if j.DetectedLanguageName != "" {
				ins.JobsByLanguage[j.DetectedLanguageName]++
			}
		}
		if j.Status.Terminal() {
			finished++
			if j.Status == types.StatusFailed {
				failed++
			}
		}
	}
	if finished > 0 {
		ins.FailureRate = float64(failed) / float64(finished)
	}
	for _, p := range purchases {
		ins.TokensPurchased += p.Quantity
	}
	ins.BusiestMonth = maxKey(ins.UsageByMonth)
	ins.MostUsedLanguage = maxKey(ins.JobsByLanguage)
	return ins
}

// maxKey returns the key with the highest count, breaking ties by the smaller key.
func maxKey(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	for _, k := range keys {
		if best == "" || m[k] > m[best] {
			best = k
		}
	}
	return best
}
