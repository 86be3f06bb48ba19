package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akiwumi/typemyaudio/internal/aggregator"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/types"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		sum  quota.Summary
		ins  aggregator.Insight
		want string
	}{
		{
			name: "failures dominate",
			sum:  quota.Summary{Tier: types.TierStarter, Limit: 15, Remaining: 10},
			ins:  aggregator.Insight{FailureRate: 0.5, JobsByStatus: map[string]int{"failed": 2}},
			want: "50% of recent transcriptions failed",
		},
		{name: "free exhausted", sum: quota.Summary{Tier: types.TierFree, Limit: 3}, want: "Free transcriptions used up"},
		{name: "free last one", sum: quota.Summary{Tier: types.TierFree, Limit: 3, Remaining: 1}, want: "One free transcription left"},
		{name: "monthly exhausted", sum: quota.Summary{Tier: types.TierAnnual, Limit: 15}, want: "Monthly allowance of 15 reached"},
		{name: "running low", sum: quota.Summary{Tier: types.TierStarter, Limit: 15, Remaining: 2}, want: "Only 2 transcriptions left this month"},
		{name: "enterprise", sum: quota.Summary{Tier: types.TierEnterprise, Limit: -1, Remaining: -1}, want: "Usage within plan limits"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Generate(tc.sum, tc.ins).Insight)
		})
	}
}
