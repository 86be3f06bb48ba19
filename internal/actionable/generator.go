// Package actionable turns an account's usage standing into one recommendation.
package actionable

import (
	"fmt"

	"github.com/akiwumi/typemyaudio/internal/aggregator"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

func Generate(sum quota.Summary, ins aggregator.Insight) ActionCard {
	switch {
	case ins.FailureRate >= 0.35 && ins.JobsByStatus[string(types.StatusFailed)] >= 2:
		return ActionCard{
			Insight: fmt.Sprintf("%.0f%% of recent transcriptions failed", ins.FailureRate*100),
			Action:  "Upload clearer recordings with a single dominant language",
			Impact:  "Fewer failed jobs and faster turnaround",
		}
	case sum.Tier == types.TierFree && sum.Remaining == 0:
		return ActionCard{
			Insight: "Free transcriptions used up",
			Action:  "Upgrade to a paid plan to keep transcribing",
			Impact:  "15 transcriptions every month",
		}
	case sum.Tier == types.TierFree && sum.Remaining == 1:
		return ActionCard{
			Insight: "One free transcription left",
			Action:  "Consider upgrading before your next upload",
			Impact:  "Uninterrupted transcription",
		}
	case sum.Limit > 0 && sum.Remaining == 0:
		return ActionCard{
			Insight: fmt.Sprintf("Monthly allowance of %d reached", sum.Limit),
			Action:  "Purchase extra tokens or wait for the next billing cycle",
			Impact:  "Resume transcribing immediately",
		}
	case sum.Limit > 0 && sum.Remaining <= 3:
		return ActionCard{
			Insight: fmt.Sprintf("Only %d transcriptions left this month", sum.Remaining),
			Action:  "Top up tokens if more uploads are planned",
			Impact:  "Avoid hitting the monthly limit mid-project",
		}
	}
	return ActionCard{
		Insight: "Usage within plan limits",
		Action:  "No action needed",
		Impact:  "None",
	}
}
