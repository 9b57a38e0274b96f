package stats

import (
	"math"

	"github.com/samber/lo"

	"glucosim/internal/model"
)

// Clinical time-in-range band in mg/dL.
const (
	RangeLow  = 70.0
	RangeHigh = 180.0
)

const (
	glucoseIndex = 0
	stepsIndex   = 5
)

type EpisodeSummary struct {
	Steps             int            `json:"steps"`
	TotalReward       float64        `json:"total_reward"`
	MeanReward        float64        `json:"mean_reward"`
	MinReward         float64        `json:"min_reward"`
	MaxReward         float64        `json:"max_reward"`
	TimeInRange       float64        `json:"time_in_range"`
	TimeBelowRange    float64        `json:"time_below_range"`
	TimeAboveRange    float64        `json:"time_above_range"`
	MeanGlucose       float64        `json:"mean_glucose"`
	MinGlucose        float64        `json:"min_glucose"`
	MaxGlucose        float64        `json:"max_glucose"`
	FinalSteps        float64        `json:"final_steps"`
	ActionCounts      map[string]int `json:"action_counts"`
	Terminated        bool           `json:"terminated"`
	Truncated         bool           `json:"truncated"`
	TerminationReason string         `json:"termination_reason,omitempty"`
}

// SummarizeEpisode folds the transitions of one episode. Glucose statistics
// cover the post-step observations only.
func SummarizeEpisode(transitions []model.TransitionRecord) EpisodeSummary {
	summary := EpisodeSummary{ActionCounts: map[string]int{}}
	if len(transitions) == 0 {
		return summary
	}

	rewards := lo.Map(transitions, func(t model.TransitionRecord, _ int) float64 { return t.Reward })
	glucose := lo.FilterMap(transitions, func(t model.TransitionRecord, _ int) (float64, bool) {
		if len(t.Observation) <= glucoseIndex {
			return 0, false
		}
		return t.Observation[glucoseIndex], true
	})

	summary.Steps = len(transitions)
	summary.TotalReward = lo.Sum(rewards)
	summary.MeanReward = summary.TotalReward / float64(len(rewards))
	summary.MinReward = lo.Min(rewards)
	summary.MaxReward = lo.Max(rewards)
	summary.ActionCounts = lo.CountValues(lo.Map(transitions, func(t model.TransitionRecord, _ int) string { return t.ActionName }))

	if len(glucose) > 0 {
		n := float64(len(glucose))
		summary.TimeInRange = float64(lo.CountBy(glucose, inRange)) / n
		summary.TimeBelowRange = float64(lo.CountBy(glucose, func(g float64) bool { return g < RangeLow })) / n
		summary.TimeAboveRange = float64(lo.CountBy(glucose, func(g float64) bool { return g > RangeHigh })) / n
		summary.MeanGlucose = lo.Sum(glucose) / n
		summary.MinGlucose = lo.Min(glucose)
		summary.MaxGlucose = lo.Max(glucose)
	}

	last := transitions[len(transitions)-1]
	if len(last.Observation) > stepsIndex {
		summary.FinalSteps = last.Observation[stepsIndex]
	}
	summary.Terminated = last.Terminated
	summary.Truncated = last.Truncated
	summary.TerminationReason = last.TerminationReason
	return summary
}

func inRange(glucose float64) bool {
	return glucose >= RangeLow && glucose <= RangeHigh
}

// ApplyTo copies the summary fields onto an episode record.
func (s EpisodeSummary) ApplyTo(episode *model.EpisodeRecord) {
	episode.Steps = s.Steps
	episode.TotalReward = s.TotalReward
	episode.MeanReward = s.MeanReward
	episode.TimeInRange = s.TimeInRange
	episode.MeanGlucose = s.MeanGlucose
	episode.MinGlucose = s.MinGlucose
	episode.MaxGlucose = s.MaxGlucose
	episode.FinalSteps = s.FinalSteps
	episode.Terminated = s.Terminated
	episode.Truncated = s.Truncated
	episode.TerminationReason = s.TerminationReason
}

type RunSummary struct {
	Episodes        int            `json:"episodes"`
	TotalSteps      int            `json:"total_steps"`
	MeanReward      float64        `json:"mean_reward"`
	RewardStd       float64        `json:"reward_std"`
	BestReward      float64        `json:"best_reward"`
	WorstReward     float64        `json:"worst_reward"`
	MeanTimeInRange float64        `json:"mean_time_in_range"`
	MeanFinalSteps  float64        `json:"mean_final_steps"`
	Truncated       int            `json:"truncated"`
	Terminations    map[string]int `json:"terminations"`
}

// SummarizeRun aggregates episode records. Reward statistics use the mean
// per-step reward of each episode so days of different lengths compare.
func SummarizeRun(episodes []model.EpisodeRecord) RunSummary {
	summary := RunSummary{Terminations: map[string]int{}}
	if len(episodes) == 0 {
		return summary
	}

	rewards := lo.Map(episodes, func(e model.EpisodeRecord, _ int) float64 { return e.MeanReward })
	summary.Episodes = len(episodes)
	summary.TotalSteps = lo.SumBy(episodes, func(e model.EpisodeRecord) int { return e.Steps })
	summary.MeanReward, summary.RewardStd = meanStd(rewards)
	summary.BestReward = lo.Max(rewards)
	summary.WorstReward = lo.Min(rewards)
	summary.MeanTimeInRange = lo.SumBy(episodes, func(e model.EpisodeRecord) float64 { return e.TimeInRange }) / float64(len(episodes))
	summary.MeanFinalSteps = lo.SumBy(episodes, func(e model.EpisodeRecord) float64 { return e.FinalSteps }) / float64(len(episodes))
	summary.Truncated = lo.CountBy(episodes, func(e model.EpisodeRecord) bool { return e.Truncated })
	for _, episode := range episodes {
		if episode.Terminated && episode.TerminationReason != "" {
			summary.Terminations[episode.TerminationReason]++
		}
	}
	return summary
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := lo.Sum(values) / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}
