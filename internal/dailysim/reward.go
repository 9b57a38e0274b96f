package dailysim

import "math"

// RewardBreakdown itemizes one step's reward. Total is the sum of every term.
type RewardBreakdown struct {
	Glucose       float64 `json:"glucose"`
	Activity      float64 `json:"activity"`
	Adherence     float64 `json:"adherence"`
	Fatigue       float64 `json:"fatigue"`
	HeartRate     float64 `json:"heart_rate"`
	LateDay       float64 `json:"late_day"`
	Hypoglycemia  float64 `json:"hypoglycemia"`
	Hyperglycemia float64 `json:"hyperglycemia"`
	Total         float64 `json:"total"`
}

// Reward scores the post-update state s reached with profile.
func Reward(cfg Config, s State, profile ActionProfile) float64 {
	return RewardTerms(cfg, s, profile).Total
}

func RewardTerms(cfg Config, s State, profile ActionProfile) RewardBreakdown {
	var r RewardBreakdown

	r.Glucose = clamp(1-math.Abs(s.Glucose-cfg.GlucoseTarget)/40, -1, 1)

	activityRatio := math.Min(s.Steps/cfg.StepTarget, 1.5)
	r.Activity = 0.5 * math.Tanh(activityRatio-0.8)

	r.Adherence = 0.6 * (s.Adherence - 0.5)
	r.Fatigue = -0.5 * math.Tanh(math.Max(0, s.Fatigue-0.35)*2)
	r.HeartRate = -0.4 * math.Max(0, (s.HeartRate-165)/35)

	if s.TimeOfDay > 0.6*float64(cfg.DayLength) && s.Steps < 0.45*cfg.StepTarget {
		r.LateDay -= 0.2
	}
	if profile.StepGain == 0 && s.Steps < 0.2*cfg.StepTarget {
		r.LateDay -= 0.05
	}

	if s.Glucose < 80 {
		r.Hypoglycemia = -0.3
	}
	if s.Glucose > 200 {
		r.Hyperglycemia = -0.2
	}

	r.Total = r.Glucose + r.Activity + r.Adherence + r.Fatigue + r.HeartRate + r.LateDay +
		r.Hypoglycemia + r.Hyperglycemia
	return r
}
