package dailysim

import (
	"math"
	"math/rand"
)

const (
	fatigueDecayRate  = 0.05
	fatigueDecayFloor = 0.25
	effortFatigueRate = 0.015

	adherenceCollapseRate      = 0.12
	adherenceCollapseThreshold = 0.78
	adherenceBoostRate         = 0.03
	adherenceBoostPivot        = 0.6

	glucoseDriftRate  = 0.06
	glucoseNoiseStd   = 3.0
	mealNoiseStd      = 6.0
	heartRatePullRate = 0.25
	fatigueHRLift     = 10.0
	glucoseHRLoad     = 0.04
	heartRateNoiseStd = 2.5
)

// transition computes the state one hour after prev under profile. It draws from rng
// in a fixed order (glucose noise, meal, heart-rate noise) so seeded runs replay.
func transition(cfg Config, meals MealSchedule, rng *rand.Rand, prev State, profile ActionProfile) State {
	steps := math.Min(prev.Steps+profile.StepGain, cfg.MaxDailySteps)
	fatigue := nextFatigue(prev.Fatigue, profile, cfg.StepTarget)
	adherence := nextAdherence(prev.Adherence, fatigue, profile)
	nextHour := (int(prev.TimeOfDay) + 1) % cfg.DayLength
	glucose := nextGlucose(cfg, meals, rng, prev.Glucose, nextHour, profile)
	heartRate := nextHeartRate(cfg, rng, prev.HeartRate, glucose, fatigue, profile)

	return State{
		Glucose:   glucose,
		HeartRate: heartRate,
		Fatigue:   fatigue,
		Adherence: adherence,
		TimeOfDay: float64(nextHour),
		Steps:     steps,
	}
}

func nextFatigue(fatigue float64, profile ActionProfile, stepTarget float64) float64 {
	fatigue += profile.FatigueDelta
	if profile.StepGain == 0 {
		fatigue -= fatigueDecayRate * math.Max(0, fatigue-fatigueDecayFloor)
	}
	fatigue += effortFatigueRate * math.Max(0, profile.StepGain/stepTarget)
	return clamp(fatigue, 0, 1)
}

// nextAdherence expects the already updated fatigue.
func nextAdherence(adherence, fatigue float64, profile ActionProfile) float64 {
	adherence += profile.AdherenceDelta
	adherence -= adherenceCollapseRate * math.Max(0, fatigue-adherenceCollapseThreshold)
	adherence += adherenceBoostRate * math.Tanh(adherenceBoostPivot-fatigue)
	return clamp(adherence, 0, 1)
}

// nextGlucose applies the meal scheduled for nextHour, the hour the step moves into.
func nextGlucose(cfg Config, meals MealSchedule, rng *rand.Rand, glucose float64, nextHour int, profile ActionProfile) float64 {
	glucose += glucoseDriftRate * (cfg.GlucoseTarget - glucose)
	glucose += rng.NormFloat64() * glucoseNoiseStd
	if size, ok := meals[nextHour]; ok {
		glucose += size + rng.NormFloat64()*mealNoiseStd
	}
	glucose += profile.GlucoseEffect
	return cfg.GlucoseBounds.clamp(glucose)
}

// nextHeartRate expects the already updated glucose and fatigue.
func nextHeartRate(cfg Config, rng *rand.Rand, heartRate, glucose, fatigue float64, profile ActionProfile) float64 {
	heartRate += heartRatePullRate * (cfg.RestingHR + fatigueHRLift*fatigue - heartRate)
	heartRate += profile.HeartRateEffect
	heartRate += glucoseHRLoad * (glucose - cfg.GlucoseTarget)
	heartRate += rng.NormFloat64() * heartRateNoiseStd
	return cfg.HeartRateBounds.clamp(heartRate)
}
