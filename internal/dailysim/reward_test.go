package dailysim

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRewardAtTargetMidday(t *testing.T) {
	cfg := DefaultConfig()
	walk, _ := ActionLightWalk.Profile()
	s := State{Glucose: cfg.GlucoseTarget, HeartRate: 80, Fatigue: 0.3, Adherence: 0.5, TimeOfDay: 10, Steps: 8000}

	terms := RewardTerms(cfg, s, walk)
	if !approxEqual(terms.Glucose, 1) {
		t.Fatalf("expected full glucose component, got %f", terms.Glucose)
	}
	if !approxEqual(terms.Activity, 0) {
		t.Fatalf("expected zero activity component at ratio 0.8, got %f", terms.Activity)
	}
	if terms.Adherence != 0 || terms.Fatigue != 0 || terms.HeartRate != 0 || terms.LateDay != 0 {
		t.Fatalf("expected neutral penalties, got %+v", terms)
	}
	if !approxEqual(Reward(cfg, s, walk), 1) {
		t.Fatalf("expected reward 1, got %f", Reward(cfg, s, walk))
	}
}

func TestRewardComponentsFollowFormula(t *testing.T) {
	cfg := DefaultConfig()
	rest, _ := ActionRest.Profile()
	s := State{Glucose: 70, HeartRate: 186, Fatigue: 0.85, Adherence: 0.2, TimeOfDay: 18, Steps: 1000}

	terms := RewardTerms(cfg, s, rest)
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "glucose", got: terms.Glucose, want: 1 - 40.0/40},
		{name: "activity", got: terms.Activity, want: 0.5 * math.Tanh(0.1-0.8)},
		{name: "adherence", got: terms.Adherence, want: 0.6 * (0.2 - 0.5)},
		{name: "fatigue", got: terms.Fatigue, want: -0.5 * math.Tanh(0.5*2)},
		{name: "heart rate", got: terms.HeartRate, want: -0.4 * (21.0 / 35)},
		{name: "late day", got: terms.LateDay, want: -0.25},
		{name: "hypoglycemia", got: terms.Hypoglycemia, want: -0.3},
		{name: "hyperglycemia", got: terms.Hyperglycemia, want: 0},
	}
	sum := 0.0
	for _, c := range checks {
		if !approxEqual(c.got, c.want) {
			t.Fatalf("%s component: expected %f, got %f", c.name, c.want, c.got)
		}
		sum += c.want
	}
	if !approxEqual(terms.Total, sum) {
		t.Fatalf("expected total %f, got %f", sum, terms.Total)
	}
}

func TestRewardClipsGlucoseAndActivity(t *testing.T) {
	cfg := DefaultConfig()
	jog, _ := ActionModerateJog.Profile()
	s := State{Glucose: 320, HeartRate: 90, Fatigue: 0.2, Adherence: 0.5, TimeOfDay: 10, Steps: 30000}

	terms := RewardTerms(cfg, s, jog)
	if terms.Glucose != -1 {
		t.Fatalf("expected glucose component clipped to -1, got %f", terms.Glucose)
	}
	if !approxEqual(terms.Activity, 0.5*math.Tanh(1.5-0.8)) {
		t.Fatalf("expected activity ratio capped at 1.5, got %f", terms.Activity)
	}
	if terms.Hyperglycemia != -0.2 || terms.Hypoglycemia != 0 {
		t.Fatalf("unexpected flat glucose penalties: %+v", terms)
	}
}

func TestRewardSedentaryPenaltyAppliesWithoutLateDay(t *testing.T) {
	cfg := DefaultConfig()
	rest, _ := ActionRest.Profile()
	walk, _ := ActionLightWalk.Profile()
	s := State{Glucose: cfg.GlucoseTarget, HeartRate: 70, Fatigue: 0.2, Adherence: 0.5, TimeOfDay: 9, Steps: 500}

	if got := RewardTerms(cfg, s, rest).LateDay; !approxEqual(got, -0.05) {
		t.Fatalf("expected sedentary penalty -0.05 in the morning, got %f", got)
	}
	if got := RewardTerms(cfg, s, walk).LateDay; got != 0 {
		t.Fatalf("expected no penalty for an ambulatory action, got %f", got)
	}
}
