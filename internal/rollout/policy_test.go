package rollout

import (
	"errors"
	"testing"

	"glucosim/internal/dailysim"
)

func TestParsePolicy(t *testing.T) {
	cfg := dailysim.DefaultConfig()
	cases := []struct {
		spec string
		name string
	}{
		{"", "random"},
		{"random", "random"},
		{"heuristic", "heuristic"},
		{"fixed:light_walk", "fixed:light_walk"},
		{"fixed:2", "fixed:moderate_jog"},
		{"cycle:rest,light-walk,high_intensity", "cycle:rest,light_walk,high_intensity"},
	}
	for _, tc := range cases {
		t.Run(tc.spec, func(t *testing.T) {
			policy, err := ParsePolicy(tc.spec, 1, cfg)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.spec, err)
			}
			if policy.Name() != tc.name {
				t.Fatalf("parse %q name=%q want=%q", tc.spec, policy.Name(), tc.name)
			}
		})
	}
}

func TestParsePolicyErrors(t *testing.T) {
	cfg := dailysim.DefaultConfig()
	for _, spec := range []string{"fixed:sprint", "fixed:9", "cycle:", "cycle:rest,nap", "greedy"} {
		if _, err := ParsePolicy(spec, 1, cfg); err == nil {
			t.Fatalf("expected error for %q", spec)
		}
	}
	if _, err := ParsePolicy("fixed:sprint", 1, cfg); !errors.Is(err, dailysim.ErrInvalidAction) {
		t.Fatalf("expected invalid action error, got %v", err)
	}
}

func TestCyclePolicyRepeats(t *testing.T) {
	policy, err := NewCyclePolicy([]dailysim.Action{dailysim.ActionRest, dailysim.ActionModerateJog})
	if err != nil {
		t.Fatalf("new cycle policy: %v", err)
	}
	want := []dailysim.Action{dailysim.ActionRest, dailysim.ActionModerateJog, dailysim.ActionRest, dailysim.ActionModerateJog}
	for i, action := range want {
		if got := policy.Act(dailysim.Observation{}); got != action {
			t.Fatalf("step %d: got %s want %s", i, got, action)
		}
	}
}

func TestRandomPolicyDeterministicAndValid(t *testing.T) {
	a := NewRandomPolicy(9)
	b := NewRandomPolicy(9)
	for i := 0; i < 200; i++ {
		x := a.Act(dailysim.Observation{})
		y := b.Act(dailysim.Observation{})
		if x != y {
			t.Fatalf("step %d: diverged %s vs %s", i, x, y)
		}
		if !x.Valid() {
			t.Fatalf("step %d: invalid action %d", i, int(x))
		}
	}
}

func TestHeuristicPolicy(t *testing.T) {
	policy := HeuristicPolicy{GlucoseTarget: 110}
	cases := []struct {
		name string
		obs  dailysim.Observation
		want dailysim.Action
	}{
		{"low glucose rests", dailysim.Observation{80, 80, 0.2, 0.7, 9, 0}, dailysim.ActionRest},
		{"fatigued rests", dailysim.Observation{150, 80, 0.8, 0.7, 9, 0}, dailysim.ActionRest},
		{"very high goes hard", dailysim.Observation{170, 80, 0.2, 0.7, 9, 0}, dailysim.ActionHighIntensity},
		{"high jogs", dailysim.Observation{140, 80, 0.5, 0.7, 9, 0}, dailysim.ActionModerateJog},
		{"near target walks", dailysim.Observation{112, 80, 0.3, 0.7, 9, 0}, dailysim.ActionLightWalk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Act(tc.obs); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}
