package rollout

import (
	"fmt"
	"math/rand"
	"strings"

	"glucosim/internal/dailysim"
)

// Policy picks the next action from the current observation.
type Policy interface {
	Name() string
	Act(obs dailysim.Observation) dailysim.Action
}

type RandomPolicy struct {
	rng *rand.Rand
}

func NewRandomPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPolicy) Name() string { return "random" }

func (p *RandomPolicy) Act(_ dailysim.Observation) dailysim.Action {
	return dailysim.Action(p.rng.Intn(dailysim.ActionCount))
}

type FixedPolicy struct {
	action dailysim.Action
}

func NewFixedPolicy(action dailysim.Action) *FixedPolicy {
	return &FixedPolicy{action: action}
}

func (p *FixedPolicy) Name() string { return "fixed:" + p.action.String() }

func (p *FixedPolicy) Act(_ dailysim.Observation) dailysim.Action {
	return p.action
}

// CyclePolicy repeats a fixed action sequence regardless of the observation.
type CyclePolicy struct {
	actions []dailysim.Action
	next    int
}

func NewCyclePolicy(actions []dailysim.Action) (*CyclePolicy, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("cycle policy requires at least one action")
	}
	return &CyclePolicy{actions: append([]dailysim.Action(nil), actions...)}, nil
}

func (p *CyclePolicy) Name() string {
	names := make([]string, len(p.actions))
	for i, action := range p.actions {
		names[i] = action.String()
	}
	return "cycle:" + strings.Join(names, ",")
}

func (p *CyclePolicy) Act(_ dailysim.Observation) dailysim.Action {
	action := p.actions[p.next]
	p.next = (p.next + 1) % len(p.actions)
	return action
}

// HeuristicPolicy exercises when glucose runs high and rests when fatigued
// or low.
type HeuristicPolicy struct {
	GlucoseTarget float64
}

func (p HeuristicPolicy) Name() string { return "heuristic" }

func (p HeuristicPolicy) Act(obs dailysim.Observation) dailysim.Action {
	glucose := obs[dailysim.IndexGlucose]
	fatigue := obs[dailysim.IndexFatigue]
	heartRate := obs[dailysim.IndexHeartRate]

	switch {
	case glucose < p.GlucoseTarget-25 || fatigue > 0.75 || heartRate > 160:
		return dailysim.ActionRest
	case glucose > p.GlucoseTarget+50 && fatigue < 0.45:
		return dailysim.ActionHighIntensity
	case glucose > p.GlucoseTarget+20 && fatigue < 0.6:
		return dailysim.ActionModerateJog
	default:
		return dailysim.ActionLightWalk
	}
}

// ParsePolicy builds a policy from its spec string: "random", "heuristic",
// "fixed:<action>" or "cycle:<action>,<action>,...". Seed only affects random.
func ParsePolicy(spec string, seed int64, cfg dailysim.Config) (Policy, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	switch strings.ToLower(kind) {
	case "", "random":
		return NewRandomPolicy(seed), nil
	case "heuristic":
		return HeuristicPolicy{GlucoseTarget: cfg.GlucoseTarget}, nil
	case "fixed":
		action, err := dailysim.ParseAction(arg)
		if err != nil {
			return nil, fmt.Errorf("fixed policy: %w", err)
		}
		return NewFixedPolicy(action), nil
	case "cycle":
		var actions []dailysim.Action
		for _, part := range strings.Split(arg, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			action, err := dailysim.ParseAction(part)
			if err != nil {
				return nil, fmt.Errorf("cycle policy: %w", err)
			}
			actions = append(actions, action)
		}
		return NewCyclePolicy(actions)
	default:
		return nil, fmt.Errorf("unsupported policy: %s", spec)
	}
}
