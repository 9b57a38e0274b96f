package scape

import (
	"context"
	"fmt"

	"glucosim/internal/dailysim"
	"glucosim/internal/rollout"
)

// StepFunc adapts a plain function to StepAgent.
type StepFunc struct {
	Name string
	Fn   func(ctx context.Context, input []float64) ([]float64, error)
}

func (f StepFunc) ID() string { return f.Name }

func (f StepFunc) RunStep(ctx context.Context, input []float64) ([]float64, error) {
	if f.Fn == nil {
		return nil, fmt.Errorf("step agent %s has no function", f.Name)
	}
	return f.Fn(ctx, input)
}

// PolicyAgent exposes a rollout policy as a step agent. It sees the raw
// observation rather than the normalized sensor vector.
type PolicyAgent struct {
	Policy rollout.Policy
}

func (a PolicyAgent) ID() string { return a.Policy.Name() }

func (a PolicyAgent) act(obs dailysim.Observation) dailysim.Action {
	return a.Policy.Act(obs)
}
