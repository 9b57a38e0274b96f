package scape

import (
	"context"
	"fmt"

	"glucosim/internal/scapeid"
)

type Fitness float64

type Trace map[string]any

type Agent interface {
	ID() string
}

// StepAgent maps one sensory vector to one actuator vector per simulated step.
type StepAgent interface {
	Agent
	RunStep(ctx context.Context, input []float64) ([]float64, error)
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for gt/validation/test flows.
type ModeAwareScape interface {
	Scape
	EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error)
}

// Modes lists the evaluation modes every scape accepts.
func Modes() []string {
	return []string{"gt", "validation", "test", "benchmark"}
}

// Resolve returns the scape registered under name or one of its aliases.
func Resolve(name string) (ModeAwareScape, error) {
	switch scapeid.Normalize(name) {
	case scapeid.DiabetesExercise:
		return NewDiabetesExerciseScape(), nil
	default:
		return nil, fmt.Errorf("unknown scape: %s", name)
	}
}
