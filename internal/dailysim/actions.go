package dailysim

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is an hourly activity choice. Ids are part of the agent contract.
type Action int

const (
	ActionRest Action = iota
	ActionLightWalk
	ActionModerateJog
	ActionHighIntensity
)

// ActionCount is the size of the discrete action space.
const ActionCount = 4

// ActionProfile carries the fixed per-hour effects of one action.
type ActionProfile struct {
	Name            string
	StepGain        float64
	GlucoseEffect   float64
	HeartRateEffect float64
	FatigueDelta    float64
	AdherenceDelta  float64
}

var actionCatalog = [ActionCount]ActionProfile{
	ActionRest: {
		Name:            "rest",
		StepGain:        0,
		GlucoseEffect:   1.5,
		HeartRateEffect: -4,
		FatigueDelta:    -0.10,
		AdherenceDelta:  -0.005,
	},
	ActionLightWalk: {
		Name:            "light_walk",
		StepGain:        1500,
		GlucoseEffect:   -2.5,
		HeartRateEffect: 6,
		FatigueDelta:    0.02,
		AdherenceDelta:  0.02,
	},
	ActionModerateJog: {
		Name:            "moderate_jog",
		StepGain:        3500,
		GlucoseEffect:   -5.0,
		HeartRateEffect: 14,
		FatigueDelta:    0.06,
		AdherenceDelta:  0.015,
	},
	ActionHighIntensity: {
		Name:            "high_intensity",
		StepGain:        5000,
		GlucoseEffect:   -8.0,
		HeartRateEffect: 22,
		FatigueDelta:    0.12,
		AdherenceDelta:  -0.01,
	},
}

// Valid reports whether a is inside the catalog.
func (a Action) Valid() bool {
	return a >= 0 && int(a) < ActionCount
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionCatalog[a].Name
}

// Profile returns the catalog entry for a.
func (a Action) Profile() (ActionProfile, error) {
	if !a.Valid() {
		return ActionProfile{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, int(a), ActionCount)
	}
	return actionCatalog[a], nil
}

// Profiles returns a copy of the catalog ordered by action id.
func Profiles() []ActionProfile {
	out := make([]ActionProfile, ActionCount)
	copy(out, actionCatalog[:])
	return out
}

// ParseAction resolves an action by name ("light_walk", "light-walk") or numeric id.
func ParseAction(value string) (Action, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(value)), "-", "_")
	for i, profile := range actionCatalog {
		if profile.Name == normalized {
			return Action(i), nil
		}
	}
	if id, err := strconv.Atoi(normalized); err == nil {
		action := Action(id)
		if !action.Valid() {
			return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, id, ActionCount)
		}
		return action, nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, value)
}
