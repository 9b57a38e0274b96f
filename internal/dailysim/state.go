package dailysim

import "math"

// Observation indexes. The ordering is part of the agent contract.
const (
	IndexGlucose = iota
	IndexHeartRate
	IndexFatigue
	IndexAdherence
	IndexTimeOfDay
	IndexSteps
)

// ObservationSize is the length of an observation vector.
const ObservationSize = 6

// Observation is the flat view of State handed to agents.
type Observation [ObservationSize]float64

// Slice returns a copy of o as a slice.
func (o Observation) Slice() []float64 {
	out := make([]float64, ObservationSize)
	copy(out, o[:])
	return out
}

// State is the full physiological state. Engines replace it wholesale on every step.
type State struct {
	Glucose   float64 `json:"glucose"`
	HeartRate float64 `json:"heart_rate"`
	Fatigue   float64 `json:"fatigue"`
	Adherence float64 `json:"adherence"`
	TimeOfDay float64 `json:"time_of_day"`
	Steps     float64 `json:"steps"`
}

func (s State) Observation() Observation {
	return Observation{
		IndexGlucose:   s.Glucose,
		IndexHeartRate: s.HeartRate,
		IndexFatigue:   s.Fatigue,
		IndexAdherence: s.Adherence,
		IndexTimeOfDay: s.TimeOfDay,
		IndexSteps:     s.Steps,
	}
}

// StateFromObservation is the inverse of State.Observation.
func StateFromObservation(o Observation) State {
	return State{
		Glucose:   o[IndexGlucose],
		HeartRate: o[IndexHeartRate],
		Fatigue:   o[IndexFatigue],
		Adherence: o[IndexAdherence],
		TimeOfDay: o[IndexTimeOfDay],
		Steps:     o[IndexSteps],
	}
}

// Metrics returns the state keyed by field name.
func (s State) Metrics() map[string]float64 {
	return map[string]float64{
		"glucose":     s.Glucose,
		"heart_rate":  s.HeartRate,
		"fatigue":     s.Fatigue,
		"adherence":   s.Adherence,
		"steps":       s.Steps,
		"time_of_day": s.TimeOfDay,
	}
}

// WithinBounds reports whether every field lies inside the configured space.
func (s State) WithinBounds(cfg Config) bool {
	low, high := cfg.ObservationSpace()
	obs := s.Observation()
	for i := range obs {
		if math.IsNaN(obs[i]) || obs[i] < low[i] || obs[i] > high[i] {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
