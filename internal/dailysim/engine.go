package dailysim

import (
	"fmt"
	"io"
	"math/rand"
	"time"
)

// Status is the lifecycle stage of an Engine.
type Status int

const (
	StatusUnstarted Status = iota
	StatusActive
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUnstarted:
		return "unstarted"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ResetInfo is returned alongside the initial observation.
type ResetInfo struct {
	GlucoseTarget float64 `json:"glucose_target"`
	StepTarget    float64 `json:"step_target"`
}

// StepInfo describes a single transition.
type StepInfo struct {
	Step              int               `json:"step"`
	ActionName        string            `json:"action_name"`
	Metrics           State             `json:"metrics"`
	TerminationReason TerminationReason `json:"termination_reason,omitempty"`
}

// StepResult is the outcome of Engine.Step.
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        StepInfo
}

// Engine simulates one person's day hour by hour. It is not safe for concurrent use;
// run one Engine per episode stream.
type Engine struct {
	cfg   Config
	meals MealSchedule
	rng   *rand.Rand

	status     Status
	state      State
	stepCount  int
	lastAction Action
}

// NewEngine validates cfg and returns an engine awaiting Reset.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	meals := cfg.MealSchedule.Clone()
	if meals == nil {
		meals = DefaultMealSchedule()
	}
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	return &Engine{
		cfg:   cfg,
		meals: meals,
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Status() Status {
	return e.status
}

// Observation returns the current state, or false when no episode is active.
func (e *Engine) Observation() (Observation, bool) {
	if e.status != StatusActive {
		return Observation{}, false
	}
	return e.state.Observation(), true
}

// OverrideMealSchedule replaces the meal schedule used from the next step on.
// Hours outside the day are ignored by the lookahead. Intended for test harnesses.
func (e *Engine) OverrideMealSchedule(schedule MealSchedule) {
	e.meals = schedule.Clone()
	if e.meals == nil {
		e.meals = MealSchedule{}
	}
}

type resetSettings struct {
	seed    *int64
	options map[string]any
}

// ResetOption customizes Reset.
type ResetOption func(*resetSettings)

// WithSeed reseeds the engine's generator before sampling the initial state.
func WithSeed(seed int64) ResetOption {
	return func(s *resetSettings) {
		s.seed = &seed
	}
}

// WithOptions passes opaque reset options. The engine accepts and ignores them.
func WithOptions(options map[string]any) ResetOption {
	return func(s *resetSettings) {
		s.options = options
	}
}

// Reset samples a fresh morning state and starts a new episode.
func (e *Engine) Reset(opts ...ResetOption) (Observation, ResetInfo) {
	var settings resetSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.seed != nil {
		e.rng = rand.New(rand.NewSource(*settings.seed))
	}

	e.state = State{
		Glucose:   e.cfg.GlucoseBounds.clamp(e.normal(e.cfg.GlucoseTarget+15, 18)),
		HeartRate: e.cfg.HeartRateBounds.clamp(e.normal(e.cfg.RestingHR+3, 5)),
		Fatigue:   e.uniform(0.15, 0.35),
		Adherence: e.uniform(0.65, 0.90),
		TimeOfDay: float64((6 + e.rng.Intn(3)) % e.cfg.DayLength),
		Steps:     0,
	}
	e.stepCount = 0
	e.lastAction = ActionRest
	e.status = StatusActive

	return e.state.Observation(), ResetInfo{
		GlucoseTarget: e.cfg.GlucoseTarget,
		StepTarget:    e.cfg.StepTarget,
	}
}

// Step advances the simulation by one hour under action.
func (e *Engine) Step(action Action) (StepResult, error) {
	if e.status != StatusActive {
		return StepResult{}, fmt.Errorf("%w: engine is %s", ErrNotReset, e.status)
	}
	profile, err := action.Profile()
	if err != nil {
		return StepResult{}, err
	}

	next := transition(e.cfg, e.meals, e.rng, e.state, profile)

	e.stepCount++
	e.lastAction = action
	e.state = next

	reward := Reward(e.cfg, next, profile)
	terminated, reason := CheckTermination(e.cfg, next.Glucose, next.HeartRate, next.Adherence)
	truncated := false
	if !terminated {
		truncated = e.stepCount >= e.cfg.DayLength
		if truncated {
			reason = ReasonEndOfDay
		}
	}

	return StepResult{
		Observation: next.Observation(),
		Reward:      reward,
		Terminated:  terminated,
		Truncated:   truncated,
		Info: StepInfo{
			Step:              e.stepCount,
			ActionName:        profile.Name,
			Metrics:           next,
			TerminationReason: reason,
		},
	}, nil
}

// Render writes a one-line summary of the current state to w.
func (e *Engine) Render(w io.Writer) error {
	if e.status != StatusActive {
		_, err := fmt.Fprintln(w, "environment not reset")
		return err
	}
	s := e.state
	_, err := fmt.Fprintf(w,
		"hour=%02d glucose=%.1fmg/dL heart_rate=%.1fbpm fatigue=%.2f adherence=%.2f steps=%.0f last_action=%s\n",
		int(s.TimeOfDay), s.Glucose, s.HeartRate, s.Fatigue, s.Adherence, s.Steps, e.lastAction,
	)
	return err
}

// Close discards the current state. It is safe to call repeatedly; Reset starts over.
func (e *Engine) Close() {
	e.status = StatusClosed
	e.state = State{}
	e.stepCount = 0
	e.lastAction = ActionRest
}

func (e *Engine) normal(mean, std float64) float64 {
	return mean + e.rng.NormFloat64()*std
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}
