package scape

import (
	"context"
	"fmt"
	"math"
	"strings"

	"glucosim/internal/dailysim"
	"glucosim/internal/model"
	"glucosim/internal/scapeid"
	"glucosim/internal/stats"
)

// DiabetesExerciseScape scores a controller over a fixed set of simulated
// days. Fitness is the mean per-step reward across all days of the mode.
type DiabetesExerciseScape struct {
	Config dailysim.Config
}

func NewDiabetesExerciseScape() DiabetesExerciseScape {
	return DiabetesExerciseScape{Config: dailysim.DefaultConfig()}
}

func (DiabetesExerciseScape) Name() string {
	return scapeid.DiabetesExercise
}

func (s DiabetesExerciseScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	return s.EvaluateMode(ctx, agent, "gt")
}

func (s DiabetesExerciseScape) EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error) {
	modeCfg, err := diabetesExerciseConfigForMode(mode)
	if err != nil {
		return 0, nil, err
	}
	if err := s.Config.Validate(); err != nil {
		return 0, nil, err
	}

	var choose chooseActionFunc
	switch typed := agent.(type) {
	case PolicyAgent:
		choose = func(_ context.Context, obs dailysim.Observation) (dailysim.Action, error) {
			return typed.act(obs), nil
		}
	case StepAgent:
		low, high := s.Config.ObservationSpace()
		choose = func(ctx context.Context, obs dailysim.Observation) (dailysim.Action, error) {
			out, err := typed.RunStep(ctx, NormalizeObservation(obs, low, high))
			if err != nil {
				return 0, err
			}
			return DecodeAction(out)
		}
	default:
		return 0, nil, fmt.Errorf("agent %s does not implement step runner", agent.ID())
	}

	return evaluateDiabetesExercise(ctx, s.Config, modeCfg, choose)
}

type chooseActionFunc func(context.Context, dailysim.Observation) (dailysim.Action, error)

type diabetesExerciseModeConfig struct {
	mode  string
	seeds []int64
}

func diabetesExerciseConfigForMode(mode string) (diabetesExerciseModeConfig, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		return diabetesExerciseModeConfig{mode: "gt", seeds: seedRange(0, 10)}, nil
	case "validation":
		return diabetesExerciseModeConfig{mode: "validation", seeds: seedRange(100, 5)}, nil
	case "test":
		return diabetesExerciseModeConfig{mode: "test", seeds: seedRange(200, 5)}, nil
	case "benchmark":
		return diabetesExerciseModeConfig{mode: "benchmark", seeds: seedRange(300, 20)}, nil
	default:
		return diabetesExerciseModeConfig{}, fmt.Errorf("unsupported %s mode: %s", scapeid.DiabetesExercise, mode)
	}
}

func seedRange(start int64, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = start + int64(i)
	}
	return seeds
}

func evaluateDiabetesExercise(
	ctx context.Context,
	cfg dailysim.Config,
	modeCfg diabetesExerciseModeConfig,
	choose chooseActionFunc,
) (Fitness, Trace, error) {
	engine, err := dailysim.NewEngine(cfg)
	if err != nil {
		return 0, nil, err
	}
	defer engine.Close()

	episodes := make([]model.EpisodeRecord, 0, len(modeCfg.seeds))
	for i, seed := range modeCfg.seeds {
		obs, _ := engine.Reset(dailysim.WithSeed(seed))
		var transitions []model.TransitionRecord
		for {
			if err := ctx.Err(); err != nil {
				return 0, nil, err
			}
			action, err := choose(ctx, obs)
			if err != nil {
				return 0, nil, err
			}
			step, err := engine.Step(action)
			if err != nil {
				return 0, nil, err
			}
			obs = step.Observation
			transitions = append(transitions, model.TransitionRecord{
				Step:              step.Info.Step,
				Action:            int(action),
				ActionName:        step.Info.ActionName,
				Observation:       obs.Slice(),
				Reward:            step.Reward,
				Terminated:        step.Terminated,
				Truncated:         step.Truncated,
				TerminationReason: string(step.Info.TerminationReason),
			})
			if step.Terminated || step.Truncated {
				break
			}
		}

		episode := model.EpisodeRecord{Index: i, Seed: seed}
		stats.SummarizeEpisode(transitions).ApplyTo(&episode)
		episodes = append(episodes, episode)
	}

	summary := stats.SummarizeRun(episodes)
	totalReward := 0.0
	for _, episode := range episodes {
		totalReward += episode.TotalReward
	}
	avgReward := 0.0
	if summary.TotalSteps > 0 {
		avgReward = totalReward / float64(summary.TotalSteps)
	}

	return Fitness(avgReward), Trace{
		"avg_reward":         avgReward,
		"mode":               modeCfg.mode,
		"episodes":           len(modeCfg.seeds),
		"steps":              summary.TotalSteps,
		"mean_time_in_range": summary.MeanTimeInRange,
		"mean_final_steps":   summary.MeanFinalSteps,
		"truncated":          summary.Truncated,
		"terminations":       summary.Terminations,
	}, nil
}

// NormalizeObservation rescales each field into [0, 1] using the observation
// space bounds.
func NormalizeObservation(obs, low, high dailysim.Observation) []float64 {
	out := make([]float64, len(obs))
	for i := range obs {
		span := high[i] - low[i]
		if span <= 0 {
			continue
		}
		out[i] = math.Max(0, math.Min(1, (obs[i]-low[i])/span))
	}
	return out
}

// DecodeAction turns actuator output into an action. One output per action
// picks the argmax; a single output in [0, 1] is bucketed evenly.
func DecodeAction(out []float64) (dailysim.Action, error) {
	switch len(out) {
	case dailysim.ActionCount:
		best := 0
		for i := 1; i < len(out); i++ {
			if out[i] > out[best] {
				best = i
			}
		}
		return dailysim.Action(best), nil
	case 1:
		v := out[0]
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: NaN output", dailysim.ErrInvalidAction)
		}
		bucket := int(math.Floor(math.Max(0, math.Min(1, v)) * dailysim.ActionCount))
		if bucket >= dailysim.ActionCount {
			bucket = dailysim.ActionCount - 1
		}
		return dailysim.Action(bucket), nil
	default:
		return 0, fmt.Errorf("%s requires 1 or %d outputs, got %d", scapeid.DiabetesExercise, dailysim.ActionCount, len(out))
	}
}
