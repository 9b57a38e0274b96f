package rollout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"glucosim/internal/dailysim"
	"glucosim/internal/logging"
	"glucosim/internal/model"
	"glucosim/internal/scapeid"
	"glucosim/internal/stats"
	"glucosim/internal/storage"
)

// Request describes one batch of episodes driven by the same policy spec.
// Episode i is reset with Seed+i and gets its own policy instance.
type Request struct {
	Policy   string
	Episodes int
	Seed     int64
}

type Result struct {
	Run         model.RunRecord
	Episodes    []model.EpisodeRecord
	Transitions map[string][]model.TransitionRecord
	Summary     stats.RunSummary
}

// Runner plays episodes against fresh engines. Store and Logger are optional.
type Runner struct {
	Config  dailysim.Config
	Store   storage.Store
	Logger  *slog.Logger
	Workers int
	Now     func() time.Time
}

func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if req.Episodes <= 0 {
		return Result{}, fmt.Errorf("episodes must be > 0")
	}
	if err := r.Config.Validate(); err != nil {
		return Result{}, err
	}
	probe, err := ParsePolicy(req.Policy, req.Seed, r.Config)
	if err != nil {
		return Result{}, err
	}

	logger := r.logger()
	now := r.now()
	createdAt := now.UTC().Format(time.RFC3339Nano)
	runID := uuid.NewString()
	logger.Info("rollout started", "run_id", runID, "policy", probe.Name(), "episodes", req.Episodes, "seed", req.Seed)

	type job struct {
		idx int
	}
	type result struct {
		idx         int
		episode     model.EpisodeRecord
		transitions []model.TransitionRecord
		err         error
	}

	jobs := make(chan job)
	results := make(chan result, req.Episodes)

	workerCount := r.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > req.Episodes {
		workerCount = req.Episodes
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				seed := req.Seed + int64(j.idx)
				policy, err := ParsePolicy(req.Policy, seed, r.Config)
				if err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				transitions, err := PlayEpisode(ctx, r.Config, policy, seed, logger)
				if err != nil {
					results <- result{idx: j.idx, err: fmt.Errorf("episode %d: %w", j.idx, err)}
					continue
				}

				episode := model.EpisodeRecord{
					VersionedRecord: storage.CurrentVersion(),
					ID:              uuid.NewString(),
					RunID:           runID,
					Index:           j.idx,
					Scape:           scapeid.DiabetesExercise,
					Policy:          policy.Name(),
					Seed:            seed,
					CreatedAtUTC:    createdAt,
				}
				stats.SummarizeEpisode(transitions).ApplyTo(&episode)
				logger.Debug("episode finished",
					"run_id", runID,
					"episode", j.idx,
					"steps", episode.Steps,
					"reward", episode.TotalReward,
					"time_in_range", episode.TimeInRange,
					"reason", episode.TerminationReason,
				)
				results <- result{idx: j.idx, episode: episode, transitions: transitions}
			}
		}()
	}

	for i := 0; i < req.Episodes; i++ {
		jobs <- job{idx: i}
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := Result{
		Episodes:    make([]model.EpisodeRecord, req.Episodes),
		Transitions: make(map[string][]model.TransitionRecord, req.Episodes),
	}
	for res := range results {
		if res.err != nil {
			return Result{}, res.err
		}
		out.Episodes[res.idx] = res.episode
		out.Transitions[res.episode.ID] = res.transitions
	}

	out.Summary = stats.SummarizeRun(out.Episodes)
	out.Run = model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Scape:           scapeid.DiabetesExercise,
		Policy:          probe.Name(),
		Seed:            req.Seed,
		Episodes:        req.Episodes,
		MeanReward:      out.Summary.MeanReward,
		TimeInRange:     out.Summary.MeanTimeInRange,
		CreatedAtUTC:    createdAt,
	}

	if r.Store != nil {
		if err := persist(ctx, r.Store, out); err != nil {
			return Result{}, fmt.Errorf("persist run %s: %w", runID, err)
		}
	}

	logger.Info("rollout finished",
		"run_id", runID,
		"mean_reward", out.Summary.MeanReward,
		"time_in_range", out.Summary.MeanTimeInRange,
		"truncated", out.Summary.Truncated,
		"elapsed", r.now().Sub(now),
	)
	return out, nil
}

// PlayEpisode resets a fresh engine with seed and steps it under policy until
// the day terminates or truncates.
func PlayEpisode(ctx context.Context, cfg dailysim.Config, policy Policy, seed int64, logger *slog.Logger) ([]model.TransitionRecord, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	engine, err := dailysim.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	obs, _ := engine.Reset(dailysim.WithSeed(seed))
	transitions := make([]model.TransitionRecord, 0, cfg.DayLength)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		action := policy.Act(obs)
		step, err := engine.Step(action)
		if err != nil {
			return nil, err
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
		logger.Log(ctx, logging.LevelTrace, "step",
			"step", step.Info.Step,
			"action", step.Info.ActionName,
			"glucose", obs[dailysim.IndexGlucose],
			"reward", step.Reward,
		)

		if step.Terminated || step.Truncated {
			return transitions, nil
		}
	}
}

func persist(ctx context.Context, store storage.Store, out Result) error {
	if err := store.SaveRun(ctx, out.Run); err != nil {
		return err
	}
	for _, episode := range out.Episodes {
		if err := store.SaveEpisode(ctx, episode); err != nil {
			return err
		}
		if err := store.SaveTransitions(ctx, episode.ID, out.Transitions[episode.ID]); err != nil {
			return err
		}
	}
	return nil
}

// Artifacts converts a result into the on-disk artifact bundle.
// A nil meal schedule is recorded as the default schedule the engine ran.
func (res Result) Artifacts(cfg dailysim.Config, workers int) stats.RunArtifacts {
	meals := cfg.MealSchedule.Clone()
	if meals == nil {
		meals = dailysim.DefaultMealSchedule()
	}
	return stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         res.Run.ID,
			Scape:         res.Run.Scape,
			Policy:        res.Run.Policy,
			Seed:          res.Run.Seed,
			Episodes:      res.Run.Episodes,
			Workers:       workers,
			DayLength:     cfg.DayLength,
			StepTarget:    cfg.StepTarget,
			GlucoseTarget: cfg.GlucoseTarget,
			MealSchedule:  meals,
		},
		Summary:     res.Summary,
		Episodes:    res.Episodes,
		Transitions: res.Transitions,
	}
}

// IndexEntry is the run index line for this result.
func (res Result) IndexEntry() stats.RunIndexEntry {
	return stats.RunIndexEntry{
		RunID:           res.Run.ID,
		Scape:           res.Run.Scape,
		Policy:          res.Run.Policy,
		Episodes:        res.Run.Episodes,
		Seed:            res.Run.Seed,
		MeanReward:      res.Summary.MeanReward,
		MeanTimeInRange: res.Summary.MeanTimeInRange,
		CreatedAtUTC:    res.Run.CreatedAtUTC,
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
