package storage

import (
	"context"

	"glucosim/internal/model"
)

// Store defines persistence operations for runs, episodes and their transitions.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveEpisode(ctx context.Context, episode model.EpisodeRecord) error
	GetEpisode(ctx context.Context, id string) (model.EpisodeRecord, bool, error)
	ListEpisodes(ctx context.Context, runID string) ([]model.EpisodeRecord, error)
	SaveTransitions(ctx context.Context, episodeID string, transitions []model.TransitionRecord) error
	GetTransitions(ctx context.Context, episodeID string) ([]model.TransitionRecord, bool, error)
}
