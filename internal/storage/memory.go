package storage

import (
	"context"
	"sort"
	"sync"

	"glucosim/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	episodes    map[string]model.EpisodeRecord
	transitions map[string][]model.TransitionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.episodes = make(map[string]model.EpisodeRecord)
	s.transitions = make(map[string][]model.TransitionRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) SaveEpisode(_ context.Context, episode model.EpisodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.episodes[episode.ID] = episode
	return nil
}

func (s *MemoryStore) GetEpisode(_ context.Context, id string) (model.EpisodeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episode, ok := s.episodes[id]
	return episode, ok, nil
}

func (s *MemoryStore) ListEpisodes(_ context.Context, runID string) ([]model.EpisodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episodes := make([]model.EpisodeRecord, 0)
	for _, episode := range s.episodes {
		if episode.RunID == runID {
			episodes = append(episodes, episode)
		}
	}
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].Index < episodes[j].Index
	})
	return episodes, nil
}

func (s *MemoryStore) SaveTransitions(_ context.Context, episodeID string, transitions []model.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions[episodeID] = append([]model.TransitionRecord(nil), transitions...)
	return nil
}

func (s *MemoryStore) GetTransitions(_ context.Context, episodeID string) ([]model.TransitionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transitions, ok := s.transitions[episodeID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TransitionRecord(nil), transitions...), true, nil
}
