package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"glucosim/internal/dailysim"
	"glucosim/internal/logging"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Options configures a Service. Zero MaxSessions means unlimited; zero
// IdleTimeout disables idle eviction.
type Options struct {
	Defaults    dailysim.Config
	MaxSessions int
	IdleTimeout time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service owns one engine per session. Calls on different sessions run
// concurrently; calls on the same session are serialized.
type Service struct {
	defaults    dailysim.Config
	maxSessions int
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	engine   *dailysim.Engine
	lastUsed time.Time
}

func NewService(opts Options) (*Service, error) {
	if err := opts.Defaults.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		defaults:    opts.Defaults,
		maxSessions: opts.MaxSessions,
		idleTimeout: opts.IdleTimeout,
		logger:      opts.Logger,
		now:         opts.Now,
		sessions:    make(map[string]*session),
	}, nil
}

// Defaults returns the engine configuration new sessions start from.
func (s *Service) Defaults() dailysim.Config {
	return s.defaults
}

// CreateSession builds a fresh engine from cfg and returns its session id.
func (s *Service) CreateSession(cfg dailysim.Config) (string, error) {
	engine, err := dailysim.NewEngine(cfg)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return "", fmt.Errorf("%w: %d active", ErrTooManySessions, len(s.sessions))
	}
	id := uuid.NewString()
	s.sessions[id] = &session{engine: engine, lastUsed: s.now()}
	s.logger.Info("session created", "session", id, "active", len(s.sessions))
	return id, nil
}

func (s *Service) Reset(id string, opts ...dailysim.ResetOption) (dailysim.Observation, dailysim.ResetInfo, error) {
	var (
		obs  dailysim.Observation
		info dailysim.ResetInfo
	)
	err := s.withSession(id, func(engine *dailysim.Engine) error {
		obs, info = engine.Reset(opts...)
		return nil
	})
	if err == nil {
		s.logger.Debug("session reset", "session", id, "glucose", obs[dailysim.IndexGlucose], "hour", obs[dailysim.IndexTimeOfDay])
	}
	return obs, info, err
}

func (s *Service) Step(id string, action dailysim.Action) (dailysim.StepResult, error) {
	var result dailysim.StepResult
	err := s.withSession(id, func(engine *dailysim.Engine) error {
		var err error
		result, err = engine.Step(action)
		return err
	})
	if err != nil {
		return dailysim.StepResult{}, err
	}
	if result.Terminated || result.Truncated {
		s.logger.Info("episode ended",
			"session", id,
			"step", result.Info.Step,
			"terminated", result.Terminated,
			"truncated", result.Truncated,
			"reason", string(result.Info.TerminationReason),
		)
	}
	return result, nil
}

func (s *Service) Render(id string) (string, error) {
	var buf bytes.Buffer
	err := s.withSession(id, func(engine *dailysim.Engine) error {
		return engine.Render(&buf)
	})
	return buf.String(), err
}

// Close releases the session. Unknown ids are ignored.
func (s *Service) Close(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	active := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.engine.Close()
	sess.mu.Unlock()
	s.logger.Info("session closed", "session", id, "active", active)
}

// Sessions reports the number of live sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed.
func (s *Service) EvictIdle() int {
	if s.idleTimeout <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	var stale []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		s.Close(id)
	}
	if len(stale) > 0 {
		s.logger.Info("idle sessions evicted", "count", len(stale))
	}
	return len(stale)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// CloseAll releases every session.
func (s *Service) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Close(id)
	}
}

func (s *Service) withSession(id string, fn func(*dailysim.Engine) error) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastUsed = s.now()
	return fn(sess.engine)
}

func janitorInterval(idle time.Duration) time.Duration {
	if idle <= 0 {
		return 0
	}
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
