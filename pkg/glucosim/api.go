package glucosim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"glucosim/internal/dailysim"
	"glucosim/internal/logging"
	"glucosim/internal/model"
	"glucosim/internal/rollout"
	"glucosim/internal/scape"
	"glucosim/internal/scapeid"
	"glucosim/internal/server"
	"glucosim/internal/stats"
	"glucosim/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "glucosim.db"
)

type (
	Engine       = dailysim.Engine
	Config       = dailysim.Config
	Action       = dailysim.Action
	Observation  = dailysim.Observation
	ResetInfo    = dailysim.ResetInfo
	ResetOption  = dailysim.ResetOption
	StepResult   = dailysim.StepResult
	RemoteClient = server.Client
)

const (
	Rest          = dailysim.ActionRest
	LightWalk     = dailysim.ActionLightWalk
	ModerateJog   = dailysim.ActionModerateJog
	HighIntensity = dailysim.ActionHighIntensity
)

var (
	ErrInvalidConfig = dailysim.ErrInvalidConfig
	ErrInvalidAction = dailysim.ErrInvalidAction
	ErrNotReset      = dailysim.ErrNotReset
)

func DefaultConfig() Config {
	return dailysim.DefaultConfig()
}

// NewEngine builds a local simulation engine.
func NewEngine(cfg Config) (*Engine, error) {
	return dailysim.NewEngine(cfg)
}

func WithSeed(seed int64) ResetOption {
	return dailysim.WithSeed(seed)
}

func ParseAction(name string) (Action, error) {
	return dailysim.ParseAction(name)
}

// Dial connects to a remote environment service.
func Dial(addr string) (*RemoteClient, error) {
	return server.Dial(addr)
}

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Engine       *Config
	Logger       *slog.Logger
}

// Client runs and inspects batches of simulated days.
type Client struct {
	store  storage.Store
	engine Config
	logger *slog.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Policy   string
	Episodes int
	Seed     int64
	Workers  int
	Workbook bool
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	WorkbookPath string
	Summary      stats.RunSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	Scape           string
	Policy          string
	Seed            int64
	Episodes        int
	MeanReward      float64
	MeanTimeInRange float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type EpisodesRequest struct {
	RunID  string
	Latest bool
}

type TransitionsRequest struct {
	RunID     string
	EpisodeID string
}

type EvaluateRequest struct {
	Scape  string
	Mode   string
	Policy string
	Seed   int64
}

type EvaluateSummary struct {
	Scape   string
	Mode    string
	Policy  string
	Fitness float64
	Trace   map[string]any
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	engine := dailysim.DefaultConfig()
	if opts.Engine != nil {
		engine = *opts.Engine
	}
	if err := engine.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}

	return &Client{
		store:        store,
		engine:       engine,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run plays a batch of episodes, persists them, and writes the run artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Policy == "" {
		req.Policy = "random"
	}
	if req.Episodes <= 0 {
		req.Episodes = 10
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}

	runner := &rollout.Runner{
		Config:  c.engine,
		Store:   c.store,
		Logger:  c.logger,
		Workers: req.Workers,
	}
	result, err := runner.Run(ctx, rollout.Request{
		Policy:   req.Policy,
		Episodes: req.Episodes,
		Seed:     req.Seed,
	})
	if err != nil {
		return RunSummary{}, err
	}

	artifacts := result.Artifacts(c.engine, req.Workers)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, artifacts)
	if err != nil {
		return RunSummary{}, err
	}
	summary := RunSummary{
		RunID:        result.Run.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Summary:      result.Summary,
	}
	if req.Workbook {
		path, err := stats.WriteRunWorkbook(runDir, artifacts)
		if err != nil {
			return RunSummary{}, err
		}
		summary.WorkbookPath = path
	}
	if err := stats.AppendRunIndex(c.artifactsDir, result.IndexEntry()); err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:           e.RunID,
			CreatedAtUTC:    e.CreatedAtUTC,
			Scape:           e.Scape,
			Policy:          e.Policy,
			Seed:            e.Seed,
			Episodes:        e.Episodes,
			MeanReward:      e.MeanReward,
			MeanTimeInRange: e.MeanTimeInRange,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Episodes lists the episodes of a run. The store is consulted first; runs
// recorded by another process are read back from the artifacts directory.
func (c *Client) Episodes(ctx context.Context, req EpisodesRequest) ([]model.EpisodeRecord, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	episodes, err := c.store.ListEpisodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(episodes) > 0 {
		return episodes, nil
	}
	episodes, ok, err := stats.ReadRunEpisodes(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return episodes, nil
}

func (c *Client) Transitions(ctx context.Context, req TransitionsRequest) ([]model.TransitionRecord, error) {
	if req.EpisodeID == "" {
		return nil, errors.New("episode id is required")
	}
	transitions, ok, err := c.store.GetTransitions(ctx, req.EpisodeID)
	if err != nil {
		return nil, err
	}
	if ok {
		return transitions, nil
	}
	if req.RunID == "" {
		episode, found, err := c.store.GetEpisode(ctx, req.EpisodeID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("episode not found: %s", req.EpisodeID)
		}
		req.RunID = episode.RunID
	}
	transitions, ok, err = stats.ReadTransitionsCSV(c.artifactsDir, req.RunID, req.EpisodeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("episode not found: %s", req.EpisodeID)
	}
	return transitions, nil
}

// Evaluate scores a policy against one scape mode.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.Policy == "" {
		req.Policy = "heuristic"
	}
	policy, err := rollout.ParsePolicy(req.Policy, req.Seed, c.engine)
	if err != nil {
		return EvaluateSummary{}, err
	}
	return c.evaluate(ctx, req, scape.PolicyAgent{Policy: policy})
}

// StepController maps a normalized observation in [0, 1]^6 to controller
// outputs: four action scores (argmax wins) or one value bucketed over the
// action ids.
type StepController func(ctx context.Context, input []float64) ([]float64, error)

// EvaluateController scores an external controller against one scape mode.
// req.Policy names the controller in the result.
func (c *Client) EvaluateController(ctx context.Context, req EvaluateRequest, controller StepController) (EvaluateSummary, error) {
	if controller == nil {
		return EvaluateSummary{}, errors.New("controller is required")
	}
	if req.Policy == "" {
		req.Policy = "controller"
	}
	return c.evaluate(ctx, req, scape.StepFunc{Name: req.Policy, Fn: controller})
}

func (c *Client) evaluate(ctx context.Context, req EvaluateRequest, agent scape.Agent) (EvaluateSummary, error) {
	if req.Scape == "" {
		req.Scape = scapeid.DiabetesExercise
	}
	if req.Mode == "" {
		req.Mode = "gt"
	}
	if _, err := scape.Resolve(req.Scape); err != nil {
		return EvaluateSummary{}, err
	}

	target := scape.DiabetesExerciseScape{Config: c.engine}
	fitness, trace, err := target.EvaluateMode(ctx, agent, req.Mode)
	if err != nil {
		return EvaluateSummary{}, err
	}
	c.logger.Info("agent evaluated", "scape", target.Name(), "mode", req.Mode, "agent", agent.ID(), "fitness", float64(fitness))
	return EvaluateSummary{
		Scape:   target.Name(),
		Mode:    req.Mode,
		Policy:  agent.ID(),
		Fitness: float64(fitness),
		Trace:   trace,
	}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs recorded")
	}
	return entries[0].RunID, nil
}
