package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// EpisodeRecord summarizes one simulated day driven by a policy.
type EpisodeRecord struct {
	VersionedRecord
	ID                string  `json:"id"`
	RunID             string  `json:"run_id"`
	Index             int     `json:"index"`
	Scape             string  `json:"scape"`
	Policy            string  `json:"policy"`
	Seed              int64   `json:"seed"`
	Steps             int     `json:"steps"`
	TotalReward       float64 `json:"total_reward"`
	MeanReward        float64 `json:"mean_reward"`
	TimeInRange       float64 `json:"time_in_range"`
	MeanGlucose       float64 `json:"mean_glucose"`
	MinGlucose        float64 `json:"min_glucose"`
	MaxGlucose        float64 `json:"max_glucose"`
	FinalSteps        float64 `json:"final_steps"`
	Terminated        bool    `json:"terminated"`
	Truncated         bool    `json:"truncated"`
	TerminationReason string  `json:"termination_reason,omitempty"`
	CreatedAtUTC      string  `json:"created_at_utc"`
}

// TransitionRecord is one step of an episode as seen by the agent.
type TransitionRecord struct {
	Step              int       `json:"step"`
	Action            int       `json:"action"`
	ActionName        string    `json:"action_name"`
	Observation       []float64 `json:"observation"`
	Reward            float64   `json:"reward"`
	Terminated        bool      `json:"terminated"`
	Truncated         bool      `json:"truncated"`
	TerminationReason string    `json:"termination_reason,omitempty"`
}

// RunRecord groups the episodes produced by one rollout.
type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	Scape        string  `json:"scape"`
	Policy       string  `json:"policy"`
	Seed         int64   `json:"seed"`
	Episodes     int     `json:"episodes"`
	MeanReward   float64 `json:"mean_reward"`
	TimeInRange  float64 `json:"time_in_range"`
	CreatedAtUTC string  `json:"created_at_utc"`
}
