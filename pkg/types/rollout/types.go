// Package rollout defines the wire payloads exchanged between the search
// engine and stateless rollout workers over the message queue.
package rollout

import "time"

// Job asks a worker to run a number of stochastic completions of a token
// sequence.  Tokens is the full sequence including the begin token; Seed
// fixes the worker's random stream so a job is reproducible.
type Job struct {
	ID       string    `json:"id"`
	RunID    string    `json:"run_id"`
	Tokens   []int     `json:"tokens"`
	Rollouts int       `json:"rollouts"`
	Seed     [2]uint64 `json:"seed"`
	IssuedAt time.Time `json:"issued_at"`
}

// Outcome is the scored result of one rollout.
type Outcome struct {
	SMILES        string             `json:"smiles"`
	Canonical     string             `json:"canonical,omitempty"`
	Valid         bool               `json:"valid"`
	Rejected      bool               `json:"rejected,omitempty"`
	RejectedBy    string             `json:"rejected_by,omitempty"`
	FiltersPassed int                `json:"filters_passed,omitempty"`
	FiltersTotal  int                `json:"filters_total,omitempty"`
	Reward        float64            `json:"reward"`
	Objectives    map[string]float64 `json:"objectives,omitempty"`
}

// Result carries a completed job back to the engine.  Error is set when the
// worker could not process the job at all; the engine treats such jobs as
// sentinel-scored.
type Result struct {
	JobID      string    `json:"job_id"`
	RunID      string    `json:"run_id"`
	WorkerID   string    `json:"worker_id"`
	MeanReward float64   `json:"mean_reward"`
	Outcomes   []Outcome `json:"outcomes"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
