package kafka

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/search"
	"github.com/turtacn/MolGenesis/pkg/types/rollout"
)

// QueueSimulator implements search.Simulator by dispatching each rollout
// batch to stateless workers over the queue and waiting for the matching
// result.  The engine stays the single writer of the tree; workers only ever
// see token sequences.
//
// Seeds are drawn from the engine RNG before publishing, so a checkpointed
// run re-dispatches identical jobs after a restart.
type QueueSimulator struct {
	runID   string
	jobs    *Producer
	results *Consumer
	rng     *rand.Rand
	timeout time.Duration
	logger  logging.Logger
}

// NewQueueSimulator wires the simulator to the jobs and results topics.
func NewQueueSimulator(runID string, jobs *Producer, results *Consumer, rng *rand.Rand, timeout time.Duration, log logging.Logger) *QueueSimulator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &QueueSimulator{
		runID:   runID,
		jobs:    jobs,
		results: results,
		rng:     rng,
		timeout: timeout,
		logger:  log,
	}
}

// Simulate implements search.Simulator.  A lost or failed job folds into the
// -1 sentinel rather than an error, matching the local simulator's contract.
func (s *QueueSimulator) Simulate(ctx context.Context, st *search.State, rollouts int) (float64, []search.Outcome, error) {
	if rollouts < 1 {
		rollouts = 1
	}
	job := rollout.Job{
		ID:       uuid.NewString(),
		RunID:    s.runID,
		Tokens:   st.Tokens(),
		Rollouts: rollouts,
		Seed:     [2]uint64{s.rng.Uint64(), s.rng.Uint64()},
		IssuedAt: time.Now(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		s.logger.Error("Failed to encode rollout job", logging.Err(err))
		return -1, nil, nil
	}
	if err := s.jobs.Publish(ctx, s.runID, payload); err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		s.logger.Error("Failed to publish rollout job", logging.Err(err))
		return -1, nil, nil
	}

	res, err := s.awaitResult(ctx, job.ID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		s.logger.Warn("Rollout job produced no result",
			logging.String("job_id", job.ID),
			logging.Err(err),
		)
		return -1, nil, nil
	}
	if res.Error != "" {
		s.logger.Warn("Worker reported rollout failure",
			logging.String("job_id", job.ID),
			logging.String("worker_id", res.WorkerID),
			logging.String("error", res.Error),
		)
		return -1, nil, nil
	}
	return res.MeanReward, toSearchOutcomes(res.Outcomes), nil
}

// awaitResult reads the results topic until the matching job id arrives or
// the per-job timeout expires.  Results for other jobs (stale retries,
// other engines sharing the topic misconfigured) are committed and skipped.
func (s *QueueSimulator) awaitResult(ctx context.Context, jobID string) (*rollout.Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for {
		msg, err := s.results.Fetch(waitCtx)
		if err != nil {
			return nil, err
		}
		var res rollout.Result
		if err := json.Unmarshal(msg.Value, &res); err != nil {
			s.logger.Warn("Discarding undecodable result message", logging.Err(err))
			_ = s.results.Commit(waitCtx, msg)
			continue
		}
		if err := s.results.Commit(waitCtx, msg); err != nil {
			s.logger.Warn("Failed to commit result message", logging.Err(err))
		}
		if res.JobID != jobID {
			s.logger.Debug("Skipping result for another job",
				logging.String("got", res.JobID),
				logging.String("want", jobID),
			)
			continue
		}
		return &res, nil
	}
}

func toSearchOutcomes(in []rollout.Outcome) []search.Outcome {
	out := make([]search.Outcome, len(in))
	for i, o := range in {
		out[i] = search.Outcome{
			SMILES:        o.SMILES,
			Canonical:     o.Canonical,
			Valid:         o.Valid,
			Rejected:      o.Rejected,
			RejectedBy:    o.RejectedBy,
			FiltersPassed: o.FiltersPassed,
			FiltersTotal:  o.FiltersTotal,
			Reward:        o.Reward,
			Objectives:    o.Objectives,
		}
	}
	return out
}
