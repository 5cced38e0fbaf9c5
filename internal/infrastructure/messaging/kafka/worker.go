package kafka

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
	"github.com/turtacn/MolGenesis/internal/search"
	"github.com/turtacn/MolGenesis/pkg/types/rollout"
)

// RolloutWorker consumes rollout jobs, runs them with an in-process
// simulator seeded from the job, and publishes results.  Workers are
// stateless: any number can share the consumer group, and a crashed worker's
// uncommitted job is simply redelivered to another.
type RolloutWorker struct {
	id       string
	jobs     *Consumer
	results  *Producer
	vocab    *search.Vocabulary
	model    seqmodel.Model
	eval     search.Evaluator
	parallel int
	logger   logging.Logger
}

// NewRolloutWorker assembles a worker.
func NewRolloutWorker(
	id string,
	jobs *Consumer,
	results *Producer,
	vocab *search.Vocabulary,
	model seqmodel.Model,
	eval search.Evaluator,
	parallel int,
	log logging.Logger,
) *RolloutWorker {
	if parallel < 1 {
		parallel = 1
	}
	return &RolloutWorker{
		id:       id,
		jobs:     jobs,
		results:  results,
		vocab:    vocab,
		model:    model,
		eval:     eval,
		parallel: parallel,
		logger:   log,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *RolloutWorker) Run(ctx context.Context) error {
	w.logger.Info("Rollout worker started", logging.String("worker_id", w.id))
	for {
		msg, err := w.jobs.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Rollout worker stopping", logging.Err(ctx.Err()))
				return nil
			}
			w.logger.Error("Failed to fetch job", logging.Err(err))
			continue
		}

		var job rollout.Job
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			w.logger.Warn("Discarding undecodable job message", logging.Err(err))
			_ = w.jobs.Commit(ctx, msg)
			continue
		}

		res := w.process(ctx, &job)
		if ctx.Err() != nil {
			// Do not commit: the job will be redelivered to another worker.
			return nil
		}
		payload, err := json.Marshal(res)
		if err != nil {
			w.logger.Error("Failed to encode result", logging.Err(err))
			_ = w.jobs.Commit(ctx, msg)
			continue
		}
		if err := w.results.Publish(ctx, job.RunID, payload); err != nil {
			w.logger.Error("Failed to publish result",
				logging.String("job_id", job.ID),
				logging.Err(err),
			)
		}
		if err := w.jobs.Commit(ctx, msg); err != nil {
			w.logger.Error("Failed to commit job", logging.Err(err))
		}
	}
}

// process runs one job to a Result.  Job-level failures are reported in the
// Result rather than crashing the worker.
func (w *RolloutWorker) process(ctx context.Context, job *rollout.Job) *rollout.Result {
	res := &rollout.Result{
		JobID:    job.ID,
		RunID:    job.RunID,
		WorkerID: w.id,
	}
	defer func() { res.FinishedAt = time.Now() }()

	st, err := search.NewStateFromTokens(w.vocab, w.model.MaxSequenceLength(), job.Tokens)
	if err != nil {
		res.Error = err.Error()
		res.MeanReward = -1
		return res
	}

	rng := rand.New(rand.NewPCG(job.Seed[0], job.Seed[1]))
	sim := search.NewLocalSimulator(w.model, w.eval, rng, w.parallel, w.logger)
	mean, outcomes, err := sim.Simulate(ctx, st, job.Rollouts)
	if err != nil {
		res.Error = err.Error()
		res.MeanReward = -1
		return res
	}

	res.MeanReward = mean
	res.Outcomes = toWireOutcomes(outcomes)
	w.logger.Debug("Job completed",
		logging.String("job_id", job.ID),
		logging.Float64("mean_reward", mean),
		logging.Int("rollouts", len(outcomes)),
	)
	return res
}

func toWireOutcomes(in []search.Outcome) []rollout.Outcome {
	out := make([]rollout.Outcome, len(in))
	for i, o := range in {
		out[i] = rollout.Outcome{
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
