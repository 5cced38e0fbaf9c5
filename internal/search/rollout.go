package search

import (
	"context"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
)

// Simulator runs the rollout phase for one expanded child: a number of
// independent stochastic completions of the child's state, each evaluated to
// an Outcome.  The returned reward is the mean over all rollouts.
//
// Simulators never mutate the tree; they receive a State and return rewards,
// which is what makes leaf and queue parallelism safe.  The only error a
// Simulator returns is context cancellation; every other failure is folded
// into a -1 outcome.
type Simulator interface {
	Simulate(ctx context.Context, st *State, rollouts int) (float64, []Outcome, error)
}

// LocalSimulator runs rollouts in-process.  With Parallel > 1 the rollouts
// of one call run concurrently; the model and evaluator are read-only after
// load, so sharing them across rollout goroutines is safe.
type LocalSimulator struct {
	model  seqmodel.Model
	eval   Evaluator
	rng    *rand.Rand
	// parallel is the maximum number of concurrent rollouts; 1 keeps the
	// rollout stream fully deterministic under a fixed RNG state.
	parallel int
	logger   logging.Logger
}

// NewLocalSimulator builds an in-process simulator.  rng is the engine's
// random source; in parallel mode it is only used to seed per-rollout
// sources, keeping the run reproducible for a given checkpointed RNG state.
func NewLocalSimulator(model seqmodel.Model, eval Evaluator, rng *rand.Rand, parallel int, log logging.Logger) *LocalSimulator {
	if parallel < 1 {
		parallel = 1
	}
	return &LocalSimulator{model: model, eval: eval, rng: rng, parallel: parallel, logger: log}
}

// Simulate implements Simulator.
func (s *LocalSimulator) Simulate(ctx context.Context, st *State, rollouts int) (float64, []Outcome, error) {
	if rollouts < 1 {
		rollouts = 1
	}
	outcomes := make([]Outcome, rollouts)

	if s.parallel <= 1 {
		for i := 0; i < rollouts; i++ {
			if err := ctx.Err(); err != nil {
				return 0, nil, err
			}
			outcomes[i] = s.rollout(ctx, st, s.rng)
		}
	} else {
		// Seeds are drawn sequentially before the goroutines start so the
		// set of rollout streams is a pure function of the engine RNG state.
		seeds := make([][2]uint64, rollouts)
		for i := range seeds {
			seeds[i] = [2]uint64{s.rng.Uint64(), s.rng.Uint64()}
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.parallel)
		for i := 0; i < rollouts; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rng := rand.New(rand.NewPCG(seeds[i][0], seeds[i][1]))
				outcomes[i] = s.rollout(gctx, st, rng)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, nil, err
		}
	}

	var sum float64
	for _, o := range outcomes {
		sum += o.Reward
	}
	return sum / float64(rollouts), outcomes, nil
}

// rollout completes st stochastically and evaluates the result.  Model
// failures mid-rollout are logged and yield the -1 sentinel.
func (s *LocalSimulator) rollout(ctx context.Context, st *State, rng *rand.Rand) Outcome {
	cur := st
	for !cur.IsTerminal() {
		dist, err := s.model.PredictNextTokens(ctx, cur.Tokens())
		if err != nil {
			s.logger.Error("Model inference failed during rollout",
				logging.Int("sequence_length", cur.Len()),
				logging.Err(err),
			)
			return Outcome{SMILES: cur.SMILES(), Reward: -1}
		}
		next, err := cur.Extend(SampleToken(dist, rng))
		if err != nil {
			return Outcome{SMILES: cur.SMILES(), Reward: -1}
		}
		cur = next
	}
	return s.eval.Evaluate(ctx, cur.SMILES())
}

// SampleToken draws a token id from a probability distribution.  The
// distribution need not be exactly normalised; sampling is over its total
// mass.  A degenerate all-zero distribution falls back to the last id.
func SampleToken(dist []float32, rng *rand.Rand) int {
	var total float64
	for _, p := range dist {
		total += float64(p)
	}
	if total <= 0 {
		return len(dist) - 1
	}
	r := rng.Float64() * total
	var cum float64
	for i, p := range dist {
		cum += float64(p)
		if r < cum {
			return i
		}
	}
	return len(dist) - 1
}
