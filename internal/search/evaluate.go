package search

import (
	"context"

	"github.com/turtacn/MolGenesis/internal/domain/filter"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/internal/domain/reward"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

// Outcome is the result of evaluating one rollout candidate.  Reward is
// always defined: unusable candidates carry the -1 sentinel so that tree
// statistics stay well-formed under frequent invalid candidates.
type Outcome struct {
	SMILES    string
	Canonical string
	// Valid reports whether the candidate decoded into a molecule.
	Valid bool
	// Rejected reports whether a filter rejected the candidate outright.
	Rejected      bool
	RejectedBy    string
	FiltersPassed int
	FiltersTotal  int
	Reward        float64
	// Objectives carries the raw sub-objective values of the reward
	// calculator, for the molecule ledger.
	Objectives map[string]float64
}

// Evaluator turns a terminal SMILES rendering into a scored Outcome.
type Evaluator interface {
	Evaluate(ctx context.Context, smiles string) Outcome
}

// Pipeline is the standard Evaluator: decode, optional neutralization, the
// configured filter chain, then the reward calculator.
//
// Failure handling follows one rule: decode failures, filter rejections and
// reward errors yield a reward of exactly -1 and never propagate as errors.
// With includeFilterResult set, filters stop rejecting; the computed reward
// is instead multiplied by the fraction of filters passed.  The -1 sentinel
// always replaces that scaling, never stacks with it.
type Pipeline struct {
	decoder             *molecule.Decoder
	neutralize          bool
	filters             []filter.Filter
	calc                reward.Calculator
	includeFilterResult bool
	logger              logging.Logger
}

// NewPipeline assembles an evaluation pipeline.
func NewPipeline(
	decoder *molecule.Decoder,
	neutralize bool,
	filters []filter.Filter,
	calc reward.Calculator,
	includeFilterResult bool,
	log logging.Logger,
) *Pipeline {
	return &Pipeline{
		decoder:             decoder,
		neutralize:          neutralize,
		filters:             filters,
		calc:                calc,
		includeFilterResult: includeFilterResult,
		logger:              log,
	}
}

// Evaluate implements Evaluator.
func (p *Pipeline) Evaluate(_ context.Context, smiles string) Outcome {
	out := Outcome{SMILES: smiles, Reward: -1, FiltersTotal: len(p.filters)}
	if smiles == "" {
		return out
	}

	mol, err := p.decoder.Decode(smiles)
	if err != nil {
		p.logger.Debug("Candidate failed to decode",
			logging.String("smiles", smiles),
			logging.Err(err),
		)
		return out
	}
	out.Valid = true

	if p.neutralize {
		mol = molecule.Neutralize(mol)
	}
	out.Canonical = mol.Canonical()

	for _, f := range p.filters {
		if f.Evaluate(mol) {
			out.FiltersPassed++
			continue
		}
		if !p.includeFilterResult {
			out.Rejected = true
			out.RejectedBy = f.Name()
			p.logger.Debug("Candidate rejected by filter",
				logging.String("smiles", smiles),
				logging.String("filter", f.Name()),
			)
			return out
		}
	}

	score, objectives, err := p.calc.Score(mol)
	out.Objectives = objectives
	if err != nil {
		p.logger.Error("Reward calculation failed",
			logging.String("smiles", smiles),
			logging.String("calculator", p.calc.Name()),
			logging.Err(err),
		)
		return out
	}
	if score == reward.Undefined {
		return out
	}

	if p.includeFilterResult && out.FiltersTotal > 0 {
		score *= float64(out.FiltersPassed) / float64(out.FiltersTotal)
	}
	out.Reward = score
	return out
}
