package reward

import (
	"math"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Raw property names a dscore objective may reference.
const (
	ObjectiveActivity  = "activity"
	ObjectiveSAScore   = "sascore"
	ObjectiveQED       = "qed"
	ObjectiveLogP      = "logp"
	ObjectiveTPSA      = "tpsa"
	ObjectiveMolWeight = "mol_weight"
)

type objective struct {
	cfg   config.ObjectiveConfig
	model *ActivityModel
}

// DScore aggregates several shaped objectives into one multi-objective
// desirability score, the weighted geometric mean of the shaped values.  A
// non-finite raw value in any objective makes the whole score Undefined so
// that the search never learns from a broken evaluation.
type DScore struct {
	objectives  []objective
	totalWeight float64
}

// NewDScore resolves the configured objectives, loading activity model files
// eagerly so that a bad path fails at startup.
func NewDScore(cfgs []config.ObjectiveConfig) (*DScore, error) {
	if len(cfgs) == 0 {
		return nil, errors.New(errors.ErrCodeRewardConfigInvalid, "dscore requires at least one objective")
	}
	d := &DScore{objectives: make([]objective, 0, len(cfgs))}
	for _, cfg := range cfgs {
		if err := validateScaling(cfg); err != nil {
			return nil, err
		}
		obj := objective{cfg: cfg}
		switch cfg.Name {
		case ObjectiveActivity:
			if cfg.WeightsPath == "" {
				return nil, errors.New(errors.ErrCodeRewardConfigInvalid, "activity objective requires weights_path")
			}
			model, err := LoadActivityModel(cfg.WeightsPath)
			if err != nil {
				return nil, err
			}
			obj.model = model
		case ObjectiveSAScore, ObjectiveQED, ObjectiveLogP, ObjectiveTPSA, ObjectiveMolWeight:
		default:
			return nil, errors.New(errors.ErrCodeRewardConfigInvalid, "unknown objective").WithDetail(cfg.Name)
		}
		d.objectives = append(d.objectives, obj)
		d.totalWeight += cfg.Weight
	}
	if d.totalWeight <= 0 {
		return nil, errors.New(errors.ErrCodeRewardConfigInvalid, "objective weights must sum to a positive value")
	}
	return d, nil
}

func (*DScore) Name() string { return "dscore" }

// Score implements Calculator.
func (d *DScore) Score(m *molecule.Molecule) (float64, map[string]float64, error) {
	if m == nil {
		return Undefined, nil, errors.New(errors.ErrCodeObjectiveFailed, "nil molecule")
	}
	desc := molecule.ComputeDescriptors(m)
	raws := make(map[string]float64, len(d.objectives))

	logProduct := 0.0
	for _, obj := range d.objectives {
		raw := d.raw(obj, m, desc)
		raws[obj.cfg.Name] = raw
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return Undefined, raws, nil
		}
		shaped := shape(obj.cfg, raw)
		if shaped <= 0 {
			shaped = 1e-6
		}
		logProduct += obj.cfg.Weight * math.Log(shaped)
	}
	return math.Exp(logProduct / d.totalWeight), raws, nil
}

func (d *DScore) raw(obj objective, m *molecule.Molecule, desc molecule.Descriptors) float64 {
	switch obj.cfg.Name {
	case ObjectiveActivity:
		return obj.model.Predict(m)
	case ObjectiveSAScore:
		return molecule.SAScore(m)
	case ObjectiveQED:
		return molecule.QED(m)
	case ObjectiveLogP:
		return desc.LogP
	case ObjectiveTPSA:
		return desc.TPSA
	case ObjectiveMolWeight:
		return desc.MolWeight
	default:
		return math.NaN()
	}
}
