package filter

import (
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Lipinski variants.
const (
	VariantRuleOf5 = "rule_of_5"
	VariantGhose   = "ghose"
)

// Lipinski screens for oral drug-likeness.  The rule_of_5 variant applies
// Lipinski's classic bounds; ghose applies the tighter Ghose ranges.
type Lipinski struct {
	variant string
}

// NewLipinski returns the filter for the named variant.
func NewLipinski(variant string) (*Lipinski, error) {
	switch variant {
	case VariantRuleOf5, VariantGhose:
		return &Lipinski{variant: variant}, nil
	case "":
		return &Lipinski{variant: VariantRuleOf5}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidParam, "unknown lipinski variant").WithDetail(variant)
	}
}

func (f *Lipinski) Name() string { return NameLipinski }

func (f *Lipinski) Evaluate(m *molecule.Molecule) bool {
	d := molecule.ComputeDescriptors(m)
	switch f.variant {
	case VariantGhose:
		return d.MolWeight >= 160 && d.MolWeight <= 480 &&
			d.LogP >= -0.4 && d.LogP <= 5.6 &&
			d.HeavyAtoms >= 20 && d.HeavyAtoms <= 70
	default:
		return d.MolWeight <= 500 &&
			d.LogP <= 5 &&
			d.HBD <= 5 &&
			d.HBA <= 10
	}
}
