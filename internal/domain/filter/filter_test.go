package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	apperrors "github.com/turtacn/MolGenesis/pkg/errors"
)

func decode(t *testing.T, smiles string) *molecule.Molecule {
	t.Helper()
	mol, err := molecule.NewDecoder().Decode(smiles)
	require.NoError(t, err)
	return mol
}

func TestBuild_ChainOrder(t *testing.T) {
	cfg := config.FiltersConfig{
		Use:      []string{"sascore", "lipinski", "radical"},
		Lipinski: config.LipinskiFilterConfig{Variant: "rule_of_5"},
		SAScore:  config.SAScoreFilterConfig{Threshold: 4.0},
	}
	chain, err := Build(cfg, Deps{})
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "sascore", chain[0].Name())
	assert.Equal(t, "lipinski", chain[1].Name())
	assert.Equal(t, "radical", chain[2].Name())
}

func TestBuild_UnknownNameFails(t *testing.T) {
	_, err := Build(config.FiltersConfig{Use: []string{"lipinski", "bogus"}}, Deps{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidParam))
}

func TestBuild_UnknownLipinskiVariantFails(t *testing.T) {
	cfg := config.FiltersConfig{
		Use:      []string{"lipinski"},
		Lipinski: config.LipinskiFilterConfig{Variant: "rule_of_42"},
	}
	_, err := Build(cfg, Deps{})
	assert.Error(t, err)
}

func TestLipinski_RuleOf5(t *testing.T) {
	f, err := NewLipinski(VariantRuleOf5)
	require.NoError(t, err)
	assert.True(t, f.Evaluate(decode(t, "CCO")))
	assert.True(t, f.Evaluate(decode(t, "CC(=O)Oc1ccccc1C(=O)O")))
	// A long alkane exceeds the LogP bound.
	assert.False(t, f.Evaluate(decode(t, "CCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")))
}

func TestLipinski_Ghose(t *testing.T) {
	f, err := NewLipinski(VariantGhose)
	require.NoError(t, err)
	// Too small for the Ghose window.
	assert.False(t, f.Evaluate(decode(t, "CCO")))
}

func TestRadical(t *testing.T) {
	f := NewRadical()
	assert.True(t, f.Evaluate(decode(t, "CCO")))
	assert.False(t, f.Evaluate(decode(t, "[CH3]")))
}

func TestSAScoreFilter(t *testing.T) {
	f := NewSAScore(2.0)
	assert.True(t, f.Evaluate(decode(t, "CCO")))
	assert.False(t, f.Evaluate(decode(t, "C1CC2CCC1CC2")))
}

func TestRingSizeFilter(t *testing.T) {
	f := NewRingSize(6)
	assert.True(t, f.Evaluate(decode(t, "CCO")))
	assert.True(t, f.Evaluate(decode(t, "C1CCCCC1")))
	assert.False(t, f.Evaluate(decode(t, "C1CCCCCCC1")))
}

func TestDuplicateFilter(t *testing.T) {
	f := NewDuplicate(NewMemorySeenStore(), nil)
	assert.True(t, f.Evaluate(decode(t, "CCO")))
	// Same canonical form from a different rendering is a duplicate.
	assert.False(t, f.Evaluate(decode(t, "OCC")))
	assert.True(t, f.Evaluate(decode(t, "CCC")))
}

type failingStore struct{}

func (failingStore) CheckAndAdd(string) (bool, error) {
	return false, errors.New("store down")
}

func TestDuplicateFilter_StoreFailureRejects(t *testing.T) {
	// A filter that cannot evaluate reports fail.
	f := NewDuplicate(failingStore{}, nil)
	assert.False(t, f.Evaluate(decode(t, "CCO")))
}

func TestMemorySeenStore(t *testing.T) {
	s := NewMemorySeenStore()
	added, err := s.CheckAndAdd("CCO")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.CheckAndAdd("CCO")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, s.Len())
}
