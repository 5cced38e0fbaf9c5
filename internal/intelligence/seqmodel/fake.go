package seqmodel

import "context"

// FakeModel is an in-memory Model for tests.  The distribution returned for
// a given sequence is produced by Fn; when Fn is nil a uniform distribution
// is returned.
type FakeModel struct {
	Vocab  int
	MaxLen int
	// Fn maps an id sequence to a distribution of length Vocab.
	Fn func(ids []int) []float32
	// Err, when set, is returned by every PredictNextTokens call.
	Err error

	// Calls counts PredictNextTokens invocations.
	Calls int
}

// PredictNextTokens implements Model.
func (f *FakeModel) PredictNextTokens(_ context.Context, ids []int) ([]float32, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Fn != nil {
		return f.Fn(ids), nil
	}
	out := make([]float32, f.Vocab)
	p := float32(1) / float32(f.Vocab)
	for i := range out {
		out[i] = p
	}
	return out, nil
}

// VocabSize implements Model.
func (f *FakeModel) VocabSize() int { return f.Vocab }

// MaxSequenceLength implements Model.
func (f *FakeModel) MaxSequenceLength() int { return f.MaxLen }
