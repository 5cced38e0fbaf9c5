// Package seqmodel serves the pretrained next-token sequence model that
// guides the tree search.  The model is loaded once at process start and is
// treated as an immutable, read-only oracle; concurrent callers share it
// safely because no state is mutated after load.
package seqmodel

import "context"

// Model predicts next-token distributions over the engine's vocabulary.
type Model interface {
	// PredictNextTokens returns the probability distribution over the
	// vocabulary for the token following the given id sequence.  The returned
	// slice has length VocabSize and sums to 1 within floating-point error.
	PredictNextTokens(ctx context.Context, ids []int) ([]float32, error)

	// VocabSize is the size of the token vocabulary the model was trained with.
	VocabSize() int

	// MaxSequenceLength is the longest id sequence the model accepts.
	MaxSequenceLength() int
}
