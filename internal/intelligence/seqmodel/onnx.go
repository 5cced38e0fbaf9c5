package seqmodel

import (
	"context"
	"math"
	"sync/atomic"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// ONNXModel serves a next-token RNN exported to ONNX.  The network takes a
// batch of token-id sequences shaped [1, seq_len] (int64) and returns either
// [1, vocab] or [1, seq_len, vocab] float32 logits; in the latter case the
// last timestep is used.
//
// Inference sessions are pooled: each PredictNextTokens call borrows one
// session from the pool for the duration of the call, so up to `sessions`
// rollouts can run model inference concurrently.
type ONNXModel struct {
	sessions    chan *ort.DynamicAdvancedSession
	numSessions int
	vocabSize   int
	maxLen      int
	closed      atomic.Bool
	logger      logging.Logger
}

// ONNXOptions configures NewONNXModel.
type ONNXOptions struct {
	// Path is the ONNX model file.
	Path string
	// VocabSize is the expected width of the output distribution.
	VocabSize int
	// MaxLength is the longest accepted id sequence.
	MaxLength int
	// Sessions is the inference session pool size; minimum 1.
	Sessions int
	// InputName and OutputName override the default tensor names.
	InputName  string
	OutputName string
}

// NewONNXModel loads the model at opts.Path and prepares the session pool.
// The onnxruntime environment must be initialised exactly once per process;
// NewONNXModel handles this internally.
func NewONNXModel(opts ONNXOptions, log logging.Logger) (*ONNXModel, error) {
	if opts.Sessions < 1 {
		opts.Sessions = 1
	}
	if opts.InputName == "" {
		opts.InputName = "token_ids"
	}
	if opts.OutputName == "" {
		opts.OutputName = "probabilities"
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelNotLoaded, "failed to initialise onnxruntime environment")
		}
	}

	pool := make(chan *ort.DynamicAdvancedSession, opts.Sessions)
	for i := 0; i < opts.Sessions; i++ {
		sess, err := ort.NewDynamicAdvancedSession(
			opts.Path,
			[]string{opts.InputName},
			[]string{opts.OutputName},
			nil,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelNotLoaded, "failed to create inference session").
				WithDetail(opts.Path)
		}
		pool <- sess
	}

	log.Info("Loaded sequence model",
		logging.String("path", opts.Path),
		logging.Int("vocab_size", opts.VocabSize),
		logging.Int("max_length", opts.MaxLength),
		logging.Int("sessions", opts.Sessions),
	)

	return &ONNXModel{
		sessions:    pool,
		numSessions: opts.Sessions,
		vocabSize:   opts.VocabSize,
		maxLen:      opts.MaxLength,
		logger:      log,
	}, nil
}

// PredictNextTokens implements Model.
func (m *ONNXModel) PredictNextTokens(ctx context.Context, ids []int) ([]float32, error) {
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrCodeModelInference, "empty id sequence")
	}
	if len(ids) > m.maxLen {
		return nil, errors.New(errors.ErrCodeModelInference, "id sequence exceeds model maximum length")
	}
	if m.closed.Load() {
		return nil, errors.New(errors.ErrCodeModelNotLoaded, "model is closed")
	}

	var sess *ort.DynamicAdvancedSession
	select {
	case sess = <-m.sessions:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeModelInference, "cancelled while waiting for inference session")
	}
	defer func() { m.sessions <- sess }()

	data := make([]int64, len(ids))
	for i, id := range ids {
		data[i] = int64(id)
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelInference, "failed to build input tensor")
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := sess.Run([]ort.Value{input}, outputs); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelInference, "inference run failed")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New(errors.ErrCodeModelShapeMismatch, "model output is not a float32 tensor")
	}

	raw := out.GetData()
	if len(raw) < m.vocabSize || len(raw)%m.vocabSize != 0 {
		return nil, errors.New(errors.ErrCodeModelShapeMismatch, "model output width does not match vocabulary size")
	}

	// Sequence-shaped outputs carry one distribution per timestep; keep the
	// last one.
	last := raw[len(raw)-m.vocabSize:]
	return normalize(last), nil
}

// VocabSize implements Model.
func (m *ONNXModel) VocabSize() int { return m.vocabSize }

// MaxSequenceLength implements Model.
func (m *ONNXModel) MaxSequenceLength() int { return m.maxLen }

// Close destroys all pooled sessions.  The pool channel is drained, never
// closed, so a concurrent in-flight prediction can still return its borrowed
// session; Close blocks until every session has been handed back.  Close is
// idempotent and the model must not be used afterwards.
func (m *ONNXModel) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	for i := 0; i < m.numSessions; i++ {
		sess := <-m.sessions
		sess.Destroy()
	}
	return nil
}

// normalize turns logits or unnormalised scores into a probability
// distribution.  Softmax is applied when any entry is negative or the sum is
// not close to 1; otherwise values are rescaled to sum to exactly 1.
func normalize(raw []float32) []float32 {
	out := make([]float32, len(raw))

	var sum float64
	needSoftmax := false
	for _, v := range raw {
		if v < 0 {
			needSoftmax = true
			break
		}
		sum += float64(v)
	}
	if !needSoftmax && math.Abs(sum-1) > 0.05 && sum > 0 {
		for i, v := range raw {
			out[i] = float32(float64(v) / sum)
		}
		return out
	}
	if !needSoftmax {
		if sum == 0 {
			needSoftmax = true
		} else {
			for i, v := range raw {
				out[i] = float32(float64(v) / sum)
			}
			return out
		}
	}

	maxv := raw[0]
	for _, v := range raw[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var expSum float64
	exps := make([]float64, len(raw))
	for i, v := range raw {
		exps[i] = math.Exp(float64(v - maxv))
		expSum += exps[i]
	}
	for i := range out {
		out[i] = float32(exps[i] / expSum)
	}
	return out
}
