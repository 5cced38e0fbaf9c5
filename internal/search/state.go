package search

import (
	"strings"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// State is an immutable partial or complete token sequence.  Deriving a
// child state never mutates the parent; the backing slice is shared between
// parent and children because appends always copy.
type State struct {
	ids    []int
	vocab  *Vocabulary
	maxLen int
}

// NewRootState returns the empty search state: a single begin token.
func NewRootState(vocab *Vocabulary, maxLen int) *State {
	return &State{ids: []int{vocab.BeginID()}, vocab: vocab, maxLen: maxLen}
}

// NewSeededState returns a root state pre-seeded with a tokenized SMILES
// prefix (extend mode).
func NewSeededState(vocab *Vocabulary, maxLen int, smiles string) (*State, error) {
	prefix, err := vocab.Tokenize(smiles)
	if err != nil {
		return nil, err
	}
	if len(prefix)+1 >= maxLen {
		return nil, errors.New(errors.ErrCodeInvalidParam, "input prefix leaves no room for generated tokens")
	}
	ids := make([]int, 0, len(prefix)+1)
	ids = append(ids, vocab.BeginID())
	ids = append(ids, prefix...)
	return &State{ids: ids, vocab: vocab, maxLen: maxLen}, nil
}

// NewStateFromTokens rebuilds a State from a raw id sequence, validating
// every id against the vocabulary.  Used when reconstructing states from
// tree paths and from rollout jobs received over the queue.
func NewStateFromTokens(vocab *Vocabulary, maxLen int, ids []int) (*State, error) {
	if len(ids) == 0 || ids[0] != vocab.BeginID() {
		return nil, errors.New(errors.ErrCodeInvalidToken, "sequence must start with the begin token")
	}
	if len(ids) > maxLen {
		return nil, errors.New(errors.ErrCodeInvalidToken, "sequence exceeds maximum length")
	}
	own := make([]int, len(ids))
	for i, id := range ids {
		if !vocab.Contains(id) {
			return nil, errors.New(errors.ErrCodeInvalidToken, "token id out of range")
		}
		own[i] = id
	}
	return &State{ids: own, vocab: vocab, maxLen: maxLen}, nil
}

// Extend returns a new State with token id appended.  It fails if the token
// is not in the vocabulary or the state is already terminal.
func (s *State) Extend(id int) (*State, error) {
	if !s.vocab.Contains(id) {
		return nil, errors.New(errors.ErrCodeInvalidToken, "token id out of range")
	}
	if s.IsTerminal() {
		return nil, errors.New(errors.ErrCodeTerminalState, "state is terminal and cannot be extended")
	}
	ids := make([]int, len(s.ids)+1)
	copy(ids, s.ids)
	ids[len(s.ids)] = id
	return &State{ids: ids, vocab: s.vocab, maxLen: s.maxLen}, nil
}

// IsTerminal reports whether the sequence ends with the end token or has
// reached the maximum length.
func (s *State) IsTerminal() bool {
	if len(s.ids) >= s.maxLen {
		return true
	}
	return s.ids[len(s.ids)-1] == s.vocab.EndID()
}

// Complete reports whether the sequence was closed by the end token, as
// opposed to hitting the length cap.
func (s *State) Complete() bool {
	return s.ids[len(s.ids)-1] == s.vocab.EndID()
}

// Tokens returns a copy of the token id sequence.
func (s *State) Tokens() []int {
	out := make([]int, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the sequence length, begin token included.
func (s *State) Len() int { return len(s.ids) }

// Equal reports whether two states carry the same token sequence.
func (s *State) Equal(other *State) bool {
	if other == nil || len(s.ids) != len(other.ids) {
		return false
	}
	for i, id := range s.ids {
		if id != other.ids[i] {
			return false
		}
	}
	return true
}

// SMILES renders the sequence as a SMILES string, stripping the begin and
// end tokens.  The rendering is deterministic: it is the concatenation of
// the vocabulary tokens in sequence order.
func (s *State) SMILES() string {
	var sb strings.Builder
	for _, id := range s.ids {
		if id == s.vocab.BeginID() || id == s.vocab.EndID() {
			continue
		}
		tok, err := s.vocab.Token(id)
		if err != nil {
			continue
		}
		sb.WriteString(tok)
	}
	return sb.String()
}
