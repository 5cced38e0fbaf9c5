// Package search implements the Monte-Carlo tree search engine that explores
// the space of token sequences for candidate molecules.  The engine owns the
// search tree exclusively; collaborators (sequence model, decoder, filters,
// reward calculators) are injected at construction and treated as read-only.
package search

import (
	"encoding/json"
	"os"
	"regexp"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Reserved vocabulary tokens.
const (
	// BeginToken opens every sequence.
	BeginToken = "&"
	// EndToken terminates a sequence.
	EndToken = "\n"
)

// smilesTokenPattern splits a SMILES string into vocabulary tokens, matching
// multi-character tokens (bracket atoms, Cl, Br, two-digit ring bonds) before
// single characters.
var smilesTokenPattern = regexp.MustCompile(`\[[^\[\]]+\]|Br|Cl|%\d{2}|[^\[\]]`)

// Vocabulary is the fixed token table shared by the sequence model and the
// search engine.  It is loaded once at startup and never mutated.
type Vocabulary struct {
	tokens []string
	ids    map[string]int
	begin  int
	end    int
}

// NewVocabulary builds a Vocabulary from an ordered token list.  The list
// must contain the begin and end tokens and no duplicates; token ids are the
// list positions, matching the sequence model's output layout.
func NewVocabulary(tokens []string) (*Vocabulary, error) {
	if len(tokens) < 3 {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary must contain begin, end and at least one chemistry token")
	}
	ids := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, dup := ids[tok]; dup {
			return nil, errors.New(errors.ErrCodeVocabularyInvalid, "duplicate vocabulary token").WithDetail(tok)
		}
		ids[tok] = i
	}
	begin, ok := ids[BeginToken]
	if !ok {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary is missing the begin token")
	}
	end, ok := ids[EndToken]
	if !ok {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary is missing the end token")
	}
	return &Vocabulary{tokens: tokens, ids: ids, begin: begin, end: end}, nil
}

// LoadVocabulary reads a JSON array of token strings from path.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyInvalid, "failed to read vocabulary file").WithDetail(path)
	}
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyInvalid, "failed to parse vocabulary file").WithDetail(path)
	}
	return NewVocabulary(tokens)
}

// Size returns the number of tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// BeginID returns the id of the begin token.
func (v *Vocabulary) BeginID() int { return v.begin }

// EndID returns the id of the end token.
func (v *Vocabulary) EndID() int { return v.end }

// Token returns the token string for id.
func (v *Vocabulary) Token(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", errors.New(errors.ErrCodeInvalidToken, "token id out of range")
	}
	return v.tokens[id], nil
}

// ID returns the id for a token string.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Contains reports whether id is a valid token id.
func (v *Vocabulary) Contains(id int) bool {
	return id >= 0 && id < len(v.tokens)
}

// Tokenize splits a SMILES string into token ids.  It is used to seed the
// root state in extend mode; any fragment not present in the vocabulary is
// an error because the sequence model cannot condition on it.
func (v *Vocabulary) Tokenize(smiles string) ([]int, error) {
	parts := smilesTokenPattern.FindAllString(smiles, -1)
	joined := 0
	for _, p := range parts {
		joined += len(p)
	}
	if joined != len(smiles) {
		return nil, errors.New(errors.ErrCodeInvalidToken, "input contains characters outside the SMILES grammar").WithDetail(smiles)
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, ok := v.ids[p]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidToken, "token is not part of the vocabulary").WithDetail(p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
