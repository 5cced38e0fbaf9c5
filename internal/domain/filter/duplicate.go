package filter

import (
	"sync"

	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

// SeenStore records canonical SMILES already produced by a run.  CheckAndAdd
// must be atomic: it returns true exactly once per distinct key, the first
// time the key is added.
type SeenStore interface {
	CheckAndAdd(canonical string) (added bool, err error)
}

// MemorySeenStore is the process-local SeenStore, used when no shared store
// is configured.
type MemorySeenStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{seen: make(map[string]struct{})}
}

// CheckAndAdd implements SeenStore.
func (s *MemorySeenStore) CheckAndAdd(canonical string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[canonical]; ok {
		return false, nil
	}
	s.seen[canonical] = struct{}{}
	return true, nil
}

// Len reports the number of distinct keys recorded.
func (s *MemorySeenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Duplicate rejects molecules whose canonical form was already produced in
// this run.  A filter that cannot evaluate reports fail, so a store failure
// rejects the candidate rather than risking a duplicate in the ledger.
type Duplicate struct {
	store  SeenStore
	logger logging.Logger
}

func NewDuplicate(store SeenStore, log logging.Logger) *Duplicate {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Duplicate{store: store, logger: log}
}

func (f *Duplicate) Name() string { return NameDuplicate }

func (f *Duplicate) Evaluate(m *molecule.Molecule) bool {
	added, err := f.store.CheckAndAdd(m.Canonical())
	if err != nil {
		f.logger.Warn("Duplicate store unavailable, rejecting candidate",
			logging.String("canonical", m.Canonical()),
			logging.Err(err),
		)
		return false
	}
	return added
}
