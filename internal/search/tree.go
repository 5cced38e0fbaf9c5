package search

import (
	"math"
	"strconv"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// NoNode is the null node index.
const NoNode int32 = -1

// node is one arena slot.  Nodes never hold pointers to each other; all
// links are indexes into the arena, which keeps the tree serialisable and
// free of shared mutable references.
type node struct {
	token            int
	prior            float64
	parent           int32
	children         []int32
	visits           int
	reward           float64
	expanded          bool
	exhausted         bool
	failedExpansions  int
	deadEndSelections int
	inUse             bool
}

// Tree is the search tree stored in a single arena.  It is owned exclusively
// by the orchestrating engine: rollout workers never receive a reference, so
// no internal locking is needed (single-writer discipline).
//
// Slots freed by pruning are recycled through a free list, bounding arena
// growth under flush-threshold eviction.
type Tree struct {
	nodes []node
	free  []int32
	root  int32
	size  int
}

// NewTree creates a tree holding only the root node.  The root represents
// the engine's root state; its token slot is unused and set to -1.
func NewTree() *Tree {
	t := &Tree{root: NoNode}
	t.root = t.alloc(-1, 0, NoNode)
	return t
}

func (t *Tree) alloc(token int, prior float64, parent int32) int32 {
	n := node{token: token, prior: prior, parent: parent, inUse: true}
	t.size++
	if len(t.free) > 0 {
		id := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

// Root returns the root node index.
func (t *Tree) Root() int32 { return t.root }

// Size returns the number of live nodes.
func (t *Tree) Size() int { return t.size }

// Token returns the token that led to node id; -1 for the root.
func (t *Tree) Token(id int32) int { return t.nodes[id].token }

// Parent returns the parent index of id, NoNode for the root.
func (t *Tree) Parent(id int32) int32 { return t.nodes[id].parent }

// Children returns the child indexes of id in insertion order.
func (t *Tree) Children(id int32) []int32 { return t.nodes[id].children }

// Visits returns the visit count of id.
func (t *Tree) Visits(id int32) int { return t.nodes[id].visits }

// TotalReward returns the cumulative backpropagated reward of id.
func (t *Tree) TotalReward(id int32) float64 { return t.nodes[id].reward }

// MeanReward returns the subtree mean reward of id, 0 when unvisited.
func (t *Tree) MeanReward(id int32) float64 {
	if t.nodes[id].visits == 0 {
		return 0
	}
	return t.nodes[id].reward / float64(t.nodes[id].visits)
}

// Prior returns the model prior recorded for id at expansion time.
func (t *Tree) Prior(id int32) float64 { return t.nodes[id].prior }

// Expanded reports whether id has been expanded.
func (t *Tree) Expanded(id int32) bool { return t.nodes[id].expanded }

// Exhausted reports whether id was marked terminal-by-exhaustion.
func (t *Tree) Exhausted(id int32) bool { return t.nodes[id].exhausted }

// MarkExhausted marks id terminal-by-exhaustion; selection treats it like a
// terminal state from then on.  Exhaustion cascades upward: a parent whose
// children are all exhausted is itself exhausted, so a fully dead search
// space surfaces at the root instead of spinning forever.
func (t *Tree) MarkExhausted(id int32) {
	t.nodes[id].exhausted = true
	for cur := t.nodes[id].parent; cur != NoNode; cur = t.nodes[cur].parent {
		if len(t.nodes[cur].children) == 0 {
			break
		}
		for _, child := range t.nodes[cur].children {
			if !t.nodes[child].exhausted {
				return
			}
		}
		t.nodes[cur].exhausted = true
	}
}

// RecordFailedExpansion increments and returns id's failed-expansion count.
func (t *Tree) RecordFailedExpansion(id int32) int {
	t.nodes[id].failedExpansions++
	return t.nodes[id].failedExpansions
}

// RecordDeadEndSelection increments and returns id's cumulative dead-end
// selection count.  The count is per node, not per streak: when several
// dead-end leaves trade the selection argmax back and forth, each still
// accumulates toward its own exhaustion threshold.
func (t *Tree) RecordDeadEndSelection(id int32) int {
	t.nodes[id].deadEndSelections++
	return t.nodes[id].deadEndSelections
}

// PathTokens returns the generated token ids on the path root→id, excluding
// the root itself.
func (t *Tree) PathTokens(id int32) []int {
	var rev []int
	for cur := id; cur != t.root; cur = t.nodes[cur].parent {
		rev = append(rev, t.nodes[cur].token)
	}
	out := make([]int, len(rev))
	for i, tok := range rev {
		out[len(rev)-1-i] = tok
	}
	return out
}

// Expand creates one child of id per token, recording the model prior of
// each, and marks id expanded.  Children are stored in the given order,
// which fixes the deterministic tie-break order used by selection.
func (t *Tree) Expand(id int32, tokens []int, priors []float64) []int32 {
	out := make([]int32, 0, len(tokens))
	for i, tok := range tokens {
		child := t.alloc(tok, priors[i], id)
		t.nodes[id].children = append(t.nodes[id].children, child)
		out = append(out, child)
	}
	t.nodes[id].expanded = true
	return out
}

// SelectChild returns the child of id maximising the policy score.
// Unvisited children score +Inf under UCB1 and therefore always win over
// visited ones; ties are broken by insertion order.
func (t *Tree) SelectChild(id int32, cVal float64, p Policy) int32 {
	best := NoNode
	bestScore := math.Inf(-1)
	parentVisits := t.nodes[id].visits
	for _, child := range t.nodes[id].children {
		c := &t.nodes[child]
		score := p.Score(parentVisits, c.visits, c.reward, c.prior, cVal)
		if score > bestScore {
			bestScore = score
			best = child
		}
	}
	return best
}

// Backpropagate adds reward and one visit to every node on the path from id
// up to and including the root.
func (t *Tree) Backpropagate(id int32, reward float64) {
	for cur := id; cur != NoNode; cur = t.nodes[cur].parent {
		t.nodes[cur].visits++
		t.nodes[cur].reward += reward
	}
}

// PruneBelow applies flush-threshold eviction to the given nodes: any node
// whose subtree mean reward has fallen below threshold loses its children
// (the subtrees are freed) and becomes expandable again.  The root keeps at
// least itself, so the search can always continue.  Negative thresholds
// disable pruning entirely.
//
// Returns the number of nodes evicted.
func (t *Tree) PruneBelow(threshold float64, candidates []int32) int {
	if threshold < 0 {
		return 0
	}
	evicted := 0
	for _, id := range candidates {
		if !t.nodes[id].inUse || len(t.nodes[id].children) == 0 {
			continue
		}
		if t.nodes[id].visits == 0 || t.MeanReward(id) >= threshold {
			continue
		}
		for _, child := range t.nodes[id].children {
			evicted += t.freeSubtree(child)
		}
		t.nodes[id].children = nil
		t.nodes[id].expanded = false
	}
	return evicted
}

func (t *Tree) freeSubtree(id int32) int {
	freed := 1
	for _, child := range t.nodes[id].children {
		freed += t.freeSubtree(child)
	}
	t.nodes[id] = node{parent: NoNode}
	t.free = append(t.free, id)
	t.size--
	return freed
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot export / restore
// ─────────────────────────────────────────────────────────────────────────────

// NodeRecord is the serialised form of one node.  Indexes refer to positions
// in the compacted record slice, not to arena slots.
type NodeRecord struct {
	Token             int
	Prior             float64
	Parent            int32
	Children          []int32
	Visits            int
	Reward            float64
	Expanded          bool
	Exhausted         bool
	FailedExpansions  int
	DeadEndSelections int
}

// Export returns the reachable tree as a compacted record slice whose entry
// 0 is the root.  Free slots are not serialised, so a pruned tree round-trips
// without carrying dead arena space.
func (t *Tree) Export() []NodeRecord {
	index := make(map[int32]int32, t.size)
	order := make([]int32, 0, t.size)

	var walk func(id int32)
	walk = func(id int32) {
		index[id] = int32(len(order))
		order = append(order, id)
		for _, child := range t.nodes[id].children {
			walk(child)
		}
	}
	walk(t.root)

	out := make([]NodeRecord, len(order))
	for i, id := range order {
		n := &t.nodes[id]
		rec := NodeRecord{
			Token:             n.token,
			Prior:             n.prior,
			Parent:            NoNode,
			Visits:            n.visits,
			Reward:            n.reward,
			Expanded:          n.expanded,
			Exhausted:         n.exhausted,
			FailedExpansions:  n.failedExpansions,
			DeadEndSelections: n.deadEndSelections,
		}
		if n.parent != NoNode {
			rec.Parent = index[n.parent]
		}
		// Childless nodes keep a nil slice so a record survives a gob
		// round-trip unchanged (gob decodes empty slices as nil).
		if len(n.children) > 0 {
			rec.Children = make([]int32, len(n.children))
			for j, child := range n.children {
				rec.Children[j] = index[child]
			}
		}
		out[i] = rec
	}
	return out
}

// NewTreeFromRecords rebuilds a tree from an exported record slice after
// checking its structural invariants.  A violation means the snapshot is
// corrupt and must not be resumed from.
func NewTreeFromRecords(records []NodeRecord) (*Tree, error) {
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	t := &Tree{root: 0, size: len(records)}
	t.nodes = make([]node, len(records))
	for i, rec := range records {
		var children []int32
		if len(rec.Children) > 0 {
			children = make([]int32, len(rec.Children))
			copy(children, rec.Children)
		}
		t.nodes[i] = node{
			token:             rec.Token,
			prior:             rec.Prior,
			parent:            rec.Parent,
			children:          children,
			visits:            rec.Visits,
			reward:            rec.Reward,
			expanded:          rec.Expanded,
			exhausted:         rec.Exhausted,
			failedExpansions:  rec.FailedExpansions,
			deadEndSelections: rec.DeadEndSelections,
			inUse:             true,
		}
	}
	return t, nil
}

// ValidateRecords checks the structural invariants of a serialised tree:
// entry 0 is a parentless root, every parent/child link is consistent and in
// range, every node is reachable from the root exactly once, and no node's
// visit count is negative or smaller than the sum of its children's visits.
func ValidateRecords(records []NodeRecord) error {
	if len(records) == 0 {
		return errors.New(errors.ErrCodeCheckpointCorrupt, "snapshot contains no nodes")
	}
	if records[0].Parent != NoNode {
		return errors.New(errors.ErrCodeCheckpointCorrupt, "snapshot root has a parent")
	}
	n := int32(len(records))
	seen := make([]bool, n)

	var walk func(id int32) error
	walk = func(id int32) error {
		if id < 0 || id >= n {
			return errors.New(errors.ErrCodeCheckpointCorrupt, "child index out of range")
		}
		if seen[id] {
			return errors.New(errors.ErrCodeCheckpointCorrupt, "node reachable through two paths")
		}
		seen[id] = true
		rec := &records[id]
		if rec.Visits < 0 {
			return errors.New(errors.ErrCodeCheckpointCorrupt, "negative visit count")
		}
		childVisits := 0
		for _, child := range rec.Children {
			if child < 0 || child >= n {
				return errors.New(errors.ErrCodeCheckpointCorrupt, "child index out of range")
			}
			if records[child].Parent != id {
				return errors.New(errors.ErrCodeCheckpointCorrupt, "parent/child links disagree")
			}
			childVisits += records[child].Visits
			if err := walk(child); err != nil {
				return err
			}
		}
		if len(rec.Children) > 0 && rec.Visits < childVisits {
			return errors.New(errors.ErrCodeCheckpointCorrupt, "visit accounting violated: node visits below children sum")
		}
		return nil
	}
	if err := walk(0); err != nil {
		return err
	}
	for i, ok := range seen {
		if !ok {
			return errors.New(errors.ErrCodeCheckpointCorrupt, "snapshot contains unreachable nodes").
				WithDetail("node " + strconv.Itoa(i))
		}
	}
	return nil
}
