// Package graph implements the typed, transactionally-mutated node graph
// described in spec.md §3/§4.B: an append-only arena of tagged-union node
// values plus a reverse-link index maintained only through Transaction
// commits, never by ad-hoc mutation.
package graph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sarchlab/hdlc/arena"
)

// NodeIndex identifies a node within a Graph. The zero value means
// "empty / absent".
type NodeIndex int

// Empty is the reserved "no node" index.
const Empty NodeIndex = 0

// IsEmpty reports whether i is the reserved empty index.
func (i NodeIndex) IsEmpty() bool { return i == Empty }

// SourceTag names a reference-carrying slot on a node variant (the Rust
// source's per-variant "SourceEnum"). Concrete NodeEnum implementations
// define their own tag values; graph itself only moves them around.
type SourceTag interface {
	comparable
}

// BackLink is one (holder, slot) pair recorded against the node it
// references.
type BackLink[S SourceTag] struct {
	Holder NodeIndex
	Slot   S
}

// NodeEnum is implemented by every node variant storable in a Graph. It
// exposes the node's outgoing references (IterSource) and lets the graph
// rewrite a single slot in place (ModifySource) without otherwise touching
// the node.
type NodeEnum[S SourceTag] interface {
	IterSource() []BackLink[S]
	ModifySource(slot S, old, new NodeIndex)
}

// Context is shared by every Graph/Transaction pair derived from the same
// top-level compilation run, so that ids stay unique across graphs built
// from it and node ids from one can be safely merged into another.
type Context struct {
	ID       uuid.UUID
	nodeDist *arena.IdDistributer
}

// NewContext creates a fresh context with its own id distributer.
func NewContext() *Context {
	return &Context{ID: uuid.New(), nodeDist: arena.NewIdDistributer()}
}

// Graph is a heterogeneous node store with a reverse-link index.
type Graph[N NodeEnum[S], S SourceTag] struct {
	ctxID     uuid.UUID
	nodes     *arena.Arena[N, NodeIndex]
	backLinks map[NodeIndex]map[BackLink[S]]struct{}
}

// New creates an empty graph bound to ctx.
func New[N NodeEnum[S], S SourceTag](ctx *Context) *Graph[N, S] {
	return &Graph[N, S]{
		ctxID:     ctx.ID,
		nodes:     arena.New[N, NodeIndex](ctx.nodeDist),
		backLinks: make(map[NodeIndex]map[BackLink[S]]struct{}),
	}
}

// GetNode returns the node stored at idx.
func (g *Graph[N, S]) GetNode(idx NodeIndex) (N, bool) {
	return g.nodes.Get(idx)
}

// Len returns the number of live nodes.
func (g *Graph[N, S]) Len() int { return g.nodes.Len() }

// IterNodes calls f for every (index, node) pair until f returns false.
func (g *Graph[N, S]) IterNodes(f func(NodeIndex, N) bool) {
	g.nodes.Iter(f)
}

// IterSource returns the (target, slot) pairs referenced out of idx.
func (g *Graph[N, S]) IterSource(idx NodeIndex) []BackLink[S] {
	n, ok := g.nodes.Get(idx)
	if !ok {
		return nil
	}
	return n.IterSource()
}

// ErrLoopRedirection is returned when a whole-node redirection vector
// contains a cycle (old eventually redirects back to itself).
var ErrLoopRedirection = errors.New("graph: loop redirection detected")

func (g *Graph[N, S]) addBackLink(x NodeIndex, n N) {
	if _, ok := g.backLinks[x]; !ok {
		g.backLinks[x] = make(map[BackLink[S]]struct{})
	}
	for _, bl := range n.IterSource() {
		if _, ok := g.backLinks[bl.Holder]; !ok {
			g.backLinks[bl.Holder] = make(map[BackLink[S]]struct{})
		}
		g.backLinks[bl.Holder][BackLink[S]{Holder: x, Slot: bl.Slot}] = struct{}{}
	}
}

func (g *Graph[N, S]) removeBackLink(x NodeIndex, n N) {
	for _, bl := range n.IterSource() {
		delete(g.backLinks[bl.Holder], BackLink[S]{Holder: x, Slot: bl.Slot})
	}
}

func (g *Graph[N, S]) mergeNodes(newNodes *arena.Arena[N, NodeIndex]) {
	newNodes.Iter(func(idx NodeIndex, n N) bool {
		g.addBackLink(idx, n)
		return true
	})
	g.nodes.Merge(newNodes)
}

func (g *Graph[N, S]) removeNode(idx NodeIndex) {
	n, ok := g.nodes.Get(idx)
	if !ok {
		panic(fmt.Sprintf("graph: remove of unknown node %d", idx))
	}
	g.nodes.Remove(idx)
	g.removeBackLink(idx, n)
	refs := g.backLinks[idx]
	delete(g.backLinks, idx)
	for bl := range refs {
		holder, _ := g.nodes.Get(bl.Holder)
		holder.ModifySource(bl.Slot, idx, Empty)
	}
}

func (g *Graph[N, S]) modifyNode(idx NodeIndex, f func(N)) {
	n, _ := g.nodes.Get(idx)
	g.removeBackLink(idx, n)
	f(n)
	g.addBackLinkOnly(idx, n)
}

// addBackLinkOnly re-adds n's out-edges without also registering idx's own
// incoming-edge bucket key (already present from construction).
func (g *Graph[N, S]) addBackLinkOnly(x NodeIndex, n N) {
	for _, bl := range n.IterSource() {
		if _, ok := g.backLinks[bl.Holder]; !ok {
			g.backLinks[bl.Holder] = make(map[BackLink[S]]struct{})
		}
		g.backLinks[bl.Holder][BackLink[S]{Holder: x, Slot: bl.Slot}] = struct{}{}
	}
}

func (g *Graph[N, S]) updateNode(idx NodeIndex, f func(N) N) {
	n, _ := g.nodes.Get(idx)
	g.removeBackLink(idx, n)
	g.nodes.Update(idx, f)
	n2, _ := g.nodes.Get(idx)
	g.addBackLinkOnly(idx, n2)
}

func (g *Graph[N, S]) redirectNode(oldNode, newNode NodeIndex) {
	old := g.backLinks[oldNode]
	g.backLinks[oldNode] = make(map[BackLink[S]]struct{})
	if _, ok := g.backLinks[newNode]; !ok {
		g.backLinks[newNode] = make(map[BackLink[S]]struct{})
	}
	for bl := range old {
		g.backLinks[newNode][bl] = struct{}{}
		holder, _ := g.nodes.Get(bl.Holder)
		holder.ModifySource(bl.Slot, oldNode, newNode)
	}
}

// redirectNodeVec applies a batch of whole-node redirections using a
// union-find over the (old, new) pairs, exactly as
// tgraph::typed_graph::Graph::redirect_node_vec does: build a "final
// target" for every node touched, reject any pair whose chain loops back
// to its own old node, then redirect with path compression.
func (g *Graph[N, S]) redirectNodeVec(pairs [][2]NodeIndex) error {
	fa := make(map[NodeIndex]NodeIndex)
	for _, p := range pairs {
		old, new := p[0], p[1]
		if _, ok := fa[old]; !ok {
			fa[old] = old
		}
		if _, ok := fa[new]; !ok {
			fa[new] = new
		}
	}

	find := func(x NodeIndex) NodeIndex {
		for fa[x] != x {
			x = fa[x]
		}
		return x
	}

	for _, p := range pairs {
		old, new := p[0], p[1]
		x := find(new)
		if x == old {
			return fmt.Errorf("%w: %d -> %d", ErrLoopRedirection, old, new)
		}
		fa[old] = x
	}

	for _, p := range pairs {
		old, new := p[0], p[1]
		x := new
		y := fa[x]
		for x != y {
			x = y
			y = fa[y]
		}
		g.redirectNode(old, x)

		x = new
		for fa[x] != y {
			z := fa[x]
			fa[x] = y
			x = z
		}
	}
	return nil
}

// Transaction batches a set of graph edits, applied atomically by Commit in
// the order specified by spec.md §4.B.
type Transaction[N NodeEnum[S], S SourceTag] struct {
	ctxID             uuid.UUID
	committed         bool
	allocated         map[NodeIndex]struct{}
	incNodes          *arena.Arena[N, NodeIndex]
	decNodes          []NodeIndex
	mutNodes          []mutEntry[N]
	updateNodes       []updateEntry[N]
	redirectAll       [][2]NodeIndex
	redirectSingle    [][2]NodeIndex
	redirectSingleVia map[NodeIndex]NodeIndex
}

type mutEntry[N any] struct {
	idx NodeIndex
	f   func(N)
}

type updateEntry[N any] struct {
	idx NodeIndex
	f   func(N) N
}

// NewTransaction creates an empty transaction bound to ctx.
func NewTransaction[N NodeEnum[S], S SourceTag](ctx *Context) *Transaction[N, S] {
	return &Transaction[N, S]{
		ctxID:             ctx.ID,
		allocated:         make(map[NodeIndex]struct{}),
		incNodes:          arena.New[N, NodeIndex](ctx.nodeDist),
		redirectSingleVia: make(map[NodeIndex]NodeIndex),
	}
}

// AllocNode reserves a fresh node id without a value yet.
func (t *Transaction[N, S]) AllocNode() NodeIndex {
	idx := t.incNodes.Alloc()
	t.allocated[idx] = struct{}{}
	return idx
}

// FillBackNode stores data at a previously AllocNode'd id.
func (t *Transaction[N, S]) FillBackNode(idx NodeIndex, data N) {
	t.incNodes.FillBack(idx, data)
}

// NewNode allocates and stores data in one step.
func (t *Transaction[N, S]) NewNode(data N) NodeIndex {
	return t.incNodes.Insert(data)
}

// RemoveNode marks idx for deletion on commit. Removing a node this same
// transaction allocated un-allocates it instead.
func (t *Transaction[N, S]) RemoveNode(idx NodeIndex) {
	if _, ok := t.incNodes.Remove(idx); ok {
		return
	}
	if _, ok := t.allocated[idx]; ok {
		delete(t.allocated, idx)
		return
	}
	t.decNodes = append(t.decNodes, idx)
}

// MutNode schedules an in-place mutation of idx's node.
func (t *Transaction[N, S]) MutNode(idx NodeIndex, f func(N)) {
	if t.incNodes.Contains(idx) {
		v, _ := t.incNodes.Get(idx)
		f(v)
		return
	}
	t.mutNodes = append(t.mutNodes, mutEntry[N]{idx, f})
}

// UpdateNode schedules a consume-and-replace update of idx's node.
func (t *Transaction[N, S]) UpdateNode(idx NodeIndex, f func(N) N) {
	if t.incNodes.Contains(idx) {
		t.incNodes.Update(idx, f)
		return
	}
	t.updateNodes = append(t.updateNodes, updateEntry[N]{idx, f})
}

// RedirectAllNode schedules a whole-node redirection: every back-edge into
// oldNode is moved to newNode (subject to cycle-safe path compression
// across the whole batch at commit time).
func (t *Transaction[N, S]) RedirectAllNode(oldNode, newNode NodeIndex) {
	t.redirectAll = append(t.redirectAll, [2]NodeIndex{oldNode, newNode})
}

// RedirectNode schedules a single (old, new) redirection applied after
// the updates: every back-edge into oldNode is moved to newNode, outside
// the batch cycle check RedirectAllNode pairs go through. It does not pick
// out one holder; every holder of oldNode is rewritten.
func (t *Transaction[N, S]) RedirectNode(oldNode, newNode NodeIndex) {
	t.redirectSingle = append(t.redirectSingle, [2]NodeIndex{oldNode, newNode})
}

// Giveup marks the transaction as already committed so Commit becomes a
// no-op (used when a caller decides not to apply a speculative batch).
func (t *Transaction[N, S]) Giveup() { t.committed = true }

// Commit applies every scheduled edit to g in the order:
// whole-node redirections, new-node merge, in-place mutations,
// consume-and-replace updates, single-link redirections, deletions.
func (g *Graph[N, S]) Commit(t *Transaction[N, S]) error {
	if t.committed {
		return nil
	}
	if err := g.redirectNodeVec(t.redirectAll); err != nil {
		return err
	}
	g.mergeNodes(t.incNodes)
	for _, e := range t.mutNodes {
		g.modifyNode(e.idx, e.f)
	}
	for _, e := range t.updateNodes {
		g.updateNode(e.idx, e.f)
	}
	for _, p := range t.redirectSingle {
		g.redirectNode(p[0], p[1])
	}
	for _, idx := range t.decNodes {
		g.removeNode(idx)
	}
	t.committed = true
	return nil
}

// MergeGraph folds every node of other into t, preserving ids when other
// shares this transaction's context and otherwise re-keying them onto
// fresh ids (mirrors tgraph::typed_graph::Transaction::merge_graph).
func (t *Transaction[N, S]) MergeGraph(other *Graph[N, S]) {
	other.nodes.Iter(func(idx NodeIndex, n N) bool {
		if t.ctxID != other.ctxID {
			t.NewNode(n)
		} else {
			t.FillBackNode(idx, n)
		}
		return true
	})
}

// ByKind filters a graph's nodes to those for which match returns true,
// yielding (index, node) pairs. This is the typed-iterator helper spec.md
// §4.B describes ("a typed iterator yields (index, &variant) by filtering
// the heterogeneous node map").
func ByKind[N NodeEnum[S], S SourceTag, V any](g *Graph[N, S], match func(N) (V, bool)) map[NodeIndex]V {
	out := make(map[NodeIndex]V)
	g.IterNodes(func(idx NodeIndex, n N) bool {
		if v, ok := match(n); ok {
			out[idx] = v
		}
		return true
	})
	return out
}
