package gir

import (
	"math/big"

	"github.com/sarchlab/hdlc/graph"
	"github.com/sarchlab/hdlc/ir"
)

// TransSpec is a pending transition: From is the set of states that must
// be concurrently active (AND semantics — a singleton for an ordinary
// predecessor, more than one only where a Par join requires several
// independent branches to all be in their exit state at once); To is the
// set of states entered when it fires (more than one only where a Par
// split enters several branches at once). Materialize turns these into
// persisted graph nodes once a Builder has finished composing an entire
// process's control flow.
type TransSpec struct {
	From    []graph.NodeIndex
	To      []graph.NodeIndex
	Cond    graph.NodeIndex
	Actions []graph.NodeIndex
}

// EncTree is the state-encoding shape fsm_encoding_{1,2} assign widths
// and bit offsets to: Leaf wraps one concrete State 1:1; Exc groups
// mutually-exclusive states (Seq, If/IfElse, and Step all land here, one
// shared selector field); Par groups concurrently-live branches, each
// getting an independent, non-overlapping bit range.
type EncTree struct {
	Kind     Kind
	Leaf     graph.NodeIndex
	Children []*EncTree

	Width  int
	Offset int
	// Path accumulates, top-down, the (bitOffset, bitWidth, value)
	// selector constraints an Exc ancestor imposes to reach this leaf.
	Path []selector
}

type selector struct {
	offset, width, value int
}

func leafTree(state graph.NodeIndex) *EncTree { return &EncTree{Kind: KindLeaf, Leaf: state} }

func excTree(children ...*EncTree) *EncTree {
	if len(children) == 1 && children[0].Kind != KindLeaf {
		return children[0]
	}
	return &EncTree{Kind: KindExc, Children: children}
}

func parTree(children ...*EncTree) *EncTree {
	return &EncTree{Kind: KindPar, Children: children}
}

// mergeExc flattens two Exc-compatible trees into one shared selector
// group (Seq and If/IfElse never introduce concurrency, so their
// children's states stay mutually exclusive with everything already in
// scope).
func mergeExc(a, b *EncTree) *EncTree {
	var children []*EncTree
	for _, t := range []*EncTree{a, b} {
		if t.Kind == KindExc {
			children = append(children, t.Children...)
		} else {
			children = append(children, t)
		}
	}
	return excTree(children...)
}

// Frag is the in-progress fragment TraverseAST builds for one AST node,
// expressed relative to one shared idle state common to the whole
// process (Entry transitions originate at idle; Exit transitions return
// to it).
type Frag struct {
	States []graph.NodeIndex
	Entry  []TransSpec
	Exit   []TransSpec
	Other  []TransSpec
	Tree   *EncTree
}

// Builder elaborates one process's ir.Stmt tree into a gir Graph.
type Builder struct {
	G    *Graph
	ctx  *graph.Context
	Idle graph.NodeIndex

	litTrueCache graph.NodeIndex
}

// NewBuilder creates a Builder with a fresh idle state already allocated.
func NewBuilder() *Builder {
	ctx := graph.NewContext()
	b := &Builder{G: graph.New[*Node, Slot](ctx), ctx: ctx}
	b.Idle = b.addNode(newNode(KindState))
	return b
}

func (b *Builder) addNode(n *Node) graph.NodeIndex {
	t := graph.NewTransaction[*Node, Slot](b.ctx)
	id := t.NewNode(n)
	_ = b.G.Commit(t)
	return id
}

func (b *Builder) newState() graph.NodeIndex { return b.addNode(newNode(KindState)) }

func (b *Builder) litTrue() graph.NodeIndex {
	if !b.litTrueCache.IsEmpty() {
		return b.litTrueCache
	}
	n := newNode(KindLiteral)
	n.DataType = ir.UInt{Width: 1}
	n.Const = ir.BitsConstant{Value: big.NewInt(1), Width: 1}
	b.litTrueCache = b.addNode(n)
	return b.litTrueCache
}

func (b *Builder) and(conds ...graph.NodeIndex) graph.NodeIndex {
	var filtered []graph.NodeIndex
	litTrue := b.litTrue()
	for _, c := range conds {
		if !c.IsEmpty() && c != litTrue {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return litTrue
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	n := newNode(KindReduceOp)
	n.Op = "and"
	n.set("operands", filtered...)
	return b.addNode(n)
}

func (b *Builder) not(cond graph.NodeIndex) graph.NodeIndex {
	n := newNode(KindUnaryOp)
	n.Op = "not"
	n.set("input", cond)
	return b.addNode(n)
}

// TraverseStep elaborates a leaf statement: an idle->work entry gated on
// every wait event/wire, and an unconditional work->idle exit carrying
// the step's assignments.
func (b *Builder) TraverseStep(waits []graph.NodeIndex, assigns []graph.NodeIndex) Frag {
	work := b.newState()
	entryCond := b.and(waits...)
	return Frag{
		States: []graph.NodeIndex{work},
		Entry:  []TransSpec{{From: []graph.NodeIndex{b.Idle}, To: []graph.NodeIndex{work}, Cond: entryCond}},
		Exit:   []TransSpec{{From: []graph.NodeIndex{work}, To: []graph.NodeIndex{b.Idle}, Cond: b.litTrue(), Actions: assigns}},
		Tree:   leafTree(work),
	}
}

func combineSpec(ex, en TransSpec, b *Builder) TransSpec {
	return TransSpec{
		From:    ex.From,
		To:      en.To,
		Cond:    b.and(ex.Cond, en.Cond),
		Actions: append(append([]graph.NodeIndex{}, ex.Actions...), en.Actions...),
	}
}

// TraverseSeq splices each child's exit transitions directly onto the
// next child's entry transitions (a Cartesian product when either side
// has more than one), so no intermediate idle round-trip is observable.
func (b *Builder) TraverseSeq(children ...Frag) Frag {
	if len(children) == 0 {
		work := b.newState()
		return Frag{
			States: []graph.NodeIndex{work},
			Entry:  []TransSpec{{From: []graph.NodeIndex{b.Idle}, To: []graph.NodeIndex{work}, Cond: b.litTrue()}},
			Exit:   []TransSpec{{From: []graph.NodeIndex{work}, To: []graph.NodeIndex{b.Idle}, Cond: b.litTrue()}},
			Tree:   leafTree(work),
		}
	}
	acc := children[0]
	for _, next := range children[1:] {
		var spliced []TransSpec
		for _, ex := range acc.Exit {
			for _, en := range next.Entry {
				spliced = append(spliced, combineSpec(ex, en, b))
			}
		}
		acc = Frag{
			States: append(append([]graph.NodeIndex{}, acc.States...), next.States...),
			Entry:  acc.Entry,
			Exit:   next.Exit,
			Other:  append(append([]TransSpec{}, acc.Other...), next.Other...),
			Tree:   mergeExc(acc.Tree, next.Tree),
		}
		acc.Other = append(acc.Other, spliced...)
	}
	return acc
}

func guardEntry(spec TransSpec, cond graph.NodeIndex, b *Builder) TransSpec {
	spec.Cond = b.and(spec.Cond, cond)
	return spec
}

// TraverseIf is TraverseIfElse with an implicit empty else: the default
// self-hold on the shared idle state already covers the false branch
// exactly like make_ast_if's bypass state.
func (b *Builder) TraverseIf(cond graph.NodeIndex, then Frag) Frag {
	var entry []TransSpec
	for _, e := range then.Entry {
		entry = append(entry, guardEntry(e, cond, b))
	}
	return Frag{States: then.States, Entry: entry, Exit: then.Exit, Other: then.Other, Tree: then.Tree}
}

// TraverseIfElse gates the then-branch's entries on cond and the
// else-branch's on its negation; both branches' exits return to idle
// unchanged.
func (b *Builder) TraverseIfElse(cond graph.NodeIndex, then, els Frag) Frag {
	notCond := b.not(cond)
	var entry []TransSpec
	for _, e := range then.Entry {
		entry = append(entry, guardEntry(e, cond, b))
	}
	for _, e := range els.Entry {
		entry = append(entry, guardEntry(e, notCond, b))
	}
	return Frag{
		States: append(append([]graph.NodeIndex{}, then.States...), els.States...),
		Entry:  entry,
		Exit:   append(append([]graph.NodeIndex{}, then.Exit...), els.Exit...),
		Other:  append(append([]TransSpec{}, then.Other...), els.Other...),
		Tree:   mergeExc(then.Tree, els.Tree),
	}
}

// whileLike is the shared loop skeleton for TraverseFor/TraverseWhile:
// body.Exit transitions are split into a continue variant (back into
// body.Entry's targets, gated on NOT endCond, carrying extra increment
// actions) and a terminate variant (to idle, gated on endCond).
func (b *Builder) whileLike(checkCond graph.NodeIndex, body Frag, incrementActions []graph.NodeIndex, endCond graph.NodeIndex) Frag {
	notEnd := b.not(endCond)
	var entry []TransSpec
	for _, e := range body.Entry {
		entry = append(entry, guardEntry(e, checkCond, b))
	}
	var other, exit []TransSpec
	other = append(other, body.Other...)
	for _, ex := range body.Exit {
		for _, en := range body.Entry {
			cont := combineSpec(ex, en, b)
			cont.Cond = b.and(cont.Cond, notEnd)
			cont.Actions = append(cont.Actions, incrementActions...)
			other = append(other, cont)
		}
		term := ex
		term.Cond = b.and(ex.Cond, endCond)
		exit = append(exit, term)
	}
	return Frag{States: body.States, Entry: entry, Exit: exit, Other: other, Tree: body.Tree}
}

// TraverseFor elaborates a bounded loop: indVar is initialized to start
// on entry (folded into the entry actions), incremented by step (never
// by end — spec.md's resolved for-loop open question) on every
// continue edge, and the loop terminates once the increment result
// reaches end.
func (b *Builder) TraverseFor(indVar, start, step, endCond graph.NodeIndex, initActions []graph.NodeIndex, incrementActions []graph.NodeIndex, body Frag) Frag {
	frag := b.whileLike(b.litTrue(), body, incrementActions, endCond)
	var entry []TransSpec
	for _, e := range frag.Entry {
		e.Actions = append(append([]graph.NodeIndex{}, initActions...), e.Actions...)
		entry = append(entry, e)
	}
	frag.Entry = entry
	return frag
}

// TraverseWhile elaborates a pre-tested loop: cond is checked before
// every iteration, including the first.
func (b *Builder) TraverseWhile(cond graph.NodeIndex, body Frag) Frag {
	return b.whileLike(cond, body, nil, b.not(cond))
}

// cartesianMerge combines every combination of one TransSpec per branch
// into a single joined spec (used by TraversePar for both the
// simultaneous split on entry and the simultaneous join on exit).
func cartesianMerge(b *Builder, branches [][]TransSpec) []TransSpec {
	if len(branches) == 0 {
		return nil
	}
	combos := []TransSpec{{Cond: b.litTrue()}}
	for _, specs := range branches {
		var next []TransSpec
		for _, combo := range combos {
			for _, s := range specs {
				merged := TransSpec{
					From:    dedupIndices(append(append([]graph.NodeIndex{}, combo.From...), s.From...)),
					To:      dedupIndices(append(append([]graph.NodeIndex{}, combo.To...), s.To...)),
					Cond:    b.and(combo.Cond, s.Cond),
					Actions: append(append([]graph.NodeIndex{}, combo.Actions...), s.Actions...),
				}
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}

func dedupIndices(ids []graph.NodeIndex) []graph.NodeIndex {
	seen := make(map[graph.NodeIndex]bool, len(ids))
	var out []graph.NodeIndex
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// TraversePar elaborates concurrent branches: every branch starts
// together (their idle-originating entries are merged into one joint
// transition entering all branches at once) and the fragment only exits
// once every branch has simultaneously reached its own exit.
func (b *Builder) TraversePar(children ...Frag) Frag {
	var states []graph.NodeIndex
	var trees []*EncTree
	entryBranches := make([][]TransSpec, len(children))
	exitBranches := make([][]TransSpec, len(children))
	var other []TransSpec
	for i, c := range children {
		states = append(states, c.States...)
		trees = append(trees, c.Tree)
		entryBranches[i] = c.Entry
		exitBranches[i] = c.Exit
		other = append(other, c.Other...)
	}
	return Frag{
		States: states,
		Entry:  cartesianMerge(b, entryBranches),
		Exit:   cartesianMerge(b, exitBranches),
		Other:  other,
		Tree:   parTree(trees...),
	}
}
