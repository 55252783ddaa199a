package gir

import (
	"math/big"

	"github.com/sarchlab/hdlc/graph"
	"github.com/sarchlab/hdlc/ir"
)

// Materialize runs the two-pass encoding over top's tree (with the
// shared idle state folded in as the top Exc group's zeroth sibling,
// exactly as make_fsms roots the whole process under one ExcNode of
// [idle, body]), builds the state register and every leaf's match wire,
// then turns every transition spec into a persisted GenEvent plus the
// CondAssigns it drives — one per written state-bit range (state
// transitions) or whole-value write (ordinary step actions). goSignal
// gates every Entry transition so the process only starts on request;
// the returned done wire is idle's own match wire.
func (b *Builder) Materialize(top Frag, goSignal graph.NodeIndex) (stateReg, done graph.NodeIndex, condAssigns []graph.NodeIndex) {
	combined := excTree(leafTree(b.Idle), top.Tree)
	width, paths := Encode(combined)

	stateReg = b.addNode(&Node{Kind: KindStateReg, Width: width})
	matchWires := make(map[graph.NodeIndex]graph.NodeIndex, len(paths))
	for state, path := range paths {
		matchWires[state] = b.matchWire(stateReg, path)
	}
	done = matchWires[b.Idle]

	all := make([]TransSpec, 0, len(top.Entry)+len(top.Exit)+len(top.Other))
	for _, e := range top.Entry {
		e.Cond = b.and(e.Cond, goSignal)
		all = append(all, e)
	}
	all = append(all, top.Exit...)
	all = append(all, top.Other...)

	for _, spec := range all {
		var fromMatches []graph.NodeIndex
		for _, s := range spec.From {
			fromMatches = append(fromMatches, matchWires[s])
		}
		eventCond := b.and(b.and(fromMatches...), spec.Cond)

		gen := newNode(KindGenEvent)
		gen.set("trigger", eventCond)
		b.addNode(gen)

		for _, target := range spec.To {
			for _, sel := range paths[target] {
				value := b.constant(sel.value, sel.width)
				condAssigns = append(condAssigns, b.condAssign(stateReg, sel.offset, sel.width, eventCond, value))
			}
		}
		for _, action := range spec.Actions {
			act, ok := b.G.GetNode(action)
			if !ok || act.Kind != KindAssign {
				continue
			}
			lhs := act.get("lhs")
			rhs := act.get("rhs")
			condAssigns = append(condAssigns, b.condAssign(lhs, 0, 0, eventCond, rhs))
		}
	}
	return stateReg, done, condAssigns
}

func (b *Builder) matchWire(stateReg graph.NodeIndex, path []selector) graph.NodeIndex {
	var eqs []graph.NodeIndex
	for _, sel := range path {
		extract := newNode(KindIndexOp)
		extract.LowBit = sel.offset
		extract.Width = sel.width
		extract.set("input", stateReg)
		extractID := b.addNode(extract)

		value := b.constant(sel.value, sel.width)

		eq := newNode(KindBinaryOp)
		eq.Op = "icmp"
		eq.Predicate = ir.ICmpEQ
		eq.set("lhs", extractID)
		eq.set("rhs", value)
		eqs = append(eqs, b.addNode(eq))
	}
	return b.and(eqs...)
}

func (b *Builder) constant(value, width int) graph.NodeIndex {
	n := newNode(KindLiteral)
	n.DataType = ir.UInt{Width: width}
	n.Const = ir.BitsConstant{Value: big.NewInt(int64(value)), Width: width}
	return b.addNode(n)
}

// condAssign builds a CondAssign node: when cond is true, the [lowBit,
// lowBit+width) range of lhs (or the whole value when width==0) takes
// value.
func (b *Builder) condAssign(lhs graph.NodeIndex, lowBit, width int, cond, value graph.NodeIndex) graph.NodeIndex {
	n := newNode(KindCondAssign)
	n.LowBit = lowBit
	n.Width = width
	n.set("lhs", lhs)
	n.set("cond", cond)
	n.set("value", value)
	return b.addNode(n)
}

// NewAssign creates a plain (unconditional, pre-elaboration) assignment
// node: lhs takes rhs whenever the statement it belongs to fires. Step
// statements reference these as their Actions.
func (b *Builder) NewAssign(lhs, rhs graph.NodeIndex) graph.NodeIndex {
	n := newNode(KindAssign)
	n.set("lhs", lhs)
	n.set("rhs", rhs)
	return b.addNode(n)
}
