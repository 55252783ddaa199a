package gir

import (
	"github.com/sarchlab/hdlc/graph"
	"github.com/sarchlab/hdlc/ir"
)

// binaryOp builds a plain two-operand expression wire (add/sub/etc,
// matching Core IR's CombBinary/CombVariadic op set once retrieve splices
// this back in).
func (b *Builder) binaryOp(op string, lhs, rhs graph.NodeIndex, typ ir.DataType) graph.NodeIndex {
	n := newNode(KindBinaryOp)
	n.Op = op
	n.DataType = typ
	n.set("lhs", lhs)
	n.set("rhs", rhs)
	return b.addNode(n)
}

func (b *Builder) icmp(pred ir.ICmpPredicate, lhs, rhs graph.NodeIndex) graph.NodeIndex {
	n := newNode(KindBinaryOp)
	n.Op = "icmp"
	n.Predicate = pred
	n.set("lhs", lhs)
	n.set("rhs", rhs)
	return b.addNode(n)
}

func isSigned(t ir.DataType) bool {
	s, ok := t.(ir.SInt)
	return ok && s.Width > 0
}

// WireTable maps Core IR entities, the first time they're seen, to the
// gir wire/event nodes that stand in for them so every later reference to
// the same ir.EntityId resolves to the same node.
type WireTable struct {
	b     *Builder
	env   *ir.Environ
	nodes map[ir.EntityId]graph.NodeIndex
}

func NewWireTable(b *Builder, env *ir.Environ) *WireTable {
	return &WireTable{b: b, env: env, nodes: make(map[ir.EntityId]graph.NodeIndex)}
}

// Wire resolves a wire-valued entity (a data value, not an event).
func (t *WireTable) Wire(id ir.EntityId) graph.NodeIndex {
	if id.IsNone() {
		return graph.Empty
	}
	if n, ok := t.nodes[id]; ok {
		return n
	}
	ent, _ := t.env.GetEntity(id)
	n := newNode(KindWire)
	n.DataType = ent.Typ
	n.IRWire = id
	idx := t.b.addNode(n)
	t.nodes[id] = idx
	return idx
}

// Event resolves an event-valued entity (a wait/signal source).
func (t *WireTable) Event(id ir.EntityId) graph.NodeIndex {
	if id.IsNone() {
		return graph.Empty
	}
	if n, ok := t.nodes[id]; ok {
		return n
	}
	n := newNode(KindEvent)
	n.IREvent = id
	idx := t.b.addNode(n)
	t.nodes[id] = idx
	return idx
}

// TypeOf returns the Core IR type backing a wire entity, or nil.
func (t *WireTable) TypeOf(id ir.EntityId) ir.DataType {
	ent, ok := t.env.GetEntity(id)
	if !ok {
		return nil
	}
	return ent.Typ
}
