// Package gir implements the statement-AST-to-finite-state-machine
// elaborator: it consumes an ir.Stmt tree (Seq/Par/If/IfElse/For/While/
// Step) and produces a typed graph of FSM states, transitions, and the
// wires/events that drive them, ready for retrieve to splice back into
// Core IR.
package gir

import (
	"github.com/sarchlab/hdlc/graph"
	"github.com/sarchlab/hdlc/ir"
)

// Kind tags the union of node variants stored in a gir Graph. Go has no
// declarative macros, so (as with ir.Op) every variant shares one Node
// representation driven by Kind instead of per-variant generated
// structs — see DESIGN.md.
type Kind string

const (
	KindWire         Kind = "wire"
	KindStateReg     Kind = "state_reg"
	KindAssign       Kind = "assign"
	KindCondAssign   Kind = "cond_assign"
	KindEvent        Kind = "event"
	KindGenEvent     Kind = "gen_event"
	KindEventTrigger Kind = "event_trigger"
	KindEventEval    Kind = "event_eval"
	KindSelect       Kind = "select"
	KindLiteral      Kind = "literal"
	KindUnaryOp      Kind = "unary_op"
	KindBinaryOp     Kind = "binary_op"
	KindIndexOp      Kind = "index_op"
	KindReduceOp     Kind = "reduce_op"
	KindLeaf         Kind = "leaf"
	KindExc          Kind = "exc"
	KindPar          Kind = "par"
	KindState        Kind = "state"
	KindEncodedState Kind = "encoded_state"
	KindTransition   Kind = "transition"
	KindFSM          Kind = "fsm"
)

// Slot names a reference carried by a Node. graph.Graph's reverse-link
// index is keyed on these.
type Slot string

// Node is the single concrete representation of every gir graph value.
// Scalar (non-graph) payload lives in the typed fields below; every
// node-to-node reference lives in Refs, keyed by Slot, so IterSource/
// ModifySource have one place to look — the same trade ir.Op makes for
// Core IR ops.
type Node struct {
	Kind Kind
	Refs map[Slot][]graph.NodeIndex

	// Wire/Literal/StateReg
	DataType ir.DataType
	Const    ir.Constant
	IRWire   ir.EntityId // non-zero if this wire originated from Core IR

	// Event/GenEvent
	IREvent ir.EntityId

	// UnaryOp/BinaryOp/ReduceOp
	Op string
	// IndexOp
	LowBit int
	// CombICmp-equivalent predicate, carried on BinaryOp nodes whose Op
	// is "icmp".
	Predicate ir.ICmpPredicate

	// Leaf/Exc/Par/State bookkeeping
	Width    int // encoded state-register width contributed by this node
	Offset   int // bit offset once flattened into the FSM's state register
	Encoding []int

	Name string
}

func newNode(kind Kind) *Node {
	return &Node{Kind: kind, Refs: make(map[Slot][]graph.NodeIndex)}
}

func (n *Node) set(slot Slot, ids ...graph.NodeIndex) { n.Refs[slot] = ids }
func (n *Node) get(slot Slot) graph.NodeIndex {
	ids := n.Refs[slot]
	if len(ids) == 0 {
		return graph.Empty
	}
	return ids[0]
}
func (n *Node) add(slot Slot, id graph.NodeIndex) {
	n.Refs[slot] = append(n.Refs[slot], id)
}

// IterSource implements graph.NodeEnum.
func (n *Node) IterSource() []graph.BackLink[Slot] {
	var out []graph.BackLink[Slot]
	for slot, ids := range n.Refs {
		for _, id := range ids {
			out = append(out, graph.BackLink[Slot]{Holder: id, Slot: slot})
		}
	}
	return out
}

// ModifySource implements graph.NodeEnum.
func (n *Node) ModifySource(slot Slot, old, new graph.NodeIndex) {
	ids, ok := n.Refs[slot]
	if !ok {
		return
	}
	for i, id := range ids {
		if id == old {
			ids[i] = new
		}
	}
	n.Refs[slot] = ids
}

// Graph is a gir typed graph.
type Graph = graph.Graph[*Node, Slot]
