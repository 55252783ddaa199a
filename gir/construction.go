package gir

import (
	"fmt"

	"github.com/sarchlab/hdlc/graph"
	"github.com/sarchlab/hdlc/ir"
)

// childStmt recovers the nested Stmt a Children/Then/Else/Body region
// holds: by convention that region contains exactly one tmp.stmt_marker
// op naming the entity whose Stmt payload is the real AST node.
func childStmt(env *ir.Environ, regionID ir.RegionId) (*ir.Stmt, error) {
	region, ok := env.GetRegion(regionID)
	if !ok {
		return nil, fmt.Errorf("gir: unknown region %v", regionID)
	}
	for _, opID := range region.Ops {
		op, ok := env.GetOp(opID)
		if !ok || op.Kind != ir.StmtMarker {
			continue
		}
		ent, ok := env.GetEntity(op.Def("stmt"))
		if !ok || ent.Stmt == nil {
			return nil, fmt.Errorf("gir: stmt_marker in region %v names no statement", regionID)
		}
		return ent.Stmt, nil
	}
	return nil, fmt.Errorf("gir: region %v holds no statement", regionID)
}

// LoadAST recursively elaborates an ir.Stmt tree into a Frag, resolving
// every wire/event entity it touches through wt so repeated references
// (the same signal waited on twice, the same induction variable read and
// written) share one gir node.
func LoadAST(b *Builder, env *ir.Environ, wt *WireTable, stmt *ir.Stmt) (Frag, error) {
	switch stmt.Kind {
	case ir.StmtStep:
		var waits, assigns []graph.NodeIndex
		for _, w := range stmt.Waits {
			waits = append(waits, wt.Event(w))
		}
		for i, a := range stmt.Assigns {
			lhs := wt.Wire(a)
			rhs := lhs
			if i < len(stmt.AssignValues) && !stmt.AssignValues[i].IsNone() {
				rhs = wt.Wire(stmt.AssignValues[i])
			}
			assigns = append(assigns, b.NewAssign(lhs, rhs))
		}
		return b.TraverseStep(waits, assigns), nil

	case ir.StmtSeq:
		children, err := loadChildren(b, env, wt, stmt.Children)
		if err != nil {
			return Frag{}, err
		}
		return b.TraverseSeq(children...), nil

	case ir.StmtPar:
		children, err := loadChildren(b, env, wt, stmt.Children)
		if err != nil {
			return Frag{}, err
		}
		return b.TraversePar(children...), nil

	case ir.StmtIf:
		thenStmt, err := childStmt(env, stmt.Then)
		if err != nil {
			return Frag{}, err
		}
		then, err := LoadAST(b, env, wt, thenStmt)
		if err != nil {
			return Frag{}, err
		}
		return b.TraverseIf(wt.Wire(stmt.Cond), then), nil

	case ir.StmtIfElse:
		thenStmt, err := childStmt(env, stmt.Then)
		if err != nil {
			return Frag{}, err
		}
		elseStmt, err := childStmt(env, stmt.Else)
		if err != nil {
			return Frag{}, err
		}
		then, err := LoadAST(b, env, wt, thenStmt)
		if err != nil {
			return Frag{}, err
		}
		els, err := LoadAST(b, env, wt, elseStmt)
		if err != nil {
			return Frag{}, err
		}
		return b.TraverseIfElse(wt.Wire(stmt.Cond), then, els), nil

	case ir.StmtFor:
		bodyStmt, err := childStmt(env, stmt.Body)
		if err != nil {
			return Frag{}, err
		}
		body, err := LoadAST(b, env, wt, bodyStmt)
		if err != nil {
			return Frag{}, err
		}

		indVar := wt.Wire(stmt.IndVar)
		start := wt.Wire(stmt.Start)
		step := wt.Wire(stmt.Step)
		end := wt.Wire(stmt.End)
		typ := wt.TypeOf(stmt.IndVar)

		pred := ir.ICmpUGE
		if isSigned(typ) {
			pred = ir.ICmpSGE
		}
		incremented := b.binaryOp("add", indVar, step, typ)
		endCond := b.icmp(pred, incremented, end)

		initActions := []graph.NodeIndex{b.NewAssign(indVar, start)}
		incrementActions := []graph.NodeIndex{b.NewAssign(indVar, incremented)}

		return b.TraverseFor(indVar, start, step, endCond, initActions, incrementActions, body), nil

	case ir.StmtWhile:
		bodyStmt, err := childStmt(env, stmt.Body)
		if err != nil {
			return Frag{}, err
		}
		body, err := LoadAST(b, env, wt, bodyStmt)
		if err != nil {
			return Frag{}, err
		}
		return b.TraverseWhile(wt.Wire(stmt.Cond), body), nil
	}
	return Frag{}, fmt.Errorf("gir: unknown statement kind %v", stmt.Kind)
}

func loadChildren(b *Builder, env *ir.Environ, wt *WireTable, regions []ir.RegionId) ([]Frag, error) {
	var out []Frag
	for _, rid := range regions {
		stmt, err := childStmt(env, rid)
		if err != nil {
			return nil, err
		}
		frag, err := LoadAST(b, env, wt, stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, frag)
	}
	return out, nil
}

// Process is the result of running a whole process's AST through the
// elaborator and materializer: StateReg and Done are gir nodes; Writes
// are every CondAssign driving a wire or the state register, ready for
// retrieve to merge per target into Core IR TmpSelects.
type Process struct {
	Graph   *Graph
	StateReg graph.NodeIndex
	Done    graph.NodeIndex
	Writes  []graph.NodeIndex
	Wires   *WireTable
}

// BuildProcess runs the full gir pipeline over one process body: load the
// statement tree, elaborate it into states and transitions, then
// materialize the encoded FSM and every conditional write it drives.
func BuildProcess(env *ir.Environ, root *ir.Stmt, goSignal ir.EntityId) (*Process, error) {
	b := NewBuilder()
	wt := NewWireTable(b, env)

	frag, err := LoadAST(b, env, wt, root)
	if err != nil {
		return nil, err
	}
	top := b.TraverseSeq(frag)

	goWire := wt.Event(goSignal)
	stateReg, done, writes := b.Materialize(top, goWire)

	return &Process{Graph: b.G, StateReg: stateReg, Done: done, Writes: writes, Wires: wt}, nil
}
