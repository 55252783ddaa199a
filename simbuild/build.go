// Package simbuild walks a retrieved, lowered Core IR module and builds a
// sim.Simulator from it: one cell per wire entity, one comb event per
// combinational op (ordered topologically over SSA-wire dependencies,
// spec.md §4.H), one reg event per SeqCompReg. hw.instance splices a
// callee module's body into the same flat event lists, connecting its
// input/output ports to the instance's operand/result entities.
package simbuild

import (
	"fmt"
	"math/big"

	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/sim"
)

func cellKey(id ir.EntityId) string { return fmt.Sprintf("e%d", id) }

func attrStr(op *ir.Op, name string) string {
	v, _ := op.Attrs[name].AsString()
	return v
}

type simEvent struct {
	reads  []ir.EntityId
	writes []ir.EntityId
	run    func()
}

type builder struct {
	env *ir.Environ
	s   *sim.Simulator

	comb       []*simEvent
	reg        []*simEvent
	producedBy map[ir.EntityId]*simEvent
	available  map[ir.EntityId]bool
}

func (b *builder) allocCellFor(id ir.EntityId) {
	key := cellKey(id)
	if b.s.Cell(key) != nil {
		return
	}
	ent, ok := b.env.GetEntity(id)
	if !ok {
		return
	}
	b.s.SetCell(key, allocCell(ent.Typ))
}

func (b *builder) addComb(ev *simEvent) {
	b.comb = append(b.comb, ev)
	for _, w := range ev.writes {
		b.producedBy[w] = ev
	}
}

// Build constructs a Simulator for moduleName, returning the external
// input and output port names (in declaration order) bound via
// Simulator.BindIO.
func Build(env *ir.Environ, moduleName string) (*sim.Simulator, []string, []string, error) {
	moduleID, ok := env.FindModule(moduleName)
	if !ok {
		return nil, nil, nil, fmt.Errorf("simbuild: module %q not found", moduleName)
	}

	s := sim.NewSimulator()
	b := &builder{
		env:        env,
		s:          s,
		producedBy: make(map[ir.EntityId]*simEvent),
		available:  make(map[ir.EntityId]bool),
	}
	if err := b.walkModule(moduleID); err != nil {
		return nil, nil, nil, err
	}

	order, err := b.topoSort()
	if err != nil {
		return nil, nil, nil, err
	}
	for _, ev := range order {
		s.Cycle.Comb = append(s.Cycle.Comb, ev.run)
	}
	for _, ev := range b.reg {
		s.Cycle.Reg = append(s.Cycle.Reg, ev.run)
	}

	inputs, outputs := b.bindTopIO(moduleID)
	return s, inputs, outputs, nil
}

func (b *builder) bindTopIO(moduleID ir.OpId) (inputs, outputs []string) {
	op, _ := b.env.GetOp(moduleID)
	body, _ := b.env.GetRegion(op.Region("body"))
	for _, opID := range body.Ops {
		child, _ := b.env.GetOp(opID)
		switch child.Kind {
		case ir.HwInput:
			name := attrStr(child, "name")
			b.s.BindIO(name, cellKey(child.Def("result")))
			inputs = append(inputs, name)
		case ir.HwOutput:
			name := attrStr(child, "name")
			b.s.BindIO(name, cellKey(child.Def("result")))
			outputs = append(outputs, name)
		}
	}
	return inputs, outputs
}

func (b *builder) walkModule(moduleID ir.OpId) error {
	op, ok := b.env.GetOp(moduleID)
	if !ok {
		return fmt.Errorf("simbuild: unknown module op %d", moduleID)
	}
	body, ok := b.env.GetRegion(op.Region("body"))
	if !ok {
		return fmt.Errorf("simbuild: module has no body region")
	}
	return b.walkBody(body)
}

func (b *builder) walkBody(body ir.Region) error {
	for _, opID := range body.Ops {
		op, ok := b.env.GetOp(opID)
		if !ok {
			continue
		}
		if err := b.addOp(op); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addOp(op *ir.Op) error {
	switch op.Kind {
	case ir.HwInput:
		id := op.Def("result")
		b.allocCellFor(id)
		b.available[id] = true

	case ir.HwOutput:
		id := op.Def("result")
		src := op.Use("value")
		b.allocCellFor(id)
		b.addComb(&simEvent{
			reads: []ir.EntityId{src}, writes: []ir.EntityId{id},
			run: func() { b.s.SetCell(cellKey(id), cloneValue(b.s.Cell(cellKey(src)))) },
		})

	case ir.HwConstant:
		id := op.Def("result")
		c, _ := op.Attrs["value"].AsConstant()
		b.s.SetCell(cellKey(id), constantCell(c))
		b.available[id] = true

	case ir.SvConstantX:
		id := op.Def("result")
		b.allocCellFor(id)
		b.available[id] = true

	case ir.Assign:
		dst, src := op.Def("dst"), op.Use("src")
		b.allocCellFor(dst)
		b.addComb(&simEvent{
			reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
			run: func() { b.s.SetCell(cellKey(dst), cloneValue(b.s.Cell(cellKey(src)))) },
		})

	case ir.BitCast:
		dst, src := op.Def("result"), op.Use("input")
		ent, _ := b.env.GetEntity(dst)
		b.allocCellFor(dst)
		b.addComb(&simEvent{
			reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
			run: func() { b.s.SetCell(cellKey(dst), bitcastValue(b.s.Cell(cellKey(src)), ent.Typ)) },
		})

	case ir.CombVariadic:
		return b.addVariadic(op)
	case ir.CombBinary:
		return b.addBinary(op)
	case ir.CombICmp:
		return b.addICmp(op)
	case ir.CombExtract:
		return b.addExtract(op)
	case ir.CombConcat:
		return b.addConcat(op)
	case ir.CombMux2:
		return b.addMux2(op)
	case ir.SeqCompReg:
		return b.addCompReg(op)

	case ir.ArrayCreate:
		return b.addAggregateCreate(op, "elements")
	case ir.StructCreate:
		return b.addAggregateCreate(op, "fields")
	case ir.ArrayConcat:
		return b.addArrayConcat(op)
	case ir.ArrayGet:
		return b.addArrayGet(op)
	case ir.ArraySlice:
		return b.addArraySlice(op)
	case ir.StructExtract:
		return b.addStructExtract(op)
	case ir.StructInject:
		return b.addStructInject(op)
	case ir.StructExplode:
		return b.addStructExplode(op)

	case ir.HwInstance:
		return b.addInstance(op)

	case ir.CombUnary, ir.TmpSelect, ir.EventDef, ir.EventPort, ir.EventSignal, ir.TmpWhen:
		return fmt.Errorf("simbuild: %s must be lowered before simulation build", op.Kind)

	case ir.HwModule, ir.HwWire:
		// hw.wire (plain declaration with no producer of its own) still
		// needs a cell; everything else is structural and skipped.
		if op.Kind == ir.HwWire {
			b.allocCellFor(op.Def("result"))
		}

	default:
		return fmt.Errorf("simbuild: unsupported op kind %q", op.Kind)
	}
	return nil
}

func (b *builder) addVariadic(op *ir.Op) error {
	dst := op.Def("result")
	operands := op.Uses["operands"]
	if len(operands) == 0 {
		return fmt.Errorf("simbuild: comb.variadic with no operands")
	}
	variadicOp := ir.VariadicOp(attrStr(op, "op"))
	width, signed := widthOf(b.env, dst)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: operands, writes: []ir.EntityId{dst},
		run: func() {
			raws := make([]*big.Int, len(operands))
			for i, id := range operands {
				raws[i] = bitsOf(b.s.Cell(cellKey(id))).Value
			}
			result := evalVariadic(variadicOp, raws)
			out := sim.NewBits(width, signed)
			out.Set(result)
			b.s.SetCell(cellKey(dst), out)
		},
	})
	return nil
}

func (b *builder) addBinary(op *ir.Op) error {
	dst, lhsID, rhsID := op.Def("result"), op.Use("lhs"), op.Use("rhs")
	binOp := ir.BinaryOp(attrStr(op, "op"))
	width, signed := widthOf(b.env, dst)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{lhsID, rhsID}, writes: []ir.EntityId{dst},
		run: func() {
			lhs := bitsOf(b.s.Cell(cellKey(lhsID)))
			rhs := bitsOf(b.s.Cell(cellKey(rhsID)))
			result := evalBinary(binOp, lhs, rhs, width)
			out := sim.NewBits(width, signed)
			out.Set(result)
			b.s.SetCell(cellKey(dst), out)
		},
	})
	return nil
}

func (b *builder) addICmp(op *ir.Op) error {
	dst, lhsID, rhsID := op.Def("result"), op.Use("lhs"), op.Use("rhs")
	pred, _ := op.Attrs["predicate"].AsPredicate()
	cmpWidth, _ := widthOf(b.env, lhsID)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{lhsID, rhsID}, writes: []ir.EntityId{dst},
		run: func() {
			lhs := bitsOf(b.s.Cell(cellKey(lhsID)))
			rhs := bitsOf(b.s.Cell(cellKey(rhsID)))
			out := sim.NewBits(1, false)
			if evalICmp(pred, lhs, rhs, cmpWidth) {
				out.SetInt64(1)
			}
			b.s.SetCell(cellKey(dst), out)
		},
	})
	return nil
}

func (b *builder) addExtract(op *ir.Op) error {
	dst, src := op.Def("result"), op.Use("input")
	low, _ := op.Attrs["low_bit"].AsInt()
	width, _ := widthOf(b.env, dst)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
		run: func() {
			in := bitsOf(b.s.Cell(cellKey(src)))
			out := sim.NewBits(width, false)
			shifted := new(big.Int).Rsh(in.Value, uint(low))
			out.Set(shifted)
			b.s.SetCell(cellKey(dst), out)
		},
	})
	return nil
}

func (b *builder) addConcat(op *ir.Op) error {
	dst := op.Def("result")
	operands := op.Uses["operands"]
	width, _ := widthOf(b.env, dst)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: operands, writes: []ir.EntityId{dst},
		run: func() {
			acc := new(big.Int)
			for _, id := range operands {
				bits := bitsOf(b.s.Cell(cellKey(id)))
				acc.Lsh(acc, uint(bits.Width()))
				acc.Or(acc, bits.Value)
			}
			out := sim.NewBits(width, false)
			out.Set(acc)
			b.s.SetCell(cellKey(dst), out)
		},
	})
	return nil
}

func (b *builder) addMux2(op *ir.Op) error {
	dst := op.Def("result")
	condID, tID, fID := op.Use("cond"), op.Use("true_value"), op.Use("false_value")
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{condID, tID, fID}, writes: []ir.EntityId{dst},
		run: func() {
			cond := bitsOf(b.s.Cell(cellKey(condID)))
			if cond.Value.Sign() != 0 {
				b.s.SetCell(cellKey(dst), cloneValue(b.s.Cell(cellKey(tID))))
			} else {
				b.s.SetCell(cellKey(dst), cloneValue(b.s.Cell(cellKey(fID))))
			}
		},
	})
	return nil
}

func (b *builder) addCompReg(op *ir.Op) error {
	dst, src := op.Def("result"), op.Use("input")
	b.allocCellFor(dst)
	b.available[dst] = true
	b.reg = append(b.reg, &simEvent{
		reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
		run: func() { b.s.SetCell(cellKey(dst), cloneValue(b.s.Cell(cellKey(src)))) },
	})
	return nil
}

func (b *builder) addAggregateCreate(op *ir.Op, slot string) error {
	dst := op.Def("result")
	elems := op.Uses[slot]
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: elems, writes: []ir.EntityId{dst},
		run: func() {
			children := make([]sim.StateData, len(elems))
			for i, id := range elems {
				children[i] = cloneValue(b.s.Cell(cellKey(id)))
			}
			b.s.SetCell(cellKey(dst), &sim.Aggregate{Children: children})
		},
	})
	return nil
}

func (b *builder) addArrayConcat(op *ir.Op) error {
	dst := op.Def("result")
	operands := op.Uses["operands"]
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: operands, writes: []ir.EntityId{dst},
		run: func() {
			var children []sim.StateData
			for _, id := range operands {
				agg, _ := b.s.Cell(cellKey(id)).(*sim.Aggregate)
				if agg == nil {
					continue
				}
				for _, c := range agg.Children {
					children = append(children, cloneValue(c))
				}
			}
			b.s.SetCell(cellKey(dst), &sim.Aggregate{Children: children})
		},
	})
	return nil
}

func (b *builder) addArrayGet(op *ir.Op) error {
	dst := op.Def("result")
	arrID, idxID := op.Use("array"), op.Use("index")
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{arrID, idxID}, writes: []ir.EntityId{dst},
		run: func() {
			agg, _ := b.s.Cell(cellKey(arrID)).(*sim.Aggregate)
			idx := bitsOf(b.s.Cell(cellKey(idxID)))
			i := int(idx.Value.Int64())
			if agg == nil || i < 0 || i >= len(agg.Children) {
				return
			}
			b.s.SetCell(cellKey(dst), cloneValue(agg.Children[i]))
		},
	})
	return nil
}

func (b *builder) addArraySlice(op *ir.Op) error {
	dst := op.Def("result")
	arrID := op.Use("array")
	low, _ := op.Attrs["low_index"].AsInt()
	dstEnt, _ := b.env.GetEntity(dst)
	length := 0
	switch t := dstEnt.Typ.(type) {
	case ir.Array:
		length = t.Len
	case ir.UArray:
		length = t.Len
	}
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{arrID}, writes: []ir.EntityId{dst},
		run: func() {
			agg, _ := b.s.Cell(cellKey(arrID)).(*sim.Aggregate)
			if agg == nil {
				return
			}
			lo := int(low)
			hi := lo + length
			if hi > len(agg.Children) {
				hi = len(agg.Children)
			}
			children := make([]sim.StateData, 0, length)
			for _, c := range agg.Children[lo:hi] {
				children = append(children, cloneValue(c))
			}
			b.s.SetCell(cellKey(dst), &sim.Aggregate{Children: children})
		},
	})
	return nil
}

func (b *builder) addStructExtract(op *ir.Op) error {
	dst, src := op.Def("result"), op.Use("input")
	field := attrStr(op, "field")
	srcEnt, _ := b.env.GetEntity(src)
	idx := structFieldIndex(srcEnt.Typ, field)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
		run: func() {
			agg, _ := b.s.Cell(cellKey(src)).(*sim.Aggregate)
			if agg == nil || idx < 0 || idx >= len(agg.Children) {
				return
			}
			b.s.SetCell(cellKey(dst), cloneValue(agg.Children[idx]))
		},
	})
	return nil
}

func (b *builder) addStructInject(op *ir.Op) error {
	dst, src, val := op.Def("result"), op.Use("input"), op.Use("value")
	field := attrStr(op, "field")
	srcEnt, _ := b.env.GetEntity(src)
	idx := structFieldIndex(srcEnt.Typ, field)
	b.allocCellFor(dst)
	b.addComb(&simEvent{
		reads: []ir.EntityId{src, val}, writes: []ir.EntityId{dst},
		run: func() {
			agg, _ := b.s.Cell(cellKey(src)).(*sim.Aggregate)
			if agg == nil {
				return
			}
			children := make([]sim.StateData, len(agg.Children))
			copy(children, agg.Children)
			if idx >= 0 && idx < len(children) {
				children[idx] = cloneValue(b.s.Cell(cellKey(val)))
			}
			b.s.SetCell(cellKey(dst), &sim.Aggregate{Children: children})
		},
	})
	return nil
}

func (b *builder) addStructExplode(op *ir.Op) error {
	src := op.Use("input")
	results := op.Defs["results"]
	for i, dst := range results {
		dst, i := dst, i
		b.allocCellFor(dst)
		b.addComb(&simEvent{
			reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
			run: func() {
				agg, _ := b.s.Cell(cellKey(src)).(*sim.Aggregate)
				if agg == nil || i >= len(agg.Children) {
					return
				}
				b.s.SetCell(cellKey(dst), cloneValue(agg.Children[i]))
			},
		})
	}
	return nil
}

// addInstance splices a callee module's body into the same flat event
// lists, connecting the instance's operand/result entities to the
// callee's HwInput/HwOutput ports. Entity ids are unique across the whole
// Environ, so a callee module instantiated exactly once composes for
// free; instantiating the same module twice would alias its internal
// entities between the two instances (see DESIGN.md).
func (b *builder) addInstance(op *ir.Op) error {
	calleeName := attrStr(op, "module")
	calleeID, ok := b.env.FindModule(calleeName)
	if !ok {
		return fmt.Errorf("simbuild: instance %q references unknown module %q", attrStr(op, "name"), calleeName)
	}
	calleeOp, _ := b.env.GetOp(calleeID)
	body, ok := b.env.GetRegion(calleeOp.Region("body"))
	if !ok {
		return fmt.Errorf("simbuild: module %q has no body region", calleeName)
	}

	var calleeInputs, calleeOutputs []ir.EntityId
	for _, childID := range body.Ops {
		child, _ := b.env.GetOp(childID)
		switch child.Kind {
		case ir.HwInput:
			calleeInputs = append(calleeInputs, child.Def("result"))
		case ir.HwOutput:
			calleeOutputs = append(calleeOutputs, child.Def("result"))
		}
	}

	if err := b.walkBody(body); err != nil {
		return err
	}

	callerInputs := op.Uses["inputs"]
	callerOutputs := op.Defs["outputs"]
	if len(callerInputs) != len(calleeInputs) {
		return fmt.Errorf("simbuild: instance %q has %d inputs, module %q declares %d",
			attrStr(op, "name"), len(callerInputs), calleeName, len(calleeInputs))
	}
	if len(callerOutputs) != len(calleeOutputs) {
		return fmt.Errorf("simbuild: instance %q has %d outputs, module %q declares %d",
			attrStr(op, "name"), len(callerOutputs), calleeName, len(calleeOutputs))
	}

	for i := range calleeInputs {
		src, dst := callerInputs[i], calleeInputs[i]
		b.addComb(&simEvent{
			reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
			run: func() { b.s.SetCell(cellKey(dst), cloneValue(b.s.Cell(cellKey(src)))) },
		})
	}
	for i := range calleeOutputs {
		src, dst := calleeOutputs[i], callerOutputs[i]
		b.allocCellFor(dst)
		b.addComb(&simEvent{
			reads: []ir.EntityId{src}, writes: []ir.EntityId{dst},
			run: func() { b.s.SetCell(cellKey(dst), cloneValue(b.s.Cell(cellKey(src)))) },
		})
	}
	return nil
}

// topoSort orders comb events so that every event runs after every event
// producing one of its reads, detecting both dependency cycles and
// entities that are read but never defined (spec.md §4.H: "every op used
// but never defined is a build-time error").
func (b *builder) topoSort() ([]*simEvent, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*simEvent]int, len(b.comb))
	var order []*simEvent

	var visit func(ev *simEvent) error
	visit = func(ev *simEvent) error {
		switch state[ev] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("simbuild: dependency cycle in combinational logic")
		}
		state[ev] = visiting
		for _, r := range ev.reads {
			if p, ok := b.producedBy[r]; ok {
				if err := visit(p); err != nil {
					return err
				}
				continue
			}
			if !b.available[r] {
				return fmt.Errorf("simbuild: %s used but never defined", b.env.EntityName(r))
			}
		}
		state[ev] = done
		order = append(order, ev)
		return nil
	}

	for _, ev := range b.comb {
		if err := visit(ev); err != nil {
			return nil, err
		}
	}
	return order, nil
}
