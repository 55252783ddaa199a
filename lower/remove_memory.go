package lower

import (
	"math/big"

	"github.com/sarchlab/hdlc/ir"
)

// RemoveMemory lowers every SeqMemRead/SeqMemWrite against a high-level
// ir.Memory entity into an explicit array of SeqCompReg-backed rows plus
// address-compare mux logic: the same "primitive ops only" discipline
// RemoveUnary applies to Not/Neg, extended to the memory data type added
// for this component (spec.md's high-level memory entity has no direct
// simbuild counterpart, so it must be gone by the time simbuild runs).
func RemoveMemory(env *ir.Environ, moduleID ir.OpId) error {
	body := moduleBody(env, moduleID)

	rows := make(map[ir.EntityId][]ir.EntityId) // memory entity -> per-row current value
	var reads, writes []ir.OpId

	walkOps(env, body, func(opID ir.OpId, op *ir.Op) {
		switch op.Kind {
		case ir.SeqMemRead:
			reads = append(reads, opID)
		case ir.SeqMemWrite:
			writes = append(writes, opID)
		}
	})

	rowsOf := func(memID ir.EntityId) []ir.EntityId {
		if existing, ok := rows[memID]; ok {
			return existing
		}
		memEnt, _ := env.GetEntity(memID)
		mem, ok := memEnt.Typ.(ir.Memory)
		if !ok {
			return nil
		}
		out := make([]ir.EntityId, mem.Depth)
		for i := range out {
			out[i] = env.AddEntity(ir.Entity{Typ: mem.Elem})
		}
		rows[memID] = out
		return out
	}

	for _, opID := range writes {
		op, ok := env.GetOp(opID)
		if !ok {
			continue
		}
		memID := op.Use("memory")
		addr := op.Use("address")
		data := op.Use("data")
		enable := op.Use("enable")
		clock := op.Use("clock")
		memEnt, _ := env.GetEntity(memID)
		mem, _ := memEnt.Typ.(ir.Memory)
		rowVals := rowsOf(memID)
		addrWidth := widthOf(addrTypeOf(env, addr))

		for i, row := range rowVals {
			idxConst := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: addrWidth}})
			idxOp := ir.NewOp(ir.HwConstant)
			idxOp.SetAttr("value", ir.ConstAttr(ir.BitsConstant{Value: big.NewInt(int64(i)), Width: addrWidth}))
			idxOp.SetDef("result", idxConst)
			env.AddOp(idxOp)

			eq := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			eqOp := ir.NewOp(ir.CombICmp)
			eqOp.SetAttr("predicate", ir.PredAttr(ir.ICmpEQ))
			eqOp.SetUse("lhs", addr)
			eqOp.SetUse("rhs", idxConst)
			eqOp.SetDef("result", eq)
			env.AddOp(eqOp)

			hit := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			hitOp := ir.NewOp(ir.CombVariadic)
			hitOp.SetAttr("op", ir.StringAttr(string(ir.VariadicAnd)))
			hitOp.SetUse("operands", eq, enable)
			hitOp.SetDef("result", hit)
			env.AddOp(hitOp)

			next := env.AddEntity(ir.Entity{Typ: mem.Elem})
			muxOp := ir.NewOp(ir.CombMux2)
			muxOp.SetUse("cond", hit)
			muxOp.SetUse("true_value", data)
			muxOp.SetUse("false_value", row)
			muxOp.SetDef("result", next)
			env.AddOp(muxOp)

			regOp := ir.NewOp(ir.SeqCompReg)
			regOp.SetUse("input", next)
			regOp.SetUse("clock", clock)
			regOp.SetDef("result", row)
			env.AddOp(regOp)
		}
		env.DeleteOp(opID)
	}

	for _, opID := range reads {
		op, ok := env.GetOp(opID)
		if !ok {
			continue
		}
		memID := op.Use("memory")
		addr := op.Use("address")
		result := op.Def("result")
		rowVals := rowsOf(memID)
		addrWidth := widthOf(addrTypeOf(env, addr))

		if len(rowVals) == 0 {
			env.DeleteOp(opID)
			continue
		}
		cur := rowVals[len(rowVals)-1]
		for i := len(rowVals) - 2; i >= 0; i-- {
			idxConst := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: addrWidth}})
			idxOp := ir.NewOp(ir.HwConstant)
			idxOp.SetAttr("value", ir.ConstAttr(ir.BitsConstant{Value: big.NewInt(int64(i)), Width: addrWidth}))
			idxOp.SetDef("result", idxConst)
			env.AddOp(idxOp)

			eq := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			eqOp := ir.NewOp(ir.CombICmp)
			eqOp.SetAttr("predicate", ir.PredAttr(ir.ICmpEQ))
			eqOp.SetUse("lhs", addr)
			eqOp.SetUse("rhs", idxConst)
			eqOp.SetDef("result", eq)
			env.AddOp(eqOp)

			var target ir.EntityId
			if i == 0 {
				target = result
			} else {
				ent, _ := env.GetEntity(rowVals[i])
				target = env.AddEntity(ir.Entity{Typ: ent.Typ})
			}
			muxOp := ir.NewOp(ir.CombMux2)
			muxOp.SetUse("cond", eq)
			muxOp.SetUse("true_value", rowVals[i])
			muxOp.SetUse("false_value", cur)
			muxOp.SetDef("result", target)
			env.AddOp(muxOp)
			cur = target
		}
		if len(rowVals) == 1 {
			assign := ir.NewOp(ir.Assign)
			assign.SetUse("src", rowVals[0])
			assign.SetDef("dst", result)
			env.AddOp(assign)
		}
		env.DeleteOp(opID)
	}
	return nil
}

func addrTypeOf(env *ir.Environ, id ir.EntityId) ir.DataType {
	ent, ok := env.GetEntity(id)
	if !ok {
		return ir.UInt{Width: 0}
	}
	return ent.Typ
}
