package lower

import (
	"math/big"

	"github.com/sarchlab/hdlc/ir"
)

// RemoveUnary rewrites CombUnary ops into the primitive ops they stand
// for: Not(x) becomes Xor(x, allOnes), Neg(x) becomes Sub(0, x), exactly
// as spec.md §4.E states.
func RemoveUnary(env *ir.Environ, moduleID ir.OpId) error {
	body := moduleBody(env, moduleID)

	var unaries []ir.OpId
	walkOps(env, body, func(opID ir.OpId, op *ir.Op) {
		if op.Kind == ir.CombUnary {
			unaries = append(unaries, opID)
		}
	})

	for _, opID := range unaries {
		op, ok := env.GetOp(opID)
		if !ok {
			continue
		}
		input := op.Use("input")
		result := op.Def("result")
		inEnt, _ := env.GetEntity(input)
		kind, _ := op.Attrs["op"].AsString()

		switch ir.UnaryOpKind(kind) {
		case ir.UnaryNot:
			width := widthOf(inEnt.Typ)
			allOnes := env.AddEntity(ir.Entity{Typ: inEnt.Typ})
			constOp := ir.NewOp(ir.HwConstant)
			ones := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(width)), big.NewInt(1))
			constOp.SetAttr("value", ir.ConstAttr(ir.BitsConstant{Value: ones, Width: width}))
			constOp.SetDef("result", allOnes)
			env.AddOp(constOp)

			xorOp := ir.NewOp(ir.CombVariadic)
			xorOp.SetAttr("op", ir.StringAttr(string(ir.VariadicXor)))
			xorOp.SetUse("operands", input, allOnes)
			xorOp.SetDef("result", result)
			env.AddOp(xorOp)

		case ir.UnaryNeg:
			width := widthOf(inEnt.Typ)
			zero := env.AddEntity(ir.Entity{Typ: inEnt.Typ})
			constOp := ir.NewOp(ir.HwConstant)
			constOp.SetAttr("value", ir.ConstAttr(ir.BitsConstant{Value: big.NewInt(0), Width: width}))
			constOp.SetDef("result", zero)
			env.AddOp(constOp)

			subOp := ir.NewOp(ir.CombBinary)
			subOp.SetAttr("op", ir.StringAttr(string(ir.BinarySub)))
			subOp.SetUse("lhs", zero)
			subOp.SetUse("rhs", input)
			subOp.SetDef("result", result)
			env.AddOp(subOp)
		}

		env.DeleteOp(opID)
	}
	return nil
}

func widthOf(t ir.DataType) int {
	switch v := t.(type) {
	case ir.UInt:
		return v.Width
	case ir.SInt:
		return v.Width
	default:
		return 0
	}
}
