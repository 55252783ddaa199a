package simbuild

import (
	"math/big"

	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/sim"
)

func evalVariadic(op ir.VariadicOp, operands []*big.Int) *big.Int {
	acc := new(big.Int).Set(operands[0])
	for _, v := range operands[1:] {
		switch op {
		case ir.VariadicAdd:
			acc.Add(acc, v)
		case ir.VariadicMul:
			acc.Mul(acc, v)
		case ir.VariadicAnd:
			acc.And(acc, v)
		case ir.VariadicOr:
			acc.Or(acc, v)
		case ir.VariadicXor:
			acc.Xor(acc, v)
		}
	}
	return acc
}

// evalBinary computes one comb.binary op. lhs/rhs are already the stored
// (width-masked, non-negative) bit patterns; signed variants reinterpret
// them via signedValue first.
func evalBinary(op ir.BinaryOp, lhs, rhs *sim.Bits, width int) *big.Int {
	switch op {
	case ir.BinaryDivU:
		return new(big.Int).Quo(lhs.Value, rhs.Value)
	case ir.BinaryDivS:
		return new(big.Int).Quo(signedValue(lhs.Value, width), signedValue(rhs.Value, width))
	case ir.BinaryModU:
		return new(big.Int).Rem(lhs.Value, rhs.Value)
	case ir.BinaryModS:
		return new(big.Int).Rem(signedValue(lhs.Value, width), signedValue(rhs.Value, width))
	case ir.BinaryShl:
		return new(big.Int).Lsh(lhs.Value, uint(rhs.Value.Uint64()))
	case ir.BinaryShrU:
		return new(big.Int).Rsh(lhs.Value, uint(rhs.Value.Uint64()))
	case ir.BinaryShrS:
		return new(big.Int).Rsh(signedValue(lhs.Value, width), uint(rhs.Value.Uint64()))
	case ir.BinarySub:
		return new(big.Int).Sub(lhs.Value, rhs.Value)
	default:
		return new(big.Int)
	}
}

// evalICmp evaluates one of CombICmp's 14 predicates. sltu/sleu/sgtu/sgeu
// are aliases of the plain unsigned predicates (see ir.ICmpPredicate's
// doc comment).
func evalICmp(pred ir.ICmpPredicate, lhs, rhs *sim.Bits, width int) bool {
	switch pred.String() {
	case "eq":
		return lhs.Value.Cmp(rhs.Value) == 0
	case "ne":
		return lhs.Value.Cmp(rhs.Value) != 0
	case "slt":
		return signedValue(lhs.Value, width).Cmp(signedValue(rhs.Value, width)) < 0
	case "sle":
		return signedValue(lhs.Value, width).Cmp(signedValue(rhs.Value, width)) <= 0
	case "sgt":
		return signedValue(lhs.Value, width).Cmp(signedValue(rhs.Value, width)) > 0
	case "sge":
		return signedValue(lhs.Value, width).Cmp(signedValue(rhs.Value, width)) >= 0
	case "ult", "sltu":
		return lhs.Value.Cmp(rhs.Value) < 0
	case "ule", "sleu":
		return lhs.Value.Cmp(rhs.Value) <= 0
	case "ugt", "sgtu":
		return lhs.Value.Cmp(rhs.Value) > 0
	case "uge", "sgeu":
		return lhs.Value.Cmp(rhs.Value) >= 0
	default:
		return false
	}
}

func structFieldIndex(t ir.DataType, name string) int {
	s, ok := t.(ir.Struct)
	if !ok {
		return -1
	}
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
