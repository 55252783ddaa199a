package simbuild

import (
	"math/big"

	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/sim"
)

// allocCell builds a zero-valued cell matching t's shape: a flat Bits for
// scalar types, a recursively-built Aggregate for arrays and structs.
func allocCell(t ir.DataType) sim.StateData {
	switch v := t.(type) {
	case ir.UInt:
		return sim.NewBits(v.Width, false)
	case ir.SInt:
		return sim.NewBits(v.Width, true)
	case ir.Clock:
		return sim.NewBits(1, false)
	case ir.Array:
		return allocAggregate(v.Elem, v.Len)
	case ir.UArray:
		return allocAggregate(v.Elem, v.Len)
	case ir.Struct:
		children := make([]sim.StateData, len(v.Fields))
		for i, f := range v.Fields {
			children[i] = allocCell(f.Type)
		}
		return &sim.Aggregate{Children: children}
	default:
		return nil
	}
}

func allocAggregate(elem ir.DataType, n int) sim.StateData {
	children := make([]sim.StateData, n)
	for i := range children {
		children[i] = allocCell(elem)
	}
	return &sim.Aggregate{Children: children}
}

// constantCell renders an ir.Constant (BitsConstant or AggregateConstant)
// as the StateData simulator cells use.
func constantCell(c ir.Constant) sim.StateData {
	switch v := c.(type) {
	case ir.BitsConstant:
		b := sim.NewBits(v.Width, v.Signed)
		b.Set(v.Value)
		return b
	case ir.AggregateConstant:
		children := make([]sim.StateData, len(v.Elems))
		for i, e := range v.Elems {
			children[i] = constantCell(e)
		}
		return &sim.Aggregate{Children: children}
	default:
		return nil
	}
}

// cloneValue deep-copies a cell value. Every comb/reg event writes a fresh
// value rather than aliasing an existing *Bits/*Aggregate, so two cells
// never end up sharing one mutable pointer.
func cloneValue(v sim.StateData) sim.StateData {
	switch c := v.(type) {
	case *sim.Bits:
		nb := sim.NewBits(c.Width(), c.Signed)
		nb.Set(c.Value)
		return nb
	case *sim.Aggregate:
		children := make([]sim.StateData, len(c.Children))
		for i, ch := range c.Children {
			children[i] = cloneValue(ch)
		}
		return &sim.Aggregate{Children: children}
	default:
		return v
	}
}

func widthOf(env *ir.Environ, id ir.EntityId) (width int, signed bool) {
	ent, ok := env.GetEntity(id)
	if !ok {
		return 0, false
	}
	switch t := ent.Typ.(type) {
	case ir.UInt:
		return t.Width, false
	case ir.SInt:
		return t.Width, true
	case ir.Clock:
		return 1, false
	default:
		return 0, false
	}
}

// signedValue reinterprets a width-masked unsigned big.Int as its two's
// complement signed value.
func signedValue(v *big.Int, width int) *big.Int {
	if width > 0 && v.Bit(width-1) == 1 {
		full := new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(width)))
		return full
	}
	return new(big.Int).Set(v)
}

func bitsOf(v sim.StateData) *sim.Bits {
	b, _ := v.(*sim.Bits)
	return b
}

// bitcastValue reinterprets a value's raw bits under a new declared type,
// without any numeric conversion.
func bitcastValue(v sim.StateData, t ir.DataType) sim.StateData {
	b := bitsOf(v)
	if b == nil {
		return cloneValue(v)
	}
	switch typ := t.(type) {
	case ir.UInt:
		nb := sim.NewBits(typ.Width, false)
		nb.Set(b.Value)
		return nb
	case ir.SInt:
		nb := sim.NewBits(typ.Width, true)
		nb.Set(b.Value)
		return nb
	default:
		return cloneValue(v)
	}
}
