// Package ir implements the Core IR: a region-nested, SSA-ish operation
// graph of hardware modules, combinational and sequential primitives, and
// the statement-AST entities consumed by gir's elaborator.
package ir

import (
	"fmt"
	"math/big"
)

// DataType is the tagged union of hardware value types a Wire or Constant
// can carry.
type DataType interface {
	isDataType()
	String() string
}

// Clock is the one-bit clock type.
type Clock struct{}

func (Clock) isDataType()  {}
func (Clock) String() string { return "clock" }

// UInt is a flat unsigned bit-vector of the given width.
type UInt struct{ Width int }

func (UInt) isDataType()  {}
func (t UInt) String() string { return fmt.Sprintf("ui%d", t.Width) }

// SInt is a flat two's-complement signed bit-vector.
type SInt struct{ Width int }

func (SInt) isDataType()  {}
func (t SInt) String() string { return fmt.Sprintf("si%d", t.Width) }

// Array is a fixed-length homogeneous array of a signed/aggregate element
// type (distinguished from UArray per spec.md §3).
type Array struct {
	Elem DataType
	Len  int
}

func (Array) isDataType() {}
func (t Array) String() string { return fmt.Sprintf("array<%s x %d>", t.Elem, t.Len) }

// UArray is the unsigned-element array variant.
type UArray struct {
	Elem DataType
	Len  int
}

func (UArray) isDataType() {}
func (t UArray) String() string { return fmt.Sprintf("uarray<%s x %d>", t.Elem, t.Len) }

// FieldType names one field of a Struct.
type FieldType struct {
	Name string
	Type DataType
}

// Struct is a named-field aggregate type.
type Struct struct{ Fields []FieldType }

func (Struct) isDataType() {}
func (t Struct) String() string {
	s := "struct<"
	for i, f := range t.Fields {
		if i > 0 {
			s += ", "
		}
		s += f.Name + ": " + f.Type.String()
	}
	return s + ">"
}

// Memory is the high-level sequential memory type: Depth rows of Elem,
// lowered by lower.RemoveMemory into a register-array plus mux logic.
type Memory struct {
	Elem  DataType
	Depth int
}

func (Memory) isDataType() {}
func (t Memory) String() string { return fmt.Sprintf("memory<%s x %d>", t.Elem, t.Depth) }

// Void is the type of entities with no carried value (events, statement
// nodes).
type Void struct{}

func (Void) isDataType()  {}
func (Void) String() string { return "void" }

// Constant is either a flat bit-vector or a nested aggregate value.
type Constant interface {
	isConstant()
	Type() DataType
}

// BitsConstant is a flat, width-explicit bit-vector constant.
type BitsConstant struct {
	Value  *big.Int
	Width  int
	Signed bool
}

func (BitsConstant) isConstant() {}
func (c BitsConstant) Type() DataType {
	if c.Signed {
		return SInt{Width: c.Width}
	}
	return UInt{Width: c.Width}
}

// AggregateConstant is a nested constant matching an Array/UArray/Struct
// shape.
type AggregateConstant struct {
	Elems []Constant
	Typ   DataType
}

func (AggregateConstant) isConstant()    {}
func (c AggregateConstant) Type() DataType { return c.Typ }
