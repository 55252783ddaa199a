// Package sim implements the event-driven simulator runtime: typed state
// cells, a five-list Cycle, and a cooperative coroutine scheduler built
// on goroutines, channels, and a clock barrier.
package sim

import (
	"fmt"
	"math/big"
)

// StateData is a typed simulation cell value: either a flat bit-vector
// (Bits) or an ordered tuple of children (Aggregate), matching the two
// flavors spec.md §4.H requires.
type StateData interface {
	isStateData()
	Width() int
}

// Bits is a fixed-width bit-vector cell. Numeric conversion uses a
// little-endian two's-complement-truncated big integer, exactly as
// spec.md's data model prescribes; math/big stands in for the teacher's
// lack of any third-party arbitrary-width bit-vector library.
type Bits struct {
	Value  *big.Int
	width  int
	Signed bool
}

func (*Bits) isStateData() {}
func (b *Bits) Width() int { return b.width }

// NewBits builds a zero-valued cell of the given width.
func NewBits(width int, signed bool) *Bits {
	return &Bits{Value: new(big.Int), width: width, Signed: signed}
}

func mask(width int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return m.Sub(m, big.NewInt(1))
}

// Set truncates v to the cell's declared width (two's-complement
// wraparound for negative or overflowing values).
func (b *Bits) Set(v *big.Int) {
	b.Value = new(big.Int).And(v, mask(b.width))
}

func (b *Bits) SetInt64(v int64) { b.Set(big.NewInt(v)) }

// Signed64 interprets the stored bits as a two's-complement integer when
// Signed is set, else as unsigned.
func (b *Bits) Signed64() int64 {
	if b.Signed && b.width > 0 && b.Value.Bit(b.width-1) == 1 {
		full := new(big.Int).Sub(b.Value, new(big.Int).Lsh(big.NewInt(1), uint(b.width)))
		return full.Int64()
	}
	return b.Value.Int64()
}

func (b *Bits) String() string {
	return fmt.Sprintf("0b%0*b", b.width, b.Value)
}

// Aggregate is a fixed-shape tuple cell (array/struct values).
type Aggregate struct {
	Children []StateData
}

func (*Aggregate) isStateData() {}
func (a *Aggregate) Width() int {
	w := 0
	for _, c := range a.Children {
		w += c.Width()
	}
	return w
}

func (a *Aggregate) String() string {
	return fmt.Sprintf("%v", a.Children)
}

// FormatStateData renders a cell for trace/waveform output.
func FormatStateData(v StateData) string {
	switch c := v.(type) {
	case *Bits:
		return c.String()
	case *Aggregate:
		return c.String()
	default:
		return "?"
	}
}
