// Package lower implements the Core IR lowering passes that turn a
// module built from high-level primitives (events, selects, unary ops,
// high-level memories) into the primitive op set simbuild understands.
package lower

import (
	"errors"

	"github.com/sarchlab/hdlc/ir"
)

// ErrEventNoSource is returned by RemoveEvent when an event has no
// EventSignal driving it.
var ErrEventNoSource = errors.New("lower: event has no source signal")

// ErrEventMultiSource is returned when more than one EventSignal drives
// the same event. spec.md's open question #2 is resolved in favor of
// this hard error rather than an inferred wire-or.
var ErrEventMultiSource = errors.New("lower: event has more than one source signal")

// ErrSelectNoDefault is returned by RemoveSelect when a TmpSelect op has
// no default operand to fall back on.
var ErrSelectNoDefault = errors.New("lower: select has no default value")

// walkOps calls f for every op transitively nested under region, in
// document order, recursing into owned sub-regions depth-first.
func walkOps(env *ir.Environ, region ir.RegionId, f func(ir.OpId, *ir.Op)) {
	r, ok := env.GetRegion(region)
	if !ok {
		return
	}
	for _, opID := range append([]ir.OpId{}, r.Ops...) {
		op, ok := env.GetOp(opID)
		if !ok {
			continue
		}
		f(opID, op)
		for _, sub := range op.AllRegions() {
			walkOps(env, sub, f)
		}
	}
}

// moduleBody returns the body region of a HwModule op.
func moduleBody(env *ir.Environ, moduleID ir.OpId) ir.RegionId {
	op, ok := env.GetOp(moduleID)
	if !ok {
		return 0
	}
	return op.Region("body")
}
