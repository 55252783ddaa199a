package sim

import akitasim "github.com/sarchlab/akita/v4/sim"

// TickingSimulator wraps a Simulator as an akita TickingComponent (the
// same builder/Tick pattern every component in the pack uses), letting
// hdlc's own cycle-based simulator be driven by an outer akita Engine
// instead of the bare coroutine Run loop — the embedding spec.md §4.I's
// "Simulator" leaves to its host.
type TickingSimulator struct {
	*akitasim.TickingComponent
	Inner *Simulator
}

// NewTickingSimulator builds a TickingSimulator running Inner's Cycle
// once per tick at freq, driven by engine.
func NewTickingSimulator(name string, engine akitasim.Engine, freq akitasim.Freq, inner *Simulator) *TickingSimulator {
	t := &TickingSimulator{Inner: inner}
	t.TickingComponent = akitasim.NewTickingComponent(name, engine, freq, t)
	return t
}

// Tick runs exactly one Cycle per invocation; hdlc's cycle model has no
// notion of "no progress", so it always reports true.
func (t *TickingSimulator) Tick(_ akitasim.VTimeInSec) (madeProgress bool) {
	t.Inner.Cycle.Run()
	return true
}
