package sim

// Event is one scheduled unit of simulation work: a comb op reading its
// operand cells and writing its result cell, a register sampling its
// input, or a poke writing a cell directly.
type Event func()

// Cycle holds the five ordered event lists spec.md §4.I names. KeepPoke
// and the structural Comb/Reg lists persist across cycles (simbuild
// populates Comb/Reg once, callers populate KeepPoke as needed); Poke and
// Peek are one-shot and cleared once Run has used them.
type Cycle struct {
	KeepPoke map[string]Event
	Poke     []Event
	Comb     []Event
	Reg      []Event
	Peek     []Event
}

// NewCycle returns an empty Cycle ready to accept simbuild's Comb/Reg
// lists.
func NewCycle() *Cycle {
	return &Cycle{KeepPoke: make(map[string]Event)}
}

// Run executes keep_poke, then poke, then comb (in the topological order
// simbuild already sorted it into), then reg — all registers sample
// simultaneously off the values comb just produced — then peek, and
// drops the one-shot poke and peek lists.
func (c *Cycle) Run() {
	for _, e := range c.KeepPoke {
		e()
	}
	for _, e := range c.Poke {
		e()
	}
	c.Poke = nil
	for _, e := range c.Comb {
		e()
	}
	for _, e := range c.Reg {
		e()
	}
	for _, e := range c.Peek {
		e()
	}
	c.Peek = nil
}
