package sim

import (
	"context"
	"fmt"
)

// Simulator owns the state container, the IO name->cell map, and one
// Cycle (spec.md §4.I). Cells are addressed internally by a flat string
// key; IO paths (dotted, e.g. "content.i") are bound once by simbuild and
// resolved through the io map.
type Simulator struct {
	cells map[string]StateData
	io    map[string]string
	Cycle *Cycle
}

// NewSimulator returns an empty Simulator; simbuild.Build populates its
// cells and Cycle's Comb/Reg lists.
func NewSimulator() *Simulator {
	return &Simulator{
		cells: make(map[string]StateData),
		io:    make(map[string]string),
		Cycle: NewCycle(),
	}
}

// BindIO records a dotted external name for an internal cell key.
func (s *Simulator) BindIO(name, cellKey string) { s.io[name] = cellKey }

func (s *Simulator) resolve(path string) string {
	if key, ok := s.io[path]; ok {
		return key
	}
	return path
}

// Cell returns a cell's current value by internal key, or nil when no
// cell has been set under that key (simbuild checks for nil before
// allocating a cell).
func (s *Simulator) Cell(key string) StateData { return s.cells[key] }

// SetCell overwrites a cell's value unconditionally, bypassing the
// poke/comb/reg ordering — used by simbuild to seed constants once at
// build time.
func (s *Simulator) SetCell(key string, v StateData) { s.cells[key] = v }

// Poke schedules a one-shot write to a port, applied this cycle only.
func (s *Simulator) Poke(path string, v StateData) {
	key := s.resolve(path)
	s.Cycle.Poke = append(s.Cycle.Poke, func() { s.cells[key] = v })
}

// KeepPoke schedules a write applied every cycle until replaced or
// cleared, unless a one-shot Poke overrides it for that cycle.
func (s *Simulator) KeepPoke(path string, v StateData) {
	key := s.resolve(path)
	s.Cycle.KeepPoke[key] = func() { s.cells[key] = v }
}

// ClearKeepPoke removes a previously registered keep-poke.
func (s *Simulator) ClearKeepPoke(path string) {
	delete(s.Cycle.KeepPoke, s.resolve(path))
}

// Peek synchronously reads a port's current value.
func (s *Simulator) Peek(path string) StateData {
	return s.cells[s.resolve(path)]
}

// Run drives f as the root coroutine with the given initial participant
// count (1 by default per spec.md), running cycles via the clock barrier
// until f and every task it forked have completed.
func (s *Simulator) Run(ctx context.Context, participants int, f func(Coro) error) error {
	if participants < 1 {
		return fmt.Errorf("sim: participants must be >= 1, got %d", participants)
	}
	barrier := NewBarrier(participants, s.Cycle)
	root := &task{sim: s, barrier: barrier, fifo: newTaskFIFO(256)}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer barrier.RemoveParticipant()
		if err := f(root); err != nil {
			root.errOnce.Do(func() { root.err = err })
		}
	}()
	<-finished
	root.wg.Wait()
	return root.err
}
