// Package pass implements the fixed, non-speculative pass-scheduling
// framework the lowering and elaboration pipelines run on top of.
package pass

import "github.com/sarchlab/hdlc/ir"

// Pass is one named rewrite: Predicate gates whether Run applies to a
// given op, and Run performs the rewrite. Grounded on irony/irony/src/
// pass.rs's Pass trait.
type Pass struct {
	Name      string
	Predicate func(env *ir.Environ, id ir.OpId) bool
	Run       func(env *ir.Environ, id ir.OpId) error
}

// Scheduled pairs a Pass with the op ids it should start from.
type Scheduled struct {
	P      Pass
	Starts []ir.OpId
}

// Manager runs a fixed, ordered list of scheduled passes. There is no
// speculative transaction layer here: a Run error aborts RunPasses
// immediately, matching spec.md §4.D.
type Manager struct {
	Scheduled []Scheduled
}

// RunOn applies s.P to id if its predicate passes; otherwise it is a
// no-op.
func RunOn(env *ir.Environ, s Scheduled, id ir.OpId) error {
	if s.P.Predicate != nil && !s.P.Predicate(env, id) {
		return nil
	}
	return s.P.Run(env, id)
}

// RunPasses runs every scheduled pass, over every one of its start ids,
// in registration order.
func (m *Manager) RunPasses(env *ir.Environ) error {
	for _, s := range m.Scheduled {
		for _, id := range s.Starts {
			if err := RunOn(env, s, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Add appends a scheduled pass to the manager.
func (m *Manager) Add(p Pass, starts ...ir.OpId) {
	m.Scheduled = append(m.Scheduled, Scheduled{P: p, Starts: starts})
}
