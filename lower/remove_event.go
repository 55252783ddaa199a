package lower

import "github.com/sarchlab/hdlc/ir"

// RemoveEvent replaces every EventDef in moduleID's body with the single
// wire that drives it: exactly one EventSignal must target the event
// (spec.md §9's resolved open question), its signal operand becomes the
// direct replacement for every other use of the event entity, and both
// the EventSignal and EventDef ops are deleted.
func RemoveEvent(env *ir.Environ, moduleID ir.OpId) error {
	body := moduleBody(env, moduleID)

	type source struct {
		opID   ir.OpId
		signal ir.EntityId
	}
	sources := make(map[ir.EntityId][]source)
	var eventDefs []ir.OpId

	walkOps(env, body, func(opID ir.OpId, op *ir.Op) {
		switch op.Kind {
		case ir.EventDef:
			eventDefs = append(eventDefs, opID)
		case ir.EventSignal:
			eventID := op.Use("event")
			signalID := op.Use("signal")
			sources[eventID] = append(sources[eventID], source{opID: opID, signal: signalID})
		}
	})

	for _, defID := range eventDefs {
		def, ok := env.GetOp(defID)
		if !ok {
			continue
		}
		eventID := def.Def("result")
		srcs := sources[eventID]
		if len(srcs) == 0 {
			return ErrEventNoSource
		}
		if len(srcs) > 1 {
			return ErrEventMultiSource
		}
		signalID := srcs[0].signal

		walkOps(env, body, func(opID ir.OpId, op *ir.Op) {
			if opID == srcs[0].opID || opID == defID {
				return
			}
			// Uses maps are reference types shared with the arena's
			// stored copy, so mutating through this pointer is visible
			// without a separate MutOp round-trip.
			op.ReplaceUse(eventID, signalID)
		})

		env.DeleteOp(srcs[0].opID)
		env.DeleteOp(defID)
	}
	return nil
}
