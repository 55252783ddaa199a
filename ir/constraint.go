package ir

import "fmt"

// SameType requires every entity named by slots to share one DataType.
func SameType(slots ...string) Constraint {
	return func(env *Environ, op *Op) error {
		var want DataType
		check := func(id EntityId) error {
			if id.IsNone() {
				return nil
			}
			e, ok := env.GetEntity(id)
			if !ok {
				return fmt.Errorf("unknown entity %d", id)
			}
			if want == nil {
				want = e.Typ
				return nil
			}
			if e.Typ.String() != want.String() {
				return fmt.Errorf("type mismatch: %s vs %s", e.Typ, want)
			}
			return nil
		}
		for _, slot := range slots {
			for _, id := range op.Uses[slot] {
				if err := check(id); err != nil {
					return err
				}
			}
			for _, id := range op.Defs[slot] {
				if err := check(id); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// SameTypeOperands requires every use-slot operand to share one type,
// independent of the result's type (for ops like CombICmp whose result
// is always a 1-bit UInt while operands share a wider type).
func SameTypeOperands() Constraint {
	return func(env *Environ, op *Op) error {
		var want DataType
		for _, ids := range op.Uses {
			for _, id := range ids {
				e, ok := env.GetEntity(id)
				if !ok {
					return fmt.Errorf("unknown entity %d", id)
				}
				if want == nil {
					want = e.Typ
					continue
				}
				if e.Typ.String() != want.String() {
					return fmt.Errorf("operand type mismatch: %s vs %s", e.Typ, want)
				}
			}
		}
		return nil
	}
}

// ModuleSignatureConsistent requires a HwModule's input/output port
// wires to each carry a non-Void data type.
func ModuleSignatureConsistent() Constraint {
	return func(env *Environ, op *Op) error {
		body := op.Region("body")
		if body.IsNone() {
			return fmt.Errorf("module %s has no body region", op.Attrs["name"])
		}
		region, ok := env.GetRegion(body)
		if !ok {
			return fmt.Errorf("module body region %d missing", body)
		}
		for _, childID := range region.Ops {
			child, ok := env.GetOp(childID)
			if !ok {
				continue
			}
			if child.Kind != HwInput && child.Kind != HwOutput {
				continue
			}
			for _, id := range child.Defs["result"] {
				e, _ := env.GetEntity(id)
				if _, isVoid := e.Typ.(Void); isVoid {
					return fmt.Errorf("port %s has void type", e.Name)
				}
			}
		}
		return nil
	}
}

// InstanceSignatureMatches requires a HwInstance's input/output operand
// counts and types to match the callee module's declared ports.
func InstanceSignatureMatches() Constraint {
	return func(env *Environ, op *Op) error {
		moduleName, ok := op.Attrs["module"].AsString()
		if !ok {
			return fmt.Errorf("instance missing module attribute")
		}
		callee, ok := env.FindModule(moduleName)
		if !ok {
			return fmt.Errorf("instance refers to unknown module %q", moduleName)
		}
		calleeInputs, calleeOutputs := env.ModulePorts(callee)
		inputs := op.Uses["inputs"]
		outputs := op.Defs["outputs"]
		if len(inputs) != len(calleeInputs) {
			return fmt.Errorf("instance of %q passes %d inputs, module declares %d",
				moduleName, len(inputs), len(calleeInputs))
		}
		if len(outputs) != len(calleeOutputs) {
			return fmt.Errorf("instance of %q binds %d outputs, module declares %d",
				moduleName, len(outputs), len(calleeOutputs))
		}
		for i, id := range inputs {
			e, _ := env.GetEntity(id)
			pe, _ := env.GetEntity(calleeInputs[i])
			if e.Typ.String() != pe.Typ.String() {
				return fmt.Errorf("instance input %d type %s does not match port type %s",
					i, e.Typ, pe.Typ)
			}
		}
		for i, id := range outputs {
			e, _ := env.GetEntity(id)
			pe, _ := env.GetEntity(calleeOutputs[i])
			if e.Typ.String() != pe.Typ.String() {
				return fmt.Errorf("instance output %d type %s does not match port type %s",
					i, e.Typ, pe.Typ)
			}
		}
		return nil
	}
}
