package lower

import "github.com/sarchlab/hdlc/ir"

// RemoveSelect lowers every TmpSelect in moduleID's body into a cascade
// of CombMux2 ops, last-condition-first, bottoming out at the default
// value — the same mux-cascade shape merge_select_node builds in the
// original elaborator, materialized here as primitive Core IR instead of
// GIR nodes. A select with no conditions becomes a direct Assign from
// its default.
func RemoveSelect(env *ir.Environ, moduleID ir.OpId) error {
	body := moduleBody(env, moduleID)

	var selects []ir.OpId
	walkOps(env, body, func(opID ir.OpId, op *ir.Op) {
		if op.Kind == ir.TmpSelect {
			selects = append(selects, opID)
		}
	})

	for _, selID := range selects {
		sel, ok := env.GetOp(selID)
		if !ok {
			continue
		}
		conds := sel.Uses["conds"]
		values := sel.Uses["values"]
		def := sel.Use("default")
		if def.IsNone() {
			return ErrSelectNoDefault
		}
		result := sel.Def("result")
		resultType, _ := env.GetEntity(result)

		cur := def
		for i := len(conds) - 1; i >= 0; i-- {
			var target ir.EntityId
			if i == 0 {
				target = result
			} else {
				target = env.AddEntity(ir.Entity{Typ: resultType.Typ})
			}
			mux := ir.NewOp(ir.CombMux2)
			mux.SetUse("cond", conds[i])
			mux.SetUse("true_value", values[i])
			mux.SetUse("false_value", cur)
			mux.SetDef("result", target)
			env.AddOp(mux)
			cur = target
		}
		if len(conds) == 0 {
			assign := ir.NewOp(ir.Assign)
			assign.SetUse("src", def)
			assign.SetDef("dst", result)
			env.AddOp(assign)
		}
		env.DeleteOp(selID)
	}
	return nil
}
