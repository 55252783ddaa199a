package lower

import "github.com/sarchlab/hdlc/ir"

// Reorder partitions a module body's top-level ops into head (port
// declarations), body (combinational/sequential logic), and tail (port
// outputs), preserving relative order within each partition. This
// matches the head/body/tail split irony_cmt's passes.rs applies before
// any other lowering pass runs, so every later pass can assume ports
// come first and outputs come last.
func Reorder(env *ir.Environ, moduleID ir.OpId) error {
	body := moduleBody(env, moduleID)
	region, ok := env.GetRegion(body)
	if !ok {
		return nil
	}

	var head, mid, tail []ir.OpId
	for _, opID := range region.Ops {
		op, ok := env.GetOp(opID)
		if !ok {
			continue
		}
		switch op.Kind {
		case ir.HwInput:
			head = append(head, opID)
		case ir.HwOutput:
			tail = append(tail, opID)
		default:
			mid = append(mid, opID)
		}
	}

	ordered := append(append(head, mid...), tail...)
	env.SetRegionOps(body, ordered)
	return nil
}
