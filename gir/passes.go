package gir

// AllPasses documents the fixed pipeline order BuildProcess already runs
// in one pass (load AST -> elaborate Seq/Par/If/For/While -> materialize
// encoded FSM -> conditional writes): load_regions+load_entities+
// get_event_signal (WireTable's lazy resolution), load_ast (LoadAST),
// make_fsms (Traverse*), fsm_encoding_1/2 (assignWidths/assignOffsets,
// run inside Materialize via Encode), state_encode_expr (matchWire),
// make_state_event/make_transition_event (the GenEvent+CondAssign loop),
// generate_go_done (the goSignal AND and idle's match wire as done).
//
// merge_event_trigger, replace_reduce, and merge_select_node are left to
// retrieve: once CondAssigns are grouped by (lhs, LowBit, Width) there,
// building one TmpSelect per group both merges triggers targeting the
// same range and resolves the default (self-hold) value in the same
// step lower.RemoveSelect already knows how to flatten into a mux
// cascade, so duplicating that logic here would just be done twice.
const AllPasses = "load_ast -> make_fsms -> encode -> materialize"
