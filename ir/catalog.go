package ir

import (
	"fmt"
	"strings"
)

// Op kinds. Names follow the "Hw"/"Comb"/"Seq"/"Tmp" prefixing of
// spec.md §6's printed IR (HwModule, CombVariadic, SeqCompReg, TmpSelect
// being the pre-lowering placeholder lower.RemoveSelect later retires).
const (
	HwModule   OpKind = "hw.module"
	HwInput    OpKind = "hw.input"
	HwOutput   OpKind = "hw.output"
	HwInstance OpKind = "hw.instance"
	HwWire     OpKind = "hw.wire"
	HwConstant OpKind = "hw.constant"

	Assign      OpKind = "assign"
	SvConstantX OpKind = "sv.constantx"

	CombVariadic OpKind = "comb.variadic" // Add/Mul/And/Or/Xor, op attr "op"
	CombBinary   OpKind = "comb.binary"   // DivU/S,ModU/S,Shl,ShrU/S,Sub, op attr "op"
	CombUnary    OpKind = "comb.unary"    // Not/Neg, op attr "op"; removed by lower.RemoveUnary
	CombICmp     OpKind = "comb.icmp"
	CombExtract  OpKind = "comb.extract"
	CombConcat   OpKind = "comb.concat"
	CombMux2     OpKind = "comb.mux2"
	BitCast      OpKind = "comb.bitcast"

	SeqCompReg  OpKind = "seq.compreg"
	SeqMemRead  OpKind = "seq.mem_read"
	SeqMemWrite OpKind = "seq.mem_write"

	EventDef    OpKind = "event.def"
	EventPort   OpKind = "event.port"
	EventSignal OpKind = "event.signal"

	TmpWhen   OpKind = "tmp.when"
	TmpSelect OpKind = "tmp.select"

	ArrayConcat OpKind = "array.concat"
	ArrayCreate OpKind = "array.create"
	ArrayGet    OpKind = "array.get"
	ArraySlice  OpKind = "array.slice"

	StructCreate  OpKind = "struct.create"
	StructExtract OpKind = "struct.extract"
	StructInject  OpKind = "struct.inject"
	StructExplode OpKind = "struct.explode"

	// StmtMarker wraps one process-body statement entity so Stmt.Children/
	// Then/Else/Body (RegionId-valued) have something to hold: the region
	// contains exactly this one op, whose "stmt" def names the Entity
	// carrying the nested Stmt payload. gir's construction step is the
	// only reader.
	StmtMarker OpKind = "tmp.stmt_marker"
)

// VariadicOp names CombVariadic's "op" attribute values.
type VariadicOp string

const (
	VariadicAdd VariadicOp = "add"
	VariadicMul VariadicOp = "mul"
	VariadicAnd VariadicOp = "and"
	VariadicOr  VariadicOp = "or"
	VariadicXor VariadicOp = "xor"
)

// BinaryOp names CombBinary's "op" attribute values.
type BinaryOp string

const (
	BinaryDivU BinaryOp = "divu"
	BinaryDivS BinaryOp = "divs"
	BinaryModU BinaryOp = "modu"
	BinaryModS BinaryOp = "mods"
	BinaryShl  BinaryOp = "shl"
	BinaryShrU BinaryOp = "shru"
	BinaryShrS BinaryOp = "shrs"
	BinarySub  BinaryOp = "sub"
)

// UnaryOpKind names CombUnary's "op" attribute values. Both are removed by
// lower.RemoveUnary before simbuild sees them (spec.md §4.E).
type UnaryOpKind string

const (
	UnaryNot UnaryOpKind = "not"
	UnaryNeg UnaryOpKind = "neg"
)

func attrString(op *Op, name string) string {
	if v, ok := op.Attrs[name].AsString(); ok {
		return v
	}
	return ""
}

func usesList(env *Environ, op *Op, slot string) string {
	var names []string
	for _, id := range op.Uses[slot] {
		names = append(names, env.EntityName(id))
	}
	return strings.Join(names, ", ")
}

func defName(env *Environ, op *Op, slot string) string {
	return env.EntityName(op.Def(slot))
}

func entityType(env *Environ, id EntityId) string {
	e, ok := env.GetEntity(id)
	if !ok {
		return "?"
	}
	return e.Typ.String()
}

func init() {
	Register(&OpSpec{
		Kind:        HwModule,
		Defs:        []Slot{},
		Regions:     []Slot{{Name: "body"}},
		AttrNames:   []string{"name"},
		Constraints: []Constraint{ModuleSignatureConsistent()},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("@%s {\n%s}", attrString(op, "name"), env.PrintRegion(op.Region("body"), 1))
		},
	})

	Register(&OpSpec{
		Kind:      HwInput,
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"name"},
		Printer: func(env *Environ, op *Op) string {
			id := op.Def("result")
			return fmt.Sprintf("%s : %s (input)", defName(env, op, "result"), entityType(env, id))
		},
	})

	Register(&OpSpec{
		Kind:      HwOutput,
		Uses:      []Slot{{Name: "value"}},
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"name"},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = %s (output)", defName(env, op, "result"), usesList(env, op, "value"))
		},
	})

	Register(&OpSpec{
		Kind:        HwInstance,
		Uses:        []Slot{{Name: "inputs", Variadic: true}},
		Defs:        []Slot{{Name: "outputs", Variadic: true}},
		AttrNames:   []string{"module", "name"},
		Constraints: []Constraint{InstanceSignatureMatches()},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = hw.instance %q @%s(%s)",
				usesList(env, op, "outputs"), attrString(op, "name"), attrString(op, "module"), usesList(env, op, "inputs"))
		},
	})

	Register(&OpSpec{
		Kind: HwWire,
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			id := op.Def("result")
			return fmt.Sprintf("%s : %s", defName(env, op, "result"), entityType(env, id))
		},
	})

	Register(&OpSpec{
		Kind:      HwConstant,
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"value"},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = hw.constant %s", defName(env, op, "result"), op.Attrs["value"])
		},
	})

	Register(&OpSpec{
		Kind:        Assign,
		Uses:        []Slot{{Name: "src"}},
		Defs:        []Slot{{Name: "dst"}},
		Constraints: []Constraint{SameType("src", "dst")},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = %s", defName(env, op, "dst"), usesList(env, op, "src"))
		},
	})

	Register(&OpSpec{
		Kind: SvConstantX,
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = sv.constantx : %s", defName(env, op, "result"), entityType(env, op.Def("result")))
		},
	})

	Register(&OpSpec{
		Kind:        CombVariadic,
		Uses:        []Slot{{Name: "operands", Variadic: true}},
		Defs:        []Slot{{Name: "result"}},
		AttrNames:   []string{"op"},
		Constraints: []Constraint{SameTypeOperands()},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = comb.%s %s", defName(env, op, "result"), attrString(op, "op"), usesList(env, op, "operands"))
		},
	})

	Register(&OpSpec{
		Kind:        CombBinary,
		Uses:        []Slot{{Name: "lhs"}, {Name: "rhs"}},
		Defs:        []Slot{{Name: "result"}},
		AttrNames:   []string{"op"},
		Constraints: []Constraint{SameType("lhs", "rhs")},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = comb.%s %s, %s", defName(env, op, "result"),
				attrString(op, "op"), usesList(env, op, "lhs"), usesList(env, op, "rhs"))
		},
	})

	Register(&OpSpec{
		Kind:        CombICmp,
		Uses:        []Slot{{Name: "lhs"}, {Name: "rhs"}},
		Defs:        []Slot{{Name: "result"}},
		AttrNames:   []string{"predicate"},
		Constraints: []Constraint{SameType("lhs", "rhs")},
		Printer: func(env *Environ, op *Op) string {
			pred, _ := op.Attrs["predicate"].AsPredicate()
			return fmt.Sprintf("%s = comb.icmp %s %s, %s", defName(env, op, "result"),
				pred, usesList(env, op, "lhs"), usesList(env, op, "rhs"))
		},
	})

	Register(&OpSpec{
		Kind:      CombExtract,
		Uses:      []Slot{{Name: "input"}},
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"low_bit"},
		Printer: func(env *Environ, op *Op) string {
			low, _ := op.Attrs["low_bit"].AsInt()
			return fmt.Sprintf("%s = comb.extract %s from %d : %s", defName(env, op, "result"),
				usesList(env, op, "input"), low, entityType(env, op.Def("result")))
		},
	})

	Register(&OpSpec{
		Kind: CombConcat,
		Uses: []Slot{{Name: "operands", Variadic: true}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = comb.concat %s", defName(env, op, "result"), usesList(env, op, "operands"))
		},
	})

	Register(&OpSpec{
		Kind:        CombMux2,
		Uses:        []Slot{{Name: "cond"}, {Name: "true_value"}, {Name: "false_value"}},
		Defs:        []Slot{{Name: "result"}},
		Constraints: []Constraint{SameType("true_value", "false_value", "result")},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = comb.mux2 %s, %s, %s", defName(env, op, "result"),
				usesList(env, op, "cond"), usesList(env, op, "true_value"), usesList(env, op, "false_value"))
		},
	})

	Register(&OpSpec{
		Kind:      CombUnary,
		Uses:      []Slot{{Name: "input"}},
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"op"},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = comb.%s %s", defName(env, op, "result"),
				attrString(op, "op"), usesList(env, op, "input"))
		},
	})

	Register(&OpSpec{
		Kind: BitCast,
		Uses: []Slot{{Name: "input"}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = comb.bitcast %s : %s", defName(env, op, "result"),
				usesList(env, op, "input"), entityType(env, op.Def("result")))
		},
	})

	Register(&OpSpec{
		Kind: SeqCompReg,
		Uses: []Slot{{Name: "input"}, {Name: "clock"}, {Name: "reset"}, {Name: "reset_value"}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = seq.compreg %s, clock %s", defName(env, op, "result"),
				usesList(env, op, "input"), usesList(env, op, "clock"))
		},
	})

	Register(&OpSpec{
		Kind: SeqMemRead,
		Uses: []Slot{{Name: "memory"}, {Name: "address"}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = seq.mem_read %s[%s]", defName(env, op, "result"),
				usesList(env, op, "memory"), usesList(env, op, "address"))
		},
	})

	Register(&OpSpec{
		Kind: SeqMemWrite,
		Uses: []Slot{{Name: "memory"}, {Name: "address"}, {Name: "data"}, {Name: "enable"}, {Name: "clock"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("seq.mem_write %s[%s], %s if %s", usesList(env, op, "memory"),
				usesList(env, op, "address"), usesList(env, op, "data"), usesList(env, op, "enable"))
		},
	})

	Register(&OpSpec{
		Kind: EventDef,
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = event.def", defName(env, op, "result"))
		},
	})

	Register(&OpSpec{
		Kind: EventPort,
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = event.port", defName(env, op, "result"))
		},
	})

	Register(&OpSpec{
		Kind: EventSignal,
		Uses: []Slot{{Name: "event"}, {Name: "signal"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("event.signal %s, %s", usesList(env, op, "event"), usesList(env, op, "signal"))
		},
	})

	Register(&OpSpec{
		Kind: TmpWhen,
		Uses: []Slot{{Name: "cond"}},
		Regions: []Slot{{Name: "body"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("tmp.when %s {\n%s}", usesList(env, op, "cond"), env.PrintRegion(op.Region("body"), 1))
		},
	})

	Register(&OpSpec{
		Kind: TmpSelect,
		Uses: []Slot{{Name: "conds", Variadic: true}, {Name: "values", Variadic: true}, {Name: "default"}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = tmp.select [%s] [%s] default %s", defName(env, op, "result"),
				usesList(env, op, "conds"), usesList(env, op, "values"), usesList(env, op, "default"))
		},
	})

	Register(&OpSpec{
		Kind: ArrayConcat,
		Uses: []Slot{{Name: "operands", Variadic: true}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = array.concat %s", defName(env, op, "result"), usesList(env, op, "operands"))
		},
	})

	Register(&OpSpec{
		Kind: ArrayCreate,
		Uses: []Slot{{Name: "elements", Variadic: true}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = array.create %s", defName(env, op, "result"), usesList(env, op, "elements"))
		},
	})

	Register(&OpSpec{
		Kind: ArrayGet,
		Uses: []Slot{{Name: "array"}, {Name: "index"}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = array.get %s[%s]", defName(env, op, "result"),
				usesList(env, op, "array"), usesList(env, op, "index"))
		},
	})

	Register(&OpSpec{
		Kind:      ArraySlice,
		Uses:      []Slot{{Name: "array"}},
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"low_index"},
		Printer: func(env *Environ, op *Op) string {
			low, _ := op.Attrs["low_index"].AsInt()
			return fmt.Sprintf("%s = array.slice %s from %d", defName(env, op, "result"), usesList(env, op, "array"), low)
		},
	})

	Register(&OpSpec{
		Kind: StructCreate,
		Uses: []Slot{{Name: "fields", Variadic: true}},
		Defs: []Slot{{Name: "result"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = struct.create %s", defName(env, op, "result"), usesList(env, op, "fields"))
		},
	})

	Register(&OpSpec{
		Kind:      StructExtract,
		Uses:      []Slot{{Name: "input"}},
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"field"},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = struct.extract %s[%q]", defName(env, op, "result"),
				usesList(env, op, "input"), attrString(op, "field"))
		},
	})

	Register(&OpSpec{
		Kind:      StructInject,
		Uses:      []Slot{{Name: "input"}, {Name: "value"}},
		Defs:      []Slot{{Name: "result"}},
		AttrNames: []string{"field"},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = struct.inject %s[%q], %s", defName(env, op, "result"),
				usesList(env, op, "input"), attrString(op, "field"), usesList(env, op, "value"))
		},
	})

	Register(&OpSpec{
		Kind: StructExplode,
		Uses: []Slot{{Name: "input"}},
		Defs: []Slot{{Name: "results", Variadic: true}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("%s = struct.explode %s", usesList(env, op, "results"), usesList(env, op, "input"))
		},
	})

	Register(&OpSpec{
		Kind: StmtMarker,
		Defs: []Slot{{Name: "stmt"}},
		Printer: func(env *Environ, op *Op) string {
			return fmt.Sprintf("tmp.stmt_marker %s", defName(env, op, "stmt"))
		},
	})
}
