// Package circuits holds named, ready-to-simulate modules used by
// cmd/hdlc and by the simbuild/sim integration suites: small Core-IR
// bodies built directly (no upstream parser, matching the teacher's
// core/program_test.go pattern of hand-building structured state instead
// of parsing source text) and, where a module needs a clocked process,
// elaborated through gir/retrieve/lower the same way retrieve's own
// tests do.
package circuits

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/sarchlab/hdlc/gir"
	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/lower"
	"github.com/sarchlab/hdlc/retrieve"
)

// Circuit is a fully built, lowered module ready for simbuild.Build.
type Circuit struct {
	Name   string
	Module string
	Env    *ir.Environ
}

type builderFunc func() (*Circuit, error)

var registry = map[string]builderFunc{
	"pass-through": PassThrough,
	"plus-one":     PlusOne,
	"concat":       Concat,
	"extract":      Extract,
	"go-done-sum":  GoDoneSum,
	"for-if-sum":   ForIfSum,
}

// Names returns every registered circuit name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build looks up and constructs a circuit by name.
func Build(name string) (*Circuit, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("circuits: unknown circuit %q (have %v)", name, Names())
	}
	return f()
}

func newModule(name string) (*ir.Environ, ir.OpId, ir.RegionId) {
	env := ir.NewEnviron()
	module := ir.NewOp(ir.HwModule)
	module.SetAttr("name", ir.StringAttr(name))
	id := env.AddOp(module)
	body := env.NewRegion(id, true)
	module.SetRegion("body", body)
	return env, id, body
}

func input(env *ir.Environ, name string, typ ir.DataType) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: typ, Name: name})
	op := ir.NewOp(ir.HwInput)
	op.SetDef("result", ent)
	op.SetAttr("name", ir.StringAttr(name))
	env.AddOp(op)
	return ent
}

func output(env *ir.Environ, name string, typ ir.DataType, value ir.EntityId) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: typ, Name: name})
	op := ir.NewOp(ir.HwOutput)
	op.SetUse("value", value)
	op.SetDef("result", ent)
	op.SetAttr("name", ir.StringAttr(name))
	env.AddOp(op)
	return ent
}

func constant(env *ir.Environ, name string, width int, v int64) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: width}, Name: name})
	op := ir.NewOp(ir.HwConstant)
	op.SetDef("result", ent)
	op.SetAttr("value", ir.ConstAttr(ir.BitsConstant{Value: big.NewInt(v), Width: width}))
	env.AddOp(op)
	return ent
}

func variadic(env *ir.Environ, name string, width int, op ir.VariadicOp, operands ...ir.EntityId) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: width}, Name: name})
	o := ir.NewOp(ir.CombVariadic)
	o.SetUse("operands", operands...)
	o.SetDef("result", ent)
	o.SetAttr("op", ir.StringAttr(string(op)))
	env.AddOp(o)
	return ent
}

func binary(env *ir.Environ, name string, width int, bop ir.BinaryOp, lhs, rhs ir.EntityId) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: width}, Name: name})
	o := ir.NewOp(ir.CombBinary)
	o.SetUse("lhs", lhs)
	o.SetUse("rhs", rhs)
	o.SetDef("result", ent)
	o.SetAttr("op", ir.StringAttr(string(bop)))
	env.AddOp(o)
	return ent
}

func extract(env *ir.Environ, name string, width, low int, in ir.EntityId) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: width}, Name: name})
	o := ir.NewOp(ir.CombExtract)
	o.SetUse("input", in)
	o.SetDef("result", ent)
	o.SetAttr("low_bit", ir.IntAttr(int64(low)))
	env.AddOp(o)
	return ent
}

func concat(env *ir.Environ, name string, width int, operands ...ir.EntityId) ir.EntityId {
	ent := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: width}, Name: name})
	o := ir.NewOp(ir.CombConcat)
	o.SetUse("operands", operands...)
	o.SetDef("result", ent)
	env.AddOp(o)
	return ent
}

// PassThrough: o <- i, an 8-bit wire run straight through with no state.
func PassThrough() (*Circuit, error) {
	env, _, body := newModule("pass_through")
	env.WithRegion(body, func() {
		i := input(env, "i", ir.UInt{Width: 8})
		output(env, "o", ir.UInt{Width: 8}, i)
	})
	return &Circuit{Name: "pass-through", Module: "pass_through", Env: env}, nil
}

// PlusOne: o <- i + 1, purely combinational.
func PlusOne() (*Circuit, error) {
	env, _, body := newModule("plus_one_comb")
	env.WithRegion(body, func() {
		i := input(env, "i", ir.UInt{Width: 8})
		one := constant(env, "one", 8, 1)
		sum := variadic(env, "sum", 8, ir.VariadicAdd, i, one)
		output(env, "o", ir.UInt{Width: 8}, sum)
	})
	return &Circuit{Name: "plus-one", Module: "plus_one_comb", Env: env}, nil
}

// Concat: o <- concat(i0, i1, i2), i0 most significant.
func Concat() (*Circuit, error) {
	env, _, body := newModule("concat")
	env.WithRegion(body, func() {
		i0 := input(env, "i0", ir.UInt{Width: 2})
		i1 := input(env, "i1", ir.UInt{Width: 3})
		i2 := input(env, "i2", ir.UInt{Width: 4})
		o := concat(env, "catted", 9, i0, i1, i2)
		output(env, "o", ir.UInt{Width: 9}, o)
	})
	return &Circuit{Name: "concat", Module: "concat", Env: env}, nil
}

// Extract: o <- i[1:0], the low two bits of an 8-bit input.
func Extract() (*Circuit, error) {
	env, _, body := newModule("extract")
	env.WithRegion(body, func() {
		i := input(env, "i", ir.UInt{Width: 8})
		o := extract(env, "low", 2, 0, i)
		output(env, "o", ir.UInt{Width: 2}, o)
	})
	return &Circuit{Name: "extract", Module: "extract", Env: env}, nil
}

// wrapStmt wraps a nested Stmt in the floating marker region gir's
// elaborator expects to find it in (Stmt.Then/Else/Body hold a RegionId
// whose sole op names the real statement payload).
func wrapStmt(env *ir.Environ, stmt *ir.Stmt) ir.RegionId {
	ent := env.AddEntity(ir.Entity{Kind: ir.StmtEntityKind, Stmt: stmt})
	region := env.NewRegion(0, false)
	env.WithRegion(region, func() {
		marker := ir.NewOp(ir.StmtMarker)
		marker.SetDef("stmt", ent)
		env.AddOp(marker)
	})
	return region
}

// lowerAndClock runs a built process's writes through RemoveEvent and
// RemoveSelect, leaving a module simbuild.Build can consume straight
// away (no memories or unary ops appear in these circuits, so
// RemoveMemory/RemoveUnary have nothing to do).
func lowerAndClock(env *ir.Environ, moduleID ir.OpId) error {
	if err := lower.RemoveEvent(env, moduleID); err != nil {
		return err
	}
	return lower.RemoveSelect(env, moduleID)
}

// GoDoneSum: sum <- sum + i, three cycles after go, asserting done on
// the fourth. A StmtFor with a fixed trip count of three models the "k
// cycles after go" shape directly, the same way gir's own BuildProcess
// test verifies a for-loop increments by step rather than by repeated
// comparison.
func GoDoneSum() (*Circuit, error) {
	env, moduleID, body := newModule("go_done_sum")

	var clockEnt, goEnt, sumEnt, iEnt, nextEnt, indVar, start, step, end ir.EntityId
	var bodyRegion ir.RegionId
	env.WithRegion(body, func() {
		clockEnt = input(env, "clk", ir.Clock{})
		goEnt = input(env, "go", ir.UInt{Width: 1})
		iEnt = input(env, "i", ir.UInt{Width: 8})
		sumEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "sum"})

		nextEnt = variadic(env, "next_sum", 8, ir.VariadicAdd, sumEnt, iEnt)
		innerStmt := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{sumEnt}, AssignValues: []ir.EntityId{nextEnt}}
		bodyRegion = wrapStmt(env, innerStmt)

		indVar = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "k"})
		start = constant(env, "k_start", 8, 0)
		step = constant(env, "k_step", 8, 1)
		end = constant(env, "k_end", 8, 3)
	})

	root := &ir.Stmt{
		Kind: ir.StmtFor, IndVar: indVar, Start: start, Step: step, End: end,
		Body: bodyRegion,
	}

	proc, err := gir.BuildProcess(env, root, goEnt)
	if err != nil {
		return nil, err
	}

	var res *retrieve.Result
	env.WithRegion(body, func() {
		res, err = retrieve.Retrieve(env, proc, clockEnt)
	})
	if err != nil {
		return nil, err
	}

	env.WithRegion(body, func() {
		output(env, "out", ir.UInt{Width: 8}, sumEnt)
		output(env, "done", ir.UInt{Width: 1}, res.Done)
	})

	if err := lowerAndClock(env, moduleID); err != nil {
		return nil, err
	}
	return &Circuit{Name: "go-done-sum", Module: "go_done_sum", Env: env}, nil
}

// ForIfSum: for k in 0..N, sum <- sum + i when i's low bit is set,
// else sum <- sum + (i >> 1). With i's low bit always 1 every iteration
// takes the then branch, matching the teacher's IfElse traversal test's
// two-branch shape rather than inventing a third.
func ForIfSum() (*Circuit, error) {
	env, moduleID, body := newModule("for_if_sum")

	var clockEnt, goEnt, sumEnt, iEnt, indVar, start, step, end ir.EntityId
	var loopBodyRegion ir.RegionId
	env.WithRegion(body, func() {
		clockEnt = input(env, "clk", ir.Clock{})
		goEnt = input(env, "go", ir.UInt{Width: 1})
		iEnt = input(env, "i", ir.UInt{Width: 8})
		sumEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "sum"})

		cond := extract(env, "low_bit", 1, 0, iEnt)

		sumPlusI := variadic(env, "sum_plus_i", 8, ir.VariadicAdd, sumEnt, iEnt)
		thenStmt := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{sumEnt}, AssignValues: []ir.EntityId{sumPlusI}}
		thenRegion := wrapStmt(env, thenStmt)

		one := constant(env, "one_bit", 8, 1)
		iHalved := binary(env, "i_halved", 8, ir.BinaryShrU, iEnt, one)
		sumPlusHalf := variadic(env, "sum_plus_half", 8, ir.VariadicAdd, sumEnt, iHalved)
		elseStmt := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{sumEnt}, AssignValues: []ir.EntityId{sumPlusHalf}}
		elseRegion := wrapStmt(env, elseStmt)

		ifElseStmt := &ir.Stmt{Kind: ir.StmtIfElse, Cond: cond, Then: thenRegion, Else: elseRegion}
		loopBodyRegion = wrapStmt(env, ifElseStmt)

		indVar = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "k"})
		start = constant(env, "k_start", 8, 0)
		step = constant(env, "k_step", 8, 1)
		end = constant(env, "k_end", 8, 4)
	})

	root := &ir.Stmt{
		Kind: ir.StmtFor, IndVar: indVar, Start: start, Step: step, End: end,
		Body: loopBodyRegion,
	}

	proc, err := gir.BuildProcess(env, root, goEnt)
	if err != nil {
		return nil, err
	}

	var res *retrieve.Result
	env.WithRegion(body, func() {
		res, err = retrieve.Retrieve(env, proc, clockEnt)
	})
	if err != nil {
		return nil, err
	}

	env.WithRegion(body, func() {
		output(env, "out", ir.UInt{Width: 8}, sumEnt)
		output(env, "done", ir.UInt{Width: 1}, res.Done)
	})

	if err := lowerAndClock(env, moduleID); err != nil {
		return nil, err
	}
	return &Circuit{Name: "for-if-sum", Module: "for_if_sum", Env: env}, nil
}
