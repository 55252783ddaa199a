package ir_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/ir"
)

// buildPassThrough builds: module @pt(input a: ui8) -> (output out: ui8) { out = a }
func buildPassThrough(env *ir.Environ) ir.OpId {
	module := ir.NewOp(ir.HwModule)
	module.SetAttr("name", ir.StringAttr("pt"))
	moduleID := env.AddOp(module)
	body := env.NewRegion(moduleID, true)
	module.SetRegion("body", body)
	env.MutOp(moduleID, func(op *ir.Op) { op.SetRegion("body", body) })

	env.WithRegion(body, func() {
		a := env.AddEntity(ir.Entity{Kind: ir.WireEntityKind, Name: "a", Typ: ir.UInt{Width: 8}})
		input := ir.NewOp(ir.HwInput)
		input.SetAttr("name", ir.StringAttr("a"))
		input.SetDef("result", a)
		env.AddOp(input)

		out := env.AddEntity(ir.Entity{Kind: ir.WireEntityKind, Name: "out", Typ: ir.UInt{Width: 8}})
		assign := ir.NewOp(ir.Assign)
		assign.SetUse("src", a)
		assign.SetDef("dst", out)
		env.AddOp(assign)

		outOp := ir.NewOp(ir.HwOutput)
		outOp.SetAttr("name", ir.StringAttr("out"))
		outOp.SetUse("value", out)
		outOp.SetDef("result", out)
		env.AddOp(outOp)
	})

	return moduleID
}

var _ = Describe("Environ", func() {
	It("builds and verifies a pass-through module", func() {
		env := ir.NewEnviron()
		moduleID := buildPassThrough(env)
		Expect(env.VerifyOp(moduleID)).To(Succeed())
	})

	It("finds a module by name and resolves its ports", func() {
		env := ir.NewEnviron()
		moduleID := buildPassThrough(env)
		found, ok := env.FindModule("pt")
		Expect(ok).To(BeTrue())
		Expect(found).To(Equal(moduleID))

		inputs, outputs := env.ModulePorts(moduleID)
		Expect(inputs).To(HaveLen(1))
		Expect(outputs).To(HaveLen(1))
	})

	It("rejects an assign between mismatched types", func() {
		env := ir.NewEnviron()
		a := env.AddEntity(ir.Entity{Kind: ir.WireEntityKind, Name: "a", Typ: ir.UInt{Width: 8}})
		b := env.AddEntity(ir.Entity{Kind: ir.WireEntityKind, Name: "b", Typ: ir.UInt{Width: 4}})
		assign := ir.NewOp(ir.Assign)
		assign.SetUse("src", a)
		assign.SetDef("dst", b)
		id := env.AddOp(assign)
		Expect(env.VerifyOp(id)).NotTo(Succeed())
	})

	It("scans uses and defs of an entity across the op table", func() {
		env := ir.NewEnviron()
		buildPassThrough(env)
		var a ir.EntityId
		found, _ := env.FindModule("pt")
		op, _ := env.GetOp(found)
		body, _ := env.GetRegion(op.Region("body"))
		for _, opID := range body.Ops {
			child, _ := env.GetOp(opID)
			if child.Kind == ir.HwInput {
				a = child.Def("result")
			}
		}
		Expect(a).NotTo(BeZero())
		Expect(env.GetDefs(a)).To(HaveLen(1))
		Expect(env.GetUses(a)).To(HaveLen(1))
	})

	It("hashes two structurally identical ops to the same digest", func() {
		env := ir.NewEnviron()
		a := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		b := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		op1 := ir.NewOp(ir.CombVariadic)
		op1.SetAttr("op", ir.StringAttr(string(ir.VariadicAnd)))
		op1.SetUse("operands", a, b)
		op1.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}}))
		id1 := env.AddOp(op1)

		c := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		d := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		op2 := ir.NewOp(ir.CombVariadic)
		op2.SetAttr("op", ir.StringAttr(string(ir.VariadicAnd)))
		op2.SetUse("operands", c, d)
		op2.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}}))
		id2 := env.AddOp(op2)

		Expect(env.HashOp(id1)).To(Equal(env.HashOp(id2)))
	})

	It("deletes an op and everything nested under its owned regions", func() {
		env := ir.NewEnviron()
		moduleID := buildPassThrough(env)
		op, _ := env.GetOp(moduleID)
		bodyID := op.Region("body")
		body, _ := env.GetRegion(bodyID)
		Expect(body.Ops).NotTo(BeEmpty())

		env.DeleteOpAndAll(moduleID)
		_, ok := env.GetOp(moduleID)
		Expect(ok).To(BeFalse())
		_, ok = env.GetRegion(bodyID)
		Expect(ok).To(BeFalse())
	})

	It("prints a module in the MLIR-shaped textual form", func() {
		env := ir.NewEnviron()
		moduleID := buildPassThrough(env)
		out := env.PrintOp(moduleID)
		Expect(out).To(ContainSubstring("hw.module @pt"))
		Expect(out).To(ContainSubstring("(input)"))
		Expect(out).To(ContainSubstring("(output)"))
	})
})
