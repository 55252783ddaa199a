package lower_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/lower"
)

func buildModule(env *ir.Environ, name string) (moduleID ir.OpId, body ir.RegionId) {
	module := ir.NewOp(ir.HwModule)
	module.SetAttr("name", ir.StringAttr(name))
	moduleID = env.AddOp(module)
	body = env.NewRegion(moduleID, true)
	module.SetRegion("body", body)
	return moduleID, body
}

func allOps(env *ir.Environ, body ir.RegionId) []*ir.Op {
	region, _ := env.GetRegion(body)
	var out []*ir.Op
	for _, id := range region.Ops {
		op, _ := env.GetOp(id)
		out = append(out, op)
	}
	return out
}

var _ = Describe("Reorder", func() {
	It("moves inputs first and outputs last, preserving the rest", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")
		env.WithRegion(body, func() {
			out := ir.NewOp(ir.HwOutput)
			out.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}}))
			env.AddOp(out)

			wire := ir.NewOp(ir.HwWire)
			wire.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}}))
			env.AddOp(wire)

			in := ir.NewOp(ir.HwInput)
			in.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}}))
			env.AddOp(in)
		})

		Expect(lower.Reorder(env, moduleID)).To(Succeed())
		ops := allOps(env, body)
		Expect(ops).To(HaveLen(3))
		Expect(ops[0].Kind).To(Equal(ir.HwInput))
		Expect(ops[1].Kind).To(Equal(ir.HwWire))
		Expect(ops[2].Kind).To(Equal(ir.HwOutput))
	})
})

var _ = Describe("RemoveEvent", func() {
	It("replaces every use of an event with its single source signal", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")
		var consumerID ir.OpId
		var signalEnt ir.EntityId

		env.WithRegion(body, func() {
			eventEnt := env.AddEntity(ir.Entity{Typ: ir.Void{}})
			defOp := ir.NewOp(ir.EventDef)
			defOp.SetDef("result", eventEnt)
			env.AddOp(defOp)

			signalEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			sigSrc := ir.NewOp(ir.HwWire)
			sigSrc.SetDef("result", signalEnt)
			env.AddOp(sigSrc)

			signal := ir.NewOp(ir.EventSignal)
			signal.SetUse("event", eventEnt)
			signal.SetUse("signal", signalEnt)
			env.AddOp(signal)

			consumer := ir.NewOp(ir.Assign)
			consumer.SetUse("src", eventEnt)
			consumer.SetDef("dst", env.AddEntity(ir.Entity{Typ: ir.Void{}}))
			consumerID = env.AddOp(consumer)
		})

		Expect(lower.RemoveEvent(env, moduleID)).To(Succeed())
		consumer, ok := env.GetOp(consumerID)
		Expect(ok).To(BeTrue())
		Expect(consumer.Use("src")).To(Equal(signalEnt))
	})

	It("errors when an event has no source", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")
		env.WithRegion(body, func() {
			defOp := ir.NewOp(ir.EventDef)
			defOp.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.Void{}}))
			env.AddOp(defOp)
		})
		Expect(lower.RemoveEvent(env, moduleID)).To(MatchError(lower.ErrEventNoSource))
	})

	It("errors when an event has multiple sources", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")
		env.WithRegion(body, func() {
			eventEnt := env.AddEntity(ir.Entity{Typ: ir.Void{}})
			defOp := ir.NewOp(ir.EventDef)
			defOp.SetDef("result", eventEnt)
			env.AddOp(defOp)

			for i := 0; i < 2; i++ {
				sig := ir.NewOp(ir.EventSignal)
				sig.SetUse("event", eventEnt)
				sig.SetUse("signal", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}}))
				env.AddOp(sig)
			}
		})
		Expect(lower.RemoveEvent(env, moduleID)).To(MatchError(lower.ErrEventMultiSource))
	})
})

var _ = Describe("RemoveSelect", func() {
	It("lowers a multi-way select into a mux cascade", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")
		var result ir.EntityId

		env.WithRegion(body, func() {
			t := ir.UInt{Width: 4}
			c0 := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			c1 := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			v0 := env.AddEntity(ir.Entity{Typ: t})
			v1 := env.AddEntity(ir.Entity{Typ: t})
			def := env.AddEntity(ir.Entity{Typ: t})
			result = env.AddEntity(ir.Entity{Typ: t})

			sel := ir.NewOp(ir.TmpSelect)
			sel.SetUse("conds", c0, c1)
			sel.SetUse("values", v0, v1)
			sel.SetUse("default", def)
			sel.SetDef("result", result)
			env.AddOp(sel)
		})

		Expect(lower.RemoveSelect(env, moduleID)).To(Succeed())

		var foundMux bool
		for _, op := range allOps(env, body) {
			Expect(op.Kind).NotTo(Equal(ir.TmpSelect))
			if op.Kind == ir.CombMux2 && op.Def("result") == result {
				foundMux = true
			}
		}
		Expect(foundMux).To(BeTrue())
	})
})

var _ = Describe("RemoveUnary", func() {
	It("lowers Not into Xor with an all-ones constant", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")
		var result ir.EntityId

		env.WithRegion(body, func() {
			input := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 4}})
			result = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 4}})
			not := ir.NewOp(ir.CombUnary)
			not.SetAttr("op", ir.StringAttr(string(ir.UnaryNot)))
			not.SetUse("input", input)
			not.SetDef("result", result)
			env.AddOp(not)
		})

		Expect(lower.RemoveUnary(env, moduleID)).To(Succeed())

		var foundXor bool
		for _, op := range allOps(env, body) {
			Expect(op.Kind).NotTo(Equal(ir.CombUnary))
			if op.Kind == ir.CombVariadic && op.Def("result") == result {
				foundXor = true
			}
		}
		Expect(foundXor).To(BeTrue())
	})
})

var _ = Describe("RemoveMemory", func() {
	It("lowers mem read/write into register rows and mux cascades", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "m")

		env.WithRegion(body, func() {
			memType := ir.Memory{Elem: ir.UInt{Width: 8}, Depth: 2}
			memEnt := env.AddEntity(ir.Entity{Typ: memType})
			addr := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			data := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}})
			enable := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
			clock := env.AddEntity(ir.Entity{Typ: ir.Clock{}})

			write := ir.NewOp(ir.SeqMemWrite)
			write.SetUse("memory", memEnt)
			write.SetUse("address", addr)
			write.SetUse("data", data)
			write.SetUse("enable", enable)
			write.SetUse("clock", clock)
			env.AddOp(write)

			read := ir.NewOp(ir.SeqMemRead)
			read.SetUse("memory", memEnt)
			read.SetUse("address", addr)
			read.SetDef("result", env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}}))
			env.AddOp(read)
		})

		Expect(lower.RemoveMemory(env, moduleID)).To(Succeed())

		var sawCompReg bool
		for _, op := range allOps(env, body) {
			Expect(op.Kind).NotTo(Equal(ir.SeqMemRead))
			Expect(op.Kind).NotTo(Equal(ir.SeqMemWrite))
			if op.Kind == ir.SeqCompReg {
				sawCompReg = true
			}
		}
		Expect(sawCompReg).To(BeTrue())
	})
})
