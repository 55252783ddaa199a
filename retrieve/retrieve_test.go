package retrieve_test

import (
	"context"
	"math/big"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/gir"
	"github.com/sarchlab/hdlc/ir"
	"github.com/sarchlab/hdlc/lower"
	"github.com/sarchlab/hdlc/retrieve"
	"github.com/sarchlab/hdlc/sim"
	"github.com/sarchlab/hdlc/simbuild"
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

func bits(v int64, width int) *sim.Bits {
	b := sim.NewBits(width, false)
	b.SetInt64(v)
	return b
}

var _ = Describe("Retrieve", func() {
	It("turns a bare step's commit into a select feeding a clocked register", func() {
		// Assigns with no matching AssignValues entry: the select's one
		// conditional branch and its default both read the register's own
		// wire, a self-hold that leaves it pinned at its reset value until
		// a real AssignValues entry gives it somewhere else to go (see the
		// plus-one case below).
		env := ir.NewEnviron()
		_, body := buildModule(env, "m")

		var clockEnt, goEnt, regEnt ir.EntityId
		env.WithRegion(body, func() {
			clockEnt = env.AddEntity(ir.Entity{Typ: ir.Clock{}, Name: "clk"})
			goEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}, Name: "go"})
			regEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "r"})
		})

		root := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{regEnt}}
		proc, err := gir.BuildProcess(env, root, goEnt)
		Expect(err).NotTo(HaveOccurred())

		var result *retrieve.Result
		env.WithRegion(body, func() {
			result, err = retrieve.Retrieve(env, proc, clockEnt)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Done).NotTo(Equal(ir.EntityId(0)))

		var sawReg bool
		var regInput ir.EntityId
		selects := make(map[ir.EntityId]*ir.Op)
		for _, op := range allOps(env, body) {
			switch op.Kind {
			case ir.TmpSelect:
				selects[op.Def("result")] = op
			case ir.SeqCompReg:
				if op.Def("result") == regEnt {
					sawReg = true
					regInput = op.Use("input")
					Expect(op.Use("clock")).To(Equal(clockEnt))
				}
			}
		}
		Expect(sawReg).To(BeTrue())
		// The state register's bits get selects of their own; only the one
		// feeding r is checked here.
		sel, ok := selects[regInput]
		Expect(ok).To(BeTrue())
		Expect(sel.Uses["values"]).To(Equal([]ir.EntityId{regEnt}))
		Expect(sel.Use("default")).To(Equal(regEnt))
	})
})

var _ = Describe("end to end: go-gated accumulator", func() {
	It("increments a register by one each time the process fires, gated on go", func() {
		env := ir.NewEnviron()
		moduleID, body := buildModule(env, "plus_one")

		var clockEnt, goEnt, accEnt, nextEnt ir.EntityId
		env.WithRegion(body, func() {
			clockEnt = env.AddEntity(ir.Entity{Typ: ir.Clock{}, Name: "clk"})
			clkIn := ir.NewOp(ir.HwInput)
			clkIn.SetDef("result", clockEnt)
			clkIn.SetAttr("name", ir.StringAttr("clk"))
			env.AddOp(clkIn)

			goEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}, Name: "go"})
			goIn := ir.NewOp(ir.HwInput)
			goIn.SetDef("result", goEnt)
			goIn.SetAttr("name", ir.StringAttr("go"))
			env.AddOp(goIn)

			accEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "acc"})

			oneEnt := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "one"})
			oneOp := ir.NewOp(ir.HwConstant)
			oneOp.SetDef("result", oneEnt)
			oneOp.SetAttr("value", ir.ConstAttr(ir.BitsConstant{Value: big.NewInt(1), Width: 8}))
			env.AddOp(oneOp)

			nextEnt = env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "next"})
			nextOp := ir.NewOp(ir.CombVariadic)
			nextOp.SetUse("operands", accEnt, oneEnt)
			nextOp.SetDef("result", nextEnt)
			nextOp.SetAttr("op", ir.StringAttr(string(ir.VariadicAdd)))
			env.AddOp(nextOp)

			outEnt := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}, Name: "out"})
			outOp := ir.NewOp(ir.HwOutput)
			outOp.SetUse("value", accEnt)
			outOp.SetDef("result", outEnt)
			outOp.SetAttr("name", ir.StringAttr("out"))
			env.AddOp(outOp)
		})

		root := &ir.Stmt{
			Kind:         ir.StmtStep,
			Assigns:      []ir.EntityId{accEnt},
			AssignValues: []ir.EntityId{nextEnt},
		}
		proc, err := gir.BuildProcess(env, root, goEnt)
		Expect(err).NotTo(HaveOccurred())

		var result *retrieve.Result
		env.WithRegion(body, func() {
			result, err = retrieve.Retrieve(env, proc, clockEnt)
		})
		Expect(err).NotTo(HaveOccurred())

		env.WithRegion(body, func() {
			doneEnt := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}, Name: "done"})
			doneOp := ir.NewOp(ir.HwOutput)
			doneOp.SetUse("value", result.Done)
			doneOp.SetDef("result", doneEnt)
			doneOp.SetAttr("name", ir.StringAttr("done"))
			env.AddOp(doneOp)
		})

		Expect(lower.RemoveEvent(env, moduleID)).To(Succeed())
		Expect(lower.RemoveSelect(env, moduleID)).To(Succeed())

		s, ins, outs, err := simbuild.Build(env, "plus_one")
		Expect(err).NotTo(HaveOccurred())
		Expect(ins).To(ContainElements("clk", "go"))
		Expect(outs).To(ContainElements("out", "done"))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err = s.Run(ctx, 1, func(c sim.Coro) error {
			c.KeepPoke("go", bits(1, 1))

			// idle->work->idle takes two cycles per increment; five cycles
			// covers two full increments plus the third entry, landing back
			// on an idle (done) cycle with acc already showing the second
			// commit.
			for i := 0; i < 5; i++ {
				if err := c.Step(ctx); err != nil {
					return err
				}
			}

			Expect(c.Peek("out").(*sim.Bits).Value.Int64()).To(Equal(int64(2)))
			Expect(c.Peek("done").(*sim.Bits).Value.Int64()).To(Equal(int64(1)))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})
})
