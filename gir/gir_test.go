package gir_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/gir"
	"github.com/sarchlab/hdlc/graph"
	"github.com/sarchlab/hdlc/ir"
)

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

func newEventEnv() (*ir.Environ, ir.EntityId) {
	env := ir.NewEnviron()
	goEvent := env.AddEntity(ir.Entity{Kind: ir.EventEntityKind, Typ: ir.Void{}})
	return env, goEvent
}

var _ = Describe("BuildProcess", func() {
	It("elaborates a single Step into a two-state FSM", func() {
		env, goEvent := newEventEnv()
		wait := env.AddEntity(ir.Entity{Kind: ir.EventEntityKind, Typ: ir.Void{}})
		assign := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})

		root := &ir.Stmt{Kind: ir.StmtStep, Waits: []ir.EntityId{wait}, Assigns: []ir.EntityId{assign}}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(proc.Graph.Len()).To(BeNumerically(">", 0))

		node, ok := proc.Graph.GetNode(proc.StateReg)
		Expect(ok).To(BeTrue())
		Expect(node.Kind).To(Equal(gir.KindStateReg))
		Expect(node.Width).To(BeNumerically(">", 0))

		Expect(proc.Done.IsEmpty()).To(BeFalse())
		Expect(proc.Writes).NotTo(BeEmpty())
	})

	It("chains two Steps in sequence", func() {
		env, goEvent := newEventEnv()
		wait1 := env.AddEntity(ir.Entity{Kind: ir.EventEntityKind, Typ: ir.Void{}})
		wait2 := env.AddEntity(ir.Entity{Kind: ir.EventEntityKind, Typ: ir.Void{}})

		step1 := &ir.Stmt{Kind: ir.StmtStep, Waits: []ir.EntityId{wait1}}
		step2 := &ir.Stmt{Kind: ir.StmtStep, Waits: []ir.EntityId{wait2}}
		root := &ir.Stmt{Kind: ir.StmtSeq, Children: []ir.RegionId{wrapStmt(env, step1), wrapStmt(env, step2)}}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(proc.Writes).NotTo(BeEmpty())
	})

	It("gates a conditional branch on its condition wire", func() {
		env, goEvent := newEventEnv()
		cond := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		assign := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		then := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{assign}}
		root := &ir.Stmt{Kind: ir.StmtIf, Cond: cond, Then: wrapStmt(env, then)}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(proc.Graph.Len()).To(BeNumerically(">", 0))
	})

	It("elaborates an IfElse with both branches reachable", func() {
		env, goEvent := newEventEnv()
		cond := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		a := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		bEnt := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		then := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{a}}
		els := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{bEnt}}
		root := &ir.Stmt{Kind: ir.StmtIfElse, Cond: cond, Then: wrapStmt(env, then), Else: wrapStmt(env, els)}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(proc.Writes)).To(BeNumerically(">=", 2))
	})

	It("increments by step, not by comparing to end directly", func() {
		env, goEvent := newEventEnv()
		indVar := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}})
		start := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}})
		step := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}})
		end := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}})
		assign := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 8}})

		body := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{assign}}
		root := &ir.Stmt{
			Kind: ir.StmtFor, IndVar: indVar, Start: start, Step: step, End: end,
			Body: wrapStmt(env, body),
		}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())

		var sawAdd bool
		proc.Graph.IterNodes(func(_ graph.NodeIndex, n *gir.Node) bool {
			if n.Kind == gir.KindBinaryOp && n.Op == "add" {
				sawAdd = true
			}
			return true
		})
		Expect(sawAdd).To(BeTrue())
	})

	It("elaborates a While loop gated on its condition", func() {
		env, goEvent := newEventEnv()
		cond := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		assign := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		body := &ir.Stmt{Kind: ir.StmtStep, Assigns: []ir.EntityId{assign}}
		root := &ir.Stmt{Kind: ir.StmtWhile, Cond: cond, Body: wrapStmt(env, body)}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(proc.Writes).NotTo(BeEmpty())
	})

	It("joins two concurrent Par branches into one simultaneous exit", func() {
		env, goEvent := newEventEnv()
		wait1 := env.AddEntity(ir.Entity{Kind: ir.EventEntityKind, Typ: ir.Void{}})
		wait2 := env.AddEntity(ir.Entity{Kind: ir.EventEntityKind, Typ: ir.Void{}})
		a := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})
		bEnt := env.AddEntity(ir.Entity{Typ: ir.UInt{Width: 1}})

		branch1 := &ir.Stmt{Kind: ir.StmtStep, Waits: []ir.EntityId{wait1}, Assigns: []ir.EntityId{a}}
		branch2 := &ir.Stmt{Kind: ir.StmtStep, Waits: []ir.EntityId{wait2}, Assigns: []ir.EntityId{bEnt}}
		root := &ir.Stmt{Kind: ir.StmtPar, Children: []ir.RegionId{wrapStmt(env, branch1), wrapStmt(env, branch2)}}

		proc, err := gir.BuildProcess(env, root, goEvent)
		Expect(err).NotTo(HaveOccurred())

		node, ok := proc.Graph.GetNode(proc.StateReg)
		Expect(ok).To(BeTrue())
		Expect(node.Width).To(BeNumerically(">=", 2))
	})
})
