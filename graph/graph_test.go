package graph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/graph"
)

type slot int

const slotRef slot = 0

type testNode struct {
	Name string
	Ref  graph.NodeIndex
}

func (n *testNode) IterSource() []graph.BackLink[slot] {
	if n.Ref.IsEmpty() {
		return nil
	}
	return []graph.BackLink[slot]{{Holder: n.Ref, Slot: slotRef}}
}

func (n *testNode) ModifySource(s slot, old, new graph.NodeIndex) {
	if s == slotRef && n.Ref == old {
		n.Ref = new
	}
}

var _ = Describe("Graph", func() {
	var (
		ctx *graph.Context
		g   *graph.Graph[*testNode, slot]
	)

	BeforeEach(func() {
		ctx = graph.NewContext()
		g = graph.New[*testNode, slot](ctx)
	})

	commit := func(f func(t *graph.Transaction[*testNode, slot])) error {
		t := graph.NewTransaction[*testNode, slot](ctx)
		f(t)
		return g.Commit(t)
	}

	It("adds nodes via a transaction", func() {
		var id graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			id = t.NewNode(&testNode{Name: "a"})
		})).To(Succeed())
		n, ok := g.GetNode(id)
		Expect(ok).To(BeTrue())
		Expect(n.Name).To(Equal("a"))
	})

	It("rewrites referencing slots when a whole node is redirected", func() {
		var target, holder, replacement graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			target = t.NewNode(&testNode{Name: "target"})
			holder = t.NewNode(&testNode{Name: "holder", Ref: target})
		})).To(Succeed())

		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			replacement = t.NewNode(&testNode{Name: "replacement"})
			t.RedirectAllNode(target, replacement)
		})).To(Succeed())

		h, _ := g.GetNode(holder)
		Expect(h.Ref).To(Equal(replacement))
	})

	It("rejects a redirection batch that loops back on itself", func() {
		var a, b graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			a = t.NewNode(&testNode{Name: "a"})
			b = t.NewNode(&testNode{Name: "b"})
		})).To(Succeed())

		err := commit(func(t *graph.Transaction[*testNode, slot]) {
			t.RedirectAllNode(a, b)
			t.RedirectAllNode(b, a)
		})
		Expect(err).To(MatchError(graph.ErrLoopRedirection))
	})

	It("zeroes referencing slots when the referenced node is removed", func() {
		var target, holder graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			target = t.NewNode(&testNode{Name: "target"})
			holder = t.NewNode(&testNode{Name: "holder", Ref: target})
		})).To(Succeed())

		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			t.RemoveNode(target)
		})).To(Succeed())

		h, _ := g.GetNode(holder)
		Expect(h.Ref).To(Equal(graph.Empty))
		_, ok := g.GetNode(target)
		Expect(ok).To(BeFalse())
	})

	It("mutates a node in place via MutNode", func() {
		var id graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			id = t.NewNode(&testNode{Name: "before"})
		})).To(Succeed())

		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			t.MutNode(id, func(n *testNode) { n.Name = "after" })
		})).To(Succeed())

		n, _ := g.GetNode(id)
		Expect(n.Name).To(Equal("after"))
	})

	It("replaces a node via UpdateNode", func() {
		var id graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			id = t.NewNode(&testNode{Name: "old"})
		})).To(Succeed())

		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			t.UpdateNode(id, func(n *testNode) *testNode {
				return &testNode{Name: n.Name + "-new"}
			})
		})).To(Succeed())

		n, _ := g.GetNode(id)
		Expect(n.Name).To(Equal("old-new"))
	})

	It("redirects every holder of the old node through a single RedirectNode pair", func() {
		var target, holderA, holderB, replacement graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			target = t.NewNode(&testNode{Name: "target"})
			holderA = t.NewNode(&testNode{Name: "a", Ref: target})
			holderB = t.NewNode(&testNode{Name: "b", Ref: target})
		})).To(Succeed())

		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			replacement = t.NewNode(&testNode{Name: "replacement"})
			t.RedirectNode(target, replacement)
		})).To(Succeed())

		a, _ := g.GetNode(holderA)
		b, _ := g.GetNode(holderB)
		Expect(a.Ref).To(Equal(replacement))
		Expect(b.Ref).To(Equal(replacement))
	})

	It("supports the two-phase alloc-then-fill-back within a transaction", func() {
		var id graph.NodeIndex
		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			id = t.AllocNode()
			t.FillBackNode(id, &testNode{Name: "filled"})
		})).To(Succeed())

		n, ok := g.GetNode(id)
		Expect(ok).To(BeTrue())
		Expect(n.Name).To(Equal("filled"))
	})

	It("merges another graph's nodes into this one via a transaction", func() {
		other := graph.New[*testNode, slot](ctx)
		ot := graph.NewTransaction[*testNode, slot](ctx)
		oid := ot.NewNode(&testNode{Name: "other"})
		Expect(other.Commit(ot)).To(Succeed())

		Expect(commit(func(t *graph.Transaction[*testNode, slot]) {
			t.MergeGraph(other)
		})).To(Succeed())

		n, ok := g.GetNode(oid)
		Expect(ok).To(BeTrue())
		Expect(n.Name).To(Equal("other"))
	})
})
