package arena_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/arena"
)

type idx int

var _ = Describe("Arena", func() {
	var (
		dist *arena.IdDistributer
		a    *arena.Arena[string, idx]
	)

	BeforeEach(func() {
		dist = arena.NewIdDistributer()
		a = arena.New[string, idx](dist)
	})

	It("allocates distinct, monotonically increasing, 0-free ids", func() {
		i1 := a.Insert("a")
		i2 := a.Insert("b")
		Expect(i1).NotTo(Equal(idx(0)))
		Expect(i2).NotTo(Equal(idx(0)))
		Expect(i1).NotTo(Equal(i2))
		Expect(int(i2)).To(BeNumerically(">", int(i1)))
	})

	It("round-trips a stored value", func() {
		id := a.Insert("hello")
		v, ok := a.Get(id)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("hello"))
	})

	It("supports two-phase alloc then fill-back", func() {
		id := a.Alloc()
		Expect(a.Contains(id)).To(BeFalse())
		a.FillBack(id, "filled")
		v, ok := a.Get(id)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("filled"))
	})

	It("panics on a duplicate fill-back", func() {
		id := a.Alloc()
		a.FillBack(id, "first")
		Expect(func() { a.FillBack(id, "second") }).To(Panic())
	})

	It("removes values and reports absence afterwards", func() {
		id := a.Insert("gone")
		v, ok := a.Remove(id)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("gone"))
		Expect(a.Contains(id)).To(BeFalse())
	})

	It("never reuses a freed id within a run", func() {
		id1 := a.Insert("x")
		a.Remove(id1)
		id2 := a.Insert("y")
		Expect(id2).NotTo(Equal(id1))
	})

	It("merges a disjoint arena sharing the same distributer", func() {
		other := arena.New[string, idx](dist)
		oid := other.Insert("from-other")
		a.Insert("from-a")
		a.Merge(other)
		v, ok := a.Get(oid)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("from-other"))
		Expect(a.Len()).To(Equal(2))
	})

	It("updates a value in place", func() {
		id := a.Insert("old")
		a.Update(id, func(s string) string { return s + "-new" })
		v, _ := a.Get(id)
		Expect(v).To(Equal("old-new"))
	})
})
