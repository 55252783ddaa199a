package sim_test

import (
	"context"
	"math/big"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlc/sim"
)

func bits(v int64, width int) *sim.Bits {
	b := sim.NewBits(width, false)
	b.SetInt64(v)
	return b
}

var _ = Describe("Cycle", func() {
	It("runs keep_poke, poke, then comb in order, one-shot poke overriding keep_poke", func() {
		s := sim.NewSimulator()
		s.SetCell("a", bits(0, 8))
		s.SetCell("b", bits(0, 8))

		s.KeepPoke("a", bits(1, 8))
		s.Cycle.Comb = []sim.Event{
			func() {
				av := s.Cell("a").(*sim.Bits).Signed64()
				s.SetCell("b", bits(av+1, 8))
			},
		}

		s.Cycle.Run()
		Expect(s.Cell("b").(*sim.Bits).Signed64()).To(Equal(int64(2)))

		s.Poke("a", bits(9, 8))
		s.Cycle.Run()
		Expect(s.Cell("b").(*sim.Bits).Signed64()).To(Equal(int64(10)))

		// one-shot poke doesn't persist into the next cycle
		s.Cycle.Run()
		Expect(s.Cell("b").(*sim.Bits).Signed64()).To(Equal(int64(2)))
	})
})

var _ = Describe("Bits", func() {
	It("truncates to its declared width", func() {
		b := sim.NewBits(4, false)
		b.Set(big.NewInt(31))
		Expect(b.Value.Int64()).To(Equal(int64(15)))
	})

	It("interprets negative values two's-complement when signed", func() {
		b := sim.NewBits(4, true)
		b.SetInt64(-1)
		Expect(b.Signed64()).To(Equal(int64(-1)))
	})
})

var _ = Describe("Simulator.Run", func() {
	It("drives a single coroutine through step/poke/peek", func() {
		s := sim.NewSimulator()
		s.SetCell("i", bits(0, 8))
		s.SetCell("o", bits(0, 8))
		s.Cycle.Comb = []sim.Event{
			func() { s.SetCell("o", s.Cell("i")) },
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := s.Run(ctx, 1, func(c sim.Coro) error {
			c.Poke("i", bits(0xB1, 8))
			if err := c.Step(ctx); err != nil {
				return err
			}
			Expect(c.Peek("o").(*sim.Bits).Value.Int64()).To(Equal(int64(0xB1)))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("joins a forked task before completing", func() {
		s := sim.NewSimulator()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		var childRan bool
		err := s.Run(ctx, 1, func(c sim.Coro) error {
			c.Fork(func(child sim.Coro) error {
				childRan = true
				return nil
			})
			return c.Join(ctx)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(childRan).To(BeTrue())
	})

	It("synchronizes two participants at the barrier before running a cycle", func() {
		s := sim.NewSimulator()
		s.SetCell("count", bits(0, 8))
		s.Cycle.Comb = []sim.Event{
			func() {
				v := s.Cell("count").(*sim.Bits).Signed64()
				s.SetCell("count", bits(v+1, 8))
			},
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := s.Run(ctx, 1, func(c sim.Coro) error {
			c.Fork(func(child sim.Coro) error {
				return child.Step(ctx)
			})
			return c.Step(ctx)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Cell("count").(*sim.Bits).Signed64()).To(Equal(int64(1)))
	})
})
