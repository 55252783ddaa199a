package sim

import "sync"

// Barrier is the clock barrier from spec.md §4.I: every step() marks a
// task arrived; once arrivals equal the participant count, it runs one
// Cycle.run and wakes every arrived task. fork grows the participant
// count; a forked task leaving (completing, or being joined) shrinks it
// and may fire the barrier immediately if the remaining participants had
// already arrived and were only blocked on the one that just left.
//
// Go's goroutines are preemptively scheduled, unlike the futures/wakers
// the original single-threaded executor polls by hand, so this Barrier
// (not a single draining loop) is what actually gives cycle atomicity
// here: cells are only ever mutated from inside the one goroutine that
// wins the race to call fire, so no two goroutines ever race on them.
type Barrier struct {
	mu           sync.Mutex
	cond         *sync.Cond
	participants int
	arrived      int
	generation   int
	cycle        *Cycle
}

// NewBarrier creates a barrier with the given initial participant count
// (1 for the root coroutine, per spec.md's default).
func NewBarrier(participants int, cycle *Cycle) *Barrier {
	b := &Barrier{participants: participants, cycle: cycle}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// AddParticipant registers one more task the barrier must wait on.
func (b *Barrier) AddParticipant() {
	b.mu.Lock()
	b.participants++
	b.mu.Unlock()
}

// RemoveParticipant drops a task from the barrier's count.
func (b *Barrier) RemoveParticipant() {
	b.mu.Lock()
	b.participants--
	if b.participants > 0 && b.arrived == b.participants {
		b.fire()
	}
	b.mu.Unlock()
}

// Arrive blocks the calling goroutine until the cycle this arrival
// completes has run.
func (b *Barrier) Arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arrived++
	if b.arrived == b.participants {
		b.fire()
		return
	}
	gen := b.generation
	for gen == b.generation {
		b.cond.Wait()
	}
}

// fire must be called with mu held.
func (b *Barrier) fire() {
	b.cycle.Run()
	b.arrived = 0
	b.generation++
	b.cond.Broadcast()
}
