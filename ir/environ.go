package ir

import (
	"fmt"
	"hash/maphash"
	"strings"

	"github.com/sarchlab/hdlc/arena"
)

// Environ owns every entity, op, and region of one compilation unit: the
// Go analogue of irony::environ::Environ, built from environ_def!'s
// op_table/entity_table/region_table/parent_stack/hasher/op_hash_table
// fields, expressed directly instead of macro-generated.
type Environ struct {
	dist *arena.IdDistributer

	entities *arena.Arena[Entity, EntityId]
	ops      *arena.Arena[Op, OpId]
	regions  *arena.Arena[Region, RegionId]

	regionStack []RegionId
	opDedup     map[dedupKey]OpId

	hashSeed maphash.Seed
}

type dedupKey struct {
	parent RegionId
	digest uint64
}

// NewEnviron creates an empty environment with its own id space.
func NewEnviron() *Environ {
	dist := arena.NewIdDistributer()
	e := &Environ{
		dist:     dist,
		entities: arena.New[Entity, EntityId](dist),
		ops:      arena.New[Op, OpId](dist),
		regions:  arena.New[Region, RegionId](dist),
		opDedup:  make(map[dedupKey]OpId),
		hashSeed: maphash.MakeSeed(),
	}
	e.entities.FillBack(0, NoneEntity)
	return e
}

// currentRegion returns the region new ops/entities are appended to, or
// the zero RegionId if the stack is empty (top-level).
func (e *Environ) currentRegion() RegionId {
	if len(e.regionStack) == 0 {
		return 0
	}
	return e.regionStack[len(e.regionStack)-1]
}

// NewRegion allocates a region owned by parent.
func (e *Environ) NewRegion(parent OpId, isolated bool) RegionId {
	return e.regions.Insert(Region{Parent: parent, Isolated: isolated})
}

// WithRegion pushes region as current for the duration of f, so ops/
// entities added inside f are appended to it, then pops it. Mirrors
// Environ::with_region in environ.rs.
func (e *Environ) WithRegion(region RegionId, f func()) {
	e.regionStack = append(e.regionStack, region)
	f()
	e.regionStack = e.regionStack[:len(e.regionStack)-1]
}

// AddEntity stores ent in the entity arena and returns its id. Entities
// are not region children, so the current region is left unchanged.
func (e *Environ) AddEntity(ent Entity) EntityId {
	return e.entities.Insert(ent)
}

// GetEntity returns the entity at id.
func (e *Environ) GetEntity(id EntityId) (Entity, bool) { return e.entities.Get(id) }

// GetRegion returns the region at id.
func (e *Environ) GetRegion(id RegionId) (Region, bool) { return e.regions.Get(id) }

// GetOp returns the op at id.
func (e *Environ) GetOp(id OpId) (*Op, bool) {
	op, ok := e.ops.Get(id)
	if !ok {
		return nil, false
	}
	return &op, true
}

// AddOp appends op to the current region and records its parent.
func (e *Environ) AddOp(op *Op) OpId {
	op.Parent = e.currentRegion()
	id := e.ops.Insert(*op)
	if !op.Parent.IsNone() {
		e.regions.Update(op.Parent, func(r Region) Region {
			r.Ops = append(r.Ops, id)
			return r
		})
	}
	return id
}

// SetRegionOps replaces region's child-op ordering wholesale (used by
// lower.Reorder to partition a module body into head/body/tail without
// otherwise touching any op).
func (e *Environ) SetRegionOps(regionID RegionId, ops []OpId) {
	e.regions.Update(regionID, func(r Region) Region {
		r.Ops = ops
		return r
	})
}

// MutOp applies f to the op at id in place.
func (e *Environ) MutOp(id OpId, f func(*Op)) {
	e.ops.Update(id, func(op Op) Op {
		f(&op)
		return op
	})
}

// DeleteOp removes op (and, if it is a region owner, its body regions'
// shallow listing — not their children; see DeleteOpAndAll) from its
// parent region's child list.
func (e *Environ) DeleteOp(id OpId) {
	op, ok := e.ops.Get(id)
	if !ok {
		return
	}
	if !op.Parent.IsNone() {
		e.regions.Update(op.Parent, func(r Region) Region {
			r.Ops = removeOpId(r.Ops, id)
			return r
		})
	}
	e.ops.Remove(id)
}

// DeleteOpAndAll recursively deletes op along with every op nested in
// its owned regions (matches Environ::delete_op_and_all).
func (e *Environ) DeleteOpAndAll(id OpId) {
	op, ok := e.ops.Get(id)
	if !ok {
		return
	}
	for _, regionID := range op.AllRegions() {
		region, ok := e.regions.Get(regionID)
		if !ok {
			continue
		}
		for _, childID := range append([]OpId{}, region.Ops...) {
			e.DeleteOpAndAll(childID)
		}
		e.regions.Remove(regionID)
	}
	e.DeleteOp(id)
}

func removeOpId(ids []OpId, target OpId) []OpId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// VerifyOp runs every constraint registered on op's OpSpec, returning the
// first failure wrapped with the op's printed form.
func (e *Environ) VerifyOp(id OpId) error {
	op, ok := e.GetOp(id)
	if !ok {
		return fmt.Errorf("verify: unknown op %d", id)
	}
	spec, ok := SpecOf(op.Kind)
	if !ok {
		return fmt.Errorf("verify: unregistered op kind %q", op.Kind)
	}
	for _, c := range spec.Constraints {
		if err := c(e, op); err != nil {
			return fmt.Errorf("%s: %w", e.PrintOp(id), err)
		}
	}
	return nil
}

// VerifyRegion runs VerifyOp over every op transitively nested under
// region.
func (e *Environ) VerifyRegion(regionID RegionId) error {
	region, ok := e.GetRegion(regionID)
	if !ok {
		return nil
	}
	for _, opID := range region.Ops {
		if err := e.VerifyOp(opID); err != nil {
			return err
		}
		op, _ := e.GetOp(opID)
		for _, sub := range op.AllRegions() {
			if err := e.VerifyRegion(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetUses scans every op for uses of id (O(ops); core IR has no back-edge
// index by design, per spec.md §4.C).
func (e *Environ) GetUses(id EntityId) []OpId {
	var out []OpId
	e.ops.Iter(func(opID OpId, op Op) bool {
		for _, used := range op.AllUses() {
			if used == id {
				out = append(out, opID)
				break
			}
		}
		return true
	})
	return out
}

// GetDefs scans every op for definitions of id.
func (e *Environ) GetDefs(id EntityId) []OpId {
	var out []OpId
	e.ops.Iter(func(opID OpId, op Op) bool {
		for _, def := range op.AllDefs() {
			if def == id {
				out = append(out, opID)
				break
			}
		}
		return true
	})
	return out
}

// FindModule returns the HwModule op whose "name" attribute matches name.
func (e *Environ) FindModule(name string) (OpId, bool) {
	var found OpId
	var ok bool
	e.ops.Iter(func(opID OpId, op Op) bool {
		if op.Kind != HwModule {
			return true
		}
		if n, has := op.Attrs["name"].AsString(); has && n == name {
			found, ok = opID, true
			return false
		}
		return true
	})
	return found, ok
}

// ModulePorts returns a module's input and output port result wires, in
// declaration order.
func (e *Environ) ModulePorts(moduleID OpId) (inputs, outputs []EntityId) {
	op, ok := e.GetOp(moduleID)
	if !ok {
		return nil, nil
	}
	body, ok := e.GetRegion(op.Region("body"))
	if !ok {
		return nil, nil
	}
	for _, childID := range body.Ops {
		child, ok := e.GetOp(childID)
		if !ok {
			continue
		}
		switch child.Kind {
		case HwInput:
			inputs = append(inputs, child.Def("result"))
		case HwOutput:
			outputs = append(outputs, child.Def("result"))
		}
	}
	return inputs, outputs
}

// HashOp computes a structural digest of op, reducing operand ids to
// positions local to this hash call (a reducer map built in encounter
// order, matching irony's reduce_then_hash! macro) so that two
// syntactically identical ops with different absolute entity ids hash
// equal. Owned regions are hashed recursively.
func (e *Environ) HashOp(id OpId) uint64 {
	op, ok := e.GetOp(id)
	if !ok {
		return 0
	}
	reducer := make(map[EntityId]int)
	var h maphash.Hash
	h.SetSeed(e.hashSeed)
	h.WriteString(string(op.Kind))
	writeReduced := func(ids []EntityId) {
		for _, id := range ids {
			pos, ok := reducer[id]
			if !ok {
				pos = len(reducer)
				reducer[id] = pos
			}
			fmt.Fprintf(&h, "|%d", pos)
		}
	}
	writeReduced(op.AllUses())
	writeReduced(op.AllDefs())
	keys := attrKeysSorted(op.Attrs)
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString(op.Attrs[k].String())
	}
	for _, regionID := range op.AllRegions() {
		fmt.Fprintf(&h, "[%d]", e.HashRegion(regionID))
	}
	return h.Sum64()
}

// HashRegion combines the structural hash of every op in region, in
// order (order is significant: sequential statements are not
// commutative).
func (e *Environ) HashRegion(regionID RegionId) uint64 {
	region, ok := e.GetRegion(regionID)
	if !ok {
		return 0
	}
	var h maphash.Hash
	h.SetSeed(e.hashSeed)
	for _, opID := range region.Ops {
		fmt.Fprintf(&h, "%d;", e.HashOp(opID))
	}
	return h.Sum64()
}

func attrKeysSorted(m map[string]Attribute) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort to avoid importing sort twice; map size here
	// is always small (attribute counts per op).
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Dedup checks op for a structural duplicate already present in the
// same parent region and, if found, returns its id instead of inserting
// op. Otherwise it inserts op and records it for future dedup checks.
func (e *Environ) Dedup(op *Op) (id OpId, isDup bool) {
	tmpID := e.AddOp(op)
	digest := e.HashOp(tmpID)
	key := dedupKey{parent: op.Parent, digest: digest}
	if existing, ok := e.opDedup[key]; ok {
		e.DeleteOp(tmpID)
		return existing, true
	}
	e.opDedup[key] = tmpID
	return tmpID, false
}

// PrintOp renders one op using its OpSpec's printer.
func (e *Environ) PrintOp(id OpId) string {
	op, ok := e.GetOp(id)
	if !ok {
		return fmt.Sprintf("<missing op %d>", id)
	}
	spec, ok := SpecOf(op.Kind)
	if !ok {
		return fmt.Sprintf("<unregistered kind %q>", op.Kind)
	}
	line := string(op.Kind) + " " + spec.Printer(e, op)
	if debugged, ok := e.opDebugEntity(op); ok && debugged.Debug {
		if loc := debugged.Loc.String(); loc != "" {
			line += " // " + loc
		}
	}
	return line
}

func (e *Environ) opDebugEntity(op *Op) (Entity, bool) {
	for _, ids := range op.Defs {
		for _, id := range ids {
			if ent, ok := e.GetEntity(id); ok && ent.Debug {
				return ent, true
			}
		}
	}
	return Entity{}, false
}

// PrintRegion renders every op of region, one per line, indented by
// depth levels of two spaces, recursing into owned sub-regions.
func (e *Environ) PrintRegion(regionID RegionId, depth int) string {
	region, ok := e.GetRegion(regionID)
	if !ok {
		return ""
	}
	indent := strings.Repeat("  ", depth)
	var b strings.Builder
	for _, opID := range region.Ops {
		b.WriteString(indent)
		b.WriteString(e.PrintOp(opID))
		b.WriteString("\n")
		op, _ := e.GetOp(opID)
		for _, sub := range op.AllRegions() {
			b.WriteString(e.PrintRegion(sub, depth+1))
		}
	}
	return b.String()
}

// EntityName returns the given name of entity id, or a generated
// %e<id>-style placeholder when it has none.
func (e *Environ) EntityName(id EntityId) string {
	ent, ok := e.GetEntity(id)
	if !ok || ent.Name == "" {
		return fmt.Sprintf("%%e%d", id)
	}
	return "%" + ent.Name
}
