package ir

import (
	"fmt"
	"sort"
	"strings"
)

// OpKind names a registered operation shape. Go has no declarative
// macros, so unlike the Rust original's op_def!-generated per-kind
// structs, every OpKind shares one Op representation driven by its
// registered OpSpec (slot names, constraints, printer) — see DESIGN.md.
type OpKind string

// Slot describes one named use/def/region slot an OpSpec exposes.
type Slot struct {
	Name     string
	Variadic bool
}

// Constraint validates one op against the environment it lives in.
// Returning a non-nil error aborts Environ.VerifyOp with that error
// wrapped in the op's printed form.
type Constraint func(env *Environ, op *Op) error

// PrintFunc renders one op's body (everything after "<kind> "), given its
// resolved operand/result names.
type PrintFunc func(env *Environ, op *Op) string

// OpSpec is the per-kind schema an Op's Kind looks up: named use/def/
// region slots (each possibly variadic), the attribute keys expected,
// the constraints run by VerifyOp, and the printer.
type OpSpec struct {
	Kind        OpKind
	Uses        []Slot
	Defs        []Slot
	Regions     []Slot
	AttrNames   []string
	Constraints []Constraint
	Printer     PrintFunc
}

var registry = map[OpKind]*OpSpec{}

// Register adds spec to the global op catalog. Called from catalog.go's
// package-init for every built-in kind; callers extending the catalog
// (e.g. a test fixture op) may call it too.
func Register(spec *OpSpec) {
	registry[spec.Kind] = spec
}

// SpecOf returns the registered OpSpec for kind.
func SpecOf(kind OpKind) (*OpSpec, bool) {
	s, ok := registry[kind]
	return s, ok
}

// Op is the single concrete representation of every operation kind: a
// Kind tag plus schema-driven maps standing in for the macro-generated
// fixed fields the Rust original has per op_def! invocation.
type Op struct {
	Kind    OpKind
	Uses    map[string][]EntityId
	Defs    map[string][]EntityId
	Regions map[string][]RegionId
	Attrs   map[string]Attribute
	Parent  RegionId
	Loc     Location
}

// NewOp creates a zero-valued Op of kind with empty slot maps, ready to
// be populated via SetUse/SetDef/SetRegion/SetAttr.
func NewOp(kind OpKind) *Op {
	return &Op{
		Kind:    kind,
		Uses:    make(map[string][]EntityId),
		Defs:    make(map[string][]EntityId),
		Regions: make(map[string][]RegionId),
		Attrs:   make(map[string]Attribute),
	}
}

func (op *Op) SetUse(slot string, ids ...EntityId)      { op.Uses[slot] = ids }
func (op *Op) SetDef(slot string, ids ...EntityId)      { op.Defs[slot] = ids }
func (op *Op) SetRegion(slot string, ids ...RegionId)   { op.Regions[slot] = ids }
func (op *Op) SetAttr(name string, a Attribute)         { op.Attrs[name] = a }

func (op *Op) Use(slot string) EntityId {
	ids := op.Uses[slot]
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

func (op *Op) Def(slot string) EntityId {
	ids := op.Defs[slot]
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

func (op *Op) Region(slot string) RegionId {
	ids := op.Regions[slot]
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

// AllUses returns every used entity across every use slot, in a stable
// (slot-name-sorted) order — the Go analogue of the Rust trait's
// GetUses/uses() scan.
func (op *Op) AllUses() []EntityId {
	return flattenSorted(op.Uses)
}

// AllDefs returns every defined entity across every def slot.
func (op *Op) AllDefs() []EntityId {
	return flattenSorted(op.Defs)
}

// AllRegions returns every owned region across every region slot.
func (op *Op) AllRegions() []RegionId {
	keys := make([]string, 0, len(op.Regions))
	for k := range op.Regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []RegionId
	for _, k := range keys {
		out = append(out, op.Regions[k]...)
	}
	return out
}

func flattenSorted(m map[string][]EntityId) []EntityId {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []EntityId
	for _, k := range keys {
		out = append(out, m[k]...)
	}
	return out
}

// ReplaceUse rewrites every occurrence of old with new across every use
// slot (the Go analogue of the Rust trait's replace_use).
func (op *Op) ReplaceUse(old, new EntityId) {
	for slot, ids := range op.Uses {
		for i, id := range ids {
			if id == old {
				ids[i] = new
			}
		}
		op.Uses[slot] = ids
	}
}

// String renders the op without resolving names (used by error paths
// where Environ isn't available); Environ.PrintOp is the real printer.
func (op *Op) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", op.Kind)
	return b.String()
}
