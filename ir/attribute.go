package ir

import "fmt"

// Attribute is a small tagged union of non-SSA op metadata: names,
// constants, predicates, and data types attached to an op (spec.md's
// "attr schema" per OpSpec).
type Attribute struct {
	kind attrKind
	str  string
	i    int64
	dt   DataType
	cst  Constant
	pred ICmpPredicate
}

type attrKind int

const (
	attrString attrKind = iota
	attrInt
	attrDataType
	attrConstant
	attrPredicate
)

func StringAttr(s string) Attribute { return Attribute{kind: attrString, str: s} }
func IntAttr(i int64) Attribute     { return Attribute{kind: attrInt, i: i} }
func TypeAttr(t DataType) Attribute { return Attribute{kind: attrDataType, dt: t} }
func ConstAttr(c Constant) Attribute { return Attribute{kind: attrConstant, cst: c} }
func PredAttr(p ICmpPredicate) Attribute { return Attribute{kind: attrPredicate, pred: p} }

func (a Attribute) AsString() (string, bool) {
	if a.kind != attrString {
		return "", false
	}
	return a.str, true
}

func (a Attribute) AsInt() (int64, bool) {
	if a.kind != attrInt {
		return 0, false
	}
	return a.i, true
}

func (a Attribute) AsType() (DataType, bool) {
	if a.kind != attrDataType {
		return nil, false
	}
	return a.dt, true
}

func (a Attribute) AsConstant() (Constant, bool) {
	if a.kind != attrConstant {
		return nil, false
	}
	return a.cst, true
}

func (a Attribute) AsPredicate() (ICmpPredicate, bool) {
	if a.kind != attrPredicate {
		return 0, false
	}
	return a.pred, true
}

func (a Attribute) String() string {
	switch a.kind {
	case attrString:
		return fmt.Sprintf("%q", a.str)
	case attrInt:
		return fmt.Sprintf("%d", a.i)
	case attrDataType:
		return a.dt.String()
	case attrConstant:
		return fmt.Sprintf("%v", a.cst)
	case attrPredicate:
		return a.pred.String()
	default:
		return "<attr>"
	}
}

// ICmpPredicate enumerates CombICmp's 14 comparison predicates (spec.md
// §4.H), covering both signed and unsigned variants of each relation.
type ICmpPredicate int

const (
	ICmpEQ ICmpPredicate = iota
	ICmpNE
	ICmpSLT
	ICmpSLE
	ICmpSGT
	ICmpSGE
	ICmpULT
	ICmpULE
	ICmpUGT
	ICmpUGE
	ICmpSLTU // alias kept distinct per spec's 14-predicate count
	ICmpSLEU
	ICmpSGTU
	ICmpSGEU
)

func (p ICmpPredicate) String() string {
	names := [...]string{
		"eq", "ne", "slt", "sle", "sgt", "sge",
		"ult", "ule", "ugt", "uge",
		"sltu", "sleu", "sgtu", "sgeu",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}
