package gir

import "github.com/sarchlab/hdlc/graph"

// clog2 returns ceil(log2(n)), with clog2(0) = clog2(1) = 0.
func clog2(n int) int {
	w := 0
	for (1 << w) < n {
		w++
	}
	return w
}

// assignWidths is fsm_encoding_1's bottom-up pass: a Leaf contributes no
// bits of its own (its identity is carried entirely by its Exc
// ancestors' selector bits); an Exc group needs enough selector bits to
// distinguish its children plus whatever its widest child still needs;
// a Par group needs the sum of its children's independent bit ranges.
func assignWidths(t *EncTree) int {
	switch t.Kind {
	case KindLeaf:
		t.Width = 0
	case KindExc:
		maxChild := 0
		for _, c := range t.Children {
			if w := assignWidths(c); w > maxChild {
				maxChild = w
			}
		}
		t.Width = clog2(len(t.Children)) + maxChild
	case KindPar:
		sum := 0
		for _, c := range t.Children {
			sum += assignWidths(c)
		}
		t.Width = sum
	}
	return t.Width
}

// assignOffsets is fsm_encoding_2's top-down pass: it hands every node
// its absolute bit offset within the FSM's state register and, for Exc
// children, appends the selector constraint (offset, width, which-child)
// each leaf beneath it must satisfy.
func assignOffsets(t *EncTree, offset int, path []selector) {
	t.Offset = offset
	t.Path = path
	switch t.Kind {
	case KindLeaf:
	case KindExc:
		selWidth := clog2(len(t.Children))
		for i, c := range t.Children {
			childPath := append(append([]selector{}, path...), selector{offset: offset, width: selWidth, value: i})
			assignOffsets(c, offset+selWidth, childPath)
		}
	case KindPar:
		cur := offset
		for _, c := range t.Children {
			assignOffsets(c, cur, path)
			cur += c.Width
		}
	}
}

// Encode runs both passes over root and returns the total state register
// width plus every leaf state's selector path (used by matchWire to
// build its AND-reduction).
func Encode(root *EncTree) (width int, paths map[graph.NodeIndex][]selector) {
	width = assignWidths(root)
	assignOffsets(root, 0, nil)
	paths = make(map[graph.NodeIndex][]selector)
	collectLeaves(root, paths)
	return width, paths
}

func collectLeaves(t *EncTree, out map[graph.NodeIndex][]selector) {
	if t.Kind == KindLeaf {
		out[t.Leaf] = t.Path
		return
	}
	for _, c := range t.Children {
		collectLeaves(c, out)
	}
}
