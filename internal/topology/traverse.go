// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

// VisitResult tells Traverse whether to keep walking.
type VisitResult int

const (
	Continue VisitResult = iota
	Stop
)

// Visitor is called once per node during a traversal.
type Visitor func(n *Node) VisitResult

// Traverse walks the subtree below root in pre-order, parents before their
// children and children in tree order. The walk halts as soon as visit
// returns Stop. It reports whether the walk was stopped.
func Traverse(root *Node, visit Visitor) bool {
	if root == nil || visit == nil {
		return false
	}
	t := root.tree
	stack := []NodeID{root.id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if visit(n) == Stop {
			return true
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
	return false
}

// Walk traverses the whole tree starting at the virtual root.
func (t *Tree) Walk(visit Visitor) bool {
	return Traverse(t.Root(), visit)
}
