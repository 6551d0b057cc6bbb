// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Classify returns the structural distance between two nodes of the same tree.
// The result is symmetric.
func Classify(a, b *Node) (Relationship, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: nil node", ErrInvalidArgument)
	}
	if a.tree == nil || a.tree != b.tree {
		return 0, fmt.Errorf("%w: nodes %s and %s belong to different trees", ErrInvalidArgument, a, b)
	}
	t := a.tree
	if a.id == b.id {
		return RelationshipSelf, nil
	}

	lca := t.lowestCommonAncestor(a.id, b.id)
	if board := t.board(a.id); board != noNode && board == t.board(b.id) {
		return RelationshipInternal, nil
	}

	switch t.nodes[lca].kind {
	case KindVirtualRoot:
		return RelationshipSystem, nil
	case KindCPUScope:
		return RelationshipCPU, nil
	case KindHostBridge:
		return RelationshipHostBridge, nil
	}

	switches := sets.New[NodeID]()
	t.collectSwitches(a.id, lca, switches)
	t.collectSwitches(b.id, lca, switches)
	if switches.Len() == 1 {
		return RelationshipSingle, nil
	}
	// Also reached in untagged trees, where no host bridge sits above lca.
	return RelationshipMultiple, nil
}

// ClassifyByOrdinal classifies two accelerators addressed by device ordinal.
func (t *Tree) ClassifyByOrdinal(i, j int) (Relationship, error) {
	a, err := t.NodeByOrdinal(i)
	if err != nil {
		return 0, err
	}
	b, err := t.NodeByOrdinal(j)
	if err != nil {
		return 0, err
	}
	return Classify(a, b)
}

func (t *Tree) lowestCommonAncestor(a, b NodeID) NodeID {
	for t.nodes[a].depth > t.nodes[b].depth {
		a = t.nodes[a].parent
	}
	for t.nodes[b].depth > t.nodes[a].depth {
		b = t.nodes[b].parent
	}
	for a != b {
		a, b = t.nodes[a].parent, t.nodes[b].parent
	}
	return a
}

// board returns the outermost node of the labelled slot id sits in, or noNode.
func (t *Tree) board(id NodeID) NodeID {
	for ; id != noNode; id = t.nodes[id].parent {
		if t.nodes[id].slotLabel != "" {
			break
		}
	}
	if id == noNode {
		return noNode
	}
	label := t.nodes[id].slotLabel
	for p := t.nodes[id].parent; p != noNode && t.nodes[p].slotLabel == label; p = t.nodes[p].parent {
		id = p
	}
	return id
}

// collectSwitches adds the switch of every bridge strictly above from up to
// and including lca.
func (t *Tree) collectSwitches(from, lca NodeID, into sets.Set[NodeID]) {
	if from == lca {
		return
	}
	for id := t.nodes[from].parent; id != noNode; id = t.nodes[id].parent {
		if t.nodes[id].kind == KindBridge {
			into.Insert(t.switchOf(id))
		}
		if id == lca {
			return
		}
	}
}

// switchOf maps the downstream port of a switch to its upstream port, so both
// halves of one physical switch count once.
func (t *Tree) switchOf(id NodeID) NodeID {
	n := &t.nodes[id]
	if pt, ok := n.PortType(); !ok || pt != PortTypeDownstream {
		return id
	}
	p := n.parent
	if p == noNode || t.nodes[p].kind != KindBridge {
		return id
	}
	if pt, ok := t.nodes[p].PortType(); ok && pt == PortTypeUpstream {
		return p
	}
	return id
}
