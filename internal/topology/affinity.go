// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import "fmt"

// LocalityBoundary returns the nearest ancestor-or-self that carries a CPU
// locality bitmap, or nil if no node on the path to the root does.
func (n *Node) LocalityBoundary() *Node {
	t := n.tree
	for id := n.id; id != noNode; id = t.nodes[id].parent {
		if t.nodes[id].affinity != nil {
			return &t.nodes[id]
		}
	}
	return nil
}

// Affinity returns the CPUs local to n. Nodes without any locality data on
// their path to the root are local to every CPU.
func (n *Node) Affinity() Bitmap {
	if b := n.LocalityBoundary(); b != nil {
		return b.affinity.Clone()
	}
	return FullBitmap(n.tree.cpuCount)
}

// NUMANode returns the NUMA node of n or its nearest ancestor that has one, or -1.
func (n *Node) NUMANode() int {
	t := n.tree
	for id := n.id; id != noNode; id = t.nodes[id].parent {
		if t.nodes[id].numaNode >= 0 {
			return t.nodes[id].numaNode
		}
	}
	return -1
}

// NUMANodeByOrdinal returns the NUMA node of the accelerator with the given ordinal.
func (t *Tree) NUMANodeByOrdinal(ordinal int) (int, error) {
	n, err := t.NodeByOrdinal(ordinal)
	if err != nil {
		return 0, err
	}
	return n.NUMANode(), nil
}

// AffinityByOrdinal returns the CPUs local to the accelerator with the given ordinal.
func (t *Tree) AffinityByOrdinal(ordinal int) (Bitmap, error) {
	n, err := t.NodeByOrdinal(ordinal)
	if err != nil {
		return Bitmap{}, err
	}
	return n.Affinity(), nil
}

// SetCurrentThreadAffinity pins the calling goroutine to its OS thread and
// restricts that thread to the CPUs local to n. The pin stays in place until
// ClearCurrentThreadAffinity is called from the same goroutine. Repeated calls
// only move the mask; one ClearCurrentThreadAffinity releases the pin.
func (t *Tree) SetCurrentThreadAffinity(n *Node) error {
	if n == nil || n.tree != t {
		return fmt.Errorf("%w: node does not belong to this tree", ErrInvalidDeviceID)
	}
	cpus := n.Affinity()
	if cpus.IsEmpty() {
		return fmt.Errorf("%w: %s has an empty cpu set", ErrInvalidArgument, n)
	}
	return setThreadAffinity(cpus)
}

// ClearCurrentThreadAffinity lets the calling thread run on every CPU again
// and releases the goroutine from its OS thread.
func (t *Tree) ClearCurrentThreadAffinity() error {
	return clearThreadAffinity(FullBitmap(t.cpuCount))
}
