// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"slices"
)

// NodeKind is the structural role of a node in the tree.
type NodeKind int

const (
	// KindEndpoint is a PCI function that does not forward buses.
	KindEndpoint NodeKind = iota
	// KindBridge is a PCI-to-PCI bridge, e.g. a root port or a switch port.
	KindBridge
	// KindHostBridge connects a CPU's memory fabric to a PCIe root complex.
	KindHostBridge
	// KindCPUScope groups the host bridges attached to one CPU locality.
	KindCPUScope
	// KindVirtualRoot is the single root of every tree.
	KindVirtualRoot
)

func (k NodeKind) String() string {
	switch k {
	case KindEndpoint:
		return "endpoint"
	case KindBridge:
		return "bridge"
	case KindHostBridge:
		return "host-bridge"
	case KindCPUScope:
		return "cpu"
	case KindVirtualRoot:
		return "root"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// NodeID addresses a node inside the arena of its tree.
type NodeID int

const noNode NodeID = -1

// Node is one entry of the topology tree. Nodes are immutable and are only
// handed out by their Tree; a node handle keeps its whole tree alive.
type Node struct {
	tree *Tree
	id   NodeID

	kind      NodeKind
	synthetic bool

	bdf               BDF
	vendorID          uint16
	deviceID          uint16
	subsystemVendorID uint16
	subsystemID       uint16
	class             uint32
	className         string
	deviceName        string

	primaryBus     uint8
	secondaryBus   uint8
	subordinateBus uint8
	linkSpeed      uint32

	slotLabel   string
	rootComplex string
	numaNode    int
	affinity    *Bitmap
	caps        []Capability

	parent   NodeID
	children []NodeID
	depth    int
	ordinal  int
	sortKey  BDF
}

func (n *Node) ID() NodeID { return n.id }

func (n *Node) Kind() NodeKind { return n.kind }

// IsVirtualRoot reports whether n is the root of its tree.
func (n *Node) IsVirtualRoot() bool { return n.kind == KindVirtualRoot }

// IsSynthetic reports whether n was created by the builder rather than
// enumerated. Synthetic nodes have no BDF.
func (n *Node) IsSynthetic() bool { return n.synthetic }

// IsBridge reports whether n forwards a bus range.
func (n *Node) IsBridge() bool { return n.kind == KindBridge || n.kind == KindHostBridge }

// IsHostBridge reports whether n is a host bridge, enumerated or synthetic.
func (n *Node) IsHostBridge() bool { return n.kind == KindHostBridge }

// BDF returns the address of n. The second result is false for synthetic nodes.
func (n *Node) BDF() (BDF, bool) { return n.bdf, !n.synthetic }

func (n *Node) VendorID() uint16          { return n.vendorID }
func (n *Node) DeviceID() uint16          { return n.deviceID }
func (n *Node) SubsystemVendorID() uint16 { return n.subsystemVendorID }
func (n *Node) SubsystemID() uint16       { return n.subsystemID }

// Class returns the 24-bit PCI class code.
func (n *Node) Class() uint32      { return n.class }
func (n *Node) ClassName() string  { return n.className }
func (n *Node) DeviceName() string { return n.deviceName }

// BusRange returns the primary, secondary and subordinate bus numbers of a bridge.
// All three are zero for non-bridges.
func (n *Node) BusRange() (primary, secondary, subordinate uint8) {
	return n.primaryBus, n.secondaryBus, n.subordinateBus
}

// LinkSpeed returns the negotiated link speed as reported by the platform.
func (n *Node) LinkSpeed() uint32 { return n.linkSpeed }

func (n *Node) SlotLabel() string   { return n.slotLabel }
func (n *Node) RootComplex() string { return n.rootComplex }

// LocalAffinity returns the CPU-locality bitmap attached to n itself, if any.
func (n *Node) LocalAffinity() (Bitmap, bool) {
	if n.affinity == nil {
		return Bitmap{}, false
	}
	return n.affinity.Clone(), true
}

// IsLocalityBoundary reports whether n carries a resolved CPU-locality bitmap.
func (n *Node) IsLocalityBoundary() bool { return n.affinity != nil }

// Ordinal returns the device ordinal of an accelerator node.
func (n *Node) Ordinal() (int, bool) { return n.ordinal, n.ordinal >= 0 }

// Depth returns the distance from the virtual root.
func (n *Node) Depth() int { return n.depth }

// Parent returns the parent node, or nil for the virtual root.
func (n *Node) Parent() *Node {
	if n.parent == noNode {
		return nil
	}
	return &n.tree.nodes[n.parent]
}

// Children returns the children of n in ascending (bus, device, function) order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	for i, id := range n.children {
		out[i] = &n.tree.nodes[id]
	}
	return out
}

// Tree returns the tree n belongs to.
func (n *Node) Tree() *Tree { return n.tree }

func (n *Node) String() string {
	switch {
	case n.kind == KindVirtualRoot:
		return "root"
	case n.kind == KindCPUScope && n.numaNode >= 0:
		return fmt.Sprintf("cpu/numa%d", n.numaNode)
	case n.kind == KindCPUScope:
		return fmt.Sprintf("cpu/%s", n.affinity)
	case n.synthetic && n.rootComplex != "":
		return "hostbridge/" + n.rootComplex
	case n.synthetic:
		return fmt.Sprintf("hostbridge/%04x@%s", n.bdf.Domain, n.affinity)
	}
	return n.bdf.String()
}

// Tree is the immutable arena built from one enumeration snapshot. It is safe
// for concurrent use by any number of readers.
type Tree struct {
	nodes     []Node
	byBDF     map[BDF]NodeID
	devices   []NodeID
	cpuScopes []NodeID
	cpuCount  int
}

// Root returns the virtual root.
func (t *Tree) Root() *Node { return &t.nodes[0] }

// Len returns the number of nodes including synthetic ones.
func (t *Tree) Len() int { return len(t.nodes) }

// CPUCount returns the width of every affinity bitmap in the tree.
func (t *Tree) CPUCount() int { return t.cpuCount }

// DeviceCount returns the number of accelerator devices.
func (t *Tree) DeviceCount() int { return len(t.devices) }

// Node resolves an arena index.
func (t *Tree) Node(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: node %d", ErrInvalidArgument, id)
	}
	return &t.nodes[id], nil
}

// NodeByBDF returns the enumerated node at the given address.
func (t *Tree) NodeByBDF(bdf BDF) (*Node, error) {
	id, ok := t.byBDF[bdf]
	if !ok {
		return nil, fmt.Errorf("%w: no node at %s", ErrInvalidDeviceID, bdf)
	}
	return &t.nodes[id], nil
}

// NodeByOrdinal returns the node of the accelerator with the given ordinal.
func (t *Tree) NodeByOrdinal(ordinal int) (*Node, error) {
	if ordinal < 0 || ordinal >= len(t.devices) {
		return nil, fmt.Errorf("%w: ordinal %d out of range [0,%d)", ErrInvalidDeviceID, ordinal, len(t.devices))
	}
	return &t.nodes[t.devices[ordinal]], nil
}

// OrdinalByBDF returns the device ordinal of the accelerator at bdf.
func (t *Tree) OrdinalByBDF(bdf BDF) (int, error) {
	n, err := t.NodeByBDF(bdf)
	if err != nil {
		return 0, err
	}
	ordinal, ok := n.Ordinal()
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an accelerator device", ErrInvalidDeviceID, bdf)
	}
	return ordinal, nil
}

// CPUScopes returns the synthetic CPU-scope nodes ordered by their position in the tree.
func (t *Tree) CPUScopes() []*Node {
	out := make([]*Node, len(t.cpuScopes))
	for i, id := range t.cpuScopes {
		out[i] = &t.nodes[id]
	}
	return out
}

// NodesByDeviceName returns the enumerated nodes whose device name equals name,
// in pre-order.
func (t *Tree) NodesByDeviceName(name string) []*Node {
	var out []*Node
	Traverse(t.Root(), func(n *Node) VisitResult {
		if !n.synthetic && n.kind != KindVirtualRoot && n.deviceName == name {
			out = append(out, n)
		}
		return Continue
	})
	return out
}

func (t *Tree) sortChildren(id NodeID) {
	slices.SortFunc(t.nodes[id].children, func(a, b NodeID) int {
		ka, kb := t.nodes[a].sortKey, t.nodes[b].sortKey
		switch {
		case ka.Less(kb):
			return -1
		case kb.Less(ka):
			return 1
		}
		return int(a - b)
	})
}
