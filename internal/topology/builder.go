// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Descriptor is one raw device record of an enumeration snapshot.
type Descriptor struct {
	BDF  BDF
	Kind NodeKind

	VendorID          uint16
	DeviceID          uint16
	SubsystemVendorID uint16
	SubsystemID       uint16
	Class             uint32
	ClassName         string
	DeviceName        string

	// SecondaryBus and SubordinateBus are only meaningful for bridges.
	SecondaryBus   uint8
	SubordinateBus uint8
	LinkSpeed      uint32

	SlotLabel string
	// RootComplex names the host bridge a top-level device hangs off, e.g. "pci0000:3a".
	RootComplex string
	NUMANode    *int
	// Affinity marks the descriptor as a locality boundary.
	Affinity     *Bitmap
	Capabilities []Capability

	// Accelerator devices receive ordinals in snapshot order.
	Accelerator bool
}

// Snapshot is a complete enumeration of the platform at one point in time.
type Snapshot struct {
	// CPUCount is the number of logical CPUs every affinity bitmap covers.
	CPUCount int
	Devices  []Descriptor
}

// Builder turns enumeration snapshots into trees.
type Builder struct {
	log logr.Logger
}

// NewBuilder returns a Builder that logs its attach decisions to log.
func NewBuilder(log logr.Logger) *Builder {
	return &Builder{log: log}
}

// Build builds a tree with a discarding logger.
func Build(snap Snapshot) (*Tree, error) {
	return NewBuilder(logr.Discard()).Build(snap)
}

type hostBridgeKey struct {
	domain      uint16
	rootComplex string
	numaNode    int
	cpus        string
}

type cpuScopeKey struct {
	numaNode int
	cpus     string
}

// Build constructs the immutable tree. Every descriptor is attached below
// the tightest bridge whose secondary..subordinate range contains its bus.
func (b *Builder) Build(snap Snapshot) (*Tree, error) {
	if snap.CPUCount <= 0 {
		return nil, fmt.Errorf("%w: cpu count must be positive, got %d", ErrInvalidArgument, snap.CPUCount)
	}

	t := &Tree{
		nodes:    make([]Node, 1, len(snap.Devices)+1),
		byBDF:    make(map[BDF]NodeID, len(snap.Devices)),
		cpuCount: snap.CPUCount,
	}
	t.nodes[0] = Node{id: 0, kind: KindVirtualRoot, synthetic: true, parent: noNode, numaNode: -1, ordinal: -1}

	var bridges []NodeID
	for i := range snap.Devices {
		n, err := b.newNode(NodeID(i+1), &snap.Devices[i], snap.CPUCount)
		if err != nil {
			return nil, err
		}
		if prev, ok := t.byBDF[n.bdf]; ok {
			return nil, fmt.Errorf("%w: duplicate address %s (descriptors %d and %d)", ErrMalformedTopology, n.bdf, prev-1, i)
		}
		t.byBDF[n.bdf] = n.id
		t.nodes = append(t.nodes, n)
		if n.IsBridge() {
			bridges = append(bridges, n.id)
		}
	}

	if err := t.checkBridgeRanges(bridges); err != nil {
		return nil, err
	}

	var topLevel []NodeID
	for id := NodeID(1); int(id) < len(t.nodes); id++ {
		parent, err := t.claimingBridge(id, bridges)
		if err != nil {
			return nil, err
		}
		if parent == noNode {
			topLevel = append(topLevel, id)
			continue
		}
		t.attach(parent, id)
		b.log.V(1).Info("Attached node below bridge", "node", t.nodes[id].bdf.String(), "bridge", t.nodes[parent].bdf.String())
	}

	if err := t.adoptFunctionLocality(); err != nil {
		return nil, err
	}
	if err := b.attachTopLevel(t, topLevel); err != nil {
		return nil, err
	}
	b.dropFunctionLocality(t)

	for i := range snap.Devices {
		if snap.Devices[i].Accelerator {
			id := NodeID(i + 1)
			t.nodes[id].ordinal = len(t.devices)
			t.devices = append(t.devices, id)
		}
	}

	if err := t.finalize(); err != nil {
		return nil, err
	}
	b.log.Info("Built topology", "nodes", len(t.nodes), "devices", len(t.devices), "cpuScopes", len(t.cpuScopes))
	return t, nil
}

func (b *Builder) newNode(id NodeID, d *Descriptor, cpuCount int) (Node, error) {
	n := Node{
		id:                id,
		kind:              d.Kind,
		bdf:               d.BDF,
		vendorID:          d.VendorID,
		deviceID:          d.DeviceID,
		subsystemVendorID: d.SubsystemVendorID,
		subsystemID:       d.SubsystemID,
		class:             d.Class,
		className:         d.ClassName,
		deviceName:        d.DeviceName,
		linkSpeed:         d.LinkSpeed,
		slotLabel:         d.SlotLabel,
		rootComplex:       d.RootComplex,
		numaNode:          -1,
		parent:            noNode,
		ordinal:           -1,
		sortKey:           d.BDF,
	}
	switch d.Kind {
	case KindEndpoint:
	case KindBridge, KindHostBridge:
		if d.SecondaryBus > d.SubordinateBus {
			return Node{}, fmt.Errorf("%w: bridge %s has secondary bus %#x above subordinate bus %#x",
				ErrMalformedTopology, d.BDF, d.SecondaryBus, d.SubordinateBus)
		}
		if d.Kind == KindBridge && d.SecondaryBus <= d.BDF.Bus {
			return Node{}, fmt.Errorf("%w: bridge %s forwards to bus %#x which is not below its own bus",
				ErrMalformedTopology, d.BDF, d.SecondaryBus)
		}
		n.primaryBus = d.BDF.Bus
		n.secondaryBus = d.SecondaryBus
		n.subordinateBus = d.SubordinateBus
	default:
		return Node{}, fmt.Errorf("%w: descriptor %s has kind %s", ErrInvalidArgument, d.BDF, d.Kind)
	}
	if d.NUMANode != nil && *d.NUMANode >= 0 {
		n.numaNode = *d.NUMANode
	}
	if d.Affinity != nil {
		if d.Affinity.Width() != cpuCount {
			return Node{}, fmt.Errorf("%w: affinity of %s covers %d cpus, snapshot has %d",
				ErrInvalidArgument, d.BDF, d.Affinity.Width(), cpuCount)
		}
		affinity := d.Affinity.Clone()
		n.affinity = &affinity
	}
	if len(d.Capabilities) > 0 {
		n.caps = make([]Capability, len(d.Capabilities))
		copy(n.caps, d.Capabilities)
	}
	return n, nil
}

// checkBridgeRanges enforces that bus ranges within a domain are disjoint or
// strictly nested.
func (t *Tree) checkBridgeRanges(bridges []NodeID) error {
	for i, a := range bridges {
		na := &t.nodes[a]
		for _, c := range bridges[i+1:] {
			nc := &t.nodes[c]
			if na.bdf.Domain != nc.bdf.Domain {
				continue
			}
			if na.secondaryBus == nc.secondaryBus && na.subordinateBus == nc.subordinateBus {
				return fmt.Errorf("%w: bridges %s and %s claim the same bus range [%#x,%#x]",
					ErrMalformedTopology, na.bdf, nc.bdf, na.secondaryBus, na.subordinateBus)
			}
			overlap := na.secondaryBus <= nc.subordinateBus && nc.secondaryBus <= na.subordinateBus
			if overlap && !rangeWithin(na, nc) && !rangeWithin(nc, na) {
				return fmt.Errorf("%w: bridges %s [%#x,%#x] and %s [%#x,%#x] partially overlap",
					ErrMalformedTopology, na.bdf, na.secondaryBus, na.subordinateBus, nc.bdf, nc.secondaryBus, nc.subordinateBus)
			}
		}
	}
	return nil
}

// rangeWithin reports whether inner's bus range lies inside outer's.
func rangeWithin(inner, outer *Node) bool {
	return outer.secondaryBus <= inner.secondaryBus && inner.subordinateBus <= outer.subordinateBus
}

func (n *Node) claimsBus(domain uint16, bus uint8) bool {
	return n.bdf.Domain == domain && n.secondaryBus <= bus && bus <= n.subordinateBus
}

// claimingBridge returns the tightest bridge containing the bus of id.
func (t *Tree) claimingBridge(id NodeID, bridges []NodeID) (NodeID, error) {
	n := &t.nodes[id]
	selfContaining := n.IsBridge() && n.claimsBus(n.bdf.Domain, n.bdf.Bus)
	best := noNode
	for _, c := range bridges {
		if c == id {
			continue
		}
		cand := &t.nodes[c]
		if !cand.claimsBus(n.bdf.Domain, n.bdf.Bus) {
			continue
		}
		if selfContaining && rangeWithin(cand, n) {
			continue
		}
		if best == noNode {
			best = c
			continue
		}
		cur := &t.nodes[best]
		switch {
		case rangeWithin(cand, cur):
			best = c
		case rangeWithin(cur, cand):
		default:
			return noNode, fmt.Errorf("%w: bus %#x of %s is claimed by %s and %s with no tighter match",
				ErrMalformedTopology, n.bdf.Bus, n.bdf, cur.bdf, cand.bdf)
		}
	}
	if best != noNode && n.IsBridge() && !selfContaining {
		p := &t.nodes[best]
		if !rangeWithin(n, p) || (n.secondaryBus == p.secondaryBus && n.subordinateBus == p.subordinateBus) {
			return noNode, fmt.Errorf("%w: bridge %s [%#x,%#x] escapes the range of its parent %s [%#x,%#x]",
				ErrMalformedTopology, n.bdf, n.secondaryBus, n.subordinateBus, p.bdf, p.secondaryBus, p.subordinateBus)
		}
	}
	return best, nil
}

func (t *Tree) attach(parent, child NodeID) {
	t.nodes[child].parent = parent
	t.nodes[parent].children = append(t.nodes[parent].children, child)
}

func (t *Tree) addSynthetic(n Node) NodeID {
	n.id = NodeID(len(t.nodes))
	n.synthetic = true
	n.parent = noNode
	n.ordinal = -1
	t.nodes = append(t.nodes, n)
	return n.id
}

// attachTopLevel places unclaimed nodes. Nodes carrying locality data are
// grouped below synthetic host bridges, which are grouped below synthetic
// CPU scopes; everything else goes directly below the virtual root.
func (b *Builder) attachTopLevel(t *Tree, topLevel []NodeID) error {
	hostBridges := map[hostBridgeKey]NodeID{}
	var hostBridgeOrder []NodeID

	for _, id := range topLevel {
		n := &t.nodes[id]
		if n.kind == KindHostBridge {
			hostBridgeOrder = append(hostBridgeOrder, id)
			continue
		}
		if n.rootComplex == "" && n.affinity == nil {
			t.attach(0, id)
			b.log.V(1).Info("Attached node below virtual root", "node", n.bdf.String())
			continue
		}

		key := hostBridgeKey{domain: n.bdf.Domain, rootComplex: n.rootComplex}
		if n.rootComplex == "" {
			key.numaNode = n.numaNode
			key.cpus = n.affinity.String()
		}
		hb, ok := hostBridges[key]
		if !ok {
			hb = t.addSynthetic(Node{kind: KindHostBridge, rootComplex: n.rootComplex, numaNode: -1,
				bdf: BDF{Domain: n.bdf.Domain}})
			hostBridges[key] = hb
			hostBridgeOrder = append(hostBridgeOrder, hb)
			n = &t.nodes[id]
		}
		if err := mergeLocality(&t.nodes[hb], n); err != nil {
			return err
		}
		t.attach(hb, id)
		b.log.V(1).Info("Attached node below host bridge", "node", n.bdf.String(), "hostBridge", t.nodes[hb].String())
	}

	cpuScopes := map[cpuScopeKey]NodeID{}
	for _, hb := range hostBridgeOrder {
		h := &t.nodes[hb]
		if h.synthetic {
			t.sortChildren(hb)
			h.sortKey = t.nodes[h.children[0]].sortKey
		}
		var key cpuScopeKey
		switch {
		case h.numaNode >= 0:
			key = cpuScopeKey{numaNode: h.numaNode}
		case h.affinity != nil:
			key = cpuScopeKey{numaNode: -1, cpus: h.affinity.String()}
		default:
			t.attach(0, hb)
			continue
		}
		scope, ok := cpuScopes[key]
		if !ok {
			scope = t.addSynthetic(Node{kind: KindCPUScope, numaNode: key.numaNode, sortKey: t.nodes[hb].sortKey})
			cpuScopes[key] = scope
			t.attach(0, scope)
		}
		s := &t.nodes[scope]
		if h := &t.nodes[hb]; h.affinity != nil {
			if s.affinity == nil {
				affinity := h.affinity.Clone()
				s.affinity = &affinity
			} else {
				union, err := s.affinity.Union(*h.affinity)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrMalformedTopology, err)
				}
				s.affinity = &union
			}
		}
		if t.nodes[hb].sortKey.Less(s.sortKey) {
			s.sortKey = t.nodes[hb].sortKey
		}
		t.attach(scope, hb)
	}
	return nil
}

// adoptFunctionLocality gives enumerated host bridges without a bitmap the
// locality of the functions directly below them.
func (t *Tree) adoptFunctionLocality() error {
	for i := range t.nodes {
		hb := &t.nodes[i]
		if hb.kind != KindHostBridge || hb.affinity != nil {
			continue
		}
		for _, c := range hb.children {
			if err := mergeLocality(hb, &t.nodes[c]); err != nil {
				return err
			}
		}
	}
	return nil
}

// dropFunctionLocality leaves CPU bitmaps only on host bridges and CPU
// scopes, once those have taken over the locality of their functions.
func (b *Builder) dropFunctionLocality(t *Tree) {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.affinity == nil || n.kind == KindHostBridge || n.kind == KindCPUScope {
			continue
		}
		b.log.V(1).Info("Dropping cpu locality of function", "node", n.bdf.String(), "cpus", n.affinity.String())
		n.affinity = nil
	}
}

// mergeLocality folds the locality of a member into its synthetic host bridge.
// Members of the same root complex must agree.
func mergeLocality(hb, member *Node) error {
	if member.affinity != nil {
		if hb.affinity == nil {
			affinity := member.affinity.Clone()
			hb.affinity = &affinity
		} else if !hb.affinity.Equal(*member.affinity) {
			return fmt.Errorf("%w: %s reports cpus %s but %s already has cpus %s",
				ErrMalformedTopology, member.bdf, member.affinity, hb, hb.affinity)
		}
	}
	if member.numaNode >= 0 {
		if hb.numaNode < 0 {
			hb.numaNode = member.numaNode
		} else if hb.numaNode != member.numaNode {
			return fmt.Errorf("%w: %s reports numa node %d but %s already has numa node %d",
				ErrMalformedTopology, member.bdf, member.numaNode, hb, hb.numaNode)
		}
	}
	return nil
}

// finalize sorts children, computes depths and binds every node to t.
func (t *Tree) finalize() error {
	seen := sets.New[NodeID]()
	queue := []NodeID{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		seen.Insert(id)
		t.sortChildren(id)
		for _, c := range t.nodes[id].children {
			t.nodes[c].depth = t.nodes[id].depth + 1
			queue = append(queue, c)
		}
	}
	for i := range t.nodes {
		t.nodes[i].tree = t
	}
	for _, c := range t.nodes[0].children {
		if t.nodes[c].kind == KindCPUScope {
			t.cpuScopes = append(t.cpuScopes, c)
		}
	}
	if seen.Len() != len(t.nodes) {
		return fmt.Errorf("%w: %d of %d nodes are unreachable from the root",
			ErrMalformedTopology, len(t.nodes)-seen.Len(), len(t.nodes))
	}
	return nil
}
