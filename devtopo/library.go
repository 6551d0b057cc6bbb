// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

// Package devtopo serves PCI topology queries over one immutable tree. Every
// entry point takes the API version the caller was built against.
package devtopo

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/ironcore-dev/metal-topology/internal/topology"
)

type (
	Node         = topology.Node
	Tree         = topology.Tree
	BDF          = topology.BDF
	Bitmap       = topology.Bitmap
	Capability   = topology.Capability
	Snapshot     = topology.Snapshot
	Descriptor   = topology.Descriptor
	Relationship = topology.Relationship
	Visitor      = topology.Visitor
	VisitResult  = topology.VisitResult
)

const (
	Continue = topology.Continue
	Stop     = topology.Stop

	RelationshipSelf       = topology.RelationshipSelf
	RelationshipInternal   = topology.RelationshipInternal
	RelationshipSingle     = topology.RelationshipSingle
	RelationshipMultiple   = topology.RelationshipMultiple
	RelationshipHostBridge = topology.RelationshipHostBridge
	RelationshipCPU        = topology.RelationshipCPU
	RelationshipSystem     = topology.RelationshipSystem
)

var (
	ErrUninitialized               = topology.ErrUninitialized
	ErrInvalidArgument             = topology.ErrInvalidArgument
	ErrInvalidDeviceID             = topology.ErrInvalidDeviceID
	ErrMalformedTopology           = topology.ErrMalformedTopology
	ErrInsufficientSpace           = topology.ErrInsufficientSpace
	ErrUnsupportedVersion          = topology.ErrUnsupportedVersion
	ErrPlatformAffinityUnsupported = topology.ErrPlatformAffinityUnsupported
	ErrUnknown                     = topology.ErrUnknown
	ErrNotFound                    = topology.ErrNotFound
)

// Affinity is the CPU locality of a device in the legacy word layout.
type Affinity struct {
	CPUCount int
	// Words holds 32 CPUs per word, most significant word first.
	Words []uint32
}

// Library holds the current tree. Readers never lock; Init swaps the tree
// atomically and node handles obtained earlier keep the old tree alive.
type Library struct {
	log  logr.Logger
	tree atomic.Pointer[topology.Tree]
}

// New returns an uninitialized Library.
func New(log logr.Logger) *Library {
	return &Library{log: log}
}

// Init builds a tree from snap and makes it current.
func (l *Library) Init(snap Snapshot) error {
	tree, err := topology.NewBuilder(l.log).Build(snap)
	if err != nil {
		return err
	}
	l.tree.Store(tree)
	l.log.Info("Initialized device topology", "devices", tree.DeviceCount(), "cpus", tree.CPUCount())
	return nil
}

// InitTree makes an already built tree current.
func (l *Library) InitTree(tree *Tree) error {
	if tree == nil {
		return fmt.Errorf("%w: nil tree", ErrInvalidArgument)
	}
	l.tree.Store(tree)
	return nil
}

// Release drops the current tree. Later calls fail with ErrUninitialized.
func (l *Library) Release() {
	l.tree.Store(nil)
}

func (l *Library) current(v, minimum Version) (*topology.Tree, error) {
	if err := requireVersion(v, minimum); err != nil {
		return nil, err
	}
	tree := l.tree.Load()
	if tree == nil {
		return nil, ErrUninitialized
	}
	return tree, nil
}

// DeviceCount returns the number of accelerator devices.
func (l *Library) DeviceCount(v Version) (int, error) {
	tree, err := l.current(v, relationshipVersion)
	if err != nil {
		return 0, err
	}
	return tree.DeviceCount(), nil
}

// Relationship classifies two devices by ordinal.
func (l *Library) Relationship(v Version, dev1, dev2 int) (Relationship, error) {
	tree, err := l.current(v, relationshipVersion)
	if err != nil {
		return 0, err
	}
	return tree.ClassifyByOrdinal(dev1, dev2)
}

// RelationshipByNode classifies two nodes of the current tree.
func (l *Library) RelationshipByNode(v Version, a, b *Node) (Relationship, error) {
	tree, err := l.current(v, relationshipVersion)
	if err != nil {
		return 0, err
	}
	if err := ownedBy(tree, a, b); err != nil {
		return 0, err
	}
	return topology.Classify(a, b)
}

// DeviceAffinity returns the CPUs local to a device.
func (l *Library) DeviceAffinity(v Version, dev int) (Affinity, error) {
	tree, err := l.current(v, affinityVersion)
	if err != nil {
		return Affinity{}, err
	}
	cpus, err := tree.AffinityByOrdinal(dev)
	if err != nil {
		return Affinity{}, err
	}
	return Affinity{CPUCount: cpus.Width(), Words: cpus.Words32()}, nil
}

// SetCurrentThreadAffinity pins the calling goroutine's thread to the CPUs
// local to dev. Pair every successful call with ClearCurrentThreadAffinity.
func (l *Library) SetCurrentThreadAffinity(v Version, dev int) error {
	tree, err := l.current(v, affinityVersion)
	if err != nil {
		return err
	}
	n, err := tree.NodeByOrdinal(dev)
	if err != nil {
		return err
	}
	return tree.SetCurrentThreadAffinity(n)
}

// ClearCurrentThreadAffinity resets the calling thread to all CPUs. dev must
// be a valid ordinal.
func (l *Library) ClearCurrentThreadAffinity(v Version, dev int) error {
	tree, err := l.current(v, affinityVersion)
	if err != nil {
		return err
	}
	if _, err := tree.NodeByOrdinal(dev); err != nil {
		return err
	}
	return tree.ClearCurrentThreadAffinity()
}

// NearestDevices writes the devices related to dev by exactly rel into dst.
// An empty dst only reports the count.
func (l *Library) NearestDevices(v Version, rel Relationship, dst []int, dev int) (int, error) {
	tree, err := l.current(v, nearestVersion)
	if err != nil {
		return 0, err
	}
	return tree.FindByRelationship(dev, rel, dst)
}

// CPURelatedDevices writes the devices related to cpu by exactly rel into dst.
func (l *Library) CPURelatedDevices(v Version, cpu int, rel Relationship, dst []int) (int, error) {
	tree, err := l.current(v, nearestVersion)
	if err != nil {
		return 0, err
	}
	return tree.FindByCPU(cpu, rel, dst)
}

// NodeByBDF returns the node at the given address.
func (l *Library) NodeByBDF(v Version, domain uint16, bus, device, function uint8) (*Node, error) {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return nil, err
	}
	return tree.NodeByBDF(BDF{Domain: domain, Bus: bus, Device: device, Function: function})
}

// NodeByDevice returns the node of a device ordinal.
func (l *Library) NodeByDevice(v Version, dev int) (*Node, error) {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return nil, err
	}
	return tree.NodeByOrdinal(dev)
}

// DeviceByBDF returns the ordinal of the accelerator at the given address.
func (l *Library) DeviceByBDF(v Version, bdf BDF) (int, error) {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return 0, err
	}
	return tree.OrdinalByBDF(bdf)
}

// VirtualRoot returns the root of the current tree.
func (l *Library) VirtualRoot(v Version) (*Node, error) {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

// Traverse walks the current tree in pre-order until visit returns Stop.
func (l *Library) Traverse(v Version, visit Visitor) error {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return err
	}
	if visit == nil {
		return fmt.Errorf("%w: nil visitor", ErrInvalidArgument)
	}
	tree.Walk(visit)
	return nil
}

// NodeCapability returns the first capability of n with the given id.
func (l *Library) NodeCapability(v Version, n *Node, id uint8) (Capability, error) {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return Capability{}, err
	}
	if err := ownedBy(tree, n); err != nil {
		return Capability{}, err
	}
	return n.Capability(id)
}

// NodesByDeviceName writes the nodes named name into dst with the capacity
// convention of NearestDevices.
func (l *Library) NodesByDeviceName(v Version, name string, dst []*Node) (int, error) {
	tree, err := l.current(v, nodeVersion)
	if err != nil {
		return 0, err
	}
	matches := tree.NodesByDeviceName(name)
	if len(dst) == 0 {
		return len(matches), nil
	}
	if len(dst) < len(matches) {
		return len(matches), fmt.Errorf("%w: %d nodes named %q, capacity %d", ErrInsufficientSpace, len(matches), name, len(dst))
	}
	return copy(dst, matches), nil
}

// NUMANodeByNode returns the NUMA node of n, or -1.
func (l *Library) NUMANodeByNode(v Version, n *Node) (int, error) {
	tree, err := l.current(v, numaVersion)
	if err != nil {
		return 0, err
	}
	if err := ownedBy(tree, n); err != nil {
		return 0, err
	}
	return n.NUMANode(), nil
}

// NUMANodeByDevice returns the NUMA node of a device ordinal, or -1.
func (l *Library) NUMANodeByDevice(v Version, dev int) (int, error) {
	tree, err := l.current(v, numaVersion)
	if err != nil {
		return 0, err
	}
	return tree.NUMANodeByOrdinal(dev)
}

// ownedBy rejects nil nodes and nodes of a tree other than the current one.
func ownedBy(tree *topology.Tree, nodes ...*Node) error {
	for _, n := range nodes {
		if n == nil {
			return fmt.Errorf("%w: nil node", ErrInvalidArgument)
		}
		if n.Tree() != tree {
			return fmt.Errorf("%w: node from a released tree", ErrInvalidArgument)
		}
	}
	return nil
}
