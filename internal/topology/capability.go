// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import "fmt"

// CapabilityPCIExpress is the id of the PCI Express capability structure.
const CapabilityPCIExpress uint8 = 0x10

// Capability is one entry of a node's PCI capability list: the capability id
// and the 16-bit register that follows the next pointer.
type Capability struct {
	ID    uint8  `json:"id"`
	Value uint16 `json:"cap"`
}

// PortType is the device/port type field of the PCI Express capability.
type PortType uint8

const (
	PortTypeEndpoint       PortType = 0x0
	PortTypeLegacyEndpoint PortType = 0x1
	PortTypeRootPort       PortType = 0x4
	PortTypeUpstream       PortType = 0x5
	PortTypeDownstream     PortType = 0x6
	PortTypePCIeToPCI      PortType = 0x7
	PortTypePCIToPCIe      PortType = 0x8
	PortTypeRCEndpoint     PortType = 0x9
	PortTypeRCEventCollect PortType = 0xa
)

// Capabilities returns a copy of the capability list in discovery order.
func (n *Node) Capabilities() []Capability {
	out := make([]Capability, len(n.caps))
	copy(out, n.caps)
	return out
}

// Capability returns the first capability with the given id. The list is
// scanned in discovery order; duplicates are kept, so later entries with the
// same id are only reachable through Capabilities.
func (n *Node) Capability(id uint8) (Capability, error) {
	for _, c := range n.caps {
		if c.ID == id {
			return c, nil
		}
	}
	return Capability{}, fmt.Errorf("%w: capability 0x%02x on %s", ErrNotFound, id, n)
}

// PortType decodes the PCI Express device/port type of n.
func (n *Node) PortType() (PortType, bool) {
	c, err := n.Capability(CapabilityPCIExpress)
	if err != nil {
		return 0, false
	}
	return PortType((c.Value >> 4) & 0xf), true
}
