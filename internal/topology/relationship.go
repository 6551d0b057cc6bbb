// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"strings"
)

// Relationship classifies the structural distance between two nodes.
// Larger values are further apart.
type Relationship int

const (
	// RelationshipSelf is a node compared with itself.
	RelationshipSelf Relationship = iota
	// RelationshipInternal are devices on the same physical board.
	RelationshipInternal
	// RelationshipSingle are devices that traverse a single PCIe switch.
	RelationshipSingle
	// RelationshipMultiple are devices that traverse multiple switches without crossing a host bridge.
	RelationshipMultiple
	// RelationshipHostBridge are devices connected to the same host bridge.
	RelationshipHostBridge
	// RelationshipCPU are devices connected to the same CPU but possibly multiple host bridges.
	RelationshipCPU
	// RelationshipSystem are devices anywhere in the system.
	RelationshipSystem
)

var relationshipNames = [...]string{
	RelationshipSelf:       "SELF",
	RelationshipInternal:   "INTERNAL",
	RelationshipSingle:     "SINGLE",
	RelationshipMultiple:   "MULTIPLE",
	RelationshipHostBridge: "HOST_BRIDGE",
	RelationshipCPU:        "CPU",
	RelationshipSystem:     "SYSTEM",
}

// Valid reports whether r is one of the defined relationships.
func (r Relationship) Valid() bool {
	return r >= RelationshipSelf && r <= RelationshipSystem
}

func (r Relationship) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Relationship(%d)", int(r))
	}
	return relationshipNames[r]
}

// ParseRelationship accepts the names printed by String, case-insensitively.
func ParseRelationship(s string) (Relationship, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for r, name := range relationshipNames {
		if name == normalized {
			return Relationship(r), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown relationship %q", ErrInvalidArgument, s)
}
