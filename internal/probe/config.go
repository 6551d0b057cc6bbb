// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"encoding/binary"

	"github.com/ironcore-dev/metal-topology/internal/topology"
)

// Offsets into the standard PCI configuration header.
const (
	configStatus         = 0x06
	configHeaderType     = 0x0e
	configCapabilityPtr  = 0x34
	configHeaderEnd      = 0x40
	statusCapabilityList = 0x10
	headerTypeBridge     = 0x01

	// The capability list lives in the first 256 bytes; 48 entries of 4
	// bytes each fill that space.
	maxCapabilities = 48
)

// parseCapabilities walks the capability list of a configuration space dump.
// Unprivileged readers only see the first 64 bytes, so truncated dumps yield
// the entries that fit.
func parseCapabilities(config []byte) []topology.Capability {
	if len(config) < configHeaderEnd {
		return nil
	}
	if binary.LittleEndian.Uint16(config[configStatus:])&statusCapabilityList == 0 {
		return nil
	}

	var caps []topology.Capability
	ptr := int(config[configCapabilityPtr] & 0xfc)
	for i := 0; i < maxCapabilities && ptr >= configHeaderEnd; i++ {
		if ptr+4 > len(config) {
			break
		}
		id := config[ptr]
		if id == 0xff {
			break
		}
		caps = append(caps, topology.Capability{
			ID:    id,
			Value: binary.LittleEndian.Uint16(config[ptr+2:]),
		})
		ptr = int(config[ptr+1] & 0xfc)
	}
	return caps
}

// isBridge reports whether a function is a PCI-to-PCI bridge, from the header
// type when the dump has it and from the class code otherwise.
func isBridge(config []byte, class string) bool {
	if len(config) > configHeaderType {
		return config[configHeaderType]&0x7f == headerTypeBridge
	}
	return len(class) >= 4 && class[:4] == "0604"
}
