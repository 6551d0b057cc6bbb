// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package registry

// Capability is one entry of a PCI capability list.
type Capability struct {
	ID    uint8  `json:"id"`
	Value uint16 `json:"cap"`
}

// PCIDevice is the wire form of one enumerated PCI function.
type PCIDevice struct {
	Address string `json:"address"`
	// Kind is one of endpoint, bridge or host-bridge. Empty means endpoint.
	Kind string `json:"kind,omitempty"`

	VendorID          string `json:"vendorID,omitempty"`
	ProductID         string `json:"productID,omitempty"`
	SubsystemVendorID string `json:"subsystemVendorID,omitempty"`
	SubsystemID       string `json:"subsystemID,omitempty"`
	Class             string `json:"class,omitempty"`
	ClassName         string `json:"className,omitempty"`
	Vendor            string `json:"vendor,omitempty"`
	Product           string `json:"product,omitempty"`

	SecondaryBus   uint8  `json:"secondaryBus,omitempty"`
	SubordinateBus uint8  `json:"subordinateBus,omitempty"`
	LinkSpeed      uint32 `json:"linkSpeed,omitempty"`

	SlotLabel   string `json:"slotLabel,omitempty"`
	RootComplex string `json:"rootComplex,omitempty"`
	NumaNodeID  *int   `json:"numaNodeID,omitempty"`
	// LocalCPUs is a kernel cpulist such as "0-15,32-47".
	LocalCPUs    *string      `json:"localCPUs,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`

	Accelerator bool `json:"accelerator,omitempty"`

	// Interfaces and Driver are set for network functions.
	Interfaces []string `json:"interfaces,omitempty"`
	Driver     string   `json:"driver,omitempty"`
}
