// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package registry

// RegistrationPayload represents the payload to send to the `/register` endpoint,
// including the systemUUID and the enumeration snapshot of the system.
type RegistrationPayload struct {
	SystemUUID string   `json:"systemUUID"`
	Data       Snapshot `json:"data"`
}

// Snapshot is one enumeration of a system's PCI devices.
type Snapshot struct {
	// CPUCount is the number of logical CPUs of the system.
	CPUCount int         `json:"cpuCount"`
	Devices  []PCIDevice `json:"devices"`
}

// RelationshipResponse is returned by `/systems/{uuid}/relationship`.
type RelationshipResponse struct {
	A            string `json:"a"`
	B            string `json:"b"`
	Relationship string `json:"relationship"`
}

// DevicesResponse is returned by the nearest device queries.
type DevicesResponse struct {
	Relationship string   `json:"relationship"`
	Devices      []string `json:"devices"`
}
