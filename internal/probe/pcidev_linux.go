// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"github.com/ironcore-dev/metal-topology/internal/topology"
	"k8s.io/apimachinery/pkg/util/sets"
)

// CollectSnapshot enumerates the PCI functions of this system. Only the sysfs
// device listing is required; the other sources are best effort. A failing
// listing is reported as topology.ErrUnknown.
func CollectSnapshot(log logr.Logger, vendors sets.Set[string]) (registry.Snapshot, error) {
	addrs, err := listPCIAddresses()
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("%w: could not list PCI devices: %w", topology.ErrUnknown, err)
	}

	c := collected{
		devices:    make([]registry.PCIDevice, 0, len(addrs)),
		sysfsSlots: readSlotLabels(),
		interfaces: readNetworkInterfaces(),
		vendors:    vendors,
	}
	for _, addr := range addrs {
		c.devices = append(c.devices, readSysfsPCIDevice(addr))
	}

	if c.hw, err = newHardwareData(); err != nil {
		log.Error(err, "Continuing without ghw hardware data")
	}
	if c.smbiosSlots, err = collectSMBIOSSlotLabels(); err != nil {
		log.V(1).Info("No SMBIOS slot data", "error", err.Error())
	}

	names := sets.New[string]()
	for _, ifaces := range c.interfaces {
		names.Insert(ifaces...)
	}
	if c.drivers, err = collectNICDrivers(sets.List(names)); err != nil {
		log.V(1).Info("No NIC driver data", "error", err.Error())
	}

	snap := assembleSnapshot(c)
	log.Info("Collected PCI snapshot", "devices", len(snap.Devices), "cpus", snap.CPUCount)
	return snap, nil
}
