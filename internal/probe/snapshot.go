// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	// acceleratorClasses are full class/subclass prefixes: 3D controllers,
	// other display controllers and co-processors.
	acceleratorClasses = sets.New("0302", "0380", "0b40")
	// acceleratorBaseClasses are base classes: processing accelerators.
	acceleratorBaseClasses = sets.New("12")
	// DefaultAcceleratorVendors are vendors whose functions are accelerators
	// regardless of the class they report.
	DefaultAcceleratorVendors = []string{"cabc"}
)

// collected is everything one enumeration pass gathered before assembly.
type collected struct {
	devices     []registry.PCIDevice
	sysfsSlots  map[string]string
	smbiosSlots map[string]string
	interfaces  map[string][]string
	drivers     map[string]string
	hw          *hardwareData
	vendors     sets.Set[string]
}

// assembleSnapshot merges the collected sources into one snapshot. Sysfs
// values win over ghw and hotplug slots win over SMBIOS slots.
func assembleSnapshot(c collected) registry.Snapshot {
	snap := registry.Snapshot{Devices: make([]registry.PCIDevice, 0, len(c.devices))}
	highest := -1
	for _, dev := range c.devices {
		if names, ok := c.interfaces[dev.Address]; ok {
			dev.Interfaces = append([]string(nil), names...)
			sort.Strings(dev.Interfaces)
		}
		c.hw.enrich(&dev)

		key := slotKey(dev.Address)
		if label, ok := c.sysfsSlots[key]; ok {
			dev.SlotLabel = label
		} else if label, ok := c.smbiosSlots[key]; ok {
			dev.SlotLabel = label
		}
		for _, name := range dev.Interfaces {
			if driver := c.drivers[name]; driver != "" {
				dev.Driver = driver
				break
			}
		}
		dev.Accelerator = isAccelerator(dev, c.vendors)
		if dev.LocalCPUs != nil {
			highest = max(highest, highestCPU(*dev.LocalCPUs))
		}
		snap.Devices = append(snap.Devices, dev)
	}

	snap.CPUCount = max(c.hw.logicalCPUCount(), highest+1)
	if snap.CPUCount == 0 {
		snap.CPUCount = runtime.NumCPU()
	}
	return snap
}

func isAccelerator(dev registry.PCIDevice, vendors sets.Set[string]) bool {
	if dev.Kind != "" && dev.Kind != "endpoint" {
		return false
	}
	if vendors.Has(strings.ToLower(dev.VendorID)) {
		return true
	}
	class := strings.ToLower(dev.Class)
	if len(class) < 4 {
		return false
	}
	return acceleratorClasses.Has(class[:4]) || acceleratorBaseClasses.Has(class[:2])
}

// highestCPU returns the largest cpu in a kernel cpulist, or -1.
func highestCPU(list string) int {
	highest := -1
	for _, part := range strings.Split(strings.TrimSpace(list), ",") {
		_, last, _ := strings.Cut(part, "-")
		if last == "" {
			last = part
		}
		if cpu, err := strconv.Atoi(strings.TrimSpace(last)); err == nil {
			highest = max(highest, cpu)
		}
	}
	return highest
}
