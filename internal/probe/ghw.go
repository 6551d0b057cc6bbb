// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"k8s.io/utils/ptr"

	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"github.com/jaypipes/ghw"
)

// hardwareData is the ghw view of the system used to complete what sysfs
// attributes leave out: human readable names, NUMA locality and NIC names.
type hardwareData struct {
	pciInfo  *ghw.PCIInfo
	topoInfo *ghw.TopologyInfo
	netInfo  *ghw.NetworkInfo
}

func newHardwareData() (*hardwareData, error) {
	pciInfo, err := ghw.PCI()
	if err != nil {
		return nil, fmt.Errorf("error getting PCI info: %w", err)
	}

	topoInfo, err := ghw.Topology()
	if err != nil {
		return nil, fmt.Errorf("error getting topology info: %w", err)
	}

	netInfo, err := ghw.Network()
	if err != nil {
		return nil, fmt.Errorf("error getting network info: %w", err)
	}

	return &hardwareData{
		pciInfo:  pciInfo,
		topoInfo: topoInfo,
		netInfo:  netInfo,
	}, nil
}

// enrich fills names and missing locality of dev.
func (h *hardwareData) enrich(dev *registry.PCIDevice) {
	if h == nil {
		return
	}
	if p := h.pciDevice(dev.Address); p != nil {
		if p.Vendor != nil {
			dev.Vendor = p.Vendor.Name
			if dev.VendorID == "" {
				dev.VendorID = p.Vendor.ID
			}
		}
		if p.Product != nil {
			dev.Product = p.Product.Name
			if dev.ProductID == "" {
				dev.ProductID = p.Product.ID
			}
		}
		if p.Class != nil {
			dev.ClassName = p.Class.Name
		}
		if dev.NumaNodeID == nil && p.Node != nil {
			dev.NumaNodeID = ptr.To(p.Node.ID)
		}
	}
	if dev.NumaNodeID != nil && dev.LocalCPUs == nil {
		if cpus := h.nodeCPUList(*dev.NumaNodeID); cpus != "" {
			dev.LocalCPUs = ptr.To(cpus)
		}
	}
	if len(dev.Interfaces) == 0 {
		dev.Interfaces = h.interfacesByPCIAddress(dev.Address)
	}
}

// pciDevice looks addr up in the enumerated devices only; ghw's GetDevice
// falls back to reading sysfs.
func (h *hardwareData) pciDevice(addr string) *ghw.PCIDevice {
	if h.pciInfo == nil {
		return nil
	}
	for _, p := range h.pciInfo.Devices {
		if p != nil && p.Address == addr {
			return p
		}
	}
	return nil
}

// nodeCPUList renders the logical processors of a NUMA node as a cpulist.
func (h *hardwareData) nodeCPUList(id int) string {
	if h.topoInfo == nil {
		return ""
	}
	for _, node := range h.topoInfo.Nodes {
		if node == nil || node.ID != id {
			continue
		}
		var cpus []int
		for _, core := range node.Cores {
			if core != nil {
				cpus = append(cpus, core.LogicalProcessors...)
			}
		}
		return formatCPUList(cpus)
	}
	return ""
}

// logicalCPUCount is one more than the highest logical processor id ghw reports.
func (h *hardwareData) logicalCPUCount() int {
	if h == nil || h.topoInfo == nil {
		return 0
	}
	highest := -1
	for _, node := range h.topoInfo.Nodes {
		if node == nil {
			continue
		}
		for _, core := range node.Cores {
			if core == nil {
				continue
			}
			for _, cpu := range core.LogicalProcessors {
				highest = max(highest, cpu)
			}
		}
	}
	return highest + 1
}

func (h *hardwareData) interfacesByPCIAddress(addr string) []string {
	if h.netInfo == nil {
		return nil
	}
	var names []string
	for _, nic := range h.netInfo.NICs {
		if nic != nil && ptr.Deref(nic.PCIAddress, "") == addr {
			names = append(names, nic.Name)
		}
	}
	sort.Strings(names)
	return names
}

// formatCPUList renders cpus in kernel cpulist form, e.g. "0-3,8".
func formatCPUList(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	sorted := append([]int(nil), cpus...)
	sort.Ints(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, cpu := range sorted[1:] {
		if cpu == prev {
			continue
		}
		if cpu != prev+1 {
			flush()
			start = cpu
		}
		prev = cpu
	}
	flush()
	return strings.Join(parts, ",")
}
