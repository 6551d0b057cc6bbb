// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"github.com/go-logr/logr"
	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/ptr"
)

func CollectSnapshot(_ logr.Logger, vendors sets.Set[string]) (registry.Snapshot, error) {
	slots, _ := collectSMBIOSSlotLabels()
	drivers, _ := collectNICDrivers([]string{"foo0"})
	return assembleSnapshot(collected{
		devices: []registry.PCIDevice{
			{
				Address:        "0000:00:01.0",
				Kind:           "bridge",
				SecondaryBus:   1,
				SubordinateBus: 1,
				RootComplex:    "pci0000:00",
				NumaNodeID:     ptr.To(0),
				LocalCPUs:      ptr.To("0-3"),
			},
			{
				Address:   "0000:01:00.0",
				VendorID:  "cabc",
				ProductID: "0370",
				Class:     "120000",
				Product:   "FooAccelerator",
			},
			{
				Address:    "0000:00:02.0",
				VendorID:   "1234",
				ProductID:  "5678",
				Class:      "020000",
				Product:    "BarNIC",
				NumaNodeID: ptr.To(0),
				LocalCPUs:  ptr.To("0-3"),
			},
		},
		smbiosSlots: slots,
		interfaces:  map[string][]string{"0000:00:02.0": {"foo0"}},
		drivers:     drivers,
		vendors:     vendors,
	}), nil
}
