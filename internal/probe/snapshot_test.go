// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"runtime"

	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/ptr"
)

var _ = Describe("assembleSnapshot", func() {
	var c collected

	BeforeEach(func() {
		c = collected{
			devices: []registry.PCIDevice{
				{
					Address: "0000:3a:00.0", Kind: "bridge", SecondaryBus: 0x3b, SubordinateBus: 0x3b,
					RootComplex: "pci0000:3a", NumaNodeID: ptr.To(0), LocalCPUs: ptr.To("0-15"),
				},
				{Address: "0000:3b:00.0", VendorID: "10de", Class: "030200"},
				{Address: "0000:3b:00.1", VendorID: "10de", Class: "040300"},
				{Address: "0000:3c:00.0", VendorID: "15b3", Class: "020000", NumaNodeID: ptr.To(1), LocalCPUs: ptr.To("16-31")},
				{Address: "0000:3d:00.0", VendorID: "cabc", Class: "ff0000"},
			},
			sysfsSlots:  map[string]string{"0000:3b:00": "7"},
			smbiosSlots: map[string]string{"0000:3b:00": "CPU1 SLOT7", "0000:3c:00": "OCP"},
			interfaces:  map[string][]string{"0000:3c:00.0": {"ens2f1", "ens2f0"}},
			drivers:     map[string]string{"ens2f0": "mlx5_core"},
			vendors:     sets.New(DefaultAcceleratorVendors...),
		}
	})

	It("merges all sources", func() {
		snap := assembleSnapshot(c)
		Expect(snap.CPUCount).To(Equal(32))
		Expect(snap.Devices).To(HaveLen(5))

		gpu := snap.Devices[1]
		Expect(gpu.SlotLabel).To(Equal("7"))
		Expect(gpu.Accelerator).To(BeTrue())

		audio := snap.Devices[2]
		Expect(audio.SlotLabel).To(Equal("7"))
		Expect(audio.Accelerator).To(BeFalse())

		nic := snap.Devices[3]
		Expect(nic.SlotLabel).To(Equal("OCP"))
		Expect(nic.Interfaces).To(Equal([]string{"ens2f0", "ens2f1"}))
		Expect(nic.Driver).To(Equal("mlx5_core"))
		Expect(nic.Accelerator).To(BeFalse())

		Expect(snap.Devices[4].Accelerator).To(BeTrue())
		Expect(snap.Devices[0].Accelerator).To(BeFalse())
	})

	It("builds into a topology", func() {
		snap := assembleSnapshot(c)
		topo, err := snap.ToTopology()
		Expect(err).NotTo(HaveOccurred())
		Expect(topo.Devices).To(HaveLen(5))
	})

	It("falls back to the runtime CPU count", func() {
		snap := assembleSnapshot(collected{devices: []registry.PCIDevice{{Address: "0000:00:00.0"}}})
		Expect(snap.CPUCount).To(Equal(runtime.NumCPU()))
	})

	DescribeTable("isAccelerator",
		func(dev registry.PCIDevice, expected bool) {
			Expect(isAccelerator(dev, sets.New("cabc"))).To(Equal(expected))
		},
		Entry("processing accelerator", registry.PCIDevice{Class: "120000"}, true),
		Entry("3d controller", registry.PCIDevice{Class: "030200"}, true),
		Entry("vga controller", registry.PCIDevice{VendorID: "1a03", Class: "030000"}, false),
		Entry("co-processor", registry.PCIDevice{Class: "0b4000"}, true),
		Entry("allow-listed vendor", registry.PCIDevice{VendorID: "CABC", Class: "000000"}, true),
		Entry("bridge of an allow-listed vendor", registry.PCIDevice{Kind: "bridge", VendorID: "cabc"}, false),
		Entry("short class", registry.PCIDevice{Class: "12"}, false),
	)

	DescribeTable("highestCPU",
		func(list string, expected int) {
			Expect(highestCPU(list)).To(Equal(expected))
		},
		Entry("range", "0-15", 15),
		Entry("mixed", "0-3,32,8-11\n", 32),
		Entry("empty", "", -1),
	)
})
