// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package metrics_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"k8s.io/utils/ptr"

	"github.com/ironcore-dev/metal-topology/internal/metrics"
	"github.com/ironcore-dev/metal-topology/internal/topology"
)

func sampleTree() *topology.Tree {
	socket0, err := topology.ParseCPUList("0-1", 4)
	Expect(err).NotTo(HaveOccurred())
	tree, err := topology.Build(topology.Snapshot{
		CPUCount: 4,
		Devices: []topology.Descriptor{
			{
				BDF: topology.MustParseBDF("0000:00:01.0"), Kind: topology.KindBridge,
				SecondaryBus: 1, SubordinateBus: 1, NUMANode: ptr.To(0), Affinity: &socket0,
			},
			{BDF: topology.MustParseBDF("0000:01:00.0"), Accelerator: true},
			{BDF: topology.MustParseBDF("0000:01:00.1"), Accelerator: true},
			{BDF: topology.MustParseBDF("0000:05:00.0")},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return tree
}

var _ = Describe("TopologyCollector", func() {
	var collector *metrics.TopologyCollector

	BeforeEach(func() {
		collector = metrics.NewTopologyCollector()
	})

	It("should only report the failure counter without trees", func() {
		Expect(testutil.CollectAndCount(collector)).To(Equal(1))
		Expect(testutil.CollectAndCompare(collector, strings.NewReader(`
# HELP pci_topology_build_failures_total Total count of snapshots that did not build into a topology
# TYPE pci_topology_build_failures_total counter
pci_topology_build_failures_total 0
`), "pci_topology_build_failures_total")).To(Succeed())
	})

	It("should report nodes per kind and devices per NUMA node", func() {
		collector.SetTree("system-a", sampleTree())
		collector.BuildFailed()

		Expect(testutil.CollectAndCompare(collector, strings.NewReader(`
# HELP pci_topology_devices Number of accelerator devices per system and NUMA node
# TYPE pci_topology_devices gauge
pci_topology_devices{numa_node="0",system="system-a"} 2
# HELP pci_topology_nodes Number of topology nodes per system and node kind
# TYPE pci_topology_nodes gauge
pci_topology_nodes{kind="bridge",system="system-a"} 1
pci_topology_nodes{kind="cpu",system="system-a"} 1
pci_topology_nodes{kind="endpoint",system="system-a"} 3
pci_topology_nodes{kind="host-bridge",system="system-a"} 1
pci_topology_nodes{kind="root",system="system-a"} 1
# HELP pci_topology_build_failures_total Total count of snapshots that did not build into a topology
# TYPE pci_topology_build_failures_total counter
pci_topology_build_failures_total 1
`))).To(Succeed())
	})

	It("should forget deleted systems", func() {
		collector.SetTree("system-a", sampleTree())
		collector.SetTree("system-b", sampleTree())
		collector.DeleteSystem("system-a")
		Expect(testutil.CollectAndCount(collector, "pci_topology_devices")).To(Equal(1))
	})
})
