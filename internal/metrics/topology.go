// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironcore-dev/metal-topology/internal/topology"
)

// TopologyCollector exposes the shape of every registered topology tree.
type TopologyCollector struct {
	trees         map[string]*topology.Tree
	buildFailures uint64
	mux           sync.RWMutex
	nodesDesc     *prometheus.Desc
	devicesDesc   *prometheus.Desc
	failuresDesc  *prometheus.Desc
}

// NewTopologyCollector initializes an empty TopologyCollector. Register it
// with a prometheus.Registerer such as the controller-runtime metrics.Registry.
func NewTopologyCollector() *TopologyCollector {
	return &TopologyCollector{
		trees: make(map[string]*topology.Tree),
		nodesDesc: prometheus.NewDesc(
			"pci_topology_nodes",
			"Number of topology nodes per system and node kind",
			[]string{"system", "kind"},
			nil,
		),
		devicesDesc: prometheus.NewDesc(
			"pci_topology_devices",
			"Number of accelerator devices per system and NUMA node",
			[]string{"system", "numa_node"},
			nil,
		),
		failuresDesc: prometheus.NewDesc(
			"pci_topology_build_failures_total",
			"Total count of snapshots that did not build into a topology",
			nil,
			nil,
		),
	}
}

// SetTree records the current tree of a system.
func (c *TopologyCollector) SetTree(system string, tree *topology.Tree) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.trees[system] = tree
}

// DeleteSystem forgets a system.
func (c *TopologyCollector) DeleteSystem(system string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	delete(c.trees, system)
}

// BuildFailed counts a rejected snapshot.
func (c *TopologyCollector) BuildFailed() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.buildFailures++
}

// Describe and Collect implement the prometheus.Collector interface to expose metrics.
func (c *TopologyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodesDesc
	ch <- c.devicesDesc
	ch <- c.failuresDesc
}

// Collect walks every registered tree and sends the counts to Prometheus.
func (c *TopologyCollector) Collect(ch chan<- prometheus.Metric) {
	c.mux.RLock()
	defer c.mux.RUnlock()

	for system, tree := range c.trees {
		kinds := map[string]int{}
		numa := map[int]int{}
		tree.Walk(func(n *topology.Node) topology.VisitResult {
			kinds[n.Kind().String()]++
			if _, ok := n.Ordinal(); ok {
				numa[n.NUMANode()]++
			}
			return topology.Continue
		})
		for kind, count := range kinds {
			ch <- prometheus.MustNewConstMetric(c.nodesDesc, prometheus.GaugeValue, float64(count), system, kind)
		}
		for node, count := range numa {
			ch <- prometheus.MustNewConstMetric(c.devicesDesc, prometheus.GaugeValue, float64(count), system, strconv.Itoa(node))
		}
	}
	ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(c.buildFailures))
}
