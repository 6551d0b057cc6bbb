// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package topology_test

import (
	"github.com/ironcore-dev/metal-topology/internal/topology"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"
)

var _ = Describe("Thread affinity", func() {
	It("should pin and release the calling thread", func() {
		var allowed unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &allowed)).To(Succeed())

		first, last := -1, -1
		for cpu := 0; cpu < 1024; cpu++ {
			if allowed.IsSet(cpu) {
				if first < 0 {
					first = cpu
				}
				last = cpu
			}
		}
		Expect(first).To(BeNumerically(">=", 0))

		local, err := topology.BitmapOf(last+1, first)
		Expect(err).NotTo(HaveOccurred())
		tree := mustBuild(topology.Snapshot{
			CPUCount: last + 1,
			Devices: []topology.Descriptor{{
				BDF:         topology.MustParseBDF("0000:01:00.0"),
				Affinity:    &local,
				Accelerator: true,
			}},
		})

		Expect(tree.SetCurrentThreadAffinity(nodeAt(tree, "0000:01:00.0"))).To(Succeed())
		var pinned unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &pinned)).To(Succeed())
		Expect(pinned.Count()).To(Equal(1))
		Expect(pinned.IsSet(first)).To(BeTrue())

		Expect(tree.ClearCurrentThreadAffinity()).To(Succeed())
		var restored unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &restored)).To(Succeed())
		for cpu := first; cpu <= last; cpu++ {
			if allowed.IsSet(cpu) {
				Expect(restored.IsSet(cpu)).To(BeTrue(), "cpu %d", cpu)
			}
		}
	})
})
