// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology_test

import (
	"github.com/ironcore-dev/metal-topology/internal/topology"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/utils/ptr"
)

var _ = Describe("Affinity", func() {
	It("should return the bitmap of the nearest locality boundary", func() {
		snap := syntheticSnapshot()
		snap.Devices[3].Affinity = cpus(4, 5)
		tree := mustBuild(snap)

		devA := nodeAt(tree, "0000:02:00.0")
		devB := nodeAt(tree, "0000:02:01.0")
		bridge1 := nodeAt(tree, "0000:00:01.0")
		Expect(bridge1.IsLocalityBoundary()).To(BeFalse())
		boundary := bridge1.Parent()
		Expect(boundary.IsHostBridge()).To(BeTrue())
		tagged, ok := boundary.LocalAffinity()
		Expect(ok).To(BeTrue())
		Expect(tagged.String()).To(Equal("0-3"))

		before := devA.Affinity()
		Expect(before.Equal(tagged)).To(BeTrue())
		Expect(devB.Affinity().String()).To(Equal("0-3"))
		after := devA.Affinity()
		Expect(after.Equal(before)).To(BeTrue())
		Expect(devA.LocalityBoundary()).To(Equal(boundary))

		Expect(nodeAt(tree, "0000:04:00.0").Affinity().String()).To(Equal("4-5"))
		Expect(tree.CPUScopes()[0].Affinity().String()).To(Equal("0-5"))
	})

	It("should not let callers mutate the tree through returned bitmaps", func() {
		tree := mustBuild(syntheticSnapshot())
		devA := nodeAt(tree, "0000:02:00.0")
		got := devA.Affinity()
		Expect(got.Set(7)).To(Succeed())
		Expect(devA.Affinity().Has(7)).To(BeFalse())
	})

	It("should fall back to every cpu without locality data", func() {
		tree := mustBuild(topology.Snapshot{
			CPUCount: 4,
			Devices:  []topology.Descriptor{accelerator("0000:01:00.0", "dev0")},
		})
		n := nodeAt(tree, "0000:01:00.0")
		Expect(n.LocalityBoundary()).To(BeNil())
		Expect(n.Affinity().String()).To(Equal("0-3"))
		Expect(n.NUMANode()).To(Equal(-1))
	})

	It("should resolve numa nodes and affinity by ordinal", func() {
		snap := syntheticSnapshot()
		snap.Devices[3].Affinity = cpus(4, 5)
		snap.Devices[3].NUMANode = ptr.To(1)
		tree := mustBuild(snap)

		numa, err := tree.NUMANodeByOrdinal(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(numa).To(Equal(0))
		numa, err = tree.NUMANodeByOrdinal(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(numa).To(Equal(1))
		_, err = tree.NUMANodeByOrdinal(5)
		Expect(err).To(MatchError(topology.ErrInvalidDeviceID))

		b, err := tree.AffinityByOrdinal(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.CPUs()).To(Equal([]int{4, 5}))
	})

	It("should reject foreign and empty nodes for thread affinity", func() {
		one := mustBuild(syntheticSnapshot())
		two := mustBuild(syntheticSnapshot())
		Expect(one.SetCurrentThreadAffinity(nodeAt(two, "0000:02:00.0"))).To(MatchError(topology.ErrInvalidDeviceID))
		Expect(one.SetCurrentThreadAffinity(nil)).To(MatchError(topology.ErrInvalidDeviceID))

		snap := syntheticSnapshot()
		empty := topology.NewBitmap(testCPUCount)
		snap.Devices[0].Affinity = &empty
		snap.Devices[3].Affinity = &empty
		tree := mustBuild(snap)
		Expect(tree.SetCurrentThreadAffinity(nodeAt(tree, "0000:02:00.0"))).To(MatchError(topology.ErrInvalidArgument))
	})
})
