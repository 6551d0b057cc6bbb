// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package devtopo_test

import (
	"errors"
	"sync"

	"github.com/ironcore-dev/metal-topology/devtopo"
	"github.com/ironcore-dev/metal-topology/internal/topology"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Library", func() {
	var lib *devtopo.Library

	BeforeEach(func() {
		lib = devtopo.New(GinkgoLogr)
		Expect(lib.Init(twoSocketSnapshot())).To(Succeed())
		DeferCleanup(lib.Release)
	})

	It("should fail before Init and after Release", func() {
		fresh := devtopo.New(GinkgoLogr)
		_, err := fresh.Relationship(devtopo.CurrentVersion, 0, 1)
		Expect(err).To(MatchError(devtopo.ErrUninitialized))

		lib.Release()
		_, err = lib.DeviceCount(devtopo.CurrentVersion)
		Expect(err).To(MatchError(devtopo.ErrUninitialized))
	})

	It("should keep node handles usable after Release", func() {
		n, err := lib.NodeByDevice(devtopo.CurrentVersion, 0)
		Expect(err).NotTo(HaveOccurred())
		lib.Release()
		Expect(n.NUMANode()).To(Equal(0))
		Expect(n.Parent()).NotTo(BeNil())
	})

	It("should reject node handles of a replaced tree", func() {
		stale, err := lib.NodeByDevice(devtopo.CurrentVersion, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(lib.Init(twoSocketSnapshot())).To(Succeed())
		current, err := lib.NodeByDevice(devtopo.CurrentVersion, 2)
		Expect(err).NotTo(HaveOccurred())

		_, err = lib.RelationshipByNode(devtopo.CurrentVersion, stale, current)
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))
		_, err = lib.NodeCapability(devtopo.CurrentVersion, stale, topology.CapabilityPCIExpress)
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))
		_, err = lib.NUMANodeByNode(devtopo.CurrentVersion, stale)
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))

		Expect(lib.NUMANodeByNode(devtopo.CurrentVersion, current)).To(Equal(1))
		_, err = lib.NodeCapability(devtopo.CurrentVersion, nil, topology.CapabilityPCIExpress)
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))
	})

	It("should not keep a tree from a failed Init", func() {
		snap := twoSocketSnapshot()
		snap.Devices = append(snap.Devices, snap.Devices[1])
		Expect(lib.Init(snap)).To(MatchError(devtopo.ErrMalformedTopology))
		Expect(lib.DeviceCount(devtopo.CurrentVersion)).To(Equal(3))
	})

	DescribeTable("should enforce api versions",
		func(call func(devtopo.Version) error, minimum devtopo.Version) {
			for v := devtopo.Version(0); v <= devtopo.CurrentVersion+1; v++ {
				err := call(v)
				if v >= minimum && v <= devtopo.CurrentVersion {
					Expect(errors.Is(err, devtopo.ErrUnsupportedVersion)).To(BeFalse(), "version %d", v)
				} else {
					Expect(err).To(MatchError(devtopo.ErrUnsupportedVersion), "version %d", v)
				}
			}
		},
		Entry("relationship", func(v devtopo.Version) error {
			_, err := lib.Relationship(v, 0, 1)
			return err
		}, devtopo.Version1),
		Entry("affinity", func(v devtopo.Version) error {
			_, err := lib.DeviceAffinity(v, 0)
			return err
		}, devtopo.Version2),
		Entry("nearest devices", func(v devtopo.Version) error {
			_, err := lib.NearestDevices(v, devtopo.RelationshipSingle, nil, 0)
			return err
		}, devtopo.Version3),
		Entry("cpu related devices", func(v devtopo.Version) error {
			_, err := lib.CPURelatedDevices(v, 0, devtopo.RelationshipCPU, nil)
			return err
		}, devtopo.Version3),
		Entry("node by bdf", func(v devtopo.Version) error {
			_, err := lib.NodeByBDF(v, 0, 1, 0, 0)
			return err
		}, devtopo.Version4),
		Entry("traverse", func(v devtopo.Version) error {
			return lib.Traverse(v, func(*devtopo.Node) devtopo.VisitResult { return devtopo.Stop })
		}, devtopo.Version4),
		Entry("numa node", func(v devtopo.Version) error {
			_, err := lib.NUMANodeByDevice(v, 0)
			return err
		}, devtopo.Version5),
	)

	It("should classify devices", func() {
		Expect(lib.Relationship(devtopo.CurrentVersion, 0, 1)).To(Equal(devtopo.RelationshipSingle))
		Expect(lib.Relationship(devtopo.CurrentVersion, 1, 2)).To(Equal(devtopo.RelationshipSystem))
		_, err := lib.Relationship(devtopo.CurrentVersion, 0, 3)
		Expect(err).To(MatchError(devtopo.ErrInvalidDeviceID))

		a, err := lib.NodeByDevice(devtopo.CurrentVersion, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(lib.RelationshipByNode(devtopo.CurrentVersion, a, a)).To(Equal(devtopo.RelationshipSelf))

		other := devtopo.New(GinkgoLogr)
		Expect(other.Init(twoSocketSnapshot())).To(Succeed())
		b, err := other.NodeByDevice(devtopo.CurrentVersion, 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = lib.RelationshipByNode(devtopo.CurrentVersion, a, b)
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))
	})

	It("should report affinity in the legacy word layout", func() {
		aff, err := lib.DeviceAffinity(devtopo.CurrentVersion, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(aff.CPUCount).To(Equal(80))
		// cpus 79-64, 63-32, 31-0
		Expect(aff.Words).To(Equal([]uint32{0xffff, 0xffffff00, 0}))
	})

	It("should answer nearest device queries", func() {
		dst := make([]int, 2)
		n, err := lib.NearestDevices(devtopo.CurrentVersion, devtopo.RelationshipSingle, dst, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(dst[:n]).To(Equal([]int{1}))

		n, err = lib.CPURelatedDevices(devtopo.CurrentVersion, 45, devtopo.RelationshipSystem, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
	})

	It("should look up nodes", func() {
		n, err := lib.NodeByBDF(devtopo.CurrentVersion, 0, 0x81, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(lib.DeviceByBDF(devtopo.CurrentVersion, topology.MustParseBDF("0000:81:00.0"))).To(Equal(2))
		Expect(lib.NUMANodeByNode(devtopo.CurrentVersion, n)).To(Equal(1))

		c, err := lib.NodeCapability(devtopo.CurrentVersion, n, topology.CapabilityPCIExpress)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Value).To(Equal(uint16(0x0002)))

		root, err := lib.VirtualRoot(devtopo.CurrentVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(root.IsVirtualRoot()).To(BeTrue())

		_, err = lib.NodeByBDF(devtopo.CurrentVersion, 0, 0x99, 0, 0)
		Expect(err).To(MatchError(devtopo.ErrInvalidDeviceID))
	})

	It("should find nodes by device name with the capacity convention", func() {
		n, err := lib.NodesByDeviceName(devtopo.CurrentVersion, "MLU370", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		_, err = lib.NodesByDeviceName(devtopo.CurrentVersion, "MLU370", make([]*devtopo.Node, 1))
		Expect(err).To(MatchError(devtopo.ErrInsufficientSpace))

		dst := make([]*devtopo.Node, 4)
		n, err = lib.NodesByDeviceName(devtopo.CurrentVersion, "MLU290", dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		bdf, _ := dst[0].BDF()
		Expect(bdf.String()).To(Equal("0000:81:00.0"))
	})

	It("should serve concurrent readers", func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for j := 0; j < 100; j++ {
					rel, err := lib.Relationship(devtopo.CurrentVersion, 0, 1)
					Expect(err).NotTo(HaveOccurred())
					Expect(rel).To(Equal(devtopo.RelationshipSingle))
				}
			}()
		}
		wg.Wait()
	})
})
