// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/ironcore-dev/metal-topology/devtopo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

var _ = Describe("topoctl", func() {
	It("should print the snapshot as YAML", func() {
		out, err := run(twoSocketSnapshot, "snapshot")
		Expect(err).NotTo(HaveOccurred())

		var parsed struct {
			CPUCount int              `yaml:"cpuCount"`
			Devices  []map[string]any `yaml:"devices"`
		}
		Expect(yaml.Unmarshal([]byte(out), &parsed)).To(Succeed())
		Expect(parsed.CPUCount).To(Equal(16))
		Expect(parsed.Devices).To(HaveLen(10))
		Expect(parsed.Devices[8]).To(HaveKeyWithValue("slotLabel", "PCIe Slot 5"))
	})

	It("should print the tree", func() {
		out, err := run(twoSocketSnapshot, "tree")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("root\n  cpu/numa0 cpus=0-7\n    hostbridge/pci0000:00 cpus=0-7\n      0000:00:01.0\n"))
		Expect(out).To(ContainSubstring("\n            0000:03:00.0 \"MLU370-X8\" [0]\n"))
		Expect(out).To(ContainSubstring("\n        0000:81:00.0 \"MLU370-X8\" [2] slot=\"PCIe Slot 5\"\n"))
	})

	DescribeTable("classify",
		func(a, b, expected string) {
			out, err := run(twoSocketSnapshot, "classify", a, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(expected + "\n"))
		},
		Entry("same device", "0", "0", "SELF"),
		Entry("behind one switch", "0", "1", "SINGLE"),
		Entry("by address", "0000:03:00.0", "0000:81:00.0", "SYSTEM"),
	)

	It("should reject devices that are not accelerators", func() {
		_, err := run(twoSocketSnapshot, "classify", "0", "0000:82:00.0")
		Expect(err).To(MatchError(devtopo.ErrInvalidDeviceID))

		_, err = run(twoSocketSnapshot, "classify", "0", "nic")
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))
	})

	It("should list nearest devices", func() {
		out, err := run(twoSocketSnapshot, "nearest", "0", "single")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("1\t0000:04:00.0\n"))

		out, err = run(twoSocketSnapshot, "nearest", "2", "single")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())

		_, err = run(twoSocketSnapshot, "nearest", "0", "sibling")
		Expect(err).To(MatchError(devtopo.ErrInvalidArgument))
	})

	It("should list cpu related devices", func() {
		out, err := run(twoSocketSnapshot, "cpu", "10", "cpu")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2\t0000:81:00.0\n"))

		out, err = run(twoSocketSnapshot, "cpu", "3", "system")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2\t0000:81:00.0\n"))
	})

	It("should print affinity in both layouts", func() {
		out, err := run(twoSocketSnapshot, "affinity", "0000:81:00.0")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("cpus: 8-15\ncpuCount: 16\nwords: 0x0000ff00\n"))
	})

	It("should honor the api version", func() {
		_, err := run(twoSocketSnapshot, "--api-version", "1", "affinity", "2")
		Expect(err).To(MatchError(devtopo.ErrUnsupportedVersion))

		_, err = run(twoSocketSnapshot, "--api-version", "1", "classify", "0", "1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should require a dash before the command to exec", func() {
		_, err := run(twoSocketSnapshot, "exec", "0", "true")
		Expect(err).To(MatchError(ContainSubstring("separate DEVICE and COMMAND")))
	})
})
