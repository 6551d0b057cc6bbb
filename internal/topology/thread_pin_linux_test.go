// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"
)

func pinnedThreadCount() int {
	count := 0
	pinnedThreads.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

var _ = Describe("Thread pinning", func() {
	It("should hold one pin across repeated sets", func() {
		var allowed unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &allowed)).To(Succeed())
		var cpus []int
		for cpu := 0; cpu < cpuSetSize; cpu++ {
			if allowed.IsSet(cpu) {
				cpus = append(cpus, cpu)
			}
		}
		Expect(cpus).NotTo(BeEmpty())
		all, err := BitmapOf(cpus[len(cpus)-1]+1, cpus...)
		Expect(err).NotTo(HaveOccurred())
		one, err := BitmapOf(all.Width(), cpus[0])
		Expect(err).NotTo(HaveOccurred())

		Expect(setThreadAffinity(one)).To(Succeed())
		tid := unix.Gettid()
		Expect(setThreadAffinity(one)).To(Succeed())
		Expect(unix.Gettid()).To(Equal(tid))
		Expect(pinnedThreadCount()).To(Equal(1))

		Expect(clearThreadAffinity(all)).To(Succeed())
		Expect(pinnedThreadCount()).To(BeZero())
		Expect(clearThreadAffinity(all)).To(Succeed())
		Expect(pinnedThreadCount()).To(BeZero())
	})
})
