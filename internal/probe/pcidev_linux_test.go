// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/ironcore-dev/metal-topology/internal/topology"
)

var _ = Describe("CollectSnapshot", func() {
	It("reports a missing device listing as an unknown platform error", func() {
		savedBusPciDevices := pathBusPciDevices
		DeferCleanup(func() {
			pathBusPciDevices = savedBusPciDevices
		})
		pathBusPciDevices = filepath.Join(GinkgoT().TempDir(), "missing")

		_, err := CollectSnapshot(GinkgoLogr, sets.New(DefaultAcceleratorVendors...))
		Expect(err).To(MatchError(topology.ErrUnknown))
		Expect(err).To(MatchError(ContainSubstring("could not list PCI devices")))
	})
})
