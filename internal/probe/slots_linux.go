// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"fmt"

	"github.com/siderolabs/go-smbios/smbios"
)

// collectSMBIOSSlotLabels maps "dddd:bb:dd" prefixes to the designation of the
// SMBIOS system slot that holds them.
func collectSMBIOSSlotLabels() (map[string]string, error) {
	sm, err := smbios.New()
	if err != nil {
		return nil, err
	}

	labels := map[string]string{}
	for _, slot := range sm.SystemSlots {
		if slot.SlotDesignation == "" || slot.BusNumber == 0xff {
			continue
		}
		labels[smbiosSlotKey(slot.SegmentGroupNumber, slot.BusNumber, slot.DeviceFunctionNumber)] = slot.SlotDesignation
	}
	return labels, nil
}

// smbiosSlotKey renders a slot location; devfn holds the device in bits 7:3.
func smbiosSlotKey(segment uint16, bus, devfn uint8) string {
	return fmt.Sprintf("%04x:%02x:%02x", segment, bus, devfn>>3)
}
