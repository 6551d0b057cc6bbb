// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"k8s.io/utils/ptr"
)

var (
	pathSysClassNet   = "/sys/class/net"
	pathBusPciDevices = "/sys/bus/pci/devices"
	pathBusPciSlots   = "/sys/bus/pci/slots"
)

const (
	lengthModAlias = 53
)

type deviceModaliasData struct {
	vendorID     string
	productID    string
	subproductID string
	subvendorID  string
	class        string
	subclass     string
	progIface    string
}

// classCode returns the 24-bit class code in hex, e.g. "030200".
func (m *deviceModaliasData) classCode() string {
	return m.class + m.subclass + m.progIface
}

// parseModalias decodes a PCI modalias string.
func parseModalias(value string) *deviceModaliasData {
	modalias := strings.TrimSpace(value)
	if len(modalias) != lengthModAlias {
		return nil
	}

	// e.g, /sys/devices/pci0000:00/0000:00:03.0/0000:03:00.0/modalias
	// -> pci:v00008086d000024DBsv0000103Csd0000006Abc01sc01i8A
	//
	// pci -- PCI device
	// v00008086 -- PCI vendor ID
	// d000024DB -- PCI device ID (the product/model ID)
	// sv0000103C -- PCI subsystem vendor ID
	// sd0000006A -- PCI subsystem device ID (subdevice product/model ID)
	// bc01 -- PCI base class
	// sc01 -- PCI subclass
	// i8A -- programming interface

	if strings.ToLower(modalias[0:3]) != "pci" {
		return nil
	}

	return &deviceModaliasData{
		vendorID:     strings.ToLower(modalias[9:13]),
		productID:    strings.ToLower(modalias[18:22]),
		subvendorID:  strings.ToLower(modalias[28:32]),
		subproductID: strings.ToLower(modalias[38:42]),
		class:        strings.ToLower(modalias[44:46]),
		subclass:     strings.ToLower(modalias[48:50]),
		progIface:    strings.ToLower(modalias[51:53]),
	}
}

// listPCIAddresses returns the addresses below pathBusPciDevices in ascending order.
func listPCIAddresses() ([]string, error) {
	entries, err := os.ReadDir(pathBusPciDevices)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, len(entries))
	for _, e := range entries {
		addrs = append(addrs, e.Name())
	}
	sort.Strings(addrs)
	return addrs, nil
}

func readAttr(addr, name string) (string, bool) {
	value, err := os.ReadFile(filepath.Join(pathBusPciDevices, addr, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(value)), true
}

func readIntAttr(addr, name string) (int, bool) {
	value, ok := readAttr(addr, name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// readSysfsPCIDevice builds the wire description of one PCI function from sysfs.
func readSysfsPCIDevice(addr string) registry.PCIDevice {
	dev := registry.PCIDevice{Address: addr}

	if value, ok := readAttr(addr, "modalias"); ok {
		if m := parseModalias(value); m != nil {
			dev.VendorID = m.vendorID
			dev.ProductID = m.productID
			dev.SubsystemVendorID = m.subvendorID
			dev.SubsystemID = m.subproductID
			dev.Class = m.classCode()
		}
	}

	config, _ := os.ReadFile(filepath.Join(pathBusPciDevices, addr, "config"))
	if isBridge(config, dev.Class) {
		secondary, _ := readIntAttr(addr, "secondary_bus_number")
		subordinate, _ := readIntAttr(addr, "subordinate_bus_number")
		// Bridges the firmware left without a secondary bus forward nothing.
		if secondary != 0 {
			dev.Kind = "bridge"
			dev.SecondaryBus = uint8(secondary)
			dev.SubordinateBus = uint8(subordinate)
		}
	}
	for _, c := range parseCapabilities(config) {
		dev.Capabilities = append(dev.Capabilities, registry.Capability{ID: c.ID, Value: c.Value})
	}

	if value, ok := readAttr(addr, "current_link_speed"); ok {
		dev.LinkSpeed = parseLinkSpeed(value)
	}
	if numa, ok := readIntAttr(addr, "numa_node"); ok && numa >= 0 {
		dev.NumaNodeID = ptr.To(numa)
	}
	if cpus, ok := readAttr(addr, "local_cpulist"); ok {
		dev.LocalCPUs = ptr.To(cpus)
	}
	dev.RootComplex = readRootComplex(addr)
	return dev
}

// readRootComplex resolves the host bridge directory of addr, e.g.
// ../../../devices/pci0000:3a/0000:3a:00.0/0000:3b:00.0 -> pci0000:3a.
func readRootComplex(addr string) string {
	link, err := os.Readlink(filepath.Join(pathBusPciDevices, addr))
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(filepath.ToSlash(link), "/") {
		if strings.HasPrefix(part, "pci") {
			return part
		}
	}
	return ""
}

// parseLinkSpeed converts "8.0 GT/s PCIe" into MT/s. Unknown speeds are 0.
func parseLinkSpeed(value string) uint32 {
	gts, _, ok := strings.Cut(value, " GT/s")
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(gts), 64)
	if err != nil || f < 0 {
		return 0
	}
	return uint32(f*1000 + 0.5)
}

// readSlotLabels maps "dddd:bb:dd" prefixes to the names of the hotplug
// slots below pathBusPciSlots.
func readSlotLabels() map[string]string {
	labels := map[string]string{}
	entries, err := os.ReadDir(pathBusPciSlots)
	if err != nil {
		return labels
	}
	for _, e := range entries {
		value, err := os.ReadFile(filepath.Join(pathBusPciSlots, e.Name(), "address"))
		if err != nil {
			continue
		}
		if addr := strings.TrimSpace(string(value)); addr != "" {
			labels[addr] = e.Name()
		}
	}
	return labels
}

// slotKey returns the "dddd:bb:dd" prefix of a full PCI address.
func slotKey(addr string) string {
	key, _, _ := strings.Cut(addr, ".")
	return key
}

// readNetworkInterfaces maps PCI addresses to the network interfaces they back.
func readNetworkInterfaces() map[string][]string {
	out := map[string][]string{}
	entries, err := os.ReadDir(pathSysClassNet)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if addr := getNetworkDevicePCIAddress(e.Name()); addr != "" {
			out[addr] = append(out[addr], e.Name())
		}
	}
	return out
}

func getNetworkDevicePath(device string) string {
	netDeviceLink, err := os.Readlink(filepath.Join(pathSysClassNet, device)) // e.g., ../../devices/pci0000:00/0000:00:1f.6/net/eth0
	if err != nil {
		return ""
	}

	devicePath := filepath.Clean(filepath.Join(pathSysClassNet, netDeviceLink)) // e.g., /sys/devices/pci0000:00/0000:00:1f.6/net/eth0
	if strings.Contains(devicePath, "devices/virtual/net") {
		return "" // This is a virtual network device, no PCI address.
	}

	deviceLink, err := os.Readlink(filepath.Join(devicePath, "device")) // e.g., ../../0000:00:1f.6
	if err != nil {
		return ""
	}

	return filepath.Clean(filepath.Join(devicePath, deviceLink)) // e.g., /sys/devices/pci0000:00/0000:00:1f.6
}

func getNetworkDevicePCIAddress(device string) string {
	devicePath := getNetworkDevicePath(device)
	if devicePath == "" {
		return ""
	}

	deviceLink, err := os.Readlink(filepath.Join(devicePath, "subsystem")) // e.g., ../../../bus/pci
	if err != nil {
		return ""
	}

	if !strings.HasSuffix(deviceLink, "../../../bus/pci") {
		return "" // Not a PCI device.
	}

	return filepath.Base(devicePath) // e.g., 0000:00:1f.6
}
