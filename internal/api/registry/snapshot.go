// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ironcore-dev/metal-topology/internal/topology"
	"sigs.k8s.io/yaml"
)

// LoadSnapshot reads a YAML or JSON snapshot document from path.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return DecodeSnapshot(data)
}

// DecodeSnapshot decodes a YAML or JSON snapshot document.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.UnmarshalStrict(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// EncodeSnapshot renders snap as YAML.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	return yaml.Marshal(snap)
}

// ToTopology converts the wire snapshot into builder input.
func (s Snapshot) ToTopology() (topology.Snapshot, error) {
	out := topology.Snapshot{
		CPUCount: s.CPUCount,
		Devices:  make([]topology.Descriptor, 0, len(s.Devices)),
	}
	for i, dev := range s.Devices {
		d, err := dev.toDescriptor(s.CPUCount)
		if err != nil {
			return topology.Snapshot{}, fmt.Errorf("device %d: %w", i, err)
		}
		out.Devices = append(out.Devices, d)
	}
	return out, nil
}

func (p PCIDevice) toDescriptor(cpuCount int) (topology.Descriptor, error) {
	bdf, err := topology.ParseBDF(p.Address)
	if err != nil {
		return topology.Descriptor{}, err
	}
	kind, err := parseKind(p.Kind)
	if err != nil {
		return topology.Descriptor{}, err
	}
	d := topology.Descriptor{
		BDF:            bdf,
		Kind:           kind,
		ClassName:      p.ClassName,
		DeviceName:     p.Product,
		SecondaryBus:   p.SecondaryBus,
		SubordinateBus: p.SubordinateBus,
		LinkSpeed:      p.LinkSpeed,
		SlotLabel:      p.SlotLabel,
		RootComplex:    p.RootComplex,
		NUMANode:       p.NumaNodeID,
		Accelerator:    p.Accelerator,
	}
	ids := []struct {
		value string
		dst   *uint16
	}{
		{p.VendorID, &d.VendorID},
		{p.ProductID, &d.DeviceID},
		{p.SubsystemVendorID, &d.SubsystemVendorID},
		{p.SubsystemID, &d.SubsystemID},
	}
	for _, id := range ids {
		v, err := parseHex(id.value, 16)
		if err != nil {
			return topology.Descriptor{}, fmt.Errorf("%s: %w", p.Address, err)
		}
		*id.dst = uint16(v)
	}
	class, err := parseHex(p.Class, 24)
	if err != nil {
		return topology.Descriptor{}, fmt.Errorf("%s: %w", p.Address, err)
	}
	d.Class = uint32(class)

	if p.LocalCPUs != nil {
		cpus, err := topology.ParseCPUList(*p.LocalCPUs, cpuCount)
		if err != nil {
			return topology.Descriptor{}, fmt.Errorf("%s: %w", p.Address, err)
		}
		d.Affinity = &cpus
	}
	for _, c := range p.Capabilities {
		d.Capabilities = append(d.Capabilities, topology.Capability{ID: c.ID, Value: c.Value})
	}
	return d, nil
}

func parseKind(s string) (topology.NodeKind, error) {
	switch s {
	case "", topology.KindEndpoint.String():
		return topology.KindEndpoint, nil
	case topology.KindBridge.String():
		return topology.KindBridge, nil
	case topology.KindHostBridge.String():
		return topology.KindHostBridge, nil
	}
	return 0, fmt.Errorf("%w: unknown device kind %q", topology.ErrInvalidArgument, s)
}

func parseHex(s string, bitSize int) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a %d-bit hex id", topology.ErrInvalidArgument, s, bitSize)
	}
	return v, nil
}
