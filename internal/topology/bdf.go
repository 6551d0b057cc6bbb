// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// BDF is the domain:bus:device.function address of a PCI function.
type BDF struct {
	Domain   uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

// ParseBDF parses addresses in the forms "dddd:bb:dd.f" and "bb:dd.f".
func ParseBDF(s string) (BDF, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	var domain, bus, devfn string
	switch len(parts) {
	case 3:
		domain, bus, devfn = parts[0], parts[1], parts[2]
	case 2:
		domain, bus, devfn = "0", parts[0], parts[1]
	default:
		return BDF{}, fmt.Errorf("%w: malformed pci address %q", ErrInvalidArgument, s)
	}
	dev, fn, ok := strings.Cut(devfn, ".")
	if !ok {
		return BDF{}, fmt.Errorf("%w: malformed pci address %q", ErrInvalidArgument, s)
	}

	d, err := strconv.ParseUint(domain, 16, 16)
	if err != nil {
		return BDF{}, fmt.Errorf("%w: pci domain in %q: %v", ErrInvalidArgument, s, err)
	}
	b, err := strconv.ParseUint(bus, 16, 8)
	if err != nil {
		return BDF{}, fmt.Errorf("%w: pci bus in %q: %v", ErrInvalidArgument, s, err)
	}
	v, err := strconv.ParseUint(dev, 16, 8)
	if err != nil || v > 0x1f {
		return BDF{}, fmt.Errorf("%w: pci device in %q", ErrInvalidArgument, s)
	}
	f, err := strconv.ParseUint(fn, 16, 8)
	if err != nil || f > 7 {
		return BDF{}, fmt.Errorf("%w: pci function in %q", ErrInvalidArgument, s)
	}
	return BDF{Domain: uint16(d), Bus: uint8(b), Device: uint8(v), Function: uint8(f)}, nil
}

// MustParseBDF is like ParseBDF but panics on malformed input.
func MustParseBDF(s string) BDF {
	bdf, err := ParseBDF(s)
	if err != nil {
		panic(err)
	}
	return bdf
}

func (b BDF) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", b.Domain, b.Bus, b.Device, b.Function)
}

// Less orders addresses by domain, bus, device and function.
func (b BDF) Less(o BDF) bool {
	if b.Domain != o.Domain {
		return b.Domain < o.Domain
	}
	if b.Bus != o.Bus {
		return b.Bus < o.Bus
	}
	if b.Device != o.Device {
		return b.Device < o.Device
	}
	return b.Function < o.Function
}

// MarshalText implements encoding.TextMarshaler.
func (b BDF) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BDF) UnmarshalText(text []byte) error {
	parsed, err := ParseBDF(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
