// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import "fmt"

// DevicesByRelationship returns the ordinals of all other accelerators whose
// relationship to ordinal is exactly rel, in ascending order.
func (t *Tree) DevicesByRelationship(ordinal int, rel Relationship) ([]int, error) {
	seed, err := t.NodeByOrdinal(ordinal)
	if err != nil {
		return nil, err
	}
	return t.matching(seed, rel)
}

// FindByRelationship writes the result of DevicesByRelationship into dst.
// With an empty dst it only reports the number of matches. A non-empty dst
// smaller than the result fails with ErrInsufficientSpace and still reports
// the number of matches.
func (t *Tree) FindByRelationship(ordinal int, rel Relationship, dst []int) (int, error) {
	matches, err := t.DevicesByRelationship(ordinal, rel)
	if err != nil {
		return 0, err
	}
	return fill(dst, matches)
}

// CPUScopeOf returns the CPU scope whose locality bitmap contains cpu.
func (t *Tree) CPUScopeOf(cpu int) (*Node, error) {
	if cpu < 0 || cpu >= t.cpuCount {
		return nil, fmt.Errorf("%w: cpu %d out of range [0,%d)", ErrInvalidArgument, cpu, t.cpuCount)
	}
	for _, id := range t.cpuScopes {
		if a := t.nodes[id].affinity; a != nil && a.Has(cpu) {
			return &t.nodes[id], nil
		}
	}
	return nil, fmt.Errorf("%w: cpu %d is not local to any cpu scope", ErrInvalidArgument, cpu)
}

// DevicesByCPU returns the ordinals of accelerators whose relationship to the
// CPU scope of cpu is exactly rel.
func (t *Tree) DevicesByCPU(cpu int, rel Relationship) ([]int, error) {
	scope, err := t.CPUScopeOf(cpu)
	if err != nil {
		return nil, err
	}
	return t.matching(scope, rel)
}

// FindByCPU is DevicesByCPU with the capacity convention of FindByRelationship.
func (t *Tree) FindByCPU(cpu int, rel Relationship, dst []int) (int, error) {
	matches, err := t.DevicesByCPU(cpu, rel)
	if err != nil {
		return 0, err
	}
	return fill(dst, matches)
}

func (t *Tree) matching(seed *Node, rel Relationship) ([]int, error) {
	if !rel.Valid() {
		return nil, fmt.Errorf("%w: relationship %d", ErrInvalidArgument, int(rel))
	}
	out := []int{}
	for ordinal, id := range t.devices {
		if id == seed.id {
			continue
		}
		got, err := Classify(seed, &t.nodes[id])
		if err != nil {
			return nil, err
		}
		if got == rel {
			out = append(out, ordinal)
		}
	}
	return out, nil
}

func fill(dst, matches []int) (int, error) {
	if len(dst) == 0 {
		return len(matches), nil
	}
	if len(dst) < len(matches) {
		return len(matches), fmt.Errorf("%w: %d matches, capacity %d", ErrInsufficientSpace, len(matches), len(dst))
	}
	return copy(dst, matches), nil
}
