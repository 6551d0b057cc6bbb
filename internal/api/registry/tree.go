// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"github.com/ironcore-dev/metal-topology/internal/topology"
	"k8s.io/utils/ptr"
)

// TreeNode is the JSON rendering of a topology node and its subtree.
type TreeNode struct {
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Address    string     `json:"address,omitempty"`
	DeviceName string     `json:"deviceName,omitempty"`
	ClassName  string     `json:"className,omitempty"`
	SlotLabel  string     `json:"slotLabel,omitempty"`
	NumaNodeID *int       `json:"numaNodeID,omitempty"`
	LocalCPUs  string     `json:"localCPUs,omitempty"`
	Ordinal    *int       `json:"ordinal,omitempty"`
	Children   []TreeNode `json:"children,omitempty"`
}

// NewTreeNode renders n and everything below it.
func NewTreeNode(n *topology.Node) TreeNode {
	out := TreeNode{
		Name:       n.String(),
		Kind:       n.Kind().String(),
		DeviceName: n.DeviceName(),
		ClassName:  n.ClassName(),
		SlotLabel:  n.SlotLabel(),
	}
	if bdf, ok := n.BDF(); ok {
		out.Address = bdf.String()
	}
	if numa := n.NUMANode(); numa >= 0 {
		out.NumaNodeID = ptr.To(numa)
	}
	if cpus, ok := n.LocalAffinity(); ok {
		out.LocalCPUs = cpus.String()
	}
	if ordinal, ok := n.Ordinal(); ok {
		out.Ordinal = ptr.To(ordinal)
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, NewTreeNode(c))
	}
	return out
}
