// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironcore-dev/metal-topology/devtopo"
	"github.com/ironcore-dev/metal-topology/internal/api/registry"
)

func NewSnapshotCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the enumeration snapshot as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := opts.loadSnapshot()
			if err != nil {
				return err
			}
			data, err := registry.EncodeSnapshot(snap)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func NewTreeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the topology tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := opts.library()
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), lib, opts.apiVersion())
		},
	}
}

func printTree(w io.Writer, lib *devtopo.Library, v devtopo.Version) error {
	var writeErr error
	err := lib.Traverse(v, func(n *devtopo.Node) devtopo.VisitResult {
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", n.Depth()))
		b.WriteString(n.String())
		if name := n.DeviceName(); name != "" {
			fmt.Fprintf(&b, " %q", name)
		}
		if ordinal, ok := n.Ordinal(); ok {
			fmt.Fprintf(&b, " [%d]", ordinal)
		}
		if label := n.SlotLabel(); label != "" {
			fmt.Fprintf(&b, " slot=%q", label)
		}
		if cpus, ok := n.LocalAffinity(); ok {
			fmt.Fprintf(&b, " cpus=%s", cpus)
		}
		b.WriteByte('\n')
		if _, writeErr = io.WriteString(w, b.String()); writeErr != nil {
			return devtopo.Stop
		}
		return devtopo.Continue
	})
	if err != nil {
		return err
	}
	return writeErr
}
