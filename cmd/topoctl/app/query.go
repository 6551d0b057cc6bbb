// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ironcore-dev/metal-topology/devtopo"
	"github.com/ironcore-dev/metal-topology/internal/topology"
)

func NewClassifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify DEVICE DEVICE",
		Short: "Print the relationship between two devices",
		Long:  "Devices are given as ordinals or pci addresses.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library()
			if err != nil {
				return err
			}
			a, err := opts.deviceArg(lib, args[0])
			if err != nil {
				return err
			}
			b, err := opts.deviceArg(lib, args[1])
			if err != nil {
				return err
			}
			rel, err := lib.Relationship(opts.apiVersion(), a, b)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rel)
			return err
		},
	}
}

func NewNearestCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "nearest DEVICE RELATIONSHIP",
		Short: "List the devices related to DEVICE by exactly RELATIONSHIP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library()
			if err != nil {
				return err
			}
			dev, err := opts.deviceArg(lib, args[0])
			if err != nil {
				return err
			}
			rel, err := topology.ParseRelationship(args[1])
			if err != nil {
				return err
			}
			v := opts.apiVersion()
			return printDevices(cmd, opts, lib, func(dst []int) (int, error) {
				return lib.NearestDevices(v, rel, dst, dev)
			})
		},
	}
}

func NewCPUCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cpu CPU RELATIONSHIP",
		Short: "List the devices related to a logical CPU by exactly RELATIONSHIP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library()
			if err != nil {
				return err
			}
			cpu, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid cpu %q: %w", args[0], err)
			}
			rel, err := topology.ParseRelationship(args[1])
			if err != nil {
				return err
			}
			v := opts.apiVersion()
			return printDevices(cmd, opts, lib, func(dst []int) (int, error) {
				return lib.CPURelatedDevices(v, cpu, rel, dst)
			})
		},
	}
}

// printDevices sizes the result with an empty probe call, then fetches it.
func printDevices(cmd *cobra.Command, opts *options, lib *devtopo.Library, query func(dst []int) (int, error)) error {
	count, err := query(nil)
	if err != nil || count == 0 {
		return err
	}
	dst := make([]int, count)
	n, err := query(dst)
	if err != nil {
		return err
	}
	for _, ordinal := range dst[:n] {
		name, err := opts.deviceName(lib, ordinal)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", ordinal, name); err != nil {
			return err
		}
	}
	return nil
}

func NewAffinityCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "affinity DEVICE",
		Short: "Print the CPUs local to a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := opts.library()
			if err != nil {
				return err
			}
			dev, err := opts.deviceArg(lib, args[0])
			if err != nil {
				return err
			}
			aff, err := lib.DeviceAffinity(opts.apiVersion(), dev)
			if err != nil {
				return err
			}
			n, err := lib.NodeByDevice(opts.apiVersion(), dev)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cpus := n.Affinity()
			if _, err := fmt.Fprintf(out, "cpus: %s\n", cpus.String()); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "cpuCount: %d\n", aff.CPUCount); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "words: %s\n", formatWords(aff.Words))
			return err
		},
	}
}

func formatWords(words []uint32) string {
	out := make([]byte, 0, len(words)*11)
	for i, w := range words {
		if i > 0 {
			out = append(out, ',')
		}
		out = fmt.Appendf(out, "0x%08x", w)
	}
	return string(out)
}
