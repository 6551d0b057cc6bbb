// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	goflag "flag"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/ironcore-dev/metal-topology/devtopo"
	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"github.com/ironcore-dev/metal-topology/internal/probe"
	"github.com/ironcore-dev/metal-topology/internal/topology"
)

const Name string = "topoctl"

// options are shared by every subcommand.
type options struct {
	snapshotPath       string
	version            int
	acceleratorVendors []string
	zapOpts            zap.Options
	log                logr.Logger
}

func NewCommand() *cobra.Command {
	opts := &options{log: logr.Discard()}
	root := &cobra.Command{
		Use:           Name,
		Short:         "Query the PCI topology of a system",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.log = zap.New(zap.UseFlagOptions(&opts.zapOpts), zap.WriteTo(cmd.ErrOrStderr()))
		},
	}

	root.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "Path to a YAML or JSON snapshot. Probes the local system if empty.")
	root.PersistentFlags().IntVar(&opts.version, "api-version", int(devtopo.CurrentVersion), "Topology API version to query with.")
	root.PersistentFlags().StringSliceVar(&opts.acceleratorVendors, "accelerator-vendors", probe.DefaultAcceleratorVendors, "PCI vendor ids treated as accelerators when probing.")
	goFlags := goflag.NewFlagSet(Name, goflag.ContinueOnError)
	opts.zapOpts.BindFlags(goFlags)
	root.PersistentFlags().AddGoFlagSet(goFlags)

	root.AddCommand(NewSnapshotCommand(opts))
	root.AddCommand(NewTreeCommand(opts))
	root.AddCommand(NewClassifyCommand(opts))
	root.AddCommand(NewNearestCommand(opts))
	root.AddCommand(NewCPUCommand(opts))
	root.AddCommand(NewAffinityCommand(opts))
	root.AddCommand(NewExecCommand(opts))
	return root
}

// loadSnapshot reads --snapshot or probes the local system.
func (o *options) loadSnapshot() (registry.Snapshot, error) {
	if o.snapshotPath != "" {
		return registry.LoadSnapshot(o.snapshotPath)
	}
	return probe.CollectSnapshot(o.log, sets.New(o.acceleratorVendors...))
}

// library builds the topology of the snapshot into a fresh library.
func (o *options) library() (*devtopo.Library, error) {
	snap, err := o.loadSnapshot()
	if err != nil {
		return nil, err
	}
	topo, err := snap.ToTopology()
	if err != nil {
		return nil, err
	}
	lib := devtopo.New(o.log)
	if err := lib.Init(topo); err != nil {
		return nil, err
	}
	return lib, nil
}

func (o *options) apiVersion() devtopo.Version {
	return devtopo.Version(o.version)
}

// deviceArg resolves an ordinal or a PCI address to a device ordinal.
func (o *options) deviceArg(lib *devtopo.Library, arg string) (int, error) {
	if ordinal, err := strconv.Atoi(arg); err == nil {
		return ordinal, nil
	}
	bdf, err := topology.ParseBDF(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a device ordinal nor a pci address: %w", arg, err)
	}
	return lib.DeviceByBDF(o.apiVersion(), bdf)
}

// deviceName renders an ordinal as its PCI address.
func (o *options) deviceName(lib *devtopo.Library, ordinal int) (string, error) {
	n, err := lib.NodeByDevice(o.apiVersion(), ordinal)
	if err != nil {
		return "", err
	}
	bdf, _ := n.BDF()
	return bdf.String(), nil
}
