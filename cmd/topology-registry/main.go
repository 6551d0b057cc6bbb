// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"os"

	"github.com/ironcore-dev/metal-topology/internal/registry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	setupLog = ctrl.Log.WithName("setup")
)

func main() {
	var addr string

	flag.StringVar(&addr, "registry-addr", ":10000", "Address the topology registry listens on.")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	ctx := ctrl.SetupSignalHandler()

	setupLog.Info("starting topology registry")
	server := registry.NewServer(ctrl.Log.WithName("registry"), addr)
	if err := metrics.Registry.Register(server.Collector()); err != nil {
		setupLog.Error(err, "unable to register topology metrics")
		os.Exit(1)
	}

	if err := server.Start(ctx); err != nil {
		setupLog.Error(err, "problem running topology registry")
		os.Exit(1)
	}
}
