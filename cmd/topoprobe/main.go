// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/ironcore-dev/metal-topology/internal/probe"
	"k8s.io/apimachinery/pkg/util/sets"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

var (
	setupLog = ctrl.Log.WithName("setup")
)

func main() {
	var registryURL string
	var serverUUID string
	var duration time.Duration
	var interval time.Duration
	var acceleratorVendors string

	flag.StringVar(&registryURL, "registry-url", "", "Registry URL where the probe will register the topology.")
	flag.StringVar(&serverUUID, "server-uuid", "", "System UUID to register with the registry.")
	flag.DurationVar(&duration, "duration", 5*time.Second, "Initial backoff between failed registration attempts.")
	flag.DurationVar(&interval, "interval", 30*time.Second, "Interval between periodic registrations.")
	flag.StringVar(&acceleratorVendors, "accelerator-vendors", strings.Join(probe.DefaultAcceleratorVendors, ","),
		"Comma separated PCI vendor ids whose functions are accelerators.")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if serverUUID == "" {
		setupLog.Error(nil, "server uuid is missing")
		os.Exit(1)
	}

	if registryURL == "" {
		setupLog.Error(nil, "registry URL is missing")
		os.Exit(1)
	}

	ctx := ctrl.SetupSignalHandler()

	setupLog.Info("starting topology probe agent")
	agent := probe.NewAgent(ctrl.Log.WithName("probe"), serverUUID, registryURL, duration, interval)
	vendors := sets.New[string]()
	for _, v := range strings.Split(acceleratorVendors, ",") {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			vendors.Insert(v)
		}
	}
	agent.AcceleratorVendors = vendors
	if err := agent.Start(ctx); err != nil {
		setupLog.Error(err, "problem running probe agent")
		os.Exit(1)
	}
}
