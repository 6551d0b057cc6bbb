// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"github.com/ironcore-dev/metal-topology/internal/topology"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"
)

// CollectFunc enumerates the PCI functions of the local system.
type CollectFunc func(log logr.Logger, vendors sets.Set[string]) (registry.Snapshot, error)

type Agent struct {
	SystemUUID  string
	RegistryURL string
	Duration    time.Duration
	// Interval between periodic registrations.
	Interval time.Duration
	// AcceleratorVendors are PCI vendor ids treated as accelerators.
	AcceleratorVendors sets.Set[string]
	Snapshot           *registry.Snapshot // Pointer to Snapshot for late initialization.
	Collect            CollectFunc
	log                logr.Logger
}

// NewAgent creates a new Agent with the specified system UUID and registry URL.
func NewAgent(log logr.Logger, systemUUID, registryURL string, duration, interval time.Duration) *Agent {
	return &Agent{
		log:                log,
		SystemUUID:         systemUUID,
		RegistryURL:        registryURL,
		Duration:           duration,
		Interval:           interval,
		AcceleratorVendors: sets.New(DefaultAcceleratorVendors...),
		Collect:            CollectSnapshot,
	}
}

// Init collects the PCI snapshot of the system. Collection failures are
// reported as topology.ErrUnknown.
func (a *Agent) Init() error {
	snap, err := a.Collect(a.log, a.AcceleratorVendors)
	if err != nil {
		if errors.Is(err, topology.ErrUnknown) {
			return fmt.Errorf("failed to collect PCI snapshot: %w", err)
		}
		return fmt.Errorf("%w: failed to collect PCI snapshot: %w", topology.ErrUnknown, err)
	}
	topo, err := snap.ToTopology()
	if err != nil {
		return fmt.Errorf("collected PCI snapshot is invalid: %w", err)
	}
	tree, err := topology.NewBuilder(a.log).Build(topo)
	if err != nil {
		return fmt.Errorf("collected PCI snapshot is invalid: %w", err)
	}
	a.log.Info("Collected topology", "devices", tree.DeviceCount(), "nodes", tree.Len())
	a.Snapshot = &snap
	return nil
}

// Start begins the periodic registration process.
func (a *Agent) Start(ctx context.Context) error {
	interval := a.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Ensure the Agent is initialized.
	if a.Snapshot == nil {
		if err := a.Init(); err != nil {
			a.log.Error(err, "failed to initialize agent")
			return err
		}
	}

	// Run the registration immediately before starting the ticker loop.
	a.log.Info("Registering topology ...")
	if err := a.registerTopology(ctx); err != nil {
		a.log.Error(err, "failed to initially register topology")
		return err
	}
	a.log.Info("Topology registered", "uuid", a.SystemUUID)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Probe agent stopped.")
			return nil
		case <-ticker.C:
			a.log.Info("Registering topology ...")
			if err := a.registerTopology(ctx); err != nil {
				a.log.Error(err, "failed to register topology")
				continue
			}
			a.log.Info("Topology registered", "uuid", a.SystemUUID)
		}
	}
}

// registerTopology posts the snapshot with exponential backoff on failure.
// A snapshot the registry rejects is not retried.
func (a *Agent) registerTopology(ctx context.Context) error {
	payload := registry.RegistrationPayload{
		SystemUUID: a.SystemUUID,
		Data:       *a.Snapshot,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return wait.ExponentialBackoffWithContext(
		ctx,
		wait.Backoff{
			Steps:    5,
			Duration: a.Duration,
			Factor:   2.0,
			Jitter:   0.1,
		},
		func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.RegistryURL+"/register", bytes.NewReader(jsonData))
			if err != nil {
				return false, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				a.log.Error(err, "failed to post registration data", "url", a.RegistryURL)
				return false, nil
			}
			defer func() {
				err := resp.Body.Close()
				if err != nil {
					a.log.Error(err, "failed to close response body")
				}
			}()

			switch {
			case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
				return true, nil
			case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
				return false, fmt.Errorf("registry rejected snapshot: %s", resp.Status)
			default:
				a.log.Info("Registry not ready", "url", a.RegistryURL, "status", resp.Status)
				return false, nil
			}
		},
	)
}
