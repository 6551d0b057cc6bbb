// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/ironcore-dev/metal-topology/internal/api/registry"
	"github.com/ironcore-dev/metal-topology/internal/metrics"
	"github.com/ironcore-dev/metal-topology/internal/topology"
)

// system is one registered snapshot together with the tree built from it.
type system struct {
	snapshot registry.Snapshot
	tree     *topology.Tree
}

// Server holds the HTTP server's state, including the systems store.
type Server struct {
	addr         string
	mux          *http.ServeMux
	systemsStore *sync.Map
	builder      *topology.Builder
	collector    *metrics.TopologyCollector
	gatherer     prometheus.Gatherer
	log          logr.Logger
}

// NewServer initializes and returns a new Server instance. /metrics serves the
// controller-runtime metrics registry; register Collector with it to expose
// the topology metrics there.
func NewServer(log logr.Logger, addr string) *Server {
	mux := http.NewServeMux()
	server := &Server{
		addr:         addr,
		mux:          mux,
		systemsStore: &sync.Map{},
		builder:      topology.NewBuilder(log.WithName("builder")),
		collector:    metrics.NewTopologyCollector(),
		gatherer:     ctrlmetrics.Registry,
		log:          log,
	}
	server.routes()
	return server
}

// Collector returns the metrics collector fed by this server.
func (s *Server) Collector() *metrics.TopologyCollector {
	return s.collector
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// routes registers the server's routes.
func (s *Server) routes() {
	s.mux.HandleFunc("POST /register", s.registerHandler)
	s.mux.HandleFunc("DELETE /delete/{uuid}", s.deleteHandler)
	s.mux.HandleFunc("GET /systems/{uuid}", s.systemsHandler)
	s.mux.HandleFunc("GET /systems/{uuid}/snapshot", s.snapshotHandler)
	s.mux.HandleFunc("GET /systems/{uuid}/relationship", s.relationshipHandler)
	s.mux.HandleFunc("GET /systems/{uuid}/nearest", s.nearestHandler)
	s.mux.HandleFunc("GET /systems/{uuid}/cpu", s.cpuHandler)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// registerHandler handles the /register endpoint.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var reg registry.RegistrationPayload
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if reg.SystemUUID == "" {
		http.Error(w, "systemUUID is required", http.StatusBadRequest)
		return
	}

	snap, err := reg.Data.ToTopology()
	if err == nil {
		var tree *topology.Tree
		if tree, err = s.builder.Build(snap); err == nil {
			s.systemsStore.Store(reg.SystemUUID, &system{snapshot: reg.Data, tree: tree})
			s.collector.SetTree(reg.SystemUUID, tree)
			s.log.Info("Registered system UUID", "uuid", reg.SystemUUID, "devices", tree.DeviceCount())
			w.WriteHeader(http.StatusCreated)
			return
		}
	}

	s.collector.BuildFailed()
	s.log.Info("Rejected snapshot", "uuid", reg.SystemUUID, "error", err.Error())
	http.Error(w, err.Error(), http.StatusUnprocessableEntity)
}

// systemsHandler handles the /systems/{uuid} endpoint.
func (s *Server) systemsHandler(w http.ResponseWriter, r *http.Request) {
	sys, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, registry.NewTreeNode(sys.tree.Root()))
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	sys, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, sys.snapshot)
}

// relationshipHandler classifies the two nodes given as ?a=<bdf>&b=<bdf>.
func (s *Server) relationshipHandler(w http.ResponseWriter, r *http.Request) {
	sys, ok := s.lookup(w, r)
	if !ok {
		return
	}
	a, err := nodeParam(sys.tree, r, "a")
	if err != nil {
		s.writeError(w, err)
		return
	}
	b, err := nodeParam(sys.tree, r, "b")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rel, err := topology.Classify(a, b)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, registry.RelationshipResponse{
		A:            r.URL.Query().Get("a"),
		B:            r.URL.Query().Get("b"),
		Relationship: rel.String(),
	})
}

// nearestHandler lists the devices related to ?device=<bdf> by ?relation=.
func (s *Server) nearestHandler(w http.ResponseWriter, r *http.Request) {
	sys, ok := s.lookup(w, r)
	if !ok {
		return
	}
	dev, err := nodeParam(sys.tree, r, "device")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rel, err := topology.ParseRelationship(r.URL.Query().Get("relation"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ordinal, ok := dev.Ordinal()
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s is not an accelerator", topology.ErrInvalidDeviceID, dev))
		return
	}
	ordinals, err := sys.tree.DevicesByRelationship(ordinal, rel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDevices(w, sys.tree, rel, ordinals)
}

// cpuHandler lists the devices related to ?cpu= by ?relation=.
func (s *Server) cpuHandler(w http.ResponseWriter, r *http.Request) {
	sys, ok := s.lookup(w, r)
	if !ok {
		return
	}
	cpu, err := strconv.Atoi(r.URL.Query().Get("cpu"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: cpu must be an integer", topology.ErrInvalidArgument))
		return
	}
	rel, err := topology.ParseRelationship(r.URL.Query().Get("relation"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ordinals, err := sys.tree.DevicesByCPU(cpu, rel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDevices(w, sys.tree, rel, ordinals)
}

// deleteHandler handles the DELETE requests to remove a system by UUID.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Received delete request", "method", r.Method, "uri", r.RequestURI)

	uuid := r.PathValue("uuid")
	if _, ok := s.systemsStore.LoadAndDelete(uuid); !ok {
		http.NotFound(w, r)
		return
	}
	s.collector.DeleteSystem(uuid)

	w.WriteHeader(http.StatusOK)
	s.log.Info("Deleted system UUID", "uuid", uuid)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*system, bool) {
	uuid := r.PathValue("uuid")
	value, ok := s.systemsStore.Load(uuid)
	if !ok {
		s.log.Info("System not found", "uuid", uuid)
		http.NotFound(w, r)
		return nil, false
	}
	sys, ok := value.(*system)
	if !ok {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		s.log.Info("Error asserting type of system", "uuid", uuid)
		return nil, false
	}
	return sys, true
}

func nodeParam(tree *topology.Tree, r *http.Request, name string) (*topology.Node, error) {
	bdf, err := topology.ParseBDF(r.URL.Query().Get(name))
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", name, err)
	}
	return tree.NodeByBDF(bdf)
}

func (s *Server) writeDevices(w http.ResponseWriter, tree *topology.Tree, rel topology.Relationship, ordinals []int) {
	resp := registry.DevicesResponse{Relationship: rel.String(), Devices: []string{}}
	for _, ordinal := range ordinals {
		n, err := tree.NodeByOrdinal(ordinal)
		if err != nil {
			s.writeError(w, err)
			return
		}
		bdf, _ := n.BDF()
		resp.Devices = append(resp.Devices, bdf.String())
	}
	s.writeJSON(w, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode result", http.StatusInternalServerError)
		s.log.Error(err, "Error encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, topology.ErrInvalidDeviceID), errors.Is(err, topology.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, topology.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Start starts the server on the specified address and adds logging for key events.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting registry server", "address", s.addr)
	server := &http.Server{Addr: s.addr, Handler: s.mux}

	// Start the server in a new goroutine.
	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP registry server ListenAndServe: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down registry server...")
		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("HTTP server Shutdown: %w", err)
		}
		s.log.Info("Registry server graciously stopped")
		return nil
	case err := <-errChan:
		// In case of server startup error, attempt to shut down gracefully before returning the error.
		if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
			s.log.Error(shutdownErr, "Error shutting down registry server")
		}
		return err
	}
}
