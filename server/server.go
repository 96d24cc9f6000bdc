// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server is the HTTP edge of the net-reduction engine: route
// wiring, the JSON envelope, actor extraction and CSV staging.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/logs"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/events"
)

// Server hosts the engine's HTTP surface.
type Server struct {
	svc        *reduction.Service
	bus        *events.InProcessBus
	logger     logs.StructuredLogger
	stagingDir string
	maxUpload  int64
}

// Options tune the edge.
type Options struct {
	StagingDir  string
	MaxUploadMB int
}

// New wires a server around the engine service. bus may be nil when no
// live subscribers are served.
func New(svc *reduction.Service, bus *events.InProcessBus, logger logs.StructuredLogger, opts Options) *Server {
	maxUpload := int64(opts.MaxUploadMB)
	if maxUpload <= 0 {
		maxUpload = 32
	}
	return &Server{
		svc:        svc,
		bus:        bus,
		logger:     logger,
		stagingDir: opts.StagingDir,
		maxUpload:  maxUpload << 20,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/net-reduction", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/summary/{clientId}", s.handleClientSummary)
		r.Get("/summary/{clientId}/{projectId}", s.handleProjectSummary)

		r.Route("/{clientId}/{projectId}", func(r chi.Router) {
			r.Patch("/input-type", s.handleSwitchInputType)
			r.Post("/disconnect", s.handleDisconnect)
			r.Post("/reconnect", s.handleReconnect)
			r.Post("/api-key-request", s.handleRequestAPIKey)
			r.Patch("/api-key-request", s.handleResolveAPIKey)

			r.Route("/{methodology}", func(r chi.Router) {
				r.Post("/manual", s.handleManual)
				r.Post("/api", s.handleAPI)
				r.Post("/iot", s.handleIOT)
				r.Post("/csv", s.handleCSV)
				r.Patch("/manual/{entryId}", s.handleEditManual)
				r.Delete("/manual/{entryId}", s.handleDeleteManual)
			})
		})
	})

	r.Route("/net-reduction-projects", func(r chi.Router) {
		r.Post("/", s.handleCreateProject)
		r.Get("/{clientId}/{projectId}", s.handleGetProject)
		r.Put("/{clientId}/{projectId}", s.handleSaveProject)
		r.Delete("/{clientId}/{projectId}", s.handleDeleteProject)
	})

	r.Post("/formulas", s.handleSaveFormula)

	if s.bus != nil {
		r.Get("/events/{room}", s.handleEvents)
	}
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Infof("listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	ok(w, "ok", nil)
}
