// Copyright 2025 Worunie Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adminapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/database"
)

// AdminConfig is the admin browsing surface configuration.
type AdminConfig struct {
	ListenAddress string
	// Token guards the endpoint with a static bearer token. Empty
	// disables the check; only do that in tests.
	Token string
}

// Admin is the read-mostly operator API: roster and allocation browsing
// plus direct soft-delete toggles. The allocation engine tolerates these
// writes by re-validating state on every operation, so the admin surface
// writes through the store without going through the allocators.
type Admin struct {
	config     AdminConfig
	logger     *slog.Logger
	store      *database.Store
	reporter   *allocation.Reporter
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new admin API server instance.
func New(
	cfg AdminConfig,
	store *database.Store,
	reporter *allocation.Reporter,
	logger *slog.Logger,
) *Admin {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "adminapi")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":3001"
	}
	return &Admin{
		config:   cfg,
		logger:   logger,
		store:    store,
		reporter: reporter,
	}
}

// Start starts the HTTP server in a background goroutine.
func (a *Admin) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/participants", a.handleParticipants)
	mux.HandleFunc("GET /admin/teams", a.handleTeams)
	mux.HandleFunc("GET /admin/teams/{name}", a.handleTeamDetail)
	mux.HandleFunc("GET /admin/selections", a.handleSelections)
	mux.HandleFunc("GET /admin/statistics", a.handleStatistics)
	mux.HandleFunc(
		"POST /admin/participants/{id}",
		a.handleUpdateParticipant,
	)
	mux.HandleFunc(
		"POST /admin/participants/{id}/deactivate",
		a.handleDeactivateParticipant,
	)
	mux.HandleFunc(
		"POST /admin/teams/{name}/deactivate",
		a.handleDeactivateTeam,
	)

	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.authMiddleware(mux),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"admin API listener started on " + a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down admin API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown admin API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (a *Admin) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down admin API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown admin API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (a *Admin) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for admin API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"admin API server error",
				"error", err,
			)
		}
	}()
	return nil
}

func (a *Admin) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.config.Token != "" {
			if r.Header.Get("Authorization") != "Bearer "+a.config.Token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
