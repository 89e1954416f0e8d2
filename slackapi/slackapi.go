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

package slackapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/database"
)

// ServerConfig is the Slack command surface configuration.
type ServerConfig struct {
	ListenAddress string
	// SigningSecret verifies request signatures. Empty disables
	// verification; only do that in tests.
	SigningSecret string
	// AdminUsers are actor ids allowed to bypass creator-only
	// restrictions on delete/remove operations.
	AdminUsers []string
}

// Server is the Slack slash-command and event HTTP endpoint. It owns no
// allocation state; every command is translated into one allocator call
// and the structured outcome rendered as an ephemeral message.
type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	store      *database.Store
	teams      *allocation.TeamAllocator
	topics     *allocation.TopicAllocator
	reporter   *allocation.Reporter
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new Slack API server instance.
func New(
	cfg ServerConfig,
	store *database.Store,
	teams *allocation.TeamAllocator,
	topics *allocation.TopicAllocator,
	reporter *allocation.Reporter,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "slackapi")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":3000"
	}
	return &Server{
		config:   cfg,
		logger:   logger,
		store:    store,
		teams:    teams,
		topics:   topics,
		reporter: reporter,
	}
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /slack/commands", s.handleCommand)
	mux.HandleFunc("POST /slack/events", s.handleEvent)

	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	if err := s.startServer(server); err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return err
	}

	s.logger.Info(
		"Slack API listener started on " + s.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.mu.Unlock()

		if srv != nil {
			s.logger.Debug(
				"context cancelled, shutting down Slack API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error(
					"failed to shutdown Slack API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv != nil {
		s.logger.Debug("shutting down Slack API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown Slack API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (s *Server) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for Slack API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"Slack API server error",
				"error", err,
			)
		}
	}()
	return nil
}

func (s *Server) isPrivileged(userID string) bool {
	return slices.Contains(s.config.AdminUsers, userID)
}

func (s *Server) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, map[string]bool{"healthy": true})
}
