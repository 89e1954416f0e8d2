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

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	teambot "github.com/worunie/teambot"
	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/internal/config"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "bot")

	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second // Default timeout
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}

	b, err := teambot.New(
		teambot.NewConfig(
			teambot.WithLogger(logger),
			teambot.WithDataDir(cfg.DatabasePath),
			teambot.WithPolicy(allocation.HeadcountOnly(cfg.TeamSize)),
			teambot.WithTeamTierLimits(
				cfg.MaxFiveMemberTeams,
				cfg.MaxFourMemberTeams,
				cfg.FourTierThreshold,
			),
			teambot.WithTopics(cfg.Topics),
			teambot.WithMaxTeamsPerTopic(cfg.MaxTeamsPerTopic),
			teambot.WithSelectionOpening(
				cfg.SelectionHour,
				cfg.SelectionMinute,
				cfg.Timezone,
			),
			teambot.WithSlackListener(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.SlackPort),
				cfg.SlackSigningSecret,
			),
			teambot.WithAdminUsers(cfg.AdminUsers),
			teambot.WithAdminListener(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.AdminPort),
				cfg.AdminToken,
			),
			teambot.WithTracing(cfg.Tracing),
			teambot.WithTracingStdout(cfg.TracingStdout),
			teambot.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			teambot.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}

	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component", "bot",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "bot",
			)
			os.Exit(1)
		}
	}()

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	if err := b.Run(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown")

	// Shutdown metrics server
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	// Shutdown engine
	if err := b.Stop(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	b.WaitForShutdown()
	return nil
}
