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

package teambot

import (
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/worunie/teambot/allocation"
)

type Config struct {
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	dataDir      string
	// Composition policy for member admission; zero value selects
	// headcount-only with the default team size limit
	policy             allocation.Policy
	maxFiveMemberTeams int
	maxFourMemberTeams int
	fourTierThreshold  int
	topics             []string
	maxTeamsPerTopic   int
	// selectionSet marks the opening time as explicit so a midnight
	// opening is expressible
	selectionSet    bool
	selectionHour   int
	selectionMinute int
	timezone        string
	// Slack command surface (empty address = disabled)
	slackListenAddress string
	slackSigningSecret string
	adminUsers         []string
	// Admin browsing surface (empty address = disabled)
	adminListenAddress string
	adminToken         string
	tracing            bool
	tracingStdout      bool
	shutdownTimeout    time.Duration
}

// ConfigOptionFunc is a function that modifies the Config.
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Config with default values and the provided
// options applied.
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use.
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies the registry for metrics.
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistence directory. An empty value keeps
// all state in memory.
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithPolicy specifies the team composition policy.
func WithPolicy(policy allocation.Policy) ConfigOptionFunc {
	return func(c *Config) {
		c.policy = policy
	}
}

// WithTeamTierLimits specifies the capacity ceilings for the five- and
// four-member team tiers and the tier threshold. Zero values select the
// defaults.
func WithTeamTierLimits(
	maxFive int,
	maxFour int,
	threshold int,
) ConfigOptionFunc {
	return func(c *Config) {
		c.maxFiveMemberTeams = maxFive
		c.maxFourMemberTeams = maxFour
		c.fourTierThreshold = threshold
	}
}

// WithTopics specifies the selectable topic catalog.
func WithTopics(topics []string) ConfigOptionFunc {
	return func(c *Config) {
		c.topics = topics
	}
}

// WithMaxTeamsPerTopic specifies the per-topic team quota.
func WithMaxTeamsPerTopic(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxTeamsPerTopic = limit
	}
}

// WithSelectionOpening specifies the daily local time at which topic
// selection opens and the IANA timezone it is evaluated in.
func WithSelectionOpening(
	hour int,
	minute int,
	timezone string,
) ConfigOptionFunc {
	return func(c *Config) {
		c.selectionSet = true
		c.selectionHour = hour
		c.selectionMinute = minute
		c.timezone = timezone
	}
}

// WithSlackListener specifies the Slack command surface listen address
// and signing secret. An empty address disables the listener.
func WithSlackListener(address, signingSecret string) ConfigOptionFunc {
	return func(c *Config) {
		c.slackListenAddress = address
		c.slackSigningSecret = signingSecret
	}
}

// WithAdminUsers specifies actor ids allowed to bypass creator-only
// restrictions.
func WithAdminUsers(users []string) ConfigOptionFunc {
	return func(c *Config) {
		c.adminUsers = users
	}
}

// WithAdminListener specifies the admin browsing surface listen address
// and bearer token. An empty address disables the listener.
func WithAdminListener(address, token string) ConfigOptionFunc {
	return func(c *Config) {
		c.adminListenAddress = address
		c.adminToken = token
	}
}

// WithTracing enables OpenTelemetry tracing.
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout writes traces to stdout instead of OTLP-over-HTTP.
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies how long Stop waits for graceful
// shutdown.
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
