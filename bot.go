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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/worunie/teambot/adminapi"
	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/database"
	"github.com/worunie/teambot/event"
	"github.com/worunie/teambot/slackapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Bot is the assembled allocation engine: store, allocators, event bus,
// and the two HTTP surfaces. Construct with New, then Run.
type Bot struct {
	config        Config
	store         *database.Store
	eventBus      *event.EventBus
	teams         *allocation.TeamAllocator
	topics        *allocation.TopicAllocator
	reporter      *allocation.Reporter
	slack         *slackapi.Server
	admin         *adminapi.Admin
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Bot, error) {
	eventBus := event.NewEventBus(cfg.promRegistry)
	b := &Bot{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	return b, nil
}

// Run assembles the engine and starts the configured listeners. It
// returns once startup is complete; the engine runs until Stop or
// context cancellation.
func (b *Bot) Run(ctx context.Context) error {
	if b.config.tracing {
		if err := b.setupTracing(); err != nil {
			return err
		}
	}
	store, err := database.New(
		database.WithLogger(b.config.logger),
		database.WithPromRegistry(b.config.promRegistry),
		database.WithDataDir(b.config.dataDir),
	)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	b.store = store
	b.shutdownFuncs = append(
		b.shutdownFuncs,
		func(context.Context) error {
			return store.Close()
		},
	)

	b.teams, err = allocation.NewTeamAllocator(allocation.TeamAllocatorConfig{
		Store:              store,
		EventBus:           b.eventBus,
		Logger:             b.config.logger,
		PromRegistry:       b.config.promRegistry,
		Policy:             b.config.policy,
		MaxFiveMemberTeams: b.config.maxFiveMemberTeams,
		MaxFourMemberTeams: b.config.maxFourMemberTeams,
		FourTierThreshold:  b.config.fourTierThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to create team allocator: %w", err)
	}

	var location *time.Location
	if b.config.timezone != "" {
		location, err = time.LoadLocation(b.config.timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	b.topics, err = allocation.NewTopicAllocator(
		allocation.TopicAllocatorConfig{
			Store:            store,
			EventBus:         b.eventBus,
			Logger:           b.config.logger,
			PromRegistry:     b.config.promRegistry,
			Topics:           b.config.topics,
			MaxTeamsPerTopic: b.config.maxTeamsPerTopic,
			CutoffSet:        b.config.selectionSet,
			CutoffHour:       b.config.selectionHour,
			CutoffMinute:     b.config.selectionMinute,
			Location:         location,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create topic allocator: %w", err)
	}

	b.reporter, err = allocation.NewReporter(store, b.teams, b.topics)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	b.subscribeAnnouncements()

	if b.config.slackListenAddress != "" {
		b.slack = slackapi.New(
			slackapi.ServerConfig{
				ListenAddress: b.config.slackListenAddress,
				SigningSecret: b.config.slackSigningSecret,
				AdminUsers:    b.config.adminUsers,
			},
			store,
			b.teams,
			b.topics,
			b.reporter,
			b.config.logger,
		)
		if err := b.slack.Start(ctx); err != nil {
			return err
		}
		b.shutdownFuncs = append(b.shutdownFuncs, b.slack.Stop)
	}

	if b.config.adminListenAddress != "" {
		b.admin = adminapi.New(
			adminapi.AdminConfig{
				ListenAddress: b.config.adminListenAddress,
				Token:         b.config.adminToken,
			},
			store,
			b.reporter,
			b.config.logger,
		)
		if err := b.admin.Start(ctx); err != nil {
			return err
		}
		b.shutdownFuncs = append(b.shutdownFuncs, b.admin.Stop)
	}

	go func() {
		<-ctx.Done()
		if err := b.Stop(); err != nil {
			b.config.logger.Error(
				"shutdown error",
				"error", err,
			)
		}
	}()

	return nil
}

// WaitForShutdown blocks until the engine has stopped.
func (b *Bot) WaitForShutdown() {
	<-b.done
}

// Teams exposes the team allocator for embedding callers.
func (b *Bot) Teams() *allocation.TeamAllocator {
	return b.teams
}

// Topics exposes the topic allocator for embedding callers.
func (b *Bot) Topics() *allocation.TopicAllocator {
	return b.topics
}

// Reporter exposes the read models for embedding callers.
func (b *Bot) Reporter() *allocation.Reporter {
	return b.reporter
}

// Stop shuts down the listeners, the event bus, and the store. Safe to
// call more than once.
func (b *Bot) Stop() error {
	var retErr error
	b.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(),
			b.config.shutdownTimeout,
		)
		defer cancel()

		var errs []error
		// Shutdown funcs in reverse registration order, listeners first
		for i := len(b.shutdownFuncs) - 1; i >= 0; i-- {
			if err := b.shutdownFuncs[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		b.shutdownFuncs = nil
		b.eventBus.Stop()
		close(b.done)
		retErr = errors.Join(errs...)
	})
	return retErr
}

// subscribeAnnouncements logs allocation lifecycle events. The handlers
// run on the bus goroutine, after the originating transaction committed.
func (b *Bot) subscribeAnnouncements() {
	logger := b.config.logger.With("component", "announcer")
	b.eventBus.SubscribeFunc(
		event.TeamCreatedEventType,
		func(evt event.Event) {
			if data, ok := evt.Data.(event.TeamCreatedEvent); ok {
				logger.Info(
					"team created",
					"team", data.TeamName,
					"creator", data.CreatorName,
					"reactivated", data.Reactivated,
				)
			}
		},
	)
	b.eventBus.SubscribeFunc(
		event.TeamDeletedEventType,
		func(evt event.Event) {
			if data, ok := evt.Data.(event.TeamDeletedEvent); ok {
				logger.Info(
					"team deleted",
					"team", data.TeamName,
					"members_removed", data.MembersRemoved,
				)
			}
		},
	)
	b.eventBus.SubscribeFunc(
		event.TopicSelectedEventType,
		func(evt event.Event) {
			if data, ok := evt.Data.(event.TopicSelectedEvent); ok {
				logger.Info(
					"topic selected",
					"team", data.TeamName,
					"topic", data.Topic,
					"changed", data.Changed,
				)
			}
		},
	)
}

// setupTracing configures the global OpenTelemetry trace provider. The
// store's GORM plugin picks it up for per-query spans.
func (b *Bot) setupTracing() error {
	var exporter sdktrace.SpanExporter
	var err error
	if b.config.tracingStdout {
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	} else {
		// Exporter endpoint comes from the standard OTEL_* environment
		exporter, err = otlptracehttp.New(context.Background())
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tracerProvider)
	b.shutdownFuncs = append(b.shutdownFuncs, tracerProvider.Shutdown)
	return nil
}
