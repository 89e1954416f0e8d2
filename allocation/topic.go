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

package allocation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/worunie/teambot/database"
	"github.com/worunie/teambot/database/models"
	"github.com/worunie/teambot/event"
	"gorm.io/gorm"
)

// Defaults for the topic selection window and quota.
const (
	DefaultMaxTeamsPerTopic = 6
	DefaultCutoffHour       = 15
	DefaultCutoffMinute     = 30
	DefaultTimezone         = "Asia/Seoul"
)

// DefaultTopics is the catalog offered when none is configured.
var DefaultTopics = []string{"WORK", "RUN"}

// TopicAllocatorConfig carries the dependencies and tunables for a
// TopicAllocator.
type TopicAllocatorConfig struct {
	Store        *database.Store
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Topics is the catalog of selectable topics, stored uppercase.
	Topics []string
	// MaxTeamsPerTopic caps how many teams may hold the same topic.
	MaxTeamsPerTopic int
	// Selections are accepted at or after CutoffHour:CutoffMinute local
	// time in Location, every day. CutoffSet marks the pair as explicit,
	// which lets callers configure a midnight opening.
	CutoffSet    bool
	CutoffHour   int
	CutoffMinute int
	Location     *time.Location
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// TopicAllocator owns topic selection: a time-gated, quota-limited
// assignment of one topic per team. Like the team allocator, every
// mutation re-validates inside a store transaction.
type TopicAllocator struct {
	store            *database.Store
	eventBus         *event.EventBus
	logger           *slog.Logger
	metrics          *allocationMetrics
	topics           []string
	maxTeamsPerTopic int
	cutoffHour       int
	cutoffMinute     int
	location         *time.Location
	now              func() time.Time
}

// NewTopicAllocator creates a TopicAllocator from the given config.
func NewTopicAllocator(cfg TopicAllocatorConfig) (*TopicAllocator, error) {
	if cfg.Store == nil {
		return nil, errors.New("no store provided")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = DefaultTopics
	}
	topics := make([]string, len(cfg.Topics))
	for i, t := range cfg.Topics {
		topics[i] = strings.ToUpper(t)
	}
	if cfg.MaxTeamsPerTopic == 0 {
		cfg.MaxTeamsPerTopic = DefaultMaxTeamsPerTopic
	}
	if !cfg.CutoffSet && cfg.CutoffHour == 0 && cfg.CutoffMinute == 0 {
		cfg.CutoffHour = DefaultCutoffHour
		cfg.CutoffMinute = DefaultCutoffMinute
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone: %w", err)
		}
		cfg.Location = loc
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TopicAllocator{
		store:            cfg.Store,
		eventBus:         cfg.EventBus,
		logger:           cfg.Logger.With("component", "allocation"),
		metrics:          newAllocationMetrics(cfg.PromRegistry),
		topics:           topics,
		maxTeamsPerTopic: cfg.MaxTeamsPerTopic,
		cutoffHour:       cfg.CutoffHour,
		cutoffMinute:     cfg.CutoffMinute,
		location:         cfg.Location,
		now:              cfg.Now,
	}, nil
}

// Topics returns the selectable topic catalog.
func (a *TopicAllocator) Topics() []string {
	return slices.Clone(a.topics)
}

// WindowOpen reports whether topic selection is currently accepted, i.e.
// whether local time is at or after the daily opening time. The gate is
// pure wall clock, re-evaluated on every call, never persisted.
func (a *TopicAllocator) WindowOpen() bool {
	now := a.now().In(a.location)
	opening := time.Date(
		now.Year(), now.Month(), now.Day(),
		a.cutoffHour, a.cutoffMinute, 0, 0,
		a.location,
	)
	return !now.Before(opening)
}

// SelectTopic assigns a topic to the named team, or changes the team's
// existing selection in place. Only the team creator may select. The
// window gate is evaluated first, before any lookup.
func (a *TopicAllocator) SelectTopic(
	teamName string,
	actorID string,
	topic string,
) (*models.TopicSelection, error) {
	if !a.WindowOpen() {
		err := failf(
			FailureOutsideSelectionWindow,
			"topic selection opens at %02d:%02d (%s)",
			a.cutoffHour, a.cutoffMinute, a.location,
		)
		a.metrics.observe("select_topic", err)
		return nil, err
	}
	topic = strings.ToUpper(strings.TrimSpace(topic))
	if !slices.Contains(a.topics, topic) {
		err := failf(
			FailureInvalidTopic,
			"unknown topic %q (choose one of %s)",
			topic, strings.Join(a.topics, ", "),
		)
		a.metrics.observe("select_topic", err)
		return nil, err
	}
	var selection *models.TopicSelection
	var previous string
	err := a.store.Transaction(func(tx *gorm.DB) error {
		selection = nil
		previous = ""
		team, err := a.store.GetTeamByName(teamName, false, tx)
		if err != nil {
			return err
		}
		if team == nil {
			return failf(FailureTeamNotFound, "team %q not found", teamName)
		}
		if actorID != team.CreatorID {
			return failf(
				FailureNotAuthorized,
				"only the team creator can select a topic for %q", teamName,
			)
		}
		existing, err := a.store.GetSelectionByTeamName(teamName, tx)
		if err != nil {
			return err
		}
		count, err := a.store.CountSelectionsByTopic(topic, tx)
		if err != nil {
			return err
		}
		if count >= int64(a.maxTeamsPerTopic) {
			return failf(
				FailureTopicQuotaExceeded,
				"topic %s is full (%d teams)", topic, a.maxTeamsPerTopic,
			)
		}
		if existing != nil && existing.Topic == topic {
			return failf(
				FailureAlreadySelected,
				"team %q already selected %s", teamName, topic,
			)
		}
		if existing != nil {
			previous = existing.Topic
			if err := a.store.UpdateSelectionTopic(
				existing.ID, topic, tx,
			); err != nil {
				return err
			}
			existing.Topic = topic
			selection = existing
			return nil
		}
		selection = &models.TopicSelection{
			TeamID:      team.ID,
			TeamName:    teamName,
			Topic:       topic,
			CreatorID:   team.CreatorID,
			CreatorName: team.CreatorName,
		}
		return a.store.CreateSelection(selection, tx)
	})
	a.metrics.observe("select_topic", err)
	if err != nil {
		return nil, err
	}
	a.logger.Info(
		"topic selected",
		"team", teamName,
		"topic", topic,
		"previous", previous,
	)
	if a.eventBus != nil {
		a.eventBus.Publish(
			event.TopicSelectedEventType,
			event.NewEvent(
				event.TopicSelectedEventType,
				event.TopicSelectedEvent{
					TeamID:        selection.TeamID,
					TeamName:      teamName,
					Topic:         topic,
					PreviousTopic: previous,
					Changed:       previous != "",
				},
			),
		)
	}
	return selection, nil
}

// SelectionByTeamName returns the team's active selection, or nil when it
// has not selected.
func (a *TopicAllocator) SelectionByTeamName(
	teamName string,
) (*models.TopicSelection, error) {
	return a.store.GetSelectionByTeamName(teamName, nil)
}

// AllSelections returns every active selection, oldest first.
func (a *TopicAllocator) AllSelections() ([]models.TopicSelection, error) {
	return a.store.GetActiveSelections(nil)
}

// TopicCounts returns remaining-capacity accounting for every topic in the
// catalog, including topics no team has selected.
func (a *TopicAllocator) TopicCounts() (map[string]int, error) {
	counts := make(map[string]int, len(a.topics))
	for _, topic := range a.topics {
		count, err := a.store.CountSelectionsByTopic(topic, nil)
		if err != nil {
			return nil, err
		}
		counts[topic] = int(count)
	}
	return counts, nil
}

// MaxTeamsPerTopic returns the per-topic team quota.
func (a *TopicAllocator) MaxTeamsPerTopic() int {
	return a.maxTeamsPerTopic
}
