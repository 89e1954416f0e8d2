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

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worunie/teambot/event"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventBusSingleSubscriber(t *testing.T) {
	evtType := event.TeamCreatedEventType
	eb := event.NewEventBus(nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(evtType)
	eb.Publish(
		evtType,
		event.NewEvent(evtType, event.TeamCreatedEvent{
			TeamID:   1,
			TeamName: "rocket",
		}),
	)
	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		data, ok := evt.Data.(event.TeamCreatedEvent)
		require.True(
			t, ok,
			"event data was not of expected type, got %T", evt.Data,
		)
		assert.Equal(t, "rocket", data.TeamName)
		assert.Equal(t, evtType, evt.Type)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventBusSubscribeFunc(t *testing.T) {
	evtType := event.TopicSelectedEventType
	eb := event.NewEventBus(nil)
	defer eb.Stop()
	var received atomic.Int64
	done := make(chan struct{})
	eb.SubscribeFunc(evtType, func(evt event.Event) {
		if received.Add(1) == 2 {
			close(done)
		}
	})
	for range 2 {
		eb.Publish(
			evtType,
			event.NewEvent(evtType, event.TopicSelectedEvent{
				TeamName: "rocket",
				Topic:    "WORK",
			}),
		)
	}
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for handler")
	}
	assert.Equal(t, int64(2), received.Load())
}

func TestEventBusUnsubscribe(t *testing.T) {
	evtType := event.MemberAddedEventType
	eb := event.NewEventBus(nil)
	defer eb.Stop()
	subID, subCh := eb.Subscribe(evtType)
	eb.Unsubscribe(evtType, subID)
	_, ok := <-subCh
	assert.False(t, ok, "channel should be closed after unsubscribe")
	// Publishing to a type with no subscribers must not block
	eb.Publish(
		evtType,
		event.NewEvent(evtType, event.MemberAddedEvent{}),
	)
}
