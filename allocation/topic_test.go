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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worunie/teambot/database"
)

// afterOpening is a fixed instant past the default 15:30 gate.
var afterOpening = time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)

// beforeOpening is a fixed instant ahead of the gate, same day.
var beforeOpening = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

func newTestTopicAllocator(
	t *testing.T,
	store *database.Store,
	override func(*TopicAllocatorConfig),
) *TopicAllocator {
	t.Helper()
	cfg := TopicAllocatorConfig{
		Store:    store,
		Location: time.UTC,
		Now: func() time.Time {
			return afterOpening
		},
	}
	if override != nil {
		override(&cfg)
	}
	alloc, err := NewTopicAllocator(cfg)
	require.NoError(t, err)
	return alloc
}

func TestSelectTopicWindowGate(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)

	now := beforeOpening
	alloc := newTestTopicAllocator(t, store, func(cfg *TopicAllocatorConfig) {
		cfg.Now = func() time.Time {
			return now
		}
	})

	assert.False(t, alloc.WindowOpen())
	_, err = alloc.SelectTopic("alpha", "UC1", "WORK")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureOutsideSelectionWindow, f.Code)

	// The gate is pure wall clock; the same call succeeds after opening
	now = afterOpening
	assert.True(t, alloc.WindowOpen())
	selection, err := alloc.SelectTopic("alpha", "UC1", "WORK")
	require.NoError(t, err)
	assert.Equal(t, "WORK", selection.Topic)
}

func TestSelectTopicMidnightOpening(t *testing.T) {
	store := newTestStore(t)
	justAfterMidnight := time.Date(2026, 3, 2, 0, 10, 0, 0, time.UTC)

	// An explicit 00:00 opening keeps the window open all day
	alloc := newTestTopicAllocator(t, store, func(cfg *TopicAllocatorConfig) {
		cfg.CutoffSet = true
		cfg.CutoffHour = 0
		cfg.CutoffMinute = 0
		cfg.Now = func() time.Time {
			return justAfterMidnight
		}
	})
	assert.True(t, alloc.WindowOpen())

	// Without the explicit marker, zero values mean the default opening
	alloc = newTestTopicAllocator(t, store, func(cfg *TopicAllocatorConfig) {
		cfg.Now = func() time.Time {
			return justAfterMidnight
		}
	})
	assert.False(t, alloc.WindowOpen())
}

func TestSelectTopicValidation(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	alloc := newTestTopicAllocator(t, store, nil)

	_, err = alloc.SelectTopic("alpha", "UC1", "SWIM")
	require.Error(t, err)
	assert.Equal(t, FailureInvalidTopic, AsFailure(err).Code)

	_, err = alloc.SelectTopic("zulu", "UC1", "WORK")
	require.Error(t, err)
	assert.Equal(t, FailureTeamNotFound, AsFailure(err).Code)

	_, err = alloc.SelectTopic("alpha", "U1", "WORK")
	require.Error(t, err)
	assert.Equal(t, FailureNotAuthorized, AsFailure(err).Code)

	// Input is case-normalized
	selection, err := alloc.SelectTopic("alpha", "UC1", "work")
	require.NoError(t, err)
	assert.Equal(t, "WORK", selection.Topic)
}

func TestSelectTopicIdempotence(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	alloc := newTestTopicAllocator(t, store, nil)

	_, err = alloc.SelectTopic("alpha", "UC1", "WORK")
	require.NoError(t, err)

	// Re-submitting the identical topic is a failure, not a silent no-op
	_, err = alloc.SelectTopic("alpha", "UC1", "WORK")
	require.Error(t, err)
	assert.Equal(t, FailureAlreadySelected, AsFailure(err).Code)

	counts, err := alloc.TopicCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["WORK"])
	assert.Equal(t, 0, counts["RUN"])
}

func TestSelectTopicResubmitAtQuota(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	alloc := newTestTopicAllocator(t, store, func(cfg *TopicAllocatorConfig) {
		cfg.MaxTeamsPerTopic = 1
	})

	_, err = alloc.SelectTopic("alpha", "UC1", "WORK")
	require.NoError(t, err)

	// The quota check runs before the identical-resubmit check; the
	// holder's own row counts against it
	_, err = alloc.SelectTopic("alpha", "UC1", "WORK")
	require.Error(t, err)
	assert.Equal(t, FailureTopicQuotaExceeded, AsFailure(err).Code)
}

func TestSelectTopicChangeInPlace(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	alloc := newTestTopicAllocator(t, store, nil)

	first, err := alloc.SelectTopic("alpha", "UC1", "WORK")
	require.NoError(t, err)
	changed, err := alloc.SelectTopic("alpha", "UC1", "RUN")
	require.NoError(t, err)

	// Same row, updated in place
	assert.Equal(t, first.ID, changed.ID)
	assert.Equal(t, "RUN", changed.Topic)

	selections, err := alloc.AllSelections()
	require.NoError(t, err)
	require.Len(t, selections, 1)
	assert.Equal(t, "RUN", selections[0].Topic)
}

func TestSelectTopicQuota(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	alloc := newTestTopicAllocator(t, store, func(cfg *TopicAllocatorConfig) {
		cfg.MaxTeamsPerTopic = 2
	})

	for i := 1; i <= 3; i++ {
		_, err := teams.CreateTeam(
			fmt.Sprintf("team%d", i),
			fmt.Sprintf("UC%d", i),
			fmt.Sprintf("creator%d", i),
		)
		require.NoError(t, err)
	}

	_, err := alloc.SelectTopic("team1", "UC1", "WORK")
	require.NoError(t, err)
	_, err = alloc.SelectTopic("team2", "UC2", "WORK")
	require.NoError(t, err)

	_, err = alloc.SelectTopic("team3", "UC3", "WORK")
	require.Error(t, err)
	assert.Equal(t, FailureTopicQuotaExceeded, AsFailure(err).Code)

	// The other topic still has room
	_, err = alloc.SelectTopic("team3", "UC3", "RUN")
	require.NoError(t, err)

	counts, err := alloc.TopicCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["WORK"])
	assert.Equal(t, 1, counts["RUN"])
}

func TestSelectTopicDeactivatedOnTeamDelete(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	alloc := newTestTopicAllocator(t, store, nil)

	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.SelectTopic("alpha", "UC1", "WORK")
	require.NoError(t, err)

	require.NoError(t, teams.DeleteTeam("alpha", "UC1", false))

	selection, err := alloc.SelectionByTeamName("alpha")
	require.NoError(t, err)
	assert.Nil(t, selection)

	// Recreating the name starts from Unselected
	_, err = teams.CreateTeam("alpha", "UC2", "creator2")
	require.NoError(t, err)
	selection, err = alloc.SelectionByTeamName("alpha")
	require.NoError(t, err)
	assert.Nil(t, selection)

	counts, err := alloc.TopicCounts()
	require.NoError(t, err)
	assert.Equal(t, 0, counts["WORK"])
}

func TestConcurrentSelectTopicLastSlot(t *testing.T) {
	store := newTestStore(t)
	teams := newTestTeamAllocator(t, store, nil)
	alloc := newTestTopicAllocator(t, store, func(cfg *TopicAllocatorConfig) {
		cfg.MaxTeamsPerTopic = 1
	})

	_, err := teams.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = teams.CreateTeam("bravo", "UC2", "creator2")
	require.NoError(t, err)

	// Two teams race for the single open slot; exactly one wins
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, entry := range []struct{ team, creator string }{
		{"alpha", "UC1"},
		{"bravo", "UC2"},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = alloc.SelectTopic(entry.team, entry.creator, "WORK")
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		f := AsFailure(err)
		require.NotNil(t, f)
		assert.Equal(t, FailureTopicQuotaExceeded, f.Code)
	}
	assert.Equal(t, 1, successes)

	counts, err := alloc.TopicCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["WORK"])
}
