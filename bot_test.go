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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/database/models"
)

func TestBotAssembly(t *testing.T) {
	b, err := New(NewConfig(
		WithDataDir(t.TempDir()),
		WithTeamTierLimits(2, 1, 4),
		WithSelectionOpening(15, 30, "UTC"),
		// No listeners configured; the engine runs embedded
	))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Run(ctx))
	defer func() {
		require.NoError(t, b.Stop())
	}()

	team, err := b.Teams().CreateTeam("rocket", "UC1", "creator1")
	require.NoError(t, err)
	assert.Equal(t, "rocket", team.Name)
	assert.Equal(t, 3, b.Teams().GlobalTeamCeiling())

	summaries, err := b.Reporter().Teams()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "rocket", summaries[0].Name)

	counts, err := b.Topics().TopicCounts()
	require.NoError(t, err)
	assert.Contains(t, counts, "WORK")
	assert.Contains(t, counts, "RUN")
}

func TestBotConfiguredTeamSize(t *testing.T) {
	b, err := New(NewConfig(
		WithDataDir(t.TempDir()),
		WithPolicy(allocation.HeadcountOnly(2)),
	))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Run(ctx))
	defer func() {
		require.NoError(t, b.Stop())
	}()

	store := b.store
	for i := 1; i <= 3; i++ {
		participant := &models.Participant{
			ExternalID: fmt.Sprintf("U%d", i),
			Name:       fmt.Sprintf("user%d", i),
			Category:   "Backend",
		}
		require.NoError(t, store.CreateParticipant(participant, nil))
	}

	_, err = b.Teams().CreateTeam("rocket", "UC1", "creator1")
	require.NoError(t, err)
	for i := 1; i <= 2; i++ {
		_, err := b.Teams().AddMember(
			"rocket", "UC1",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	// The configured headcount ceiling binds, not the built-in default
	_, err = b.Teams().AddMember("rocket", "UC1", "U3", "user3")
	require.Error(t, err)
	assert.Equal(
		t, allocation.FailureTeamFull, allocation.AsFailure(err).Code,
	)
}
