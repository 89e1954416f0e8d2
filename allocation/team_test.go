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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worunie/teambot/database"
	"github.com/worunie/teambot/database/models"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.New(
		database.WithDataDir(t.TempDir()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestTeamAllocator(
	t *testing.T,
	store *database.Store,
	override func(*TeamAllocatorConfig),
) *TeamAllocator {
	t.Helper()
	cfg := TeamAllocatorConfig{Store: store}
	if override != nil {
		override(&cfg)
	}
	alloc, err := NewTeamAllocator(cfg)
	require.NoError(t, err)
	return alloc
}

func seedParticipant(
	t *testing.T,
	store *database.Store,
	externalID string,
	name string,
	category string,
) {
	t.Helper()
	err := store.CreateParticipant(
		&models.Participant{
			ExternalID: externalID,
			Name:       name,
			Category:   category,
		},
		nil,
	)
	require.NoError(t, err)
}

// seedRoster registers n participants U1..Un, cycling categories.
func seedRoster(t *testing.T, store *database.Store, n int) {
	t.Helper()
	categories := Categories()
	for i := 1; i <= n; i++ {
		seedParticipant(
			t,
			store,
			fmt.Sprintf("U%d", i),
			fmt.Sprintf("user%d", i),
			string(categories[(i-1)%len(categories)]),
		)
	}
}

func TestCreateTeamDuplicateActiveName(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)

	team, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", team.Name)
	assert.True(t, team.Active)

	_, err = alloc.CreateTeam("alpha", "UC2", "creator2")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureDuplicateActiveName, f.Code)
}

func TestCreateTeamGlobalCeiling(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, func(cfg *TeamAllocatorConfig) {
		cfg.MaxFiveMemberTeams = 1
		cfg.MaxFourMemberTeams = 1
	})
	require.Equal(t, 2, alloc.GlobalTeamCeiling())

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.CreateTeam("bravo", "UC2", "creator2")
	require.NoError(t, err)

	_, err = alloc.CreateTeam("charlie", "UC3", "creator3")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureGlobalTeamCapacity, f.Code)

	// Deleting a team frees a slot
	require.NoError(t, alloc.DeleteTeam("bravo", "UC2", false))
	_, err = alloc.CreateTeam("charlie", "UC3", "creator3")
	require.NoError(t, err)
}

func TestCreateTeamReactivation(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)

	original, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	require.NoError(t, alloc.DeleteTeam("alpha", "UC1", false))

	revived, err := alloc.CreateTeam("alpha", "UC2", "creator2")
	require.NoError(t, err)
	assert.Equal(t, original.ID, revived.ID)
	assert.Equal(t, "UC2", revived.CreatorID)

	team, err := store.GetTeamByName("alpha", false, nil)
	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, "UC2", team.CreatorID)
	assert.Equal(t, "creator2", team.CreatorName)
}

func TestAddMemberFailures(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedParticipant(t, store, "U1", "user1", "Backend")
	seedParticipant(t, store, "U2", "user2", "")

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)

	testDefs := []struct {
		name     string
		team     string
		targetID string
		expected FailureCode
	}{
		{
			name:     "unknown team",
			team:     "zulu",
			targetID: "U1",
			expected: FailureTeamNotFound,
		},
		{
			name:     "unregistered participant",
			team:     "alpha",
			targetID: "U99",
			expected: FailureUnregisteredParticipant,
		},
		{
			name:     "no category assigned",
			team:     "alpha",
			targetID: "U2",
			expected: FailureNoCategoryAssigned,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := alloc.AddMember(
				testDef.team, "UC1", testDef.targetID, "somebody",
			)
			require.Error(t, err)
			f := AsFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, testDef.expected, f.Code)
		})
	}
}

func TestAddMemberSuggestsSimilarName(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedParticipant(t, store, "U1", "user1", "Backend")

	_, err := alloc.CreateTeam("rocket", "UC1", "creator1")
	require.NoError(t, err)

	_, err = alloc.AddMember("rockit", "UC1", "U1", "user1")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureTeamNotFound, f.Code)
	assert.Equal(t, "rocket", f.Suggestion)
}

func TestAddMemberExclusivityAndCapacity(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, func(cfg *TeamAllocatorConfig) {
		// Keep the tier ceiling out of the way
		cfg.MaxFourMemberTeams = 99
	})
	seedRoster(t, store, 7)

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.CreateTeam("bravo", "UC2", "creator2")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := alloc.AddMember(
			"alpha", "UC1",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	// Sixth member over the hard ceiling
	_, err = alloc.AddMember("alpha", "UC1", "U6", "user6")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureTeamFull, f.Code)

	// A member of alpha cannot also join bravo
	_, err = alloc.AddMember("bravo", "UC2", "U3", "user3")
	require.Error(t, err)
	f = AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureAlreadyAssigned, f.Code)

	team, err := store.GetTeamByName("alpha", false, nil)
	require.NoError(t, err)
	count, err := store.CountMembersByTeam(team.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestAddMembersBatchIsAtomic(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedRoster(t, store, 4)

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.CreateTeam("bravo", "UC2", "creator2")
	require.NoError(t, err)

	_, err = alloc.AddMember("bravo", "UC2", "U3", "user3")
	require.NoError(t, err)

	// U3 already belongs to bravo, so the whole batch is rejected
	_, err = alloc.AddMembers("alpha", "UC1", []MemberTarget{
		{ID: "U1", Name: "user1"},
		{ID: "U2", Name: "user2"},
		{ID: "U3", Name: "user3"},
	})
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureAlreadyAssigned, f.Code)

	team, err := store.GetTeamByName("alpha", false, nil)
	require.NoError(t, err)
	count, err := store.CountMembersByTeam(team.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestFourMemberTierCeiling(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, func(cfg *TeamAllocatorConfig) {
		cfg.MaxFourMemberTeams = 1
	})
	seedRoster(t, store, 12)

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.CreateTeam("bravo", "UC2", "creator2")
	require.NoError(t, err)

	// alpha occupies the only four-member slot
	for i := 1; i <= 4; i++ {
		_, err := alloc.AddMember(
			"alpha", "UC1",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	// bravo grows to 3 members without touching the tier
	for i := 5; i <= 7; i++ {
		_, err := alloc.AddMember(
			"bravo", "UC2",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	// bravo's fourth admission hits the exhausted tier
	_, err = alloc.AddMember("bravo", "UC2", "U8", "user8")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailureFourPersonTierExhausted, f.Code)

	// A batch landing bravo directly on 5 never consults the tier count
	_, err = alloc.AddMembers("bravo", "UC2", []MemberTarget{
		{ID: "U8", Name: "user8"},
		{ID: "U9", Name: "user9"},
	})
	require.NoError(t, err)

	team, err := store.GetTeamByName("bravo", false, nil)
	require.NoError(t, err)
	count, err := store.CountMembersByTeam(team.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestPositionFullInFixedCompositionMode(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, func(cfg *TeamAllocatorConfig) {
		cfg.Policy = FixedComposition(map[Category]int{
			CategoryBackend:  1,
			CategoryFrontend: 1,
			CategoryDesign:   1,
			CategoryPlanning: 1,
		})
	})
	seedParticipant(t, store, "U1", "user1", "Backend")
	seedParticipant(t, store, "U2", "user2", "Backend")

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)

	_, err = alloc.AddMember("alpha", "UC1", "U1", "user1")
	require.NoError(t, err)

	_, err = alloc.AddMember("alpha", "UC1", "U2", "user2")
	require.Error(t, err)
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, FailurePositionFull, f.Code)
}

func TestRemoveMember(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedRoster(t, store, 3)

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	for i := 1; i <= 2; i++ {
		_, err := alloc.AddMember(
			"alpha", "UC1",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	// Only the creator (or a privileged actor) may remove
	err = alloc.RemoveMember("alpha", "U1", "U2", false)
	require.Error(t, err)
	assert.Equal(t, FailureNotAuthorized, AsFailure(err).Code)

	// Target not in this team
	err = alloc.RemoveMember("alpha", "UC1", "U3", false)
	require.Error(t, err)
	assert.Equal(t, FailureNotAMember, AsFailure(err).Code)

	require.NoError(t, alloc.RemoveMember("alpha", "UC1", "U2", false))

	// The last member stays unless the actor is privileged
	err = alloc.RemoveMember("alpha", "UC1", "U1", false)
	require.Error(t, err)
	assert.Equal(t, FailureMinimumHeadcount, AsFailure(err).Code)

	require.NoError(t, alloc.RemoveMember("alpha", "UC1", "U1", true))
}

func TestRemoveMemberCreatorSelf(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedParticipant(t, store, "UC1", "creator1", "Backend")
	seedParticipant(t, store, "U1", "user1", "Frontend")

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.AddMember("alpha", "UC1", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.AddMember("alpha", "UC1", "U1", "user1")
	require.NoError(t, err)

	err = alloc.RemoveMember("alpha", "UC1", "UC1", false)
	require.Error(t, err)
	assert.Equal(t, FailureCannotRemoveSelf, AsFailure(err).Code)

	// A privileged actor can
	require.NoError(t, alloc.RemoveMember("alpha", "UADMIN", "UC1", true))
}

func TestRemoveMemberCreatorWithoutMembership(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedParticipant(t, store, "UC1", "creator1", "Backend")
	seedParticipant(t, store, "U1", "user1", "Frontend")

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.AddMember("alpha", "UC1", "U1", "user1")
	require.NoError(t, err)

	// The creator never joined their own team, so targeting them is a
	// membership miss rather than a self-removal refusal.
	err = alloc.RemoveMember("alpha", "UC1", "UC1", false)
	require.Error(t, err)
	assert.Equal(t, FailureNotAMember, AsFailure(err).Code)
}

func TestDeleteTeamRoundTrip(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedRoster(t, store, 3)

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := alloc.AddMember(
			"alpha", "UC1",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	err = alloc.DeleteTeam("alpha", "U1", false)
	require.Error(t, err)
	assert.Equal(t, FailureNotAuthorized, AsFailure(err).Code)

	require.NoError(t, alloc.DeleteTeam("alpha", "UC1", false))

	// The name is reusable and the revived team is empty and addable
	team, err := alloc.CreateTeam("alpha", "UC2", "creator2")
	require.NoError(t, err)
	count, err := store.CountMembersByTeam(team.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	_, err = alloc.AddMember("alpha", "UC2", "U1", "user1")
	require.NoError(t, err)
}

func TestConcurrentAddMemberLastSlot(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, func(cfg *TeamAllocatorConfig) {
		cfg.MaxFourMemberTeams = 99
	})
	seedRoster(t, store, 6)

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		_, err := alloc.AddMember(
			"alpha", "UC1",
			fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i),
		)
		require.NoError(t, err)
	}

	// Two admissions race for the single remaining slot; exactly one wins
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = alloc.AddMember(
				"alpha", "UC1",
				fmt.Sprintf("U%d", i+5), fmt.Sprintf("user%d", i+5),
			)
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
		assert.Equal(t, FailureTeamFull, f.Code)
	}
	assert.Equal(t, 1, successes)

	team, err := store.GetTeamByName("alpha", false, nil)
	require.NoError(t, err)
	count, err := store.CountMembersByTeam(team.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestConcurrentAddSameParticipant(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestTeamAllocator(t, store, nil)
	seedParticipant(t, store, "U1", "user1", "Backend")

	_, err := alloc.CreateTeam("alpha", "UC1", "creator1")
	require.NoError(t, err)
	_, err = alloc.CreateTeam("bravo", "UC2", "creator2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, team := range []string{"alpha", "bravo"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = alloc.AddMember(team, "UC1", "U1", "user1")
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
		assert.Equal(t, FailureAlreadyAssigned, f.Code)
	}
	assert.Equal(t, 1, successes)
}
