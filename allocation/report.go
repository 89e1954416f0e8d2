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
	"time"

	"github.com/worunie/teambot/database"
)

// TeamSummary is one row of the team roster report.
type TeamSummary struct {
	Name        string    `json:"name"`
	CreatorID   string    `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	Headcount   int       `json:"headcount"`
	MaxMembers  int       `json:"maxMembers"`
	Topic       string    `json:"topic,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MemberSummary is one member row of a team detail report.
type MemberSummary struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Category string    `json:"category"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TeamDetail is the full report for one team.
type TeamDetail struct {
	TeamSummary
	Members       []MemberSummary `json:"members"`
	CategoryTally map[string]int  `json:"categoryTally"`
}

// Statistics is the aggregate occupancy report.
type Statistics struct {
	ActiveTeams       int            `json:"activeTeams"`
	GlobalTeamCeiling int            `json:"globalTeamCeiling"`
	TotalMembers      int            `json:"totalMembers"`
	FullTeams         int            `json:"fullTeams"`
	FourMemberTeams   int            `json:"fourMemberTeams"`
	TopicCounts       map[string]int `json:"topicCounts"`
	MaxTeamsPerTopic  int            `json:"maxTeamsPerTopic"`
}

// Reporter produces read-only roster and occupancy reports over the
// allocators' store. Reports are best-effort point-in-time reads and take
// no locks.
type Reporter struct {
	store  *database.Store
	teams  *TeamAllocator
	topics *TopicAllocator
}

// NewReporter creates a Reporter sharing the allocators' store and limits.
func NewReporter(
	store *database.Store,
	teams *TeamAllocator,
	topics *TopicAllocator,
) (*Reporter, error) {
	if store == nil {
		return nil, errors.New("no store provided")
	}
	if teams == nil || topics == nil {
		return nil, errors.New("no allocators provided")
	}
	return &Reporter{
		store:  store,
		teams:  teams,
		topics: topics,
	}, nil
}

// Teams lists every active team with its headcount and topic, oldest
// first.
func (r *Reporter) Teams() ([]TeamSummary, error) {
	teams, err := r.store.GetActiveTeams(nil)
	if err != nil {
		return nil, err
	}
	selections, err := r.store.GetActiveSelections(nil)
	if err != nil {
		return nil, err
	}
	topicByTeam := make(map[string]string, len(selections))
	for _, sel := range selections {
		topicByTeam[sel.TeamName] = sel.Topic
	}
	summaries := make([]TeamSummary, 0, len(teams))
	for _, team := range teams {
		count, err := r.store.CountMembersByTeam(team.ID, nil)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, TeamSummary{
			Name:        team.Name,
			CreatorID:   team.CreatorID,
			CreatorName: team.CreatorName,
			Headcount:   int(count),
			MaxMembers:  r.teams.Policy().MaxMembers,
			Topic:       topicByTeam[team.Name],
			CreatedAt:   team.CreatedAt,
		})
	}
	return summaries, nil
}

// TeamInfo reports one team's roster with a per-category tally.
func (r *Reporter) TeamInfo(name string) (*TeamDetail, error) {
	team, err := r.store.GetTeamByName(name, false, nil)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, failf(FailureTeamNotFound, "team %q not found", name)
	}
	members, err := r.store.GetMembersByTeam(team.ID, nil)
	if err != nil {
		return nil, err
	}
	selection, err := r.store.GetSelectionByTeamName(name, nil)
	if err != nil {
		return nil, err
	}
	detail := &TeamDetail{
		TeamSummary: TeamSummary{
			Name:        team.Name,
			CreatorID:   team.CreatorID,
			CreatorName: team.CreatorName,
			Headcount:   len(members),
			MaxMembers:  r.teams.Policy().MaxMembers,
			CreatedAt:   team.CreatedAt,
		},
		Members:       make([]MemberSummary, 0, len(members)),
		CategoryTally: make(map[string]int),
	}
	if selection != nil {
		detail.Topic = selection.Topic
	}
	for _, m := range members {
		detail.Members = append(detail.Members, MemberSummary{
			UserID:   m.UserID,
			UserName: m.UserName,
			Category: m.Category,
			JoinedAt: m.JoinedAt,
		})
		detail.CategoryTally[m.Category]++
	}
	return detail, nil
}

// Stats reports aggregate occupancy across teams and topics.
func (r *Reporter) Stats() (*Statistics, error) {
	teams, err := r.store.GetActiveTeams(nil)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		ActiveTeams:       len(teams),
		GlobalTeamCeiling: r.teams.GlobalTeamCeiling(),
		MaxTeamsPerTopic:  r.topics.MaxTeamsPerTopic(),
	}
	maxMembers := r.teams.Policy().MaxMembers
	for _, team := range teams {
		count, err := r.store.CountMembersByTeam(team.ID, nil)
		if err != nil {
			return nil, err
		}
		stats.TotalMembers += int(count)
		switch {
		case int(count) >= maxMembers:
			stats.FullTeams++
		case int(count) >= r.teams.fourTierThreshold:
			stats.FourMemberTeams++
		}
	}
	counts, err := r.topics.TopicCounts()
	if err != nil {
		return nil, err
	}
	stats.TopicCounts = counts
	return stats, nil
}
