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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/worunie/teambot/database"
	"github.com/worunie/teambot/database/models"
	"github.com/worunie/teambot/event"
	"gorm.io/gorm"
)

// Default capacity constants. All are tunable via TeamAllocatorConfig.
const (
	DefaultTeamSizeLimit      = 5
	DefaultFourTierThreshold  = 4
	DefaultMaxFiveMemberTeams = 9
	DefaultMaxFourMemberTeams = 3
)

// TeamAllocatorConfig carries the dependencies and tunables for a
// TeamAllocator.
type TeamAllocatorConfig struct {
	Store        *database.Store
	Directory    IdentityDirectory
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Policy governs member admission. Zero value selects the canonical
	// headcount-only policy with the default team size limit.
	Policy Policy
	// Capacity ceilings for the two recognized size tiers. Zero values
	// select the defaults.
	MaxFiveMemberTeams int
	MaxFourMemberTeams int
	FourTierThreshold  int
}

// TeamAllocator owns team lifecycle and membership admission. Every
// mutating operation re-validates state inside a single store transaction;
// identity lookups happen before the transaction opens. Capacity conflicts
// surfaced by the store's unique indexes get one bounded retry.
type TeamAllocator struct {
	store              *database.Store
	directory          IdentityDirectory
	eventBus           *event.EventBus
	logger             *slog.Logger
	metrics            *allocationMetrics
	policy             Policy
	maxFiveMemberTeams int
	maxFourMemberTeams int
	fourTierThreshold  int
}

// NewTeamAllocator creates a TeamAllocator from the given config.
func NewTeamAllocator(cfg TeamAllocatorConfig) (*TeamAllocator, error) {
	if cfg.Store == nil {
		return nil, errors.New("no store provided")
	}
	if cfg.Directory == nil {
		cfg.Directory = NewStoreDirectory(cfg.Store)
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Policy.MaxMembers == 0 {
		cfg.Policy = HeadcountOnly(DefaultTeamSizeLimit)
	}
	if cfg.MaxFiveMemberTeams == 0 {
		cfg.MaxFiveMemberTeams = DefaultMaxFiveMemberTeams
	}
	if cfg.MaxFourMemberTeams == 0 {
		cfg.MaxFourMemberTeams = DefaultMaxFourMemberTeams
	}
	if cfg.FourTierThreshold == 0 {
		cfg.FourTierThreshold = DefaultFourTierThreshold
	}
	return &TeamAllocator{
		store:              cfg.Store,
		directory:          cfg.Directory,
		eventBus:           cfg.EventBus,
		logger:             cfg.Logger.With("component", "allocation"),
		metrics:            newAllocationMetrics(cfg.PromRegistry),
		policy:             cfg.Policy,
		maxFiveMemberTeams: cfg.MaxFiveMemberTeams,
		maxFourMemberTeams: cfg.MaxFourMemberTeams,
		fourTierThreshold:  cfg.FourTierThreshold,
	}, nil
}

// GlobalTeamCeiling is the total number of active teams permitted across
// both size tiers.
func (a *TeamAllocator) GlobalTeamCeiling() int {
	return a.maxFiveMemberTeams + a.maxFourMemberTeams
}

// Policy returns the composition policy governing admission.
func (a *TeamAllocator) Policy() Policy {
	return a.policy
}

// runWithRetry executes fn in a store transaction, retrying once when the
// store reports a uniqueness conflict. Whatever invalidated the first
// attempt is visible to the second, which then fails with the appropriate
// conflict failure instead.
func (a *TeamAllocator) runWithRetry(fn func(tx *gorm.DB) error) error {
	err := a.store.Transaction(fn)
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		a.metrics.observeRetry()
		a.logger.Warn(
			"storage conflict, retrying operation",
			"error", err,
		)
		err = a.store.Transaction(fn)
	}
	return err
}

// CreateTeam creates a new active team, or reactivates an inactive team
// with the same name in place (overwriting creator fields and creation
// timestamp, and invalidating that name's prior topic selection).
func (a *TeamAllocator) CreateTeam(
	name string,
	creatorID string,
	creatorName string,
) (*models.Team, error) {
	var team *models.Team
	var reactivated bool
	err := a.runWithRetry(func(tx *gorm.DB) error {
		team = nil
		reactivated = false
		existing, err := a.store.GetTeamByName(name, true, tx)
		if err != nil {
			return err
		}
		if existing != nil && existing.Active {
			return failf(
				FailureDuplicateActiveName,
				"team %q already exists", name,
			)
		}
		if existing != nil {
			// Revive the inactive row under the new creator. The prior
			// selection belongs to the old team identity and is invalidated.
			if err := a.store.ReactivateTeam(
				existing, creatorID, creatorName, tx,
			); err != nil {
				return err
			}
			if err := a.store.DeactivateSelectionByTeamName(
				name, tx,
			); err != nil {
				return err
			}
			team = existing
			reactivated = true
			return nil
		}
		count, err := a.store.CountActiveTeams(tx)
		if err != nil {
			return err
		}
		if count >= int64(a.GlobalTeamCeiling()) {
			return failf(
				FailureGlobalTeamCapacity,
				"team limit reached (%d teams)", a.GlobalTeamCeiling(),
			)
		}
		team = &models.Team{
			Name:        name,
			CreatorID:   creatorID,
			CreatorName: creatorName,
		}
		return a.store.CreateTeam(team, tx)
	})
	a.metrics.observe("create_team", err)
	if err != nil {
		return nil, err
	}
	a.logger.Info(
		"team created",
		"team", name,
		"creator", creatorID,
		"reactivated", reactivated,
	)
	a.publish(event.TeamCreatedEventType, event.TeamCreatedEvent{
		TeamID:      team.ID,
		TeamName:    team.Name,
		CreatorID:   creatorID,
		CreatorName: creatorName,
		Reactivated: reactivated,
	})
	return team, nil
}

// MemberTarget identifies one participant to admit. The category is never
// part of the target; it is always derived from the identity directory.
type MemberTarget struct {
	ID   string
	Name string
}

// AddMember admits a single participant into the named team.
func (a *TeamAllocator) AddMember(
	teamName string,
	actorID string,
	targetID string,
	targetName string,
) (*models.TeamMember, error) {
	members, err := a.AddMembers(
		teamName, actorID,
		[]MemberTarget{{ID: targetID, Name: targetName}},
	)
	if err != nil {
		return nil, err
	}
	return members[0], nil
}

// AddMembers admits a batch of participants into the named team in one
// transaction; either every target joins or none do. Identity lookups
// happen before the transaction opens.
//
// The four-member tier ceiling is evaluated only when the batch brings the
// team to exactly the threshold. A batch that grows a team straight past
// it (say three members to five) never consults the tier count; the team
// lands in the five-member tier without ever occupying a four-member slot.
func (a *TeamAllocator) AddMembers(
	teamName string,
	actorID string,
	targets []MemberTarget,
) ([]*models.TeamMember, error) {
	if len(targets) == 0 {
		return nil, errors.New("no targets provided")
	}
	categories := make([]Category, len(targets))
	seen := make(map[string]bool, len(targets))
	for i, target := range targets {
		if seen[target.ID] {
			err := failf(
				FailureAlreadyAssigned,
				"participant %q is named more than once", target.Name,
			)
			a.metrics.observe("add_member", err)
			return nil, err
		}
		seen[target.ID] = true
		category, err := a.directory.ResolveCategory(target.ID)
		if err != nil {
			switch {
			case errors.Is(err, ErrProfileNotFound):
				err = failf(
					FailureUnregisteredParticipant,
					"participant %q is not registered", target.Name,
				)
			case errors.Is(err, ErrNoCategory):
				err = failf(
					FailureNoCategoryAssigned,
					"participant %q has no position assigned", target.Name,
				)
			}
			a.metrics.observe("add_member", err)
			return nil, err
		}
		categories[i] = category
	}
	var members []*models.TeamMember
	var headcount int
	err := a.runWithRetry(func(tx *gorm.DB) error {
		members = nil
		team, err := a.teamByNameWithSuggestion(teamName, tx)
		if err != nil {
			return err
		}
		count, err := a.store.CountMembersByTeam(team.ID, tx)
		if err != nil {
			return err
		}
		if count+int64(len(targets)) > int64(a.policy.MaxMembers) {
			return failf(
				FailureTeamFull,
				"team %q is full (%d members)", teamName, a.policy.MaxMembers,
			)
		}
		batchByCategory := make(map[Category]int64, len(targets))
		for i, target := range targets {
			existing, err := a.store.GetMembershipByUser(target.ID, tx)
			if err != nil {
				return err
			}
			if existing != nil {
				return failf(
					FailureAlreadyAssigned,
					"participant %q already belongs to a team", target.Name,
				)
			}
			batchByCategory[categories[i]]++
		}
		for category, joining := range batchByCategory {
			quota, constrained := a.policy.CategoryQuota(category)
			if !constrained {
				continue
			}
			catCount, err := a.store.CountMembersByCategory(
				team.ID, category.Code(), tx,
			)
			if err != nil {
				return err
			}
			if catCount+joining > int64(quota) {
				return failf(
					FailurePositionFull,
					"position %s is already filled in team %q",
					category.Code(), teamName,
				)
			}
		}
		if count+int64(len(targets)) == int64(a.fourTierThreshold) {
			tierCount, err := a.store.CountTeamsWithMinMembers(
				a.fourTierThreshold, team.ID, tx,
			)
			if err != nil {
				return err
			}
			if tierCount >= int64(a.maxFourMemberTeams) {
				return failf(
					FailureFourPersonTierExhausted,
					"no %d-member team slots remain (%d teams)",
					a.fourTierThreshold, a.maxFourMemberTeams,
				)
			}
		}
		for i, target := range targets {
			member := &models.TeamMember{
				TeamID:   team.ID,
				UserID:   target.ID,
				UserName: target.Name,
				Category: categories[i].Code(),
			}
			if err := a.store.AddMember(member, tx); err != nil {
				return err
			}
			members = append(members, member)
		}
		headcount = int(count) + len(targets)
		return nil
	})
	a.metrics.observe("add_member", err)
	if err != nil {
		return nil, err
	}
	for i, member := range members {
		a.logger.Info(
			"member added",
			"team", teamName,
			"target", member.UserID,
			"category", member.Category,
			"actor", actorID,
		)
		a.publish(event.MemberAddedEventType, event.MemberAddedEvent{
			TeamID:    member.TeamID,
			TeamName:  teamName,
			UserID:    member.UserID,
			UserName:  member.UserName,
			Category:  member.Category,
			Headcount: headcount - len(members) + i + 1,
		})
	}
	return members, nil
}

// RemoveMember removes a participant's membership from the named team.
// Only the team creator or a privileged actor may remove members; the
// creator cannot remove themselves (team deletion is the sanctioned path)
// and the last remaining member stays unless the actor is privileged.
func (a *TeamAllocator) RemoveMember(
	teamName string,
	actorID string,
	targetID string,
	privileged bool,
) error {
	var teamID uint
	err := a.runWithRetry(func(tx *gorm.DB) error {
		team, err := a.teamByNameWithSuggestion(teamName, tx)
		if err != nil {
			return err
		}
		teamID = team.ID
		if actorID != team.CreatorID && !privileged {
			return failf(
				FailureNotAuthorized,
				"only the team creator can remove members from %q", teamName,
			)
		}
		membership, err := a.store.GetMembershipByUser(targetID, tx)
		if err != nil {
			return err
		}
		if membership == nil || membership.TeamID != team.ID {
			return failf(
				FailureNotAMember,
				"participant %q is not a member of team %q",
				targetID, teamName,
			)
		}
		if targetID == team.CreatorID && !privileged {
			return failf(
				FailureCannotRemoveSelf,
				"the creator cannot be removed; delete the team instead",
			)
		}
		count, err := a.store.CountMembersByTeam(team.ID, tx)
		if err != nil {
			return err
		}
		if count <= 1 && !privileged {
			return failf(
				FailureMinimumHeadcount,
				"team %q must keep at least one member", teamName,
			)
		}
		return a.store.DeleteMember(team.ID, targetID, tx)
	})
	a.metrics.observe("remove_member", err)
	if err != nil {
		return err
	}
	a.logger.Info(
		"member removed",
		"team", teamName,
		"target", targetID,
		"actor", actorID,
	)
	a.publish(event.MemberRemovedEventType, event.MemberRemovedEvent{
		TeamID:   teamID,
		TeamName: teamName,
		UserID:   targetID,
		ActorID:  actorID,
	})
	return nil
}

// DeleteTeam soft-deletes the named team, removing all its memberships and
// marking its topic selection inactive. The name becomes reusable.
func (a *TeamAllocator) DeleteTeam(
	name string,
	actorID string,
	privileged bool,
) error {
	var teamID uint
	var membersRemoved int
	err := a.runWithRetry(func(tx *gorm.DB) error {
		team, err := a.teamByNameWithSuggestion(name, tx)
		if err != nil {
			return err
		}
		teamID = team.ID
		if actorID != team.CreatorID && !privileged {
			return failf(
				FailureNotAuthorized,
				"only the team creator can delete team %q", name,
			)
		}
		count, err := a.store.CountMembersByTeam(team.ID, tx)
		if err != nil {
			return err
		}
		membersRemoved = int(count)
		if err := a.store.DeleteMembersByTeam(team.ID, tx); err != nil {
			return err
		}
		if err := a.store.DeactivateSelectionByTeamName(name, tx); err != nil {
			return err
		}
		return a.store.DeactivateTeam(team.ID, tx)
	})
	a.metrics.observe("delete_team", err)
	if err != nil {
		return err
	}
	a.logger.Info(
		"team deleted",
		"team", name,
		"actor", actorID,
		"members_removed", membersRemoved,
	)
	a.publish(event.TeamDeletedEventType, event.TeamDeletedEvent{
		TeamID:         teamID,
		TeamName:       name,
		ActorID:        actorID,
		MembersRemoved: membersRemoved,
	})
	return nil
}

// TeamByCreator returns the active team created by the given actor, or nil
// if they have not created one.
func (a *TeamAllocator) TeamByCreator(
	creatorID string,
) (*models.Team, error) {
	return a.store.GetTeamByCreator(creatorID, nil)
}

// teamByNameWithSuggestion resolves an active team by name, attaching a
// closest-match suggestion to the failure on a miss.
func (a *TeamAllocator) teamByNameWithSuggestion(
	name string,
	tx *gorm.DB,
) (*models.Team, error) {
	team, err := a.store.GetTeamByName(name, false, tx)
	if err != nil {
		return nil, err
	}
	if team != nil {
		return team, nil
	}
	f := failf(FailureTeamNotFound, "team %q not found", name)
	teams, err := a.store.GetActiveTeams(tx)
	if err == nil {
		names := make([]string, 0, len(teams))
		for _, t := range teams {
			names = append(names, t.Name)
		}
		if suggestion := suggestName(name, names); suggestion != "" {
			f.Suggestion = suggestion
			f.Message = fmt.Sprintf(
				"team %q not found (did you mean %q?)", name, suggestion,
			)
		}
	}
	return nil, f
}

func (a *TeamAllocator) publish(eventType event.EventType, data any) {
	if a.eventBus == nil {
		return
	}
	a.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
