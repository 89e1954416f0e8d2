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

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/worunie/teambot/database/models"
	"gorm.io/gorm"
)

// GetTeamByName gets the active team with the given name, or nil if none
// exists. With includeInactive set it returns the most recent row for the
// name regardless of the active flag, preferring an active one.
func (s *Store) GetTeamByName(
	name string,
	includeInactive bool,
	txn *gorm.DB,
) (*models.Team, error) {
	ret := &models.Team{}
	if txn == nil {
		txn = s.DB()
	}
	query := txn.Where("name = ?", name)
	if !includeInactive {
		query = query.Where("active = ?", true)
	} else {
		query = query.Order("active DESC, id DESC")
	}
	result := query.First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetTeamByCreator gets the active team created by the given actor, or nil
// if they have not created one.
func (s *Store) GetTeamByCreator(
	creatorID string,
	txn *gorm.DB,
) (*models.Team, error) {
	ret := &models.Team{}
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("creator_id = ? AND active = ?", creatorID, true).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetActiveTeams returns all active teams ordered by creation time.
func (s *Store) GetActiveTeams(txn *gorm.DB) ([]models.Team, error) {
	var ret []models.Team
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("active = ?", true).
		Order("created_at").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountActiveTeams returns the number of active teams.
func (s *Store) CountActiveTeams(txn *gorm.DB) (int64, error) {
	var count int64
	if txn == nil {
		txn = s.DB()
	}
	result := txn.Model(&models.Team{}).
		Where("active = ?", true).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// CountTeamsWithMinMembers returns the number of active teams holding at
// least minMembers active memberships, excluding the team with excludeID
// (pass 0 to exclude none). Used for the four-member tier ceiling.
func (s *Store) CountTeamsWithMinMembers(
	minMembers int,
	excludeID uint,
	txn *gorm.DB,
) (int64, error) {
	var count int64
	if txn == nil {
		txn = s.DB()
	}
	result := txn.Model(&models.Team{}).
		Where("active = ?", true).
		Where("id <> ?", excludeID).
		Where(
			"id IN (?)",
			txn.Model(&models.TeamMember{}).
				Select("team_id").
				Group("team_id").
				Having("COUNT(*) >= ?", minMembers),
		).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// CreateTeam inserts a new active team.
func (s *Store) CreateTeam(
	team *models.Team,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	team.Active = true
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now()
	}
	if result := db.Create(team); result.Error != nil {
		return fmt.Errorf("failed to create team: %w", result.Error)
	}
	return nil
}

// ReactivateTeam revives an inactive team row in place under a new
// creator. This intentionally discards the old identity's provenance: the
// creator fields and creation timestamp are overwritten.
func (s *Store) ReactivateTeam(
	team *models.Team,
	creatorID string,
	creatorName string,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	updates := map[string]any{
		"active":       true,
		"creator_id":   creatorID,
		"creator_name": creatorName,
		"created_at":   time.Now(),
	}
	if err := db.Model(team).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to reactivate team: %w", err)
	}
	return nil
}

// DeactivateTeam soft-deletes a team. Memberships must be removed by the
// caller within the same transaction.
func (s *Store) DeactivateTeam(
	teamID uint,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.Model(&models.Team{}).
		Where("id = ?", teamID).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrTeamNotFound
	}
	return nil
}
