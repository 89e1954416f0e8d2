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

// GetMembersByTeam returns all memberships for a team ordered by join time.
func (s *Store) GetMembersByTeam(
	teamID uint,
	txn *gorm.DB,
) ([]models.TeamMember, error) {
	var ret []models.TeamMember
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("team_id = ?", teamID).
		Order("joined_at").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountMembersByTeam returns the membership headcount for a team.
func (s *Store) CountMembersByTeam(
	teamID uint,
	txn *gorm.DB,
) (int64, error) {
	var count int64
	if txn == nil {
		txn = s.DB()
	}
	result := txn.Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// CountMembersByCategory returns the number of members a team holds in one
// category. Only consulted in the fixed-composition policy mode.
func (s *Store) CountMembersByCategory(
	teamID uint,
	category string,
	txn *gorm.DB,
) (int64, error) {
	var count int64
	if txn == nil {
		txn = s.DB()
	}
	result := txn.Model(&models.TeamMember{}).
		Where("team_id = ? AND category = ?", teamID, category).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// GetMembershipByUser returns the membership holding the given participant
// id, or nil if they belong to no team. A participant appears in at most
// one membership system-wide.
func (s *Store) GetMembershipByUser(
	userID string,
	txn *gorm.DB,
) (*models.TeamMember, error) {
	ret := &models.TeamMember{}
	if txn == nil {
		txn = s.DB()
	}
	result := txn.Where("user_id = ?", userID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// AddMember inserts a membership row. The unique index on user_id turns a
// concurrent double-admission of the same participant into a duplicated
// key error rather than a constraint violation.
func (s *Store) AddMember(
	member *models.TeamMember,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	if result := db.Create(member); result.Error != nil {
		return fmt.Errorf("failed to add member: %w", result.Error)
	}
	return nil
}

// DeleteMember removes one membership row by team and participant id.
func (s *Store) DeleteMember(
	teamID uint,
	userID string,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrMemberNotFound
	}
	return nil
}

// DeleteMembersByTeam removes all membership rows for a team. Used by the
// team deletion cascade.
func (s *Store) DeleteMembersByTeam(
	teamID uint,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.
		Where("team_id = ?", teamID).
		Delete(&models.TeamMember{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete team members: %w", result.Error)
	}
	return nil
}
