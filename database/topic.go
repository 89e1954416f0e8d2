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

// GetSelectionByTeamName gets the active topic selection for a team name,
// or nil if the team has not selected a topic.
func (s *Store) GetSelectionByTeamName(
	teamName string,
	txn *gorm.DB,
) (*models.TopicSelection, error) {
	ret := &models.TopicSelection{}
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("team_name = ? AND active = ?", teamName, true).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// CountSelectionsByTopic returns the number of active selections holding
// the given topic.
func (s *Store) CountSelectionsByTopic(
	topic string,
	txn *gorm.DB,
) (int64, error) {
	var count int64
	if txn == nil {
		txn = s.DB()
	}
	result := txn.Model(&models.TopicSelection{}).
		Where("topic = ? AND active = ?", topic, true).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// GetActiveSelections returns all active selections ordered by creation
// time.
func (s *Store) GetActiveSelections(
	txn *gorm.DB,
) ([]models.TopicSelection, error) {
	var ret []models.TopicSelection
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

// CreateSelection inserts a new active topic selection.
func (s *Store) CreateSelection(
	selection *models.TopicSelection,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	selection.Active = true
	now := time.Now()
	if selection.CreatedAt.IsZero() {
		selection.CreatedAt = now
	}
	selection.UpdatedAt = now
	if result := db.Create(selection); result.Error != nil {
		return fmt.Errorf("failed to create topic selection: %w", result.Error)
	}
	return nil
}

// UpdateSelectionTopic changes an existing selection's topic in place.
func (s *Store) UpdateSelectionTopic(
	selectionID uint,
	topic string,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.Model(&models.TopicSelection{}).
		Where("id = ?", selectionID).
		Updates(map[string]any{
			"topic":      topic,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update topic selection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrSelectionNotFound
	}
	return nil
}

// DeactivateSelectionByTeamName marks a team's selection inactive.
// Selections are never deleted; this is the cascade used when the owning
// team is removed or its name is reactivated under a new creator.
func (s *Store) DeactivateSelectionByTeamName(
	teamName string,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.Model(&models.TopicSelection{}).
		Where("team_name = ? AND active = ?", teamName, true).
		Updates(map[string]any{
			"active":     false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf(
			"failed to deactivate topic selection: %w",
			result.Error,
		)
	}
	return nil
}
