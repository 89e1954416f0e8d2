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

// GetParticipantByExternalID gets the active participant with the given
// external id, or nil if none exists.
func (s *Store) GetParticipantByExternalID(
	externalID string,
	txn *gorm.DB,
) (*models.Participant, error) {
	ret := &models.Participant{}
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("external_id = ? AND active = ?", externalID, true).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetParticipantByName gets the active participant with the given display
// name, or nil if none exists.
func (s *Store) GetParticipantByName(
	name string,
	txn *gorm.DB,
) (*models.Participant, error) {
	ret := &models.Participant{}
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("name = ? AND active = ?", name, true).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetActiveParticipants returns all active participants ordered by name.
func (s *Store) GetActiveParticipants(
	txn *gorm.DB,
) ([]models.Participant, error) {
	var ret []models.Participant
	if txn == nil {
		txn = s.DB()
	}
	result := txn.
		Where("active = ?", true).
		Order("name").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CreateParticipant inserts a new active participant.
func (s *Store) CreateParticipant(
	participant *models.Participant,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	participant.Active = true
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now()
	}
	if result := db.Create(participant); result.Error != nil {
		return fmt.Errorf("failed to create participant: %w", result.Error)
	}
	return nil
}

// UpdateParticipant applies field updates to a participant by external id.
func (s *Store) UpdateParticipant(
	externalID string,
	updates map[string]any,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.Model(&models.Participant{}).
		Where("external_id = ? AND active = ?", externalID, true).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}

// UpdateParticipantExternalID rebinds a participant record (looked up by
// display name) to the external id observed on an inbound command. The
// directory is seeded by roster import before external ids are known.
func (s *Store) UpdateParticipantExternalID(
	name string,
	externalID string,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.Model(&models.Participant{}).
		Where("name = ? AND active = ?", name, true).
		Update("external_id", externalID)
	if result.Error != nil {
		return fmt.Errorf(
			"failed to update participant external id: %w",
			result.Error,
		)
	}
	if result.RowsAffected == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}

// DeactivateParticipant soft-deletes a participant.
func (s *Store) DeactivateParticipant(
	externalID string,
	txn *gorm.DB,
) error {
	db := s.DB()
	if txn != nil {
		db = txn
	}
	result := db.Model(&models.Participant{}).
		Where("external_id = ? AND active = ?", externalID, true).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}
