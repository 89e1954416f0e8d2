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

package models

import (
	"errors"
	"time"
)

var ErrParticipantNotFound = errors.New("participant not found")

// Participant is a cohort member known to the identity directory. The
// ExternalID is the stable identity key assigned by the chat platform;
// roster-imported rows start with an empty ExternalID until the first
// inbound event binds one, so the column carries a plain index rather
// than a unique one. Participants are soft-deleted via the Active flag
// and never hard-deleted while referenced by memberships or teams.
type Participant struct {
	ID          uint   `gorm:"primarykey"`
	ExternalID  string `gorm:"index;size:64"`
	Name        string `gorm:"index;not null"`
	Affiliation string
	Category    string `gorm:"size:32"`
	Insured     bool
	Email       string
	Active      bool `gorm:"index;default:true"`
	CreatedAt   time.Time
}

func (Participant) TableName() string {
	return "participants"
}
