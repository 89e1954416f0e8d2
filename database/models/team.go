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

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrMemberNotFound = errors.New("member not found")
)

// Team is a participant-created team. Name is unique among active teams
// only: an inactive row may share a name with the active one, and creating
// under an inactive name reactivates that row in place. The creator is not
// stored as a membership row.
type Team struct {
	ID          uint   `gorm:"primarykey"`
	Name        string `gorm:"index;size:255;not null"`
	CreatorID   string `gorm:"index;size:64"`
	CreatorName string
	Active      bool `gorm:"index;default:true"`
	CreatedAt   time.Time
}

func (Team) TableName() string {
	return "teams"
}

// TeamMember is an active membership row. Rows are hard-deleted on removal
// or team deletion, so the unique index on UserID enforces the
// one-active-membership-per-participant invariant at the schema level.
type TeamMember struct {
	ID       uint   `gorm:"primarykey"`
	TeamID   uint   `gorm:"index;not null"`
	UserID   string `gorm:"uniqueIndex;size:64;not null"`
	UserName string
	Category string `gorm:"size:16"`
	JoinedAt time.Time
}

func (TeamMember) TableName() string {
	return "team_members"
}
