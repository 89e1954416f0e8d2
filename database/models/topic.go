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

var ErrSelectionNotFound = errors.New("topic selection not found")

// TopicSelection records a team's chosen topic. At most one active
// selection exists per team name. Selections are updated in place on topic
// change and marked inactive (never deleted) when the owning team is
// removed or its name is reactivated under a new creator.
type TopicSelection struct {
	ID          uint   `gorm:"primarykey"`
	TeamID      uint   `gorm:"index"`
	TeamName    string `gorm:"index;size:255;not null"`
	Topic       string `gorm:"index;size:16;not null"`
	CreatorID   string `gorm:"size:64"`
	CreatorName string
	Active      bool `gorm:"index;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TopicSelection) TableName() string {
	return "topic_selections"
}
