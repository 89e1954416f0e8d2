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

package event

// TeamCreatedEventType is the event type for team creation and reactivation
const TeamCreatedEventType = EventType("team.created")

// TeamCreatedEvent is emitted after a team is created or reactivated
type TeamCreatedEvent struct {
	TeamID      uint
	TeamName    string
	CreatorID   string
	CreatorName string
	// Reactivated is true when an inactive team was revived under the same
	// name rather than a new row inserted
	Reactivated bool
}

// TeamDeletedEventType is the event type for team soft-deletion
const TeamDeletedEventType = EventType("team.deleted")

// TeamDeletedEvent is emitted after a team is soft-deleted and its
// memberships removed
type TeamDeletedEvent struct {
	TeamID         uint
	TeamName       string
	ActorID        string
	MembersRemoved int
}

// MemberAddedEventType is the event type for member admission
const MemberAddedEventType = EventType("member.added")

// MemberAddedEvent is emitted after a participant is admitted to a team
type MemberAddedEvent struct {
	TeamID    uint
	TeamName  string
	UserID    string
	UserName  string
	Category  string
	Headcount int
}

// MemberRemovedEventType is the event type for member removal
const MemberRemovedEventType = EventType("member.removed")

// MemberRemovedEvent is emitted after a membership is removed
type MemberRemovedEvent struct {
	TeamID   uint
	TeamName string
	UserID   string
	ActorID  string
}

// TopicSelectedEventType is the event type for topic selection and change
const TopicSelectedEventType = EventType("topic.selected")

// TopicSelectedEvent is emitted after a team's topic selection commits
type TopicSelectedEvent struct {
	TeamID        uint
	TeamName      string
	Topic         string
	PreviousTopic string
	Changed       bool
}
