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

	"github.com/worunie/teambot/database"
)

// Category is a participant's fixed functional role. The set is closed;
// membership rows carry the short code form.
type Category string

const (
	CategoryBackend  Category = "Backend"
	CategoryFrontend Category = "Frontend"
	CategoryDesign   Category = "Design"
	CategoryPlanning Category = "Planning"
)

// categoryCodes is the fixed mapping from the directory enumeration to the
// short codes stored on membership rows.
var categoryCodes = map[Category]string{
	CategoryBackend:  "BE",
	CategoryFrontend: "FE",
	CategoryDesign:   "Designer",
	CategoryPlanning: "Planner",
}

// Categories lists all recognized categories in display order.
func Categories() []Category {
	return []Category{
		CategoryBackend,
		CategoryFrontend,
		CategoryDesign,
		CategoryPlanning,
	}
}

// Valid returns true if the category is one of the recognized values.
func (c Category) Valid() bool {
	_, ok := categoryCodes[c]
	return ok
}

// Code returns the short code form (BE/FE/Designer/Planner) stored on
// membership rows. Empty for unrecognized categories.
func (c Category) Code() string {
	return categoryCodes[c]
}

// Directory errors. The allocators translate these into failure codes; the
// directory itself stays ignorant of allocation semantics.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoCategory      = errors.New("profile has no category assigned")
)

// IdentityDirectory maps opaque external actor ids to profile data. It is
// read-only from the engine's perspective and is always consulted before a
// store transaction opens, never inside one.
type IdentityDirectory interface {
	// ResolveCategory returns the participant's category, ErrProfileNotFound
	// if the id is unknown, or ErrNoCategory if the profile has no category
	// set.
	ResolveCategory(externalID string) (Category, error)
	// DisplayName returns the participant's display name or
	// ErrProfileNotFound.
	DisplayName(externalID string) (string, error)
}

// StoreDirectory implements IdentityDirectory over the participant records
// in the allocation store.
type StoreDirectory struct {
	store *database.Store
}

func NewStoreDirectory(store *database.Store) *StoreDirectory {
	return &StoreDirectory{store: store}
}

func (d *StoreDirectory) ResolveCategory(
	externalID string,
) (Category, error) {
	participant, err := d.store.GetParticipantByExternalID(externalID, nil)
	if err != nil {
		return "", err
	}
	if participant == nil {
		return "", ErrProfileNotFound
	}
	if participant.Category == "" {
		return "", ErrNoCategory
	}
	category := Category(participant.Category)
	if !category.Valid() {
		return "", ErrNoCategory
	}
	return category, nil
}

func (d *StoreDirectory) DisplayName(externalID string) (string, error) {
	participant, err := d.store.GetParticipantByExternalID(externalID, nil)
	if err != nil {
		return "", err
	}
	if participant == nil {
		return "", ErrProfileNotFound
	}
	return participant.Name, nil
}
