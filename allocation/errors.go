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
)

// FailureCode identifies an expected, recoverable allocation failure. All
// codes are returned to the caller as a typed failure with a
// human-readable message; none are fatal to the process.
type FailureCode string

const (
	// Validation
	FailureInvalidTopic FailureCode = "invalid_topic"

	// Not found
	FailureTeamNotFound            FailureCode = "team_not_found"
	FailureUnregisteredParticipant FailureCode = "unregistered_participant"
	FailureNoCategoryAssigned      FailureCode = "no_category_assigned"
	FailureNotAMember              FailureCode = "not_a_member"

	// Conflict
	FailureDuplicateActiveName      FailureCode = "duplicate_active_name"
	FailureGlobalTeamCapacity       FailureCode = "global_team_capacity_exceeded"
	FailureAlreadyAssigned          FailureCode = "already_assigned"
	FailureTeamFull                 FailureCode = "team_full"
	FailureFourPersonTierExhausted  FailureCode = "four_person_tier_exhausted"
	FailurePositionFull             FailureCode = "position_full"
	FailureTopicQuotaExceeded       FailureCode = "topic_quota_exceeded"
	FailureAlreadySelected          FailureCode = "already_selected"
	FailureMinimumHeadcount         FailureCode = "minimum_headcount"
	FailureCannotRemoveSelf         FailureCode = "cannot_remove_self"

	// Authorization
	FailureNotAuthorized FailureCode = "not_authorized"

	// Window/timing
	FailureOutsideSelectionWindow FailureCode = "outside_selection_window"
)

// Failure is an expected allocation outcome returned to the caller for
// rendering. It satisfies the error interface so allocator operations can
// return it through their error result; storage-layer errors are returned
// as ordinary errors and never as a Failure.
type Failure struct {
	Code    FailureCode
	Message string
	// Suggestion carries a "did you mean" team name on team-not-found
	// failures. An affordance, not an invariant.
	Suggestion string
}

func (f *Failure) Error() string {
	return f.Message
}

func failf(code FailureCode, format string, args ...any) *Failure {
	return &Failure{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// AsFailure unwraps an expected allocation failure from an operation
// error. Returns nil if err is a storage or internal error instead.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}
