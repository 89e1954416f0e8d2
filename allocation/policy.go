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

// PolicyMode selects which of the two team-composition policies governs
// admission. HeadcountOnly is the canonical mode; FixedComposition is the
// legacy variant retained as an explicit configuration option.
type PolicyMode string

const (
	PolicyHeadcountOnly    PolicyMode = "headcount"
	PolicyFixedComposition PolicyMode = "composition"
)

// Policy describes the team-composition rules for member admission.
//
// In headcount-only mode any mix of categories is accepted as long as
// total headcount fits under MaxMembers. In fixed-composition mode each
// category has an exact required count and admission fails with
// PositionFull once a category's quota is met; a team is complete when
// total membership equals the sum of required counts.
type Policy struct {
	Mode        PolicyMode
	MaxMembers  int
	Composition map[Category]int
}

// HeadcountOnly returns the canonical capacity-only policy.
func HeadcountOnly(maxMembers int) Policy {
	return Policy{
		Mode:       PolicyHeadcountOnly,
		MaxMembers: maxMembers,
	}
}

// FixedComposition returns the legacy per-category quota policy. The
// member ceiling is the sum of the required counts.
func FixedComposition(composition map[Category]int) Policy {
	total := 0
	for _, count := range composition {
		total += count
	}
	return Policy{
		Mode:        PolicyFixedComposition,
		MaxMembers:  total,
		Composition: composition,
	}
}

// CategoryQuota returns the required count for a category and whether the
// policy constrains categories at all. In fixed-composition mode a
// category absent from the map has quota zero.
func (p Policy) CategoryQuota(c Category) (int, bool) {
	if p.Mode != PolicyFixedComposition {
		return 0, false
	}
	return p.Composition[c], true
}

// Complete reports whether a team with the given headcount is considered
// fully formed under this policy.
func (p Policy) Complete(headcount int) bool {
	return headcount >= p.MaxMembers
}
