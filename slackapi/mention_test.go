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

package slackapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMentions(t *testing.T) {
	testDefs := []struct {
		name     string
		text     string
		expected []Mention
	}{
		{
			name: "escaped with display name",
			text: "alpha <@U123ABC|alice>",
			expected: []Mention{
				{ID: "U123ABC", Name: "alice"},
			},
		},
		{
			name: "escaped without display name",
			text: "alpha <@U123ABC>",
			expected: []Mention{
				{ID: "U123ABC"},
			},
		},
		{
			name: "plain name",
			text: "alpha @alice",
			expected: []Mention{
				{Name: "alice"},
			},
		},
		{
			name: "mixed forms",
			text: "alpha <@U123ABC|alice> @bob",
			expected: []Mention{
				{ID: "U123ABC", Name: "alice"},
				{Name: "bob"},
			},
		},
		{
			name:     "no mentions",
			text:     "alpha",
			expected: nil,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			assert.Equal(
				t,
				testDef.expected,
				parseMentions(testDef.text),
			)
		})
	}
}

func TestStripMentions(t *testing.T) {
	assert.Equal(
		t,
		"alpha",
		stripMentions("alpha <@U123ABC|alice> @bob"),
	)
	assert.Equal(t, "alpha", stripMentions("  alpha  "))
	assert.Equal(t, "", stripMentions("<@U123ABC>"))
}
