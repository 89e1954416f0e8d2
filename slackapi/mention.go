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
	"regexp"
	"strings"
)

// Mention is one user reference parsed from command text. Escaped
// mentions carry the external id directly; plain "@name" mentions carry
// only the name and must be resolved against the participant directory.
type Mention struct {
	ID   string
	Name string
}

// escapedMentionRegexp matches the client-escaped mention form
// <@U12345|display> and <@U12345>.
var escapedMentionRegexp = regexp.MustCompile(
	`<@([A-Z0-9]+)(?:\|([^>]*))?>`,
)

// plainMentionRegexp matches unescaped "@name" tokens. Names may carry
// any non-space characters.
var plainMentionRegexp = regexp.MustCompile(`@(\S+)`)

// parseMentions extracts every user mention from command text, escaped
// forms first, in order of appearance.
func parseMentions(text string) []Mention {
	var mentions []Mention
	escaped := escapedMentionRegexp.FindAllStringSubmatch(text, -1)
	for _, match := range escaped {
		mentions = append(mentions, Mention{
			ID:   match[1],
			Name: match[2],
		})
	}
	// Strip escaped forms so their display names are not re-matched as
	// plain mentions
	remainder := escapedMentionRegexp.ReplaceAllString(text, " ")
	plain := plainMentionRegexp.FindAllStringSubmatch(remainder, -1)
	for _, match := range plain {
		mentions = append(mentions, Mention{
			Name: strings.TrimSpace(match[1]),
		})
	}
	return mentions
}

// stripMentions returns the command text with all mention tokens removed
// and whitespace collapsed, leaving the positional arguments.
func stripMentions(text string) string {
	text = escapedMentionRegexp.ReplaceAllString(text, " ")
	text = plainMentionRegexp.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}
