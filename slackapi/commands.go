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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/worunie/teambot/allocation"
)

// commandResponse is the Slack-rendered outcome of one slash command.
type commandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

func ephemeral(text string) commandResponse {
	return commandResponse{ResponseType: "ephemeral", Text: text}
}

func inChannel(text string) commandResponse {
	return commandResponse{ResponseType: "in_channel", Text: text}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// commandRequest is the parsed form payload of one slash command.
type commandRequest struct {
	Command  string
	Text     string
	UserID   string
	UserName string
}

// handleCommand verifies, parses, and dispatches one slash command. All
// expected allocation failures come back as ephemeral messages; only
// storage errors surface as HTTP 500.
func (s *Server) handleCommand(
	w http.ResponseWriter,
	r *http.Request,
) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if s.config.SigningSecret != "" {
		err := verifySignature(
			s.config.SigningSecret,
			r.Header.Get("X-Slack-Request-Timestamp"),
			body,
			r.Header.Get("X-Slack-Signature"),
			time.Now(),
		)
		if err != nil {
			s.logger.Warn(
				"rejected unsigned command request",
				"error", err,
			)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	req := commandRequest{
		Command:  form.Get("command"),
		Text:     strings.TrimSpace(form.Get("text")),
		UserID:   form.Get("user_id"),
		UserName: form.Get("user_name"),
	}
	if req.Command == "" || req.UserID == "" {
		http.Error(w, "missing command fields", http.StatusBadRequest)
		return
	}

	resp, err := s.dispatch(req)
	if err != nil {
		if f := allocation.AsFailure(err); f != nil {
			writeJSON(w, http.StatusOK, ephemeral(renderFailure(f)))
			return
		}
		s.logger.Error(
			"command failed",
			"command", req.Command,
			"error", err,
		)
		writeJSON(
			w,
			http.StatusInternalServerError,
			ephemeral("Something went wrong, please try again."),
		)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dispatch(req commandRequest) (commandResponse, error) {
	switch req.Command {
	case "/team-create":
		return s.cmdTeamCreate(req)
	case "/team-build":
		return s.cmdTeamBuild(req)
	case "/team-info":
		return s.cmdTeamInfo(req)
	case "/team-list":
		return s.cmdTeamList(req)
	case "/team-delete":
		return s.cmdTeamDelete(req)
	case "/member-remove":
		return s.cmdMemberRemove(req)
	case "/user-info":
		return s.cmdUserInfo(req)
	case "/user-list":
		return s.cmdUserList(req)
	case "/topic-select":
		return s.cmdTopicSelect(req)
	case "/topic-list":
		return s.cmdTopicList(req)
	case "/help":
		return s.cmdHelp(req)
	default:
		return ephemeral(
			fmt.Sprintf("Unknown command %s. Try /help.", req.Command),
		), nil
	}
}

func renderFailure(f *allocation.Failure) string {
	return f.Message
}

func (s *Server) cmdTeamCreate(
	req commandRequest,
) (commandResponse, error) {
	name := req.Text
	if name == "" {
		return ephemeral("Usage: /team-create <team name>"), nil
	}
	team, err := s.teams.CreateTeam(name, req.UserID, req.UserName)
	if err != nil {
		return commandResponse{}, err
	}
	return inChannel(
		fmt.Sprintf(
			"Team *%s* created by %s.",
			team.Name, req.UserName,
		),
	), nil
}

func (s *Server) cmdTeamBuild(
	req commandRequest,
) (commandResponse, error) {
	mentions := parseMentions(req.Text)
	teamName := stripMentions(req.Text)
	if teamName == "" {
		// Fall back to the caller's own team
		team, err := s.teams.TeamByCreator(req.UserID)
		if err != nil {
			return commandResponse{}, err
		}
		if team == nil {
			return ephemeral(
				"Usage: /team-build <team name> @member ...",
			), nil
		}
		teamName = team.Name
	}
	if len(mentions) == 0 {
		return ephemeral(
			"Mention at least one member: /team-build <team name> @member ...",
		), nil
	}
	targets, errText, err := s.resolveTargets(mentions)
	if err != nil {
		return commandResponse{}, err
	}
	if errText != "" {
		return ephemeral(errText), nil
	}
	members, err := s.teams.AddMembers(teamName, req.UserID, targets)
	if err != nil {
		return commandResponse{}, err
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.UserName)
	}
	return inChannel(
		fmt.Sprintf(
			"Added %s to team *%s*.",
			strings.Join(names, ", "), teamName,
		),
	), nil
}

func (s *Server) cmdTeamInfo(
	req commandRequest,
) (commandResponse, error) {
	name := req.Text
	if name == "" {
		team, err := s.teams.TeamByCreator(req.UserID)
		if err != nil {
			return commandResponse{}, err
		}
		if team == nil {
			return ephemeral("Usage: /team-info <team name>"), nil
		}
		name = team.Name
	}
	detail, err := s.reporter.TeamInfo(name)
	if err != nil {
		return commandResponse{}, err
	}
	var sb strings.Builder
	fmt.Fprintf(
		&sb,
		"*%s* (%d/%d members, creator %s)",
		detail.Name, detail.Headcount, detail.MaxMembers,
		detail.CreatorName,
	)
	if detail.Topic != "" {
		fmt.Fprintf(&sb, " — topic %s", detail.Topic)
	}
	for _, m := range detail.Members {
		fmt.Fprintf(&sb, "\n• %s (%s)", m.UserName, m.Category)
	}
	return ephemeral(sb.String()), nil
}

func (s *Server) cmdTeamList(
	_ commandRequest,
) (commandResponse, error) {
	summaries, err := s.reporter.Teams()
	if err != nil {
		return commandResponse{}, err
	}
	if len(summaries) == 0 {
		return ephemeral("No teams yet."), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d active teams:", len(summaries))
	for _, t := range summaries {
		fmt.Fprintf(
			&sb,
			"\n• *%s* %d/%d (creator %s)",
			t.Name, t.Headcount, t.MaxMembers, t.CreatorName,
		)
		if t.Topic != "" {
			fmt.Fprintf(&sb, " — %s", t.Topic)
		}
	}
	return ephemeral(sb.String()), nil
}

func (s *Server) cmdTeamDelete(
	req commandRequest,
) (commandResponse, error) {
	name := req.Text
	if name == "" {
		return ephemeral("Usage: /team-delete <team name>"), nil
	}
	err := s.teams.DeleteTeam(name, req.UserID, s.isPrivileged(req.UserID))
	if err != nil {
		return commandResponse{}, err
	}
	return inChannel(
		fmt.Sprintf("Team *%s* deleted.", name),
	), nil
}

func (s *Server) cmdMemberRemove(
	req commandRequest,
) (commandResponse, error) {
	mentions := parseMentions(req.Text)
	teamName := stripMentions(req.Text)
	if teamName == "" || len(mentions) != 1 {
		return ephemeral(
			"Usage: /member-remove <team name> @member",
		), nil
	}
	targets, errText, err := s.resolveTargets(mentions)
	if err != nil {
		return commandResponse{}, err
	}
	if errText != "" {
		return ephemeral(errText), nil
	}
	err = s.teams.RemoveMember(
		teamName,
		req.UserID,
		targets[0].ID,
		s.isPrivileged(req.UserID),
	)
	if err != nil {
		return commandResponse{}, err
	}
	return ephemeral(
		fmt.Sprintf(
			"Removed %s from team *%s*.",
			targets[0].Name, teamName,
		),
	), nil
}

func (s *Server) cmdUserInfo(
	req commandRequest,
) (commandResponse, error) {
	externalID := req.UserID
	name := req.UserName
	if mentions := parseMentions(req.Text); len(mentions) > 0 {
		targets, errText, err := s.resolveTargets(mentions[:1])
		if err != nil {
			return commandResponse{}, err
		}
		if errText != "" {
			return ephemeral(errText), nil
		}
		externalID = targets[0].ID
		name = targets[0].Name
	}
	participant, err := s.store.GetParticipantByExternalID(externalID, nil)
	if err != nil {
		return commandResponse{}, err
	}
	if participant == nil {
		return ephemeral(
			fmt.Sprintf("%s is not registered.", name),
		), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*", participant.Name)
	if participant.Category != "" {
		category := allocation.Category(participant.Category)
		fmt.Fprintf(&sb, " — %s", category.Code())
	}
	if participant.Affiliation != "" {
		fmt.Fprintf(&sb, ", %s", participant.Affiliation)
	}
	membership, err := s.store.GetMembershipByUser(externalID, nil)
	if err != nil {
		return commandResponse{}, err
	}
	if membership != nil {
		teams, err := s.store.GetActiveTeams(nil)
		if err != nil {
			return commandResponse{}, err
		}
		for _, t := range teams {
			if t.ID == membership.TeamID {
				fmt.Fprintf(&sb, "\nTeam: *%s*", t.Name)
				break
			}
		}
	}
	return ephemeral(sb.String()), nil
}

func (s *Server) cmdUserList(
	_ commandRequest,
) (commandResponse, error) {
	participants, err := s.store.GetActiveParticipants(nil)
	if err != nil {
		return commandResponse{}, err
	}
	tally := make(map[string]int)
	for _, p := range participants {
		category := allocation.Category(p.Category)
		code := category.Code()
		if code == "" {
			code = "unassigned"
		}
		tally[code]++
	}
	codes := make([]string, 0, len(tally))
	for code := range tally {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d registered participants:", len(participants))
	for _, code := range codes {
		fmt.Fprintf(&sb, "\n• %s: %d", code, tally[code])
	}
	return ephemeral(sb.String()), nil
}

func (s *Server) cmdTopicSelect(
	req commandRequest,
) (commandResponse, error) {
	args := strings.Fields(req.Text)
	var teamName, topic string
	switch len(args) {
	case 1:
		// Topic only; the caller's own team is implied
		team, err := s.teams.TeamByCreator(req.UserID)
		if err != nil {
			return commandResponse{}, err
		}
		if team == nil {
			return ephemeral(
				"Usage: /topic-select <team name> <topic>",
			), nil
		}
		teamName = team.Name
		topic = args[0]
	case 2:
		teamName = args[0]
		topic = args[1]
	default:
		return ephemeral(
			"Usage: /topic-select <team name> <topic>",
		), nil
	}
	selection, err := s.topics.SelectTopic(teamName, req.UserID, topic)
	if err != nil {
		return commandResponse{}, err
	}
	return inChannel(
		fmt.Sprintf(
			"Team *%s* selected topic %s.",
			selection.TeamName, selection.Topic,
		),
	), nil
}

func (s *Server) cmdTopicList(
	_ commandRequest,
) (commandResponse, error) {
	counts, err := s.topics.TopicCounts()
	if err != nil {
		return commandResponse{}, err
	}
	selections, err := s.topics.AllSelections()
	if err != nil {
		return commandResponse{}, err
	}
	teamsByTopic := make(map[string][]string)
	for _, sel := range selections {
		teamsByTopic[sel.Topic] = append(teamsByTopic[sel.Topic], sel.TeamName)
	}
	var sb strings.Builder
	sb.WriteString("Topic selections:")
	for _, topic := range s.topics.Topics() {
		fmt.Fprintf(
			&sb,
			"\n• %s: %d/%d",
			topic, counts[topic], s.topics.MaxTeamsPerTopic(),
		)
		if teams := teamsByTopic[topic]; len(teams) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(teams, ", "))
		}
	}
	return ephemeral(sb.String()), nil
}

func (s *Server) cmdHelp(_ commandRequest) (commandResponse, error) {
	return ephemeral(strings.Join([]string{
		"Available commands:",
		"• /team-create <name> — create a team",
		"• /team-build <name> @member ... — add members",
		"• /team-info [name] — show a team roster",
		"• /team-list — list all teams",
		"• /team-delete <name> — delete your team",
		"• /member-remove <name> @member — remove a member",
		"• /user-info [@member] — show a participant profile",
		"• /user-list — participant counts by position",
		"• /topic-select [team] <topic> — select a topic",
		"• /topic-list — topic occupancy",
	}, "\n")), nil
}

// resolveTargets turns parsed mentions into allocator targets. Plain
// "@name" mentions are resolved against the participant directory; an
// unknown name produces user-facing text rather than an error.
func (s *Server) resolveTargets(
	mentions []Mention,
) ([]allocation.MemberTarget, string, error) {
	targets := make([]allocation.MemberTarget, 0, len(mentions))
	for _, mention := range mentions {
		if mention.ID != "" {
			name := mention.Name
			if name == "" {
				participant, err := s.store.GetParticipantByExternalID(
					mention.ID, nil,
				)
				if err != nil {
					return nil, "", err
				}
				if participant != nil {
					name = participant.Name
				} else {
					name = mention.ID
				}
			}
			targets = append(targets, allocation.MemberTarget{
				ID:   mention.ID,
				Name: name,
			})
			continue
		}
		participant, err := s.store.GetParticipantByName(mention.Name, nil)
		if err != nil {
			return nil, "", err
		}
		if participant == nil {
			return nil, fmt.Sprintf(
				"%s is not a registered participant.", mention.Name,
			), nil
		}
		targets = append(targets, allocation.MemberTarget{
			ID:   participant.ExternalID,
			Name: participant.Name,
		})
	}
	return targets, "", nil
}
