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
	"io"
	"net/http"
	"time"

	"github.com/worunie/teambot/database/models"
)

// eventPayload is the Events API envelope. Only the fields the server
// acts on are decoded.
type eventPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type string `json:"type"`
		User struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Profile struct {
				RealName string `json:"real_name"`
				Email    string `json:"email"`
			} `json:"profile"`
		} `json:"user"`
	} `json:"event"`
}

// handleEvent answers the Events API: URL verification handshakes and
// workspace joins. Joins register a participant with no category; the
// category is assigned later through the roster import.
func (s *Server) handleEvent(
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
				"rejected unsigned event request",
				"error", err,
			)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}
	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "malformed event payload", http.StatusBadRequest)
		return
	}

	switch payload.Type {
	case "url_verification":
		writeJSON(w, http.StatusOK, map[string]string{
			"challenge": payload.Challenge,
		})
		return
	case "event_callback":
		if payload.Event.Type == "team_join" {
			s.registerJoin(payload)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) registerJoin(payload eventPayload) {
	user := payload.Event.User
	if user.ID == "" {
		return
	}
	existing, err := s.store.GetParticipantByExternalID(user.ID, nil)
	if err != nil {
		s.logger.Error(
			"failed to look up joining participant",
			"user", user.ID,
			"error", err,
		)
		return
	}
	if existing != nil {
		return
	}
	name := user.Profile.RealName
	if name == "" {
		name = user.Name
	}
	// A join may rebind an imported roster entry to its external id
	byName, err := s.store.GetParticipantByName(name, nil)
	if err != nil {
		s.logger.Error(
			"failed to look up joining participant by name",
			"user", user.ID,
			"error", err,
		)
		return
	}
	if byName != nil && byName.ExternalID == "" {
		err := s.store.UpdateParticipantExternalID(name, user.ID, nil)
		if err != nil {
			s.logger.Error(
				"failed to rebind participant",
				"user", user.ID,
				"error", err,
			)
		}
		return
	}
	err = s.store.CreateParticipant(
		&models.Participant{
			ExternalID: user.ID,
			Name:       name,
			Email:      user.Profile.Email,
		},
		nil,
	)
	if err != nil {
		s.logger.Error(
			"failed to register joining participant",
			"user", user.ID,
			"error", err,
		)
		return
	}
	s.logger.Info(
		"participant registered on join",
		"user", user.ID,
		"name", name,
	)
}
