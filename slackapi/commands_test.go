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
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/database"
	"github.com/worunie/teambot/database/models"
)

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	store, err := database.New(
		database.WithDataDir(t.TempDir()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	teams, err := allocation.NewTeamAllocator(allocation.TeamAllocatorConfig{
		Store: store,
	})
	require.NoError(t, err)
	topics, err := allocation.NewTopicAllocator(
		allocation.TopicAllocatorConfig{
			Store:    store,
			Location: time.UTC,
			Now: func() time.Time {
				// Fixed instant past the selection opening time
				return time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
			},
		},
	)
	require.NoError(t, err)
	reporter, err := allocation.NewReporter(store, teams, topics)
	require.NoError(t, err)
	return New(cfg, store, teams, topics, reporter, nil)
}

func seedTestParticipant(
	t *testing.T,
	s *Server,
	externalID string,
	name string,
	category string,
) {
	t.Helper()
	err := s.store.CreateParticipant(
		&models.Participant{
			ExternalID: externalID,
			Name:       name,
			Category:   category,
		},
		nil,
	)
	require.NoError(t, err)
}

func TestDispatchTeamLifecycle(t *testing.T) {
	s := newTestServer(t, ServerConfig{AdminUsers: []string{"UADMIN"}})
	seedTestParticipant(t, s, "U1", "alice", "Backend")
	seedTestParticipant(t, s, "U2", "bob", "Frontend")

	resp, err := s.dispatch(commandRequest{
		Command:  "/team-create",
		Text:     "rocket",
		UserID:   "UC1",
		UserName: "creator1",
	})
	require.NoError(t, err)
	assert.Equal(t, "in_channel", resp.ResponseType)
	assert.Contains(t, resp.Text, "rocket")

	resp, err = s.dispatch(commandRequest{
		Command:  "/team-build",
		Text:     "rocket <@U1|alice> @bob",
		UserID:   "UC1",
		UserName: "creator1",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "alice")
	assert.Contains(t, resp.Text, "bob")

	resp, err = s.dispatch(commandRequest{
		Command: "/team-info",
		Text:    "rocket",
		UserID:  "UC1",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "2/5")
	assert.Contains(t, resp.Text, "alice (BE)")
	assert.Contains(t, resp.Text, "bob (FE)")

	resp, err = s.dispatch(commandRequest{
		Command: "/topic-select",
		Text:    "rocket work",
		UserID:  "UC1",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "WORK")

	resp, err = s.dispatch(commandRequest{
		Command: "/topic-list",
		UserID:  "UC1",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "WORK: 1/6")
	assert.Contains(t, resp.Text, "rocket")

	// A non-creator cannot delete; the failure is an allocation outcome
	_, err = s.dispatch(commandRequest{
		Command: "/team-delete",
		Text:    "rocket",
		UserID:  "U1",
	})
	require.Error(t, err)
	f := allocation.AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, allocation.FailureNotAuthorized, f.Code)

	// An admin can
	resp, err = s.dispatch(commandRequest{
		Command: "/team-delete",
		Text:    "rocket",
		UserID:  "UADMIN",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "deleted")
}

func TestDispatchUnknownMention(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	resp, err := s.dispatch(commandRequest{
		Command:  "/team-create",
		Text:     "rocket",
		UserID:   "UC1",
		UserName: "creator1",
	})
	require.NoError(t, err)
	require.Equal(t, "in_channel", resp.ResponseType)

	resp, err = s.dispatch(commandRequest{
		Command: "/team-build",
		Text:    "rocket @nobody",
		UserID:  "UC1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", resp.ResponseType)
	assert.Contains(t, resp.Text, "nobody")
}

func TestHandleCommandSignature(t *testing.T) {
	secret := "test-signing-secret"
	s := newTestServer(t, ServerConfig{SigningSecret: secret})

	form := url.Values{}
	form.Set("command", "/team-list")
	form.Set("user_id", "U1")
	form.Set("user_name", "alice")
	body := form.Encode()

	newRequest := func(timestamp, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(
			http.MethodPost,
			"/slack/commands",
			strings.NewReader(body),
		)
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", signature)
		w := httptest.NewRecorder()
		s.handleCommand(w, req)
		return w
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	valid := signBody(secret, timestamp, []byte(body))

	w := newRequest(timestamp, valid)
	require.Equal(t, http.StatusOK, w.Code)
	var resp commandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ephemeral", resp.ResponseType)
	assert.Contains(t, resp.Text, "No teams yet")

	w = newRequest(timestamp, "v0=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	stale := strconv.FormatInt(
		time.Now().Add(-time.Hour).Unix(), 10,
	)
	w = newRequest(stale, signBody(secret, stale, []byte(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleEventURLVerification(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	payload := `{"type":"url_verification","challenge":"abc123"}`
	req := httptest.NewRequest(
		http.MethodPost,
		"/slack/events",
		strings.NewReader(payload),
	)
	w := httptest.NewRecorder()
	s.handleEvent(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "abc123")
}

func TestHandleEventTeamJoin(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	payload := `{
		"type": "event_callback",
		"event": {
			"type": "team_join",
			"user": {
				"id": "U9",
				"name": "carol",
				"profile": {"real_name": "Carol", "email": "carol@example.com"}
			}
		}
	}`
	req := httptest.NewRequest(
		http.MethodPost,
		"/slack/events",
		strings.NewReader(payload),
	)
	w := httptest.NewRecorder()
	s.handleEvent(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	participant, err := s.store.GetParticipantByExternalID("U9", nil)
	require.NoError(t, err)
	require.NotNil(t, participant)
	assert.Equal(t, "Carol", participant.Name)
	assert.Equal(t, "carol@example.com", participant.Email)
}
