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

package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/worunie/teambot/allocation"
	"github.com/worunie/teambot/database/models"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		StatusCode: status,
		Message:    message,
	})
}

type participantResponse struct {
	ExternalID  string    `json:"externalId"`
	Name        string    `json:"name"`
	Affiliation string    `json:"affiliation,omitempty"`
	Category    string    `json:"category,omitempty"`
	Email       string    `json:"email,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// handleParticipants lists active participants, optionally filtered by a
// case-insensitive substring on the display name.
func (a *Admin) handleParticipants(
	w http.ResponseWriter,
	r *http.Request,
) {
	participants, err := a.store.GetActiveParticipants(nil)
	if err != nil {
		a.logger.Error("failed to list participants", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	query := strings.ToLower(r.URL.Query().Get("q"))
	ret := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		ret = append(ret, participantResponse{
			ExternalID:  p.ExternalID,
			Name:        p.Name,
			Affiliation: p.Affiliation,
			Category:    p.Category,
			Email:       p.Email,
			Active:      p.Active,
			CreatedAt:   p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *Admin) handleTeams(
	w http.ResponseWriter,
	_ *http.Request,
) {
	summaries, err := a.reporter.Teams()
	if err != nil {
		a.logger.Error("failed to list teams", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (a *Admin) handleTeamDetail(
	w http.ResponseWriter,
	r *http.Request,
) {
	detail, err := a.reporter.TeamInfo(r.PathValue("name"))
	if err != nil {
		if f := allocation.AsFailure(err); f != nil {
			writeError(w, http.StatusNotFound, f.Message)
			return
		}
		a.logger.Error("failed to load team", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *Admin) handleSelections(
	w http.ResponseWriter,
	_ *http.Request,
) {
	selections, err := a.store.GetActiveSelections(nil)
	if err != nil {
		a.logger.Error("failed to list selections", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, selections)
}

func (a *Admin) handleStatistics(
	w http.ResponseWriter,
	_ *http.Request,
) {
	stats, err := a.reporter.Stats()
	if err != nil {
		a.logger.Error("failed to compute statistics", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type participantUpdateRequest struct {
	Name        *string `json:"name"`
	Affiliation *string `json:"affiliation"`
	Category    *string `json:"category"`
	Email       *string `json:"email"`
}

// handleUpdateParticipant applies a partial update to a participant's
// directory fields. Absent fields are left untouched.
func (a *Admin) handleUpdateParticipant(
	w http.ResponseWriter,
	r *http.Request,
) {
	externalID := r.PathValue("id")
	var req participantUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Affiliation != nil {
		updates["affiliation"] = *req.Affiliation
	}
	if req.Category != nil {
		if *req.Category != "" &&
			!allocation.Category(*req.Category).Valid() {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		updates["category"] = *req.Category
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if err := a.store.UpdateParticipant(externalID, updates, nil); err != nil {
		if errors.Is(err, models.ErrParticipantNotFound) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		a.logger.Error(
			"failed to update participant",
			"participant", externalID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	a.logger.Info("participant updated", "participant", externalID)
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (a *Admin) handleDeactivateParticipant(
	w http.ResponseWriter,
	r *http.Request,
) {
	externalID := r.PathValue("id")
	err := a.store.DeactivateParticipant(externalID, nil)
	if err != nil {
		if errors.Is(err, models.ErrParticipantNotFound) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		a.logger.Error(
			"failed to deactivate participant",
			"participant", externalID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	a.logger.Info("participant deactivated", "participant", externalID)
	writeJSON(w, http.StatusOK, map[string]bool{"deactivated": true})
}

// handleDeactivateTeam soft-deletes a team directly, bypassing the
// allocator's authorization ladder. Memberships and the team's topic
// selection are cascaded the same way the allocator does it.
func (a *Admin) handleDeactivateTeam(
	w http.ResponseWriter,
	r *http.Request,
) {
	name := r.PathValue("name")
	team, err := a.store.GetTeamByName(name, false, nil)
	if err != nil {
		a.logger.Error("failed to load team", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if team == nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	err = a.store.Transaction(func(tx *gorm.DB) error {
		if err := a.store.DeleteMembersByTeam(team.ID, tx); err != nil {
			return err
		}
		if err := a.store.DeactivateSelectionByTeamName(name, tx); err != nil {
			return err
		}
		return a.store.DeactivateTeam(team.ID, tx)
	})
	if err != nil {
		a.logger.Error(
			"failed to deactivate team",
			"team", name,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	a.logger.Info("team deactivated", "team", name)
	writeJSON(w, http.StatusOK, map[string]bool{"deactivated": true})
}
