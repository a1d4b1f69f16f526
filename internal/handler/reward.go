package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
	"github.com/chorequest/chorequest/internal/workflow"
)

type RewardHandler struct {
	rewards *store.RewardStore
	wf      *workflow.Workflow
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, wf *workflow.Workflow, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, wf: wf, hub: hub, logger: logger}
}

type rewardRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	RequiredLevel int    `json:"required_level"`
	Active        *bool  `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.RequiredLevel < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "required_level must be at least 1"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewards.Create(req.Title, req.Description, req.RequiredLevel, active)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reward"})
		return
	}

	h.hub.Broadcast(websocket.ChangedMessage())
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		rewards []model.Reward
		err     error
	)
	if r.URL.Query().Get("active") == "true" {
		rewards, err = h.rewards.ListActive()
	} else {
		rewards, err = h.rewards.List()
	}
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rewards"})
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.RequiredLevel < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "required_level must be at least 1"})
		return
	}

	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewards.Update(id, req.Title, req.Description, req.RequiredLevel, active)
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update reward"})
		return
	}

	h.hub.Broadcast(websocket.ChangedMessage())
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.rewards.Delete(id); err != nil {
		h.logger.Error("delete reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete reward"})
		return
	}

	h.hub.Broadcast(websocket.ChangedMessage())
	w.WriteHeader(http.StatusNoContent)
}

type claimRequest struct {
	Player int64 `json:"player"`
}

// Claim handles POST /rewards/{id}/claim.
func (h *RewardHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Player == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player is required"})
		return
	}

	player, err := h.wf.ClaimReward(req.Player, id)
	if err != nil {
		writeTransitionError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}
