package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chorequest/chorequest/internal/scoring"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, hub: hub, logger: logger}
}

type scoringConfigPayload struct {
	BaseMultiplier    int `json:"base_multiplier"`
	UrgencyMultiplier int `json:"urgency_multiplier"`
	EarlyBonus        int `json:"early_bonus"`
}

// GetScoringConfig handles GET /scoring-config.
func (h *SettingsHandler) GetScoringConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.GetScoringConfig()
	if err != nil {
		h.logger.Error("get scoring config", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get scoring config"})
		return
	}
	writeJSON(w, http.StatusOK, scoringConfigPayload{
		BaseMultiplier:    cfg.BaseMultiplier,
		UrgencyMultiplier: cfg.UrgencyMultiplier,
		EarlyBonus:        cfg.EarlyBonus,
	})
}

// UpdateScoringConfig handles PUT /scoring-config. New multipliers apply
// to approvals from this point on; archived awards are never recomputed.
func (h *SettingsHandler) UpdateScoringConfig(w http.ResponseWriter, r *http.Request) {
	var req scoringConfigPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.BaseMultiplier < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "base_multiplier must be at least 1"})
		return
	}
	if req.UrgencyMultiplier < 0 || req.EarlyBonus < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "urgency_multiplier and early_bonus must be non-negative"})
		return
	}

	cfg := scoring.Config{
		BaseMultiplier:    req.BaseMultiplier,
		UrgencyMultiplier: req.UrgencyMultiplier,
		EarlyBonus:        req.EarlyBonus,
	}
	if err := h.settings.SetScoringConfig(cfg); err != nil {
		h.logger.Error("set scoring config", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save scoring config"})
		return
	}

	h.hub.Broadcast(websocket.ChangedMessage())
	writeJSON(w, http.StatusOK, req)
}
