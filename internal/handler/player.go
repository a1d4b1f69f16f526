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

	"golang.org/x/crypto/bcrypt"
)

type PlayerHandler struct {
	players *store.PlayerStore
	wf      *workflow.Workflow
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewPlayerHandler(ps *store.PlayerStore, wf *workflow.Workflow, hub *websocket.Hub, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{players: ps, wf: wf, hub: hub, logger: logger}
}

func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.List()
	if err != nil {
		h.logger.Error("list players", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list players"})
		return
	}
	if players == nil {
		players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	player, err := h.players.GetByID(id)
	if err != nil {
		h.logger.Error("get player", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get player"})
		return
	}
	if player == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "player not found"})
		return
	}
	writeJSON(w, http.StatusOK, player)
}

type upsertPlayerRequest struct {
	ID             *int64  `json:"id"`
	Name           *string `json:"name"`
	Exp            *int    `json:"exp"`
	ClaimedRewards []int64 `json:"claimed_rewards"`
}

// Upsert creates a player or writes their stats directly. Stat writes run
// through the workflow so level crossings and reward claims emit the same
// notifications the approval path does.
func (h *PlayerHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	var player *model.Player
	if req.ID == nil {
		if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
			return
		}
		created, err := h.players.Create(strings.TrimSpace(*req.Name))
		if err != nil {
			h.logger.Error("create player", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create player"})
			return
		}
		player = created
	} else {
		existing, err := h.players.GetByID(*req.ID)
		if err != nil {
			h.logger.Error("get player", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get player"})
			return
		}
		if existing == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "player not found"})
			return
		}
		player = existing

		if req.Name != nil && strings.TrimSpace(*req.Name) != "" && strings.TrimSpace(*req.Name) != existing.Name {
			player, err = h.players.UpdateName(existing.ID, strings.TrimSpace(*req.Name))
			if err != nil {
				h.logger.Error("rename player", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to rename player"})
				return
			}
		}
	}

	if req.Exp != nil || len(req.ClaimedRewards) > 0 {
		exp := player.Exp
		if req.Exp != nil {
			exp = *req.Exp
		}
		updated, err := h.wf.SetPlayerStats(player.ID, exp, req.ClaimedRewards)
		if err != nil {
			writeTransitionError(w, h.logger, err)
			return
		}
		player = updated
	} else {
		h.hub.Broadcast(websocket.ChangedMessage())
	}

	writeJSON(w, http.StatusOK, player)
}

func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.players.Delete(id); err != nil {
		h.logger.Error("delete player", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete player"})
		return
	}

	h.hub.Broadcast(websocket.ChangedMessage())
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlayerHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.players.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get player"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "player not found"})
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash PIN"})
		return
	}

	if err := h.players.SetPIN(id, string(hash)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *PlayerHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.players.ClearPIN(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

func (h *PlayerHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.players.GetPINHash(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get PIN"})
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no PIN set for this player"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}
