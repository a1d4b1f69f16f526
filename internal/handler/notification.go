package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/notify"
	"github.com/chorequest/chorequest/internal/store"
)

type NotificationHandler struct {
	bus           *notify.Bus
	notifications *store.NotificationStore
	logger        *slog.Logger
}

func NewNotificationHandler(bus *notify.Bus, ns *store.NotificationStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{bus: bus, notifications: ns, logger: logger}
}

// List returns notifications in creation order. With ?player= it returns
// only the ones that player has not yet acknowledged, for replay after a
// missed broadcast.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		notifications []model.Notification
		err           error
	)
	if playerParam := r.URL.Query().Get("player"); playerParam != "" {
		playerID, parseErr := strconv.ParseInt(playerParam, 10, 64)
		if parseErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player"})
			return
		}
		notifications, err = h.bus.ListUnseen(playerID)
	} else {
		notifications, err = h.notifications.ListAll()
	}
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

type seenRequest struct {
	PlayerID int64 `json:"playerId"`
}

// MarkSeen handles PATCH /notifications/seen: the player acknowledges
// every notification currently in the log.
func (h *NotificationHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	var req seenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PlayerID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "playerId is required"})
		return
	}

	if err := h.bus.Acknowledge(req.PlayerID); err != nil {
		h.logger.Error("acknowledge notifications", "player", req.PlayerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to acknowledge notifications"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
