package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
)

type ArchiveHandler struct {
	archive *store.ArchiveStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewArchiveHandler(as *store.ArchiveStore, hub *websocket.Hub, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archive: as, hub: hub, logger: logger}
}

// List returns archived tasks, newest first. An optional ?player= query
// narrows the result to one owner's history.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		records []model.ArchivedTask
		err     error
	)
	if playerParam := r.URL.Query().Get("player"); playerParam != "" {
		playerID, parseErr := strconv.ParseInt(playerParam, 10, 64)
		if parseErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player"})
			return
		}
		records, err = h.archive.ListByOwner(playerID)
	} else {
		records, err = h.archive.List()
	}
	if err != nil {
		h.logger.Error("list archive", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list archive"})
		return
	}
	if records == nil {
		records = []model.ArchivedTask{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	record, err := h.archive.GetByID(id)
	if err != nil {
		h.logger.Error("get archived task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get archived task"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "archived task not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Clear wipes the whole archive. The archive is immutable otherwise.
func (h *ArchiveHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.Clear(); err != nil {
		h.logger.Error("clear archive", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear archive"})
		return
	}
	h.hub.Broadcast(websocket.ChangedMessage())
	w.WriteHeader(http.StatusNoContent)
}
