package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
	"github.com/chorequest/chorequest/internal/workflow"
)

type TaskHandler struct {
	tasks   *store.TaskStore
	players *store.PlayerStore
	wf      *workflow.Workflow
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ps *store.PlayerStore, wf *workflow.Workflow, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, players: ps, wf: wf, hub: hub, logger: logger}
}

type createTaskRequest struct {
	Title         string  `json:"title"`
	Difficulty    int     `json:"difficulty"`
	Urgency       int     `json:"urgency"`
	DueDate       *string `json:"due_date"`
	OwnerID       int64   `json:"owner_id"`
	MinutesWorked int     `json:"minutes_worked"`
	Commentary    string  `json:"commentary"`
	Note          string  `json:"note"`
}

// parseDueDate accepts either a bare date or a full RFC 3339 timestamp.
func parseDueDate(s string) (*time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.Difficulty < 1 || req.Difficulty > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "difficulty must be between 1 and 5"})
		return
	}
	if req.Urgency < 0 || req.Urgency > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "urgency must be between 0 and 5"})
		return
	}
	if req.MinutesWorked < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minutes_worked must be non-negative"})
		return
	}

	owner, err := h.players.GetByID(req.OwnerID)
	if err != nil {
		h.logger.Error("check task owner", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check owner"})
		return
	}
	if owner == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner not found"})
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		dueDate, err = parseDueDate(*req.DueDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid due_date"})
			return
		}
	}

	task, err := h.tasks.Create(req.Title, req.Difficulty, req.Urgency, dueDate, req.OwnerID, req.MinutesWorked, req.Commentary, req.Note)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
		return
	}

	h.hub.Broadcast(websocket.ChangedMessage())
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List()
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	task, err := h.tasks.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type patchTaskRequest struct {
	Title         *string        `json:"title"`
	Difficulty    *int           `json:"difficulty"`
	Urgency       *int           `json:"urgency"`
	DueDate       *string        `json:"due_date"`
	MinutesWorked *int           `json:"minutes_worked"`
	Commentary    *string        `json:"commentary"`
	Note          *string        `json:"note"`
	Status        *string        `json:"status"`
	Approver      model.Approver `json:"approver"`
	Player        *int64         `json:"player"`
}

// Patch merges editable fields into a task. When the body carries a status
// it also drives the submit or decline transition: status "submitted" with
// an approver submits, status "open" on a submitted task declines. The
// merge and the transition run as one workflow step, so a rejected
// transition writes nothing.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.tasks.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	var req patchTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	// Decline path: no field merge, the transition clears the proof itself.
	if req.Status != nil && *req.Status == string(model.StatusOpen) {
		if req.Player == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player is required to decline"})
			return
		}
		declined, err := h.wf.Decline(id, *req.Player)
		if err != nil {
			writeTransitionError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, declined)
		return
	}

	if req.Status != nil && *req.Status != string(model.StatusSubmitted) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be open or submitted"})
		return
	}

	edit := workflow.TaskEdit{
		Title:         req.Title,
		Difficulty:    req.Difficulty,
		Urgency:       req.Urgency,
		MinutesWorked: req.MinutesWorked,
		Commentary:    req.Commentary,
		Note:          req.Note,
	}
	if req.DueDate != nil {
		edit.DueDateSet = true
		if *req.DueDate != "" {
			edit.DueDate, err = parseDueDate(*req.DueDate)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid due_date"})
				return
			}
		}
	}

	if req.Status != nil && *req.Status == string(model.StatusSubmitted) {
		actor := task.OwnerID
		if req.Player != nil {
			actor = *req.Player
		}
		submitted, err := h.wf.EditAndSubmit(id, actor, edit, req.Approver)
		if err != nil {
			writeTransitionError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, submitted)
		return
	}

	updated, err := h.wf.Edit(id, edit)
	if err != nil {
		writeTransitionError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.wf.Delete(id); err != nil {
		writeTransitionError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	Player           int64  `json:"player"`
	Rating           int    `json:"rating"`
	AnswerCommentary string `json:"answerCommentary"`
}

// Confirm handles POST /confirm/{id}: the approve transition.
func (h *TaskHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	archived, err := h.wf.Approve(id, req.Player, req.Rating, req.AnswerCommentary)
	if err != nil {
		writeTransitionError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, archived)
}
