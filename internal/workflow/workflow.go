// Package workflow orchestrates the submit, decline, and approve
// transitions plus the player-stats writes that award EXP and rewards.
// All mutating operations run behind a single mutex so read-check-write
// cycles never interleave, with guarded SQL updates as the backstop.
package workflow

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/notify"
	"github.com/chorequest/chorequest/internal/push"
	"github.com/chorequest/chorequest/internal/scoring"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
)

// Workflow owns every state transition that mutates tasks, the archive,
// or player stats. Reads go straight to the stores.
type Workflow struct {
	mu sync.Mutex

	db         *sql.DB
	tasks      *store.TaskStore
	archive    *store.ArchiveStore
	players    *store.PlayerStore
	rewards    *store.RewardStore
	settings   *store.SettingsStore
	bus        *notify.Bus
	hub        *websocket.Hub
	dispatcher *push.Dispatcher
	logger     *slog.Logger
}

type Config struct {
	DB         *sql.DB
	Tasks      *store.TaskStore
	Archive    *store.ArchiveStore
	Players    *store.PlayerStore
	Rewards    *store.RewardStore
	Settings   *store.SettingsStore
	Bus        *notify.Bus
	Hub        *websocket.Hub
	Dispatcher *push.Dispatcher
	Logger     *slog.Logger
}

func New(cfg Config) *Workflow {
	return &Workflow{
		db:         cfg.DB,
		tasks:      cfg.Tasks,
		archive:    cfg.Archive,
		players:    cfg.Players,
		rewards:    cfg.Rewards,
		settings:   cfg.Settings,
		bus:        cfg.Bus,
		hub:        cfg.Hub,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

// TaskEdit carries the optional field edits of a PATCH request. Nil
// pointers leave the current value untouched; DueDateSet distinguishes
// clearing the due date from omitting it.
type TaskEdit struct {
	Title         *string
	Difficulty    *int
	Urgency       *int
	DueDate       *time.Time
	DueDateSet    bool
	MinutesWorked *int
	Commentary    *string
	Note          *string
}

// Edit merges field edits into an open task. A submitted task's snapshot
// is frozen until it is judged, so edits against it are rejected.
func (w *Workflow) Edit(taskID int64, edit TaskEdit) (*model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	task, err := w.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFoundError{Kind: "task", ID: taskID}
	}
	if task.Status != model.StatusOpen {
		return nil, PreconditionError{Reason: "task is awaiting approval"}
	}
	if err := w.applyEdit(task, edit); err != nil {
		return nil, err
	}

	w.hub.Broadcast(websocket.ChangedMessage())
	return w.tasks.GetByID(taskID)
}

// Submit moves an open task to submitted, designating who may judge it.
// Only the owner can submit, and the approver can never be the owner.
func (w *Workflow) Submit(taskID, actorID int64, approver model.Approver) (*model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submit(taskID, actorID, approver, TaskEdit{})
}

// EditAndSubmit merges field edits and submits in one step, so the
// submitted snapshot carries the latest proof and minutes. Every submit
// guard is checked before the merge touches the row; a rejected submit
// leaves the task exactly as it was.
func (w *Workflow) EditAndSubmit(taskID, actorID int64, edit TaskEdit, approver model.Approver) (*model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submit(taskID, actorID, approver, edit)
}

func (w *Workflow) submit(taskID, actorID int64, approver model.Approver, edit TaskEdit) (*model.Task, error) {
	task, err := w.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFoundError{Kind: "task", ID: taskID}
	}
	if actorID != task.OwnerID {
		return nil, AuthorizationError{Reason: "only the task owner can submit it for approval"}
	}
	if approver.Kind == model.ApproverUnassigned {
		return nil, ValidationError{Reason: "submission requires an approver"}
	}
	if approver.Kind == model.ApproverPlayer {
		if approver.PlayerID == task.OwnerID {
			return nil, ValidationError{Reason: "a task owner cannot approve their own task"}
		}
		judge, err := w.players.GetByID(approver.PlayerID)
		if err != nil {
			return nil, err
		}
		if judge == nil {
			return nil, NotFoundError{Kind: "player", ID: approver.PlayerID}
		}
	}
	if task.Status != model.StatusOpen {
		return nil, PreconditionError{Reason: "task is already awaiting approval"}
	}

	if edit != (TaskEdit{}) {
		if err := w.applyEdit(task, edit); err != nil {
			return nil, err
		}
	}

	n, err := w.tasks.MarkSubmitted(taskID, approver)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, PreconditionError{Reason: "task is already awaiting approval"}
	}

	w.hub.Broadcast(websocket.ChangedMessage())
	return w.tasks.GetByID(taskID)
}

// applyEdit validates an edit against the loaded task and writes the
// merged fields through the guarded update. The caller holds the mutex
// and has verified the task is open.
func (w *Workflow) applyEdit(task *model.Task, edit TaskEdit) error {
	title := task.Title
	if edit.Title != nil {
		title = strings.TrimSpace(*edit.Title)
		if title == "" {
			return ValidationError{Reason: "title is required"}
		}
	}
	difficulty := task.Difficulty
	if edit.Difficulty != nil {
		if *edit.Difficulty < 1 || *edit.Difficulty > 5 {
			return ValidationError{Reason: "difficulty must be between 1 and 5"}
		}
		difficulty = *edit.Difficulty
	}
	urgency := task.Urgency
	if edit.Urgency != nil {
		if *edit.Urgency < 0 || *edit.Urgency > 5 {
			return ValidationError{Reason: "urgency must be between 0 and 5"}
		}
		urgency = *edit.Urgency
	}
	minutes := task.MinutesWorked
	if edit.MinutesWorked != nil {
		if *edit.MinutesWorked < 0 {
			return ValidationError{Reason: "minutes_worked must be non-negative"}
		}
		minutes = *edit.MinutesWorked
	}
	commentary := task.Commentary
	if edit.Commentary != nil {
		commentary = *edit.Commentary
	}
	note := task.Note
	if edit.Note != nil {
		note = *edit.Note
	}
	dueDate := task.DueDate
	if edit.DueDateSet {
		dueDate = edit.DueDate
	}

	n, err := w.tasks.Update(task.ID, title, difficulty, urgency, dueDate, minutes, commentary, note)
	if err != nil {
		return err
	}
	if n == 0 {
		return PreconditionError{Reason: "task is awaiting approval"}
	}
	return nil
}

// Decline returns a submitted task to open, clearing the approver and the
// proof commentary. Only an eligible judge may decline.
func (w *Workflow) Decline(taskID, actorID int64) (*model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	task, err := w.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.Status != model.StatusSubmitted {
		return nil, PreconditionError{Reason: "task not found or not awaiting approval"}
	}
	if !task.Approver.CanJudge(actorID, task.OwnerID) {
		return nil, AuthorizationError{Reason: "player is not an eligible approver for this task"}
	}

	n, err := w.tasks.ReturnToOpen(taskID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, PreconditionError{Reason: "task not found or not awaiting approval"}
	}

	w.hub.Broadcast(websocket.ChangedMessage())
	return w.tasks.GetByID(taskID)
}

// Approve archives a submitted task and awards EXP to its owner. The
// archive insert, the task removal, and the EXP write commit in one
// transaction; a concurrent approve or decline makes the guarded delete
// report zero rows and the whole transaction rolls back.
func (w *Workflow) Approve(taskID, actorID int64, rating int, answerCommentary string) (*model.ArchivedTask, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rating < 1 || rating > 5 {
		return nil, ValidationError{Reason: fmt.Sprintf("rating must be between 1 and 5, got %d", rating)}
	}

	task, err := w.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.Status != model.StatusSubmitted {
		return nil, PreconditionError{Reason: "task not found or not awaiting approval"}
	}

	actor, err := w.players.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, NotFoundError{Kind: "player", ID: actorID}
	}
	if !task.Approver.CanJudge(actorID, task.OwnerID) {
		return nil, AuthorizationError{Reason: "player is not an eligible approver for this task"}
	}

	owner, err := w.players.GetByID(task.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, NotFoundError{Kind: "player", ID: task.OwnerID}
	}

	cfg, err := w.settings.GetScoringConfig()
	if err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()
	award := scoring.ComputeExp(scoring.Input{
		Difficulty:    task.Difficulty,
		Urgency:       task.Urgency,
		MinutesWorked: task.MinutesWorked,
		DueDate:       task.DueDate,
		CompletedAt:   completedAt,
	}, cfg)

	// A negative late award can shrink the total but never below zero.
	newExp := owner.Exp + award
	if newExp < 0 {
		newExp = 0
	}

	archived := model.ArchivedTask{
		TaskID:           task.ID,
		Title:            task.Title,
		Difficulty:       task.Difficulty,
		Urgency:          task.Urgency,
		DueDate:          task.DueDate,
		OwnerID:          task.OwnerID,
		MinutesWorked:    task.MinutesWorked,
		Commentary:       task.Commentary,
		Note:             task.Note,
		ConfirmedBy:      actorID,
		CompletedAt:      completedAt,
		Rating:           rating,
		AnswerCommentary: answerCommentary,
		ExpAwarded:       award,
	}

	tx, err := w.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin approval: %w", err)
	}
	defer tx.Rollback()

	archiveID, err := w.archive.InsertTx(tx, archived)
	if err != nil {
		return nil, err
	}
	n, err := w.tasks.DeleteSubmittedTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, PreconditionError{Reason: "task not found or not awaiting approval"}
	}
	if err := w.players.SetExpTx(tx, owner.ID, newExp); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	archived.ID = archiveID

	updatedOwner, err := w.players.GetByID(owner.ID)
	if err != nil {
		w.logger.Error("reload owner after approval", "error", err)
		updatedOwner = owner
	}
	for _, level := range scoring.LevelsCrossed(owner.Exp, newExp) {
		if _, err := w.bus.PublishLevelUp(updatedOwner, level); err != nil {
			w.logger.Error("publish levelup", "player", owner.ID, "level", level, "error", err)
		}
	}

	w.dispatcher.Notify(push.Payload{
		Title: "Task approved",
		Body:  fmt.Sprintf("%s approved %q: %+d EXP, %d stars", actor.Name, task.Title, award, rating),
		Tag:   fmt.Sprintf("approval-%d", task.ID),
	}, owner.ID)

	w.hub.Broadcast(websocket.ChangedMessage())
	return &archived, nil
}

// Delete removes an open task. Submitted tasks are locked until judged.
func (w *Workflow) Delete(taskID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.tasks.DeleteOpen(taskID)
	if err != nil {
		return err
	}
	if n == 0 {
		task, err := w.tasks.GetByID(taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return NotFoundError{Kind: "task", ID: taskID}
		}
		return PreconditionError{Reason: "a task awaiting approval cannot be deleted"}
	}

	w.hub.Broadcast(websocket.ChangedMessage())
	return nil
}

// ClaimReward records a reward claim for a player and publishes a reward
// notification. Claiming an already-claimed reward is a no-op.
func (w *Workflow) ClaimReward(playerID, rewardID int64) (*model.Player, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	player, err := w.players.GetByID(playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, NotFoundError{Kind: "player", ID: playerID}
	}

	reward, err := w.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, NotFoundError{Kind: "reward", ID: rewardID}
	}
	if player.Level < reward.RequiredLevel {
		return nil, PreconditionError{Reason: fmt.Sprintf("reward requires level %d", reward.RequiredLevel)}
	}

	added, err := w.players.AddClaimedReward(playerID, rewardID)
	if err != nil {
		return nil, err
	}
	if !added {
		return player, nil
	}

	if _, err := w.bus.PublishReward(player, reward); err != nil {
		w.logger.Error("publish reward claim", "player", playerID, "reward", rewardID, "error", err)
	}

	w.hub.Broadcast(websocket.ChangedMessage())
	return w.players.GetByID(playerID)
}

// SetPlayerStats writes a player's EXP and claimed rewards directly. Level
// crossings and newly claimed rewards produce the same notifications the
// approval path emits, so administrative writes stay observable. Claimed
// rewards are additive; entries already recorded are kept.
func (w *Workflow) SetPlayerStats(playerID int64, exp int, claimedRewards []int64) (*model.Player, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if exp < 0 {
		return nil, ValidationError{Reason: fmt.Sprintf("exp must be non-negative, got %d", exp)}
	}

	player, err := w.players.GetByID(playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, NotFoundError{Kind: "player", ID: playerID}
	}

	if err := w.players.SetExp(playerID, exp); err != nil {
		return nil, err
	}

	updated, err := w.players.GetByID(playerID)
	if err != nil {
		return nil, err
	}
	for _, level := range scoring.LevelsCrossed(player.Exp, exp) {
		if _, err := w.bus.PublishLevelUp(updated, level); err != nil {
			w.logger.Error("publish levelup", "player", playerID, "level", level, "error", err)
		}
	}

	for _, rewardID := range claimedRewards {
		added, err := w.players.AddClaimedReward(playerID, rewardID)
		if err != nil {
			return nil, err
		}
		if !added {
			continue
		}
		reward, err := w.rewards.GetByID(rewardID)
		if err != nil {
			return nil, err
		}
		if reward == nil {
			continue
		}
		if _, err := w.bus.PublishReward(updated, reward); err != nil {
			w.logger.Error("publish reward claim", "player", playerID, "reward", rewardID, "error", err)
		}
	}

	w.hub.Broadcast(websocket.ChangedMessage())
	return w.players.GetByID(playerID)
}
