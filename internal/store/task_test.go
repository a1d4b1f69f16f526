package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/chorequest/chorequest/internal/database"
	"github.com/chorequest/chorequest/internal/model"
)

func setupTaskTestDB(t *testing.T) (*sql.DB, *TaskStore, *PlayerStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, NewTaskStore(db), NewPlayerStore(db)
}

func TestTaskCreate(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)

	p, err := ps.Create("Alice")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}

	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	task, err := ts.Create("Wash dishes", 3, 2, &due, p.ID, 0, "", "kitchen")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID == 0 {
		t.Error("expected assigned id")
	}
	if task.Status != model.StatusOpen {
		t.Errorf("status = %s, want open", task.Status)
	}
	if task.Approver.Kind != model.ApproverUnassigned {
		t.Errorf("approver kind = %v, want unassigned", task.Approver.Kind)
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", task.DueDate, due)
	}
	if task.Note != "kitchen" {
		t.Errorf("note = %q, want kitchen", task.Note)
	}
}

func TestTaskGetByIDMissing(t *testing.T) {
	_, ts, _ := setupTaskTestDB(t)

	task, err := ts.GetByID(999)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil for missing task, got %+v", task)
	}
}

func TestTaskListOrder(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	p, _ := ps.Create("Alice")

	first, _ := ts.Create("First", 1, 0, nil, p.ID, 0, "", "")
	second, _ := ts.Create("Second", 1, 0, nil, p.ID, 0, "", "")

	tasks, err := ts.List()
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Errorf("order = [%d %d], want [%d %d]", tasks[0].ID, tasks[1].ID, first.ID, second.ID)
	}
}

func TestTaskUpdate(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	p, _ := ps.Create("Alice")

	task, _ := ts.Create("Mow lawn", 2, 0, nil, p.ID, 0, "", "")

	n, err := ts.Update(task.ID, "Mow the lawn", 3, 1, nil, 45, "done, front and back", "use the new mower")
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 affected row, got %d", n)
	}

	updated, _ := ts.GetByID(task.ID)
	if updated.Title != "Mow the lawn" || updated.Difficulty != 3 || updated.Urgency != 1 {
		t.Errorf("unexpected fields after update: %+v", updated)
	}
	if updated.MinutesWorked != 45 {
		t.Errorf("minutes = %d, want 45", updated.MinutesWorked)
	}
	if updated.Status != model.StatusOpen {
		t.Errorf("update must not change status, got %s", updated.Status)
	}
}

func TestTaskUpdateGuardedWhileSubmitted(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	alice, _ := ps.Create("Alice")

	task, _ := ts.Create("Mow lawn", 2, 0, nil, alice.ID, 5, "half done", "")
	if _, err := ts.MarkSubmitted(task.ID, model.ApproverAnyoneValue()); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	n, err := ts.Update(task.ID, "Mow lawn", 2, 0, nil, 500, "half done", "")
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 affected rows for submitted task, got %d", n)
	}

	// The frozen snapshot is untouched
	got, _ := ts.GetByID(task.ID)
	if got.MinutesWorked != 5 {
		t.Errorf("minutes = %d, want 5", got.MinutesWorked)
	}
}

func TestMarkSubmittedGuard(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	alice, _ := ps.Create("Alice")
	bob, _ := ps.Create("Bob")

	task, _ := ts.Create("Vacuum", 2, 0, nil, alice.ID, 0, "", "")

	n, err := ts.MarkSubmitted(task.ID, model.ApproverFor(bob.ID))
	if err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 affected row, got %d", n)
	}

	// Second submit finds no open row
	n, err = ts.MarkSubmitted(task.ID, model.ApproverFor(bob.ID))
	if err != nil {
		t.Fatalf("second mark submitted: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 affected rows on re-submit, got %d", n)
	}

	got, _ := ts.GetByID(task.ID)
	if got.Status != model.StatusSubmitted {
		t.Errorf("status = %s, want submitted", got.Status)
	}
	if got.Approver.Kind != model.ApproverPlayer || got.Approver.PlayerID != bob.ID {
		t.Errorf("approver = %+v, want player %d", got.Approver, bob.ID)
	}
}

func TestMarkSubmittedAnyone(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	alice, _ := ps.Create("Alice")

	task, _ := ts.Create("Vacuum", 2, 0, nil, alice.ID, 0, "", "")
	if _, err := ts.MarkSubmitted(task.ID, model.ApproverAnyoneValue()); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	got, _ := ts.GetByID(task.ID)
	if got.Approver.Kind != model.ApproverAnyone {
		t.Errorf("approver kind = %v, want anyone", got.Approver.Kind)
	}
}

func TestReturnToOpenClearsProof(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	alice, _ := ps.Create("Alice")
	bob, _ := ps.Create("Bob")

	task, _ := ts.Create("Vacuum", 2, 0, nil, alice.ID, 30, "all rooms done", "")
	if _, err := ts.MarkSubmitted(task.ID, model.ApproverFor(bob.ID)); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	n, err := ts.ReturnToOpen(task.ID)
	if err != nil {
		t.Fatalf("return to open: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 affected row, got %d", n)
	}

	got, _ := ts.GetByID(task.ID)
	if got.Status != model.StatusOpen {
		t.Errorf("status = %s, want open", got.Status)
	}
	if got.Approver.Kind != model.ApproverUnassigned {
		t.Errorf("approver kind = %v, want unassigned", got.Approver.Kind)
	}
	if got.Commentary != "" {
		t.Errorf("commentary = %q, want cleared", got.Commentary)
	}

	// Declining an open task finds no submitted row
	n, _ = ts.ReturnToOpen(task.ID)
	if n != 0 {
		t.Errorf("expected 0 affected rows, got %d", n)
	}
}

func TestDeleteOpenOnly(t *testing.T) {
	_, ts, ps := setupTaskTestDB(t)
	alice, _ := ps.Create("Alice")

	task, _ := ts.Create("Vacuum", 2, 0, nil, alice.ID, 0, "", "")
	if _, err := ts.MarkSubmitted(task.ID, model.ApproverAnyoneValue()); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	n, err := ts.DeleteOpen(task.ID)
	if err != nil {
		t.Fatalf("delete open: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 affected rows for submitted task, got %d", n)
	}

	if _, err := ts.ReturnToOpen(task.ID); err != nil {
		t.Fatalf("return to open: %v", err)
	}
	n, _ = ts.DeleteOpen(task.ID)
	if n != 1 {
		t.Errorf("expected 1 affected row, got %d", n)
	}
}

func TestDeleteSubmittedTx(t *testing.T) {
	db, ts, ps := setupTaskTestDB(t)
	alice, _ := ps.Create("Alice")

	task, _ := ts.Create("Vacuum", 2, 0, nil, alice.ID, 0, "", "")
	if _, err := ts.MarkSubmitted(task.ID, model.ApproverAnyoneValue()); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	n, err := ts.DeleteSubmittedTx(tx, task.ID)
	if err != nil {
		t.Fatalf("delete submitted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 affected row, got %d", n)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	// Rollback left the task in place
	got, _ := ts.GetByID(task.ID)
	if got == nil {
		t.Fatal("task should survive a rolled back delete")
	}
}
