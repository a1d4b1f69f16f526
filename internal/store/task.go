package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chorequest/chorequest/internal/model"
)

const (
	approverKindPlayer = "player"
	approverKindAnyone = "anyone"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, title, difficulty, urgency, due_date, owner_id, status, approver_kind, approver_id, minutes_worked, commentary, note, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var status string
	var dueDate sql.NullTime
	var approverKind string
	var approverID sql.NullInt64

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Difficulty, &t.Urgency, &dueDate, &t.OwnerID,
		&status, &approverKind, &approverID, &t.MinutesWorked,
		&t.Commentary, &t.Note, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = model.TaskStatus(status)
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	switch approverKind {
	case approverKindPlayer:
		if approverID.Valid {
			t.Approver = model.ApproverFor(approverID.Int64)
		}
	case approverKindAnyone:
		t.Approver = model.ApproverAnyoneValue()
	}
	return &t, nil
}

func approverColumns(a model.Approver) (kind string, id sql.NullInt64) {
	switch a.Kind {
	case model.ApproverPlayer:
		return approverKindPlayer, sql.NullInt64{Int64: a.PlayerID, Valid: true}
	case model.ApproverAnyone:
		return approverKindAnyone, sql.NullInt64{}
	default:
		return "", sql.NullInt64{}
	}
}

func (s *TaskStore) Create(title string, difficulty, urgency int, dueDate *time.Time, ownerID int64, minutesWorked int, commentary, note string) (*model.Task, error) {
	var due sql.NullTime
	if dueDate != nil {
		due = sql.NullTime{Time: dueDate.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (title, difficulty, urgency, due_date, owner_id, status, minutes_worked, commentary, note)
		 VALUES (?, ?, ?, ?, ?, 'open', ?, ?, ?)`,
		title, difficulty, urgency, due, ownerID, minutesWorked, commentary, note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) List() ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskCols + ` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update replaces the editable fields of a task while it is open. A
// submitted task's snapshot is frozen, so the guard reports zero affected
// rows instead of touching it. Status and approver are changed only
// through the workflow transitions below.
func (s *TaskStore) Update(id int64, title string, difficulty, urgency int, dueDate *time.Time, minutesWorked int, commentary, note string) (int64, error) {
	var due sql.NullTime
	if dueDate != nil {
		due = sql.NullTime{Time: dueDate.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`UPDATE tasks SET title = ?, difficulty = ?, urgency = ?, due_date = ?, minutes_worked = ?, commentary = ?, note = ?, updated_at = ? WHERE id = ? AND status = 'open'`,
		title, difficulty, urgency, due, minutesWorked, commentary, note, time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// MarkSubmitted moves an open task to submitted and records the approver.
// It returns the number of affected rows; zero means the task was not open,
// so a concurrent transition won.
func (s *TaskStore) MarkSubmitted(id int64, approver model.Approver) (int64, error) {
	kind, approverID := approverColumns(approver)
	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'submitted', approver_kind = ?, approver_id = ?, updated_at = ? WHERE id = ? AND status = 'open'`,
		kind, approverID, time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("mark submitted: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ReturnToOpen declines a submitted task: the approver and the proof
// commentary are cleared. Zero affected rows means the task was no longer
// awaiting approval.
func (s *TaskStore) ReturnToOpen(id int64) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'open', approver_kind = '', approver_id = NULL, commentary = '', updated_at = ? WHERE id = ? AND status = 'submitted'`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("return to open: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteOpen removes a task only while it is open. Submitted tasks cannot
// be deleted.
func (s *TaskStore) DeleteOpen(id int64) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND status = 'open'`, id)
	if err != nil {
		return 0, fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteSubmittedTx removes a submitted task inside an approval transaction.
// Zero affected rows means another approve or decline got there first.
func (s *TaskStore) DeleteSubmittedTx(tx *sql.Tx, id int64) (int64, error) {
	result, err := tx.Exec(`DELETE FROM tasks WHERE id = ? AND status = 'submitted'`, id)
	if err != nil {
		return 0, fmt.Errorf("delete submitted task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
