package store

import (
	"database/sql"
	"fmt"

	"github.com/chorequest/chorequest/internal/model"
)

type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

const archiveCols = `id, task_id, title, difficulty, urgency, due_date, owner_id, minutes_worked, commentary, note, confirmed_by, completed_at, rating, answer_commentary, exp_awarded`

func scanArchivedTask(scanner interface{ Scan(...any) error }) (*model.ArchivedTask, error) {
	var a model.ArchivedTask
	var dueDate sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.TaskID, &a.Title, &a.Difficulty, &a.Urgency, &dueDate,
		&a.OwnerID, &a.MinutesWorked, &a.Commentary, &a.Note,
		&a.ConfirmedBy, &a.CompletedAt, &a.Rating, &a.AnswerCommentary, &a.ExpAwarded,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		d := dueDate.Time
		a.DueDate = &d
	}
	return &a, nil
}

// InsertTx appends an archived task inside the approval transaction so the
// archive-write and the task-removal commit together.
func (s *ArchiveStore) InsertTx(tx *sql.Tx, a model.ArchivedTask) (int64, error) {
	var due sql.NullTime
	if a.DueDate != nil {
		due = sql.NullTime{Time: a.DueDate.UTC(), Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO archive (task_id, title, difficulty, urgency, due_date, owner_id, minutes_worked, commentary, note, confirmed_by, completed_at, rating, answer_commentary, exp_awarded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TaskID, a.Title, a.Difficulty, a.Urgency, due, a.OwnerID,
		a.MinutesWorked, a.Commentary, a.Note, a.ConfirmedBy,
		a.CompletedAt.UTC(), a.Rating, a.AnswerCommentary, a.ExpAwarded,
	)
	if err != nil {
		return 0, fmt.Errorf("insert archived task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *ArchiveStore) GetByID(id int64) (*model.ArchivedTask, error) {
	row := s.db.QueryRow(`SELECT `+archiveCols+` FROM archive WHERE id = ?`, id)
	a, err := scanArchivedTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archived task: %w", err)
	}
	return a, nil
}

func (s *ArchiveStore) List() ([]model.ArchivedTask, error) {
	rows, err := s.db.Query(`SELECT ` + archiveCols + ` FROM archive ORDER BY completed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()

	var archived []model.ArchivedTask
	for rows.Next() {
		a, err := scanArchivedTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived task: %w", err)
		}
		archived = append(archived, *a)
	}
	return archived, rows.Err()
}

func (s *ArchiveStore) ListByOwner(ownerID int64) ([]model.ArchivedTask, error) {
	rows, err := s.db.Query(
		`SELECT `+archiveCols+` FROM archive WHERE owner_id = ? ORDER BY completed_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list archive by owner: %w", err)
	}
	defer rows.Close()

	var archived []model.ArchivedTask
	for rows.Next() {
		a, err := scanArchivedTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived task: %w", err)
		}
		archived = append(archived, *a)
	}
	return archived, rows.Err()
}

// Clear removes every archived task. This is the only mutation the archive
// supports after insertion.
func (s *ArchiveStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM archive`)
	if err != nil {
		return fmt.Errorf("clear archive: %w", err)
	}
	return nil
}
