package model

import "time"

// ArchivedTask is the immutable record written when a submitted task is
// approved. It carries the task fields as they were at archival time.
type ArchivedTask struct {
	ID               int64      `json:"id"`
	TaskID           int64      `json:"task_id"`
	Title            string     `json:"title"`
	Difficulty       int        `json:"difficulty"`
	Urgency          int        `json:"urgency"`
	DueDate          *time.Time `json:"due_date"`
	OwnerID          int64      `json:"owner_id"`
	MinutesWorked    int        `json:"minutes_worked"`
	Commentary       string     `json:"commentary"`
	Note             string     `json:"note"`
	ConfirmedBy      int64      `json:"confirmed_by"`
	CompletedAt      time.Time  `json:"completed_at"`
	Rating           int        `json:"rating"`
	AnswerCommentary string     `json:"answer_commentary"`
	ExpAwarded       int        `json:"exp_awarded"`
}
