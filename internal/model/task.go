package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnyoneSentinel is the wire value clients send to let any other player
// approve a submitted task.
const AnyoneSentinel = "__anyone__"

type TaskStatus string

const (
	StatusOpen      TaskStatus = "open"
	StatusSubmitted TaskStatus = "submitted"
)

type ApproverKind int

const (
	ApproverUnassigned ApproverKind = iota
	ApproverPlayer
	ApproverAnyone
)

// Approver identifies who may approve or decline a submitted task.
// It is either unassigned, a specific player, or "anyone except the owner".
type Approver struct {
	Kind     ApproverKind
	PlayerID int64
}

func ApproverFor(playerID int64) Approver {
	return Approver{Kind: ApproverPlayer, PlayerID: playerID}
}

func ApproverAnyoneValue() Approver {
	return Approver{Kind: ApproverAnyone}
}

// CanJudge reports whether actorID may approve or decline a task owned by
// ownerID. The owner is never eligible, even under the anyone sentinel.
func (a Approver) CanJudge(actorID, ownerID int64) bool {
	if actorID == ownerID {
		return false
	}
	switch a.Kind {
	case ApproverPlayer:
		return a.PlayerID == actorID
	case ApproverAnyone:
		return true
	default:
		return false
	}
}

func (a Approver) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ApproverPlayer:
		return json.Marshal(a.PlayerID)
	case ApproverAnyone:
		return json.Marshal(AnyoneSentinel)
	default:
		return []byte("null"), nil
	}
}

func (a *Approver) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Approver{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == AnyoneSentinel {
			*a = Approver{Kind: ApproverAnyone}
			return nil
		}
		return fmt.Errorf("invalid approver %q", s)
	}

	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("invalid approver: %w", err)
	}
	*a = Approver{Kind: ApproverPlayer, PlayerID: id}
	return nil
}

type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Difficulty    int        `json:"difficulty"`
	Urgency       int        `json:"urgency"`
	DueDate       *time.Time `json:"due_date"`
	OwnerID       int64      `json:"owner_id"`
	Status        TaskStatus `json:"status"`
	Approver      Approver   `json:"approver"`
	MinutesWorked int        `json:"minutes_worked"`
	Commentary    string     `json:"commentary"`
	Note          string     `json:"note"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
