package model

import "time"

type NotificationType string

const (
	NotificationLevelUp NotificationType = "levelup"
	NotificationReward  NotificationType = "reward"
)

// Notification is a level-up or reward-claim event. It stays in the log
// until every player in the current roster has acknowledged it; CreatedAt
// is the stable identity clients use for dedup across replays.
type Notification struct {
	ID         int64            `json:"id"`
	Type       NotificationType `json:"type"`
	PlayerID   int64            `json:"player_id"`
	PlayerName string           `json:"player_name"`
	Level      *int             `json:"level,omitempty"`
	RewardID   *int64           `json:"reward_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	SeenBy     []int64          `json:"seen_by"`
}
