package model

import "time"

type Player struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Exp            int       `json:"exp"`
	Level          int       `json:"level"`
	ClaimedRewards []int64   `json:"claimed_rewards"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
