package model

import "time"

type Reward struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	RequiredLevel int       `json:"required_level"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}
