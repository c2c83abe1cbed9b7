package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet tracks a participant's coin balance and daily play streak.
type Wallet struct {
	IdentityID    uuid.UUID  `json:"identity_id"`
	Coins         int        `json:"coins"`
	CurrentStreak int        `json:"current_streak"`
	LastPlayDate  *time.Time `json:"last_play_date,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
