package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a read-only reference into the identity store. Contests
// reference participants but never own them.
type Participant struct {
	IdentityID  uuid.UUID `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	CosmeticRef string    `json:"cosmetic_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
