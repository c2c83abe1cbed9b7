package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressSnapshot is an immutable, sequence-numbered measurement of one
// participant's progress at a point in time. Snapshots are totally ordered
// per participant by SequenceNumber; receivers drop anything out of order.
type ProgressSnapshot struct {
	ContestID       uuid.UUID `json:"contest_id"`
	IdentityID      uuid.UUID `json:"identity_id"`
	WPM             int       `json:"wpm"`
	Accuracy        int       `json:"accuracy"`
	CompletionRatio float64   `json:"completion_ratio"`
	CorrectChars    int       `json:"correct_chars"`
	IncorrectChars  int       `json:"incorrect_chars"`
	Finished        bool      `json:"finished"`
	SampledAt       time.Time `json:"sampled_at"`
	SequenceNumber  uint64    `json:"sequence_number"`
}
