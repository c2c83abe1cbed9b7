package contest

import "errors"

var (
	// ErrInvalidTransition is returned when a message implies a state change
	// not reachable from the current contest status. Stale, duplicate and
	// reordered messages are expected under real networks, so callers log
	// and ignore it rather than aborting the contest.
	ErrInvalidTransition = errors.New("invalid contest transition")

	// ErrStaleSnapshot marks a snapshot whose sequence number is not greater
	// than the last accepted one. Dropped silently, never surfaced to users.
	ErrStaleSnapshot = errors.New("stale progress snapshot")

	// ErrContestClosed is returned when a message arrives for a contest
	// already in a terminal state. The message is acknowledged but dropped.
	ErrContestClosed = errors.New("contest already resolved")

	// ErrUnknownContest is returned when no coordinator is running for the
	// requested contest id.
	ErrUnknownContest = errors.New("unknown contest")

	// ErrNotParticipant is returned when an identity outside the contest's
	// two slots sends a contest-scoped message.
	ErrNotParticipant = errors.New("identity is not a contest participant")
)
