package presence

import "errors"

// ErrContestFull is returned when a third distinct identity attempts to join
// a contest whose two slots are already taken.
var ErrContestFull = errors.New("contest already has two participants")
