package posts

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUID reports a missing or unparseable actor identity.
	ErrInvalidUID = errors.New("invalid-uid")
	// ErrInvalidPID reports a parent post that does not exist or that the
	// actor may not see.
	ErrInvalidPID = errors.New("invalid-pid")
)

// FanOutError reports that one or more fan-out units failed after the
// canonical post was durably written. The post exists; secondary state
// (counters, indexes, rollups) may be stale. No compensation is attempted.
type FanOutError struct {
	PID int64
	Err error
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("post %d fan-out: %v", e.PID, e.Err)
}

func (e *FanOutError) Unwrap() error {
	return e.Err
}
