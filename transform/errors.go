package transform

import (
	"fmt"
	"time"
)

// FrameNotFoundError is returned when a lookup names a frame that no transform mentions.
type FrameNotFoundError struct {
	Frame string
}

func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("frame %q does not exist", e.Frame)
}

// NewFrameNotFoundError returns a FrameNotFoundError for the given frame.
func NewFrameNotFoundError(frame string) error {
	return &FrameNotFoundError{Frame: frame}
}

// ConnectivityError is returned when both frames exist but belong to different trees.
type ConnectivityError struct {
	Target string
	Source string
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not find a connection between %q and %q because they are not part of the same tree",
		e.Target, e.Source)
}

// ExtrapolationError is returned when a lookup time falls outside the buffered history of a frame
// by more than the extrapolation tolerance.
type ExtrapolationError struct {
	Frame  string
	Stamp  time.Time
	Oldest time.Time
	Newest time.Time
}

func (e *ExtrapolationError) Error() string {
	if e.Stamp.Before(e.Oldest) {
		return fmt.Sprintf("lookup would require extrapolation into the past for frame %q: requested %s but the earliest data is at %s",
			e.Frame, e.Stamp.Format(time.RFC3339Nano), e.Oldest.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("lookup would require extrapolation into the future for frame %q: requested %s but the latest data is at %s",
		e.Frame, e.Stamp.Format(time.RFC3339Nano), e.Newest.Format(time.RFC3339Nano))
}
