package sim

import "errors"

// Error taxonomy shared by the clock, the scheduler and the spatial indices.
// Callers wrap these with fmt.Errorf("...: %w") and match with errors.Is.
var (
	// ErrInvalidConfiguration is returned when a constructor receives a
	// non-positive rate, speed or size. Construction fails.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDuplicateID is returned by Register when the id is already present.
	ErrDuplicateID = errors.New("duplicate agent id")

	// ErrNotFound is returned for operations on an unregistered id.
	ErrNotFound = errors.New("agent not found")

	// ErrResourceExhausted is returned when the tiled grid would grow past its
	// configured extent.
	ErrResourceExhausted = errors.New("tile grid extent exhausted")

	// ErrInvalidPosition is returned for positions with NaN or infinite coordinates.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrUnknownKind and ErrUnknownDirection signal a classification that fell
	// through. They indicate a programming error.
	ErrUnknownKind      = errors.New("unknown agent kind")
	ErrUnknownDirection = errors.New("unknown direction")

	// ErrHookFailed wraps an update hook failure that halted the schedule.
	ErrHookFailed = errors.New("tick hook failed")

	// ErrAlreadyRunning is returned when Run is called on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
)
