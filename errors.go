package hooptrack

import (
	"errors"
	"fmt"
)

const (
	CapabilityDetector   = "detector"
	CapabilityTracker    = "tracker"
	CapabilityClassifier = "classifier"
)

// CapabilityError is returned when an external collaborator (detector,
// tracker or classifier) fails.  The current pass is aborted and nothing is
// cached for it.
type CapabilityError struct {
	// Capability names the collaborator that failed
	Capability string
	// Frame is the index of the frame being processed, or -1 when the
	// failure is not tied to a single frame
	Frame int
	Err   error
}

// NewCapabilityError wraps err as a failure of the named capability
func NewCapabilityError(capability string, frame int, err error) *CapabilityError {
	return &CapabilityError{Capability: capability, Frame: frame, Err: err}
}

func (e *CapabilityError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("%s failed: %v", e.Capability, e.Err)
	}
	return fmt.Sprintf("%s failed at frame %d: %v", e.Capability, e.Frame, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsCapability reports whether err was caused by the named capability
func IsCapability(err error, capability string) bool {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce.Capability == capability
	}
	return false
}
