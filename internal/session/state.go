package session

import (
	"time"

	"github.com/sajided/sparkEye/internal/types"
)

// Phase is the capture state machine phase.
type Phase string

const (
	PhaseMoving    Phase = "MOVING"
	PhaseSteady    Phase = "STEADY"
	PhaseAnalyzing Phase = "ANALYZING"
	PhaseFeedback  Phase = "FEEDBACK"
)

// Config tunes the controller. All durations come from configuration.
type Config struct {
	// MotionThreshold is the score at or above which the view counts as moving.
	MotionThreshold float64
	// MinVerifierInterval is the cooldown between successive verification launches.
	MinVerifierInterval time.Duration
	// SuccessDisplay is how long a correct outcome stays on screen before the
	// session advances to the next step.
	SuccessDisplay time.Duration
}

// Snapshot is a read-only copy of the session state, published atomically
// once per tick for the presenter and the event emitter.
type Snapshot struct {
	Phase              Phase
	StepIndex          int
	TotalSteps         int
	LastOutcome        *types.VerificationOutcome
	QuotaLocked        bool
	EventConsumed      bool
	InFlight           bool
	LastVerifierCallAt time.Time
	LastMotionAt       time.Time
	MotionScore        float64
	CooldownRemaining  time.Duration
}

// StepsDone reports whether every configured step has been verified.
func (s Snapshot) StepsDone() bool {
	return s.StepIndex >= s.TotalSteps
}

// completion carries one asynchronous verification result back to the tick
// loop. The outcome value is immutable after construction, so handing it over
// by channel publishes it atomically.
type completion struct {
	eventID string
	outcome types.VerificationOutcome
	quota   bool
}
