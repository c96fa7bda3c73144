// Package session owns the stability-gated capture state machine: it decides
// when to launch a verification, enforces single-flight, cooldown and quota
// rules, and merges the asynchronous result back into session state.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sajided/sparkEye/internal/types"
	"github.com/sajided/sparkEye/internal/verify"
)

// Controller runs the MOVING/STEADY/ANALYZING/FEEDBACK machine.
//
// Concurrency contract: Tick is called from exactly one goroutine (the tick
// loop), which is the sole writer of session state. Verification goroutines
// never touch state; they send a completion on a channel that the next Tick
// drains. RequestReset and Snapshot are safe from any goroutine.
type Controller struct {
	cfg      Config
	steps    []types.Step
	verifier verify.Verifier

	completions chan completion
	resets      chan struct{}

	// Session state. Owned by the tick loop.
	phase          Phase
	stepIdx        int
	lastOutcome    *types.VerificationOutcome
	lastCallAt     time.Time
	lastMotionAt   time.Time
	eventConsumed  bool
	quotaLocked    bool
	successShownAt time.Time
	inFlightID     string
	lastScore      float64

	snap atomic.Pointer[Snapshot]

	// OnEvent, when set before the first Tick, receives session events. It is
	// invoked from the tick goroutine and must not block.
	OnEvent func(types.SessionEvent)

	// OnStillnessReset, when set before the first Tick, is called whenever the
	// machine restarts the motion clock without an observed motion sample:
	// success advance and reset. The stability gate hooks in here so those
	// transitions demand a fresh stillness window before the next launch.
	OnStillnessReset func(now time.Time)
}

// NewController creates a controller in the MOVING phase.
func NewController(cfg Config, steps []types.Step, verifier verify.Verifier) *Controller {
	c := &Controller{
		cfg:         cfg,
		steps:       steps,
		verifier:    verifier,
		completions: make(chan completion, 4),
		resets:      make(chan struct{}, 1),
		phase:       PhaseMoving,
	}
	c.publishSnapshot(time.Time{})
	return c
}

// Tick advances the machine by one sample. frame is the raw frame the sample
// was scored from; it is captured by reference on launch, so sources must not
// reuse frame buffers.
func (c *Controller) Tick(ctx context.Context, frame *types.Frame, score float64, steady bool, now time.Time) {
	if c.lastMotionAt.IsZero() {
		c.lastMotionAt = now
	}
	c.lastScore = score

	if c.drainResets(now) {
		// The caller computed steady before the reset applied; a reset
		// restarts the stillness window, so this tick cannot be steady.
		steady = false
	}
	c.drainCompletions(now)

	moving := score >= c.cfg.MotionThreshold

	switch c.phase {
	case PhaseMoving:
		if steady {
			c.eventConsumed = false
			c.transition(PhaseSteady, now)
		} else if moving {
			c.lastMotionAt = now
		}

	case PhaseSteady:
		switch {
		case c.quotaLocked:
			// Locked for the session lifetime; hold.
		case c.eventConsumed:
			// This steady event already spent its one call; wait for motion.
		case !c.lastCallAt.IsZero() && now.Sub(c.lastCallAt) < c.cfg.MinVerifierInterval:
			// Cooldown hold. Checked before launching so rapid motion/stillness
			// cycles cannot bypass the minimum interval.
		case c.stepIdx < len(c.steps):
			c.launch(ctx, frame, now)
		default:
			out := types.VerificationOutcome{Status: types.StatusCorrect, Feedback: "Complete!"}
			c.lastOutcome = &out
			c.successShownAt = time.Time{}
			c.transition(PhaseFeedback, now)
		}
		if moving && !c.eventConsumed && c.phase == PhaseSteady {
			c.lastMotionAt = now
			c.eventConsumed = false
			c.transition(PhaseMoving, now)
		}

	case PhaseAnalyzing:
		// Waiting on the completion channel; nothing happens per tick.

	case PhaseFeedback:
		c.tickFeedback(moving, now)
	}

	c.publishSnapshot(now)
}

func (c *Controller) tickFeedback(moving bool, now time.Time) {
	if c.lastOutcome == nil {
		return
	}
	if c.lastOutcome.Status == types.StatusCorrect {
		if c.successShownAt.IsZero() {
			c.successShownAt = now
		}
		if now.Sub(c.successShownAt) > c.cfg.SuccessDisplay {
			if c.stepIdx < len(c.steps) {
				c.stepIdx++
			}
			c.lastOutcome = nil
			c.restartStillness(now)
			c.successShownAt = time.Time{}
			c.eventConsumed = false
			c.transition(PhaseMoving, now)
		}
		return
	}
	// incorrect, partial or error: the outcome stays visible until the next
	// one overwrites it; motion returns the session to monitoring.
	if moving {
		c.lastMotionAt = now
		c.eventConsumed = false
		c.transition(PhaseMoving, now)
	}
}

// launch fires exactly one verification for the current steady event.
// Only reachable from STEADY with eventConsumed false, which is what makes
// the single-flight guarantee structural rather than lock-based.
func (c *Controller) launch(ctx context.Context, frame *types.Frame, now time.Time) {
	step := c.steps[c.stepIdx]
	c.eventConsumed = true
	c.lastCallAt = now
	c.inFlightID = uuid.New().String()
	c.transition(PhaseAnalyzing, now)

	slog.Info("steady view captured, verifying",
		"step_id", step.ID,
		"event_id", c.inFlightID,
	)

	go c.runVerification(ctx, frame, step, c.inFlightID)
}

// runVerification executes off the tick path. Every failure is converted to
// an outcome here, at the task boundary; nothing propagates to the tick loop
// except the completion message.
func (c *Controller) runVerification(ctx context.Context, frame *types.Frame, step types.Step, eventID string) {
	outcome, quota := c.doVerify(ctx, frame, step)
	select {
	case c.completions <- completion{eventID: eventID, outcome: outcome, quota: quota}:
	default:
		// Buffer full can only mean a pile-up of abandoned results; the
		// session has long moved on, so dropping is correct.
		slog.Warn("completion channel full, dropping result", "event_id", eventID)
	}
}

func (c *Controller) doVerify(ctx context.Context, frame *types.Frame, step types.Step) (types.VerificationOutcome, bool) {
	img, err := verify.EncodeJPEG(frame)
	if err != nil {
		slog.Error("failed to encode capture", "error", err)
		return types.VerificationOutcome{Status: types.StatusError, Feedback: "Camera error"}, false
	}

	outcome, err := c.verifier.Verify(ctx, verify.Request{
		StepInstruction: step.Instruction,
		ExpectedVisual:  step.Expected,
		ImageBytes:      img,
	})
	if err == nil {
		return outcome, false
	}

	if errors.Is(err, verify.ErrQuotaExhausted) {
		slog.Warn("verifier quota exhausted, locking session")
		return types.VerificationOutcome{
			Status:   types.StatusError,
			Feedback: "Daily quota exhausted. Try tomorrow.",
		}, true
	}

	var malformed *verify.MalformedResponseError
	if errors.As(err, &malformed) {
		slog.Warn("unparseable verifier response", "raw", malformed.Raw)
		return types.VerificationOutcome{
			Status:   types.StatusError,
			Feedback: "Could not understand the response. Try again.",
		}, false
	}

	slog.Warn("verification failed", "error", err)
	return types.VerificationOutcome{
		Status:   types.StatusError,
		Feedback: "Verification failed. Hold steady to retry.",
	}, false
}

func (c *Controller) drainCompletions(now time.Time) {
	for {
		select {
		case comp := <-c.completions:
			// Quota exhaustion is a session-lifetime fact; it locks even when
			// the outcome itself arrives stale.
			if comp.quota && !c.quotaLocked {
				c.quotaLocked = true
				c.emit(types.EventQuotaLock, now, nil)
			}
			if c.phase != PhaseAnalyzing || comp.eventID != c.inFlightID {
				slog.Debug("dropping stale verification result", "event_id", comp.eventID)
				continue
			}
			c.inFlightID = ""
			outcome := comp.outcome
			c.lastOutcome = &outcome
			c.successShownAt = time.Time{}
			c.transition(PhaseFeedback, now)
			c.emit(types.EventOutcome, now, &outcome)
		default:
			return
		}
	}
}

func (c *Controller) drainResets(now time.Time) bool {
	select {
	case <-c.resets:
	default:
		return false
	}
	slog.Info("session reset", "quota_locked", c.quotaLocked)
	c.lastOutcome = nil
	c.restartStillness(now)
	c.eventConsumed = false
	c.successShownAt = time.Time{}
	// Abandon any in-flight verification: its result no longer matches the
	// current event and will be dropped on arrival.
	c.inFlightID = ""
	if c.phase != PhaseMoving {
		c.transition(PhaseMoving, now)
	}
	return true
}

// restartStillness moves the motion clock to now and propagates it to the
// OnStillnessReset listener, keeping the single motion timestamp consistent
// across the controller and the gate.
func (c *Controller) restartStillness(now time.Time) {
	c.lastMotionAt = now
	if c.OnStillnessReset != nil {
		c.OnStillnessReset(now)
	}
}

// RequestReset schedules a reset, applied at the start of the next tick.
// Safe from any goroutine; never blocks. It does not clear the quota lock.
func (c *Controller) RequestReset() {
	select {
	case c.resets <- struct{}{}:
	default:
	}
}

// Snapshot returns the state published by the most recent tick.
func (c *Controller) Snapshot() Snapshot {
	return *c.snap.Load()
}

func (c *Controller) transition(to Phase, now time.Time) {
	from := c.phase
	c.phase = to
	slog.Debug("phase transition", "from", string(from), "to", string(to))
	c.emit(types.EventPhaseChange, now, nil)
}

func (c *Controller) emit(eventType string, now time.Time, outcome *types.VerificationOutcome) {
	if c.OnEvent == nil {
		return
	}
	ev := types.NewSessionEvent(eventType, now)
	ev.Phase = string(c.phase)
	ev.StepIndex = c.stepIdx
	if c.stepIdx < len(c.steps) {
		ev.StepID = c.steps[c.stepIdx].ID
	}
	ev.MotionScore = c.lastScore
	ev.QuotaLocked = c.quotaLocked
	ev.Outcome = outcome
	c.OnEvent(ev)
}

func (c *Controller) publishSnapshot(now time.Time) {
	var cooldown time.Duration
	if !c.lastCallAt.IsZero() {
		if rem := c.cfg.MinVerifierInterval - now.Sub(c.lastCallAt); rem > 0 {
			cooldown = rem
		}
	}
	snap := Snapshot{
		Phase:              c.phase,
		StepIndex:          c.stepIdx,
		TotalSteps:         len(c.steps),
		LastOutcome:        c.lastOutcome,
		QuotaLocked:        c.quotaLocked,
		EventConsumed:      c.eventConsumed,
		InFlight:           c.inFlightID != "",
		LastVerifierCallAt: c.lastCallAt,
		LastMotionAt:       c.lastMotionAt,
		MotionScore:        c.lastScore,
		CooldownRemaining:  cooldown,
	}
	c.snap.Store(&snap)
}
