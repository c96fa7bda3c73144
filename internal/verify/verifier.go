// Package verify performs one visual verification attempt per request against
// a vision model, converting every failure into the typed taxonomy the
// session controller branches on.
package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sajided/sparkEye/internal/types"
)

// Request is one verification attempt: the step being checked plus a JPEG
// capture of the current view.
type Request struct {
	StepInstruction string
	ExpectedVisual  string
	ImageBytes      []byte
}

// Verifier performs a single verification attempt. Implementations may take
// seconds; callers run them off the tick path. Failures are ErrQuotaExhausted
// or one of *TransportError, *NoResponseError, *MalformedResponseError.
type Verifier interface {
	Verify(ctx context.Context, req Request) (types.VerificationOutcome, error)
}

// Simulated is used when no API key is configured: it waits briefly and
// reports success, mirroring the prototype's keyless mode.
type Simulated struct {
	Delay time.Duration
}

// NewSimulated returns a simulated verifier with a 2s think time.
func NewSimulated() *Simulated {
	return &Simulated{Delay: 2 * time.Second}
}

// Verify implements Verifier.
func (s *Simulated) Verify(ctx context.Context, req Request) (types.VerificationOutcome, error) {
	slog.Debug("simulated verification", "instruction", req.StepInstruction)
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return types.VerificationOutcome{}, &TransportError{Err: ctx.Err()}
	}
	return types.VerificationOutcome{
		Status:     types.StatusCorrect,
		Confidence: 1.0,
		Feedback:   "Simulated success (no API key)",
	}, nil
}
