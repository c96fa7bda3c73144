// Package stream provides frame sources for the tick loop: a GStreamer-backed
// webcam capture and a synthetic mock for tests and keyless demos.
//
// Channel discipline: sources never block on a slow consumer. When the frames
// channel is full the newest frame is dropped and counted; staleness is worse
// than incompleteness for a live assistant.
package stream

import (
	"context"

	"github.com/sajided/sparkEye/internal/types"
)

// Source supplies frames until the stream ends. A closed Frames channel is
// the end-of-stream signal and terminates the session gracefully.
type Source interface {
	// Start begins frame production. Must be called once.
	Start(ctx context.Context) error
	// Frames returns the frame channel, closed on end of stream.
	Frames() <-chan types.Frame
	// Stop halts production and closes the frames channel.
	Stop() error
	// Stats returns source statistics.
	Stats() types.StreamStats
}

var (
	_ Source = (*MockSource)(nil)
	_ Source = (*WebcamSource)(nil)
)
