package stream

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sajided/sparkEye/internal/types"
)

// TestMockSourceProducesFrames verifies frames arrive with the configured
// geometry.
func TestMockSourceProducesFrames(t *testing.T) {
	src := NewMockSource(64, 48, 30, time.Minute)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Stop()

	select {
	case frame := <-src.Frames():
		if frame.Width != 64 || frame.Height != 48 {
			t.Errorf("frame geometry %dx%d, want 64x48", frame.Width, frame.Height)
		}
		if len(frame.Data) != 64*48*3 {
			t.Errorf("frame data length %d, want %d", len(frame.Data), 64*48*3)
		}
		if !frame.Valid() {
			t.Error("frame reported invalid")
		}
		if frame.TraceID == "" {
			t.Error("frame has no trace id")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for first frame")
	}
}

// TestMockSourceMovesThenFreezes checks the synthetic scene changes while in
// its motion window and stops changing after it.
func TestMockSourceMovesThenFreezes(t *testing.T) {
	src := NewMockSource(64, 48, 60, time.Minute)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Stop()

	a := recvFrame(t, src)
	b := recvFrame(t, src)
	if bytes.Equal(a.Data, b.Data) {
		t.Error("consecutive frames identical during motion window")
	}

	// motionFor=0 freezes the scene immediately.
	frozen := NewMockSource(64, 48, 60, 0)
	if err := frozen.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer frozen.Stop()

	c := recvFrame(t, frozen)
	d := recvFrame(t, frozen)
	if !bytes.Equal(c.Data, d.Data) {
		t.Error("frozen scene still changing")
	}
}

// TestMockSourceStopClosesChannel verifies Stop ends the stream, which is the
// session's graceful end signal.
func TestMockSourceStopClosesChannel(t *testing.T) {
	src := NewMockSource(64, 48, 30, time.Minute)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	recvFrame(t, src)
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-src.Frames():
			if !ok {
				return // closed, as expected
			}
		case <-deadline:
			t.Fatal("frames channel never closed after Stop")
		}
	}
}

// TestMockSourceTinyFrames checks frame generation stays in bounds when the
// requested geometry leaves the square no room to move.
func TestMockSourceTinyFrames(t *testing.T) {
	for _, geom := range []struct{ w, h int }{{4, 4}, {6, 4}, {4, 32}, {8, 8}} {
		src := NewMockSource(geom.w, geom.h, 30, time.Minute)
		for i := 0; i < 5; i++ {
			frame := src.createFrame()
			if !frame.Valid() {
				t.Fatalf("%dx%d: generated invalid frame", geom.w, geom.h)
			}
			if len(frame.Data) != geom.w*geom.h*3 {
				t.Fatalf("%dx%d: data length %d", geom.w, geom.h, len(frame.Data))
			}
		}
	}
}

func TestMockSourceStats(t *testing.T) {
	src := NewMockSource(64, 48, 30, time.Minute)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Stop()

	recvFrame(t, src)
	stats := src.Stats()
	if stats.SourceStream != "mock" {
		t.Errorf("SourceStream = %q", stats.SourceStream)
	}
	if stats.Resolution != "64x48" {
		t.Errorf("Resolution = %q", stats.Resolution)
	}
	if !stats.IsConnected {
		t.Error("running source reports disconnected")
	}
}

func recvFrame(t *testing.T, src Source) types.Frame {
	t.Helper()
	select {
	case frame, ok := <-src.Frames():
		if !ok {
			t.Fatal("frames channel closed unexpectedly")
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
	return types.Frame{}
}
