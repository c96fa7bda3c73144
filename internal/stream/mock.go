package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sajided/sparkEye/internal/types"
)

// MockSource generates synthetic RGB24 frames: a bright square orbits the
// frame for MotionFor, then freezes, so a session driven by it walks the full
// MOVING -> STEADY -> ANALYZING path without a camera.
type MockSource struct {
	width     int
	height    int
	fps       int
	motionFor time.Duration

	framesCh chan types.Frame
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	seq           uint64
	framesEmitted uint64
	drops         uint64
	isRunning     bool
	startTime     time.Time
}

// NewMockSource creates a mock source. motionFor controls how long the
// synthetic scene keeps moving before it goes still.
func NewMockSource(width, height, fps int, motionFor time.Duration) *MockSource {
	return &MockSource{
		width:     width,
		height:    height,
		fps:       fps,
		motionFor: motionFor,
		framesCh:  make(chan types.Frame, 10),
		stopCh:    make(chan struct{}),
	}
}

// Start begins generating frames.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return fmt.Errorf("source already running")
	}
	m.isRunning = true
	m.startTime = time.Now()
	m.mu.Unlock()

	slog.Info("mock source starting",
		"width", m.width,
		"height", m.height,
		"fps", m.fps,
		"motion_for", m.motionFor,
	)

	m.wg.Add(1)
	go m.generateFrames(ctx)

	return nil
}

// Frames returns the frames channel.
func (m *MockSource) Frames() <-chan types.Frame {
	return m.framesCh
}

// Stop stops the source and closes the frames channel.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	close(m.framesCh)

	slog.Info("mock source stopped",
		"frames_emitted", m.framesEmitted,
		"duration", time.Since(m.startTime),
	)

	return nil
}

// Stats returns source statistics.
func (m *MockSource) Stats() types.StreamStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var fpsReal float64
	if m.framesEmitted > 0 {
		elapsed := time.Since(m.startTime).Seconds()
		if elapsed > 0 {
			fpsReal = float64(m.framesEmitted) / elapsed
		}
	}

	return types.StreamStats{
		FrameCount:   m.framesEmitted,
		FPSTarget:    m.fps,
		FPSReal:      fpsReal,
		SourceStream: "mock",
		Resolution:   fmt.Sprintf("%dx%d", m.width, m.height),
		Drops:        m.drops,
		IsConnected:  m.isRunning,
	}
}

func (m *MockSource) generateFrames(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			frame := m.createFrame()
			select {
			case m.framesCh <- frame:
				m.mu.Lock()
				m.framesEmitted++
				m.mu.Unlock()
			default:
				m.mu.Lock()
				m.drops++
				m.mu.Unlock()
			}
		}
	}
}

// createFrame draws a dark background with a bright square. The square moves
// one step per frame while the scene is in its motion window, then stops.
func (m *MockSource) createFrame() types.Frame {
	m.mu.Lock()
	seq := m.seq
	m.seq++
	start := m.startTime
	m.mu.Unlock()

	data := make([]byte, m.width*m.height*3)
	for i := range data {
		data[i] = 0x10
	}

	pos := int(seq)
	if m.motionFor >= 0 && time.Since(start) > m.motionFor {
		// Scene frozen: keep drawing the square where it last stood.
		frozenFrames := uint64(m.motionFor.Seconds() * float64(m.fps))
		pos = int(frozenFrames)
	}

	side := m.width / 8
	if side < 4 {
		side = 4
	}
	if side > m.width {
		side = m.width
	}
	if side > m.height {
		side = m.height
	}
	// Tiny frames leave the square no room to travel; pin it at the origin.
	x0, y0 := 0, 0
	if span := m.width - side; span > 0 {
		x0 = (pos * 3) % span
	}
	if span := m.height - side; span > 0 {
		y0 = (pos * 2) % span
	}
	for y := y0; y < y0+side; y++ {
		row := y * m.width * 3
		for x := x0; x < x0+side; x++ {
			data[row+x*3+0] = 0xe0
			data[row+x*3+1] = 0xe0
			data[row+x*3+2] = 0xe0
		}
	}

	return types.Frame{
		Seq:          seq,
		Timestamp:    time.Now(),
		Width:        m.width,
		Height:       m.height,
		Data:         data,
		SourceStream: "mock",
		TraceID:      uuid.New().String(),
	}
}
