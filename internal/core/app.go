// Package core wires the capture pipeline together and owns the tick loop:
// frame in, motion score, stability signal, state machine, status out.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sajided/sparkEye/internal/config"
	"github.com/sajided/sparkEye/internal/emitter"
	"github.com/sajided/sparkEye/internal/motion"
	"github.com/sajided/sparkEye/internal/session"
	"github.com/sajided/sparkEye/internal/stability"
	"github.com/sajided/sparkEye/internal/stream"
	"github.com/sajided/sparkEye/internal/types"
	"github.com/sajided/sparkEye/internal/verify"
)

const healthInterval = 10 * time.Second

// Status is the combined observable state published once per tick for the
// presenter.
type Status struct {
	Session           session.Snapshot
	StillnessProgress float64
	Stream            types.StreamStats
}

// App is the main service orchestrator.
type App struct {
	cfg     *config.Config
	source  stream.Source
	scorer  *motion.Scorer
	gate    *stability.Gate
	ctrl    *session.Controller
	emitter *emitter.Emitter

	status atomic.Pointer[Status]

	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	started   time.Time
}

// New builds an app from configuration, a frame source and a verifier.
func New(cfg *config.Config, source stream.Source, verifier verify.Verifier) *App {
	a := &App{
		cfg:     cfg,
		source:  source,
		scorer:  motion.NewScorer(),
		gate:    stability.New(cfg.MotionThreshold, cfg.Stillness()),
		emitter: emitter.New(cfg),
	}

	a.ctrl = session.NewController(session.Config{
		MotionThreshold:     cfg.MotionThreshold,
		MinVerifierInterval: cfg.MinAIInterval(),
		SuccessDisplay:      cfg.SuccessDisplay(),
	}, cfg.Steps, verifier)
	a.ctrl.OnEvent = a.emitter.Enqueue
	// Step advance and reset restart the motion clock; the gate must see that
	// too, or a still scene would count its old interval toward the next launch.
	a.ctrl.OnStillnessReset = a.gate.NoteMotion

	a.status.Store(&Status{Session: a.ctrl.Snapshot()})
	return a
}

// Run starts the pipeline and blocks until the frame source ends or the
// context is cancelled. End-of-stream is a graceful session end, not an
// error.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.isRunning {
		a.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	a.isRunning = true
	a.started = time.Now()
	a.mu.Unlock()

	slog.Info("sparkeye starting",
		"instance_id", a.cfg.InstanceID,
		"steps", len(a.cfg.Steps),
		"motion_threshold", a.cfg.MotionThreshold,
		"stillness", a.cfg.Stillness(),
	)

	if a.emitter != nil {
		if err := a.emitter.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}
		if err := a.emitter.SubscribeReset(a.ctrl.RequestReset); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
	}

	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start frame source: %w", err)
	}

	a.wg.Add(1)
	go a.healthLoop(ctx)

	return a.tickLoop(ctx)
}

// tickLoop is the synchronous heart of the system. It is the only goroutine
// that mutates session state; the verification task reports back through the
// controller's completion channel.
func (a *App) tickLoop(ctx context.Context) error {
	frames := a.source.Frames()
	for {
		select {
		case <-ctx.Done():
			slog.Info("tick loop stopping", "reason", "context cancelled")
			return nil
		case frame, ok := <-frames:
			if !ok {
				slog.Info("frame source ended, session complete")
				return nil
			}
			a.tick(ctx, &frame)
		}
	}
}

func (a *App) tick(ctx context.Context, frame *types.Frame) {
	// Validity comes first: mirroring indexes the full RGB24 buffer.
	if !frame.Valid() {
		// Fatal to this tick only; the loop continues on the next frame.
		slog.Warn("skipping invalid frame", "seq", frame.Seq, "size", len(frame.Data))
		return
	}
	if a.cfg.Mirror {
		frame.MirrorHorizontal()
	}

	score, err := a.scorer.Score(frame)
	if err != nil {
		if errors.Is(err, motion.ErrInvalidFrame) {
			slog.Warn("skipping invalid frame", "seq", frame.Seq, "error", err)
			return
		}
		slog.Error("motion scoring failed", "seq", frame.Seq, "error", err)
		return
	}

	now := frame.Timestamp
	steady := a.gate.Update(score, now)
	a.ctrl.Tick(ctx, frame, score, steady, now)

	a.status.Store(&Status{
		Session:           a.ctrl.Snapshot(),
		StillnessProgress: a.gate.Progress(now),
		Stream:            a.source.Stats(),
	})
}

// healthLoop periodically publishes a status event and stream health.
func (a *App) healthLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := a.Status()
			ev := types.NewSessionEvent(types.EventStatus, time.Now())
			ev.Phase = string(st.Session.Phase)
			ev.StepIndex = st.Session.StepIndex
			ev.MotionScore = st.Session.MotionScore
			ev.QuotaLocked = st.Session.QuotaLocked
			a.emitter.Enqueue(ev)

			if payload, err := json.Marshal(st.Stream); err == nil {
				if err := a.emitter.PublishHealth(payload); err != nil {
					slog.Debug("health publish skipped", "error", err)
				}
			}
		}
	}
}

// Shutdown performs graceful shutdown. Order matters: stop the source first
// so the tick loop drains out, then drop the broker connection.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.isRunning {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	slog.Info("shutting down")

	if err := a.source.Stop(); err != nil {
		slog.Error("failed to stop frame source", "error", err)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timeout waiting for goroutines")
	}

	if a.emitter != nil {
		if err := a.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	a.mu.Lock()
	uptime := time.Since(a.started)
	a.isRunning = false
	a.mu.Unlock()

	slog.Info("shutdown complete", "uptime", uptime)
	return nil
}

// Status returns the most recently published status. Safe from any goroutine.
func (a *App) Status() Status {
	return *a.status.Load()
}

// RequestReset forwards a reset command to the controller.
func (a *App) RequestReset() {
	a.ctrl.RequestReset()
}

// Steps returns the configured step sequence.
func (a *App) Steps() []types.Step {
	return a.cfg.Steps
}
