package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sajided/sparkEye/internal/config"
	"github.com/sajided/sparkEye/internal/core"
	"github.com/sajided/sparkEye/internal/session"
	"github.com/sajided/sparkEye/internal/stream"
	"github.com/sajided/sparkEye/internal/types"
	"github.com/sajided/sparkEye/internal/verify"
)

func testApp() *core.App {
	cfg := config.Default()
	cfg.MQTT.Broker = ""
	cfg.Steps = []types.Step{
		{ID: 1, Instruction: "Connect LED anode to pin 13", Expected: "LED on pin 13"},
	}
	return core.New(cfg, stream.NewMockSource(64, 48, 30, 0), verify.NewSimulated())
}

func modelWith(status core.Status) Model {
	m := NewModel(testApp())
	m.status = status
	return m
}

func TestViewShowsCurrentStep(t *testing.T) {
	m := NewModel(testApp())
	view := m.View()
	assert.Contains(t, view, "Step 1: Connect LED anode to pin 13")
	assert.Contains(t, view, "Stabilize camera...")
}

func TestViewStatusLines(t *testing.T) {
	cases := []struct {
		name   string
		status core.Status
		want   string
	}{
		{
			name:   "steady waiting",
			status: core.Status{Session: session.Snapshot{Phase: session.PhaseSteady, TotalSteps: 1}},
			want:   "Hold steady...",
		},
		{
			name: "cooldown countdown",
			status: core.Status{Session: session.Snapshot{
				Phase:             session.PhaseSteady,
				TotalSteps:        1,
				CooldownRemaining: 7 * time.Second,
			}},
			want: "Cooldown (8s)...",
		},
		{
			name: "steady event spent",
			status: core.Status{Session: session.Snapshot{
				Phase:         session.PhaseSteady,
				TotalSteps:    1,
				EventConsumed: true,
			}},
			want: "Done. Move to retry.",
		},
		{
			name:   "analyzing",
			status: core.Status{Session: session.Snapshot{Phase: session.PhaseAnalyzing, TotalSteps: 1}},
			want:   "Thinking...",
		},
		{
			name: "quota locked",
			status: core.Status{Session: session.Snapshot{
				Phase:       session.PhaseSteady,
				TotalSteps:  1,
				QuotaLocked: true,
			}},
			want: "QUOTA EXHAUSTED. Try tomorrow.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, modelWith(tc.status).View(), tc.want)
		})
	}
}

func TestViewFeedbackPrefixes(t *testing.T) {
	outcome := func(s types.Status, fb string) core.Status {
		return core.Status{Session: session.Snapshot{
			Phase:       session.PhaseFeedback,
			TotalSteps:  1,
			LastOutcome: &types.VerificationOutcome{Status: s, Feedback: fb},
		}}
	}

	assert.Contains(t, modelWith(outcome(types.StatusCorrect, "nice")).View(), "CORRECT: nice")
	assert.Contains(t, modelWith(outcome(types.StatusPartial, "half")).View(), "PARTIAL: half")
	assert.Contains(t, modelWith(outcome(types.StatusIncorrect, "wrong pin")).View(), "INCORRECT: wrong pin")
}

func TestViewAllStepsDone(t *testing.T) {
	m := modelWith(core.Status{Session: session.Snapshot{
		Phase:      session.PhaseMoving,
		StepIndex:  1,
		TotalSteps: 1,
	}})
	assert.Contains(t, m.View(), "All steps completed!")
}

func TestProgressBarBounds(t *testing.T) {
	m := NewModel(testApp())
	assert.Contains(t, m.progressBar(0), "0%")
	assert.Contains(t, m.progressBar(0.5), "50%")
	assert.Contains(t, m.progressBar(1.5), "100%")
}
