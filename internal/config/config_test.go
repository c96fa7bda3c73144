package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sajided/sparkEye/internal/types"
)

const validYAML = `
instance_id: bench-1
motion_threshold: 4000
stillness_duration_s: 4.5
min_verifier_interval_s: 10
success_display_s: 2
mirror: false
camera:
  device: /dev/video2
  width: 1280
  height: 720
  fps: 30
verifier:
  model: gemini-2.5-flash
steps:
  - id: 1
    instruction: "Connect LED anode to pin 13"
    expected: "LED on pin 13"
  - id: 2
    instruction: "Connect LED cathode to GND"
    expected: "cathode on GND"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sparkeye.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.InstanceID != "bench-1" {
		t.Errorf("InstanceID = %q", cfg.InstanceID)
	}
	if cfg.MotionThreshold != 4000 {
		t.Errorf("MotionThreshold = %v", cfg.MotionThreshold)
	}
	if got := cfg.Stillness(); got != 4500*time.Millisecond {
		t.Errorf("Stillness = %v", got)
	}
	if got := cfg.MinAIInterval(); got != 10*time.Second {
		t.Errorf("MinAIInterval = %v", got)
	}
	if cfg.Camera.Device != "/dev/video2" || cfg.Camera.FPS != 30 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if len(cfg.Steps) != 2 || cfg.Steps[1].ID != 2 {
		t.Errorf("steps = %+v", cfg.Steps)
	}
	// Unset fields keep their defaults.
	if cfg.Verifier.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("APIKeyEnv = %q", cfg.Verifier.APIKeyEnv)
	}
	if got := cfg.ShutdownTimeout(); got != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadUnparseable(t *testing.T) {
	if _, err := Load(writeConfig(t, "steps: [broken")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejects(t *testing.T) {
	step := types.Step{ID: 1, Instruction: "do", Expected: "see"}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty instance id", func(c *Config) { c.InstanceID = "" }},
		{"uppercase instance id", func(c *Config) { c.InstanceID = "Bench" }},
		{"zero motion threshold", func(c *Config) { c.MotionThreshold = 0 }},
		{"zero stillness", func(c *Config) { c.StillnessS = 0 }},
		{"negative cooldown", func(c *Config) { c.MinAIIntervalS = -1 }},
		{"zero camera fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"no steps", func(c *Config) { c.Steps = nil }},
		{"step without instruction", func(c *Config) {
			c.Steps = []types.Step{{ID: 1, Expected: "see"}}
		}},
		{"step without expected", func(c *Config) {
			c.Steps = []types.Step{{ID: 1, Instruction: "do"}}
		}},
		{"duplicate step ids", func(c *Config) {
			c.Steps = []types.Step{step, step}
		}},
		{"qos out of range", func(c *Config) {
			c.MQTT.Broker = "localhost:1883"
			c.MQTT.QoS = map[string]byte{"events": 3}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Steps = []types.Step{step}
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateFillsMQTTDefaults(t *testing.T) {
	cfg := Default()
	cfg.Steps = []types.Step{{ID: 1, Instruction: "do", Expected: "see"}}
	cfg.MQTT.Broker = "localhost:1883"
	cfg.MQTT.Topics = MQTTTopics{}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.MQTT.Topics.Events != "sparkeye/events/sparkeye" {
		t.Errorf("events topic = %q", cfg.MQTT.Topics.Events)
	}
	if cfg.MQTT.QoS["control"] != 1 || cfg.MQTT.QoS["health"] != 0 {
		t.Errorf("qos defaults = %v", cfg.MQTT.QoS)
	}
}
