// Package config loads and validates the sparkeye YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sajided/sparkEye/internal/types"
)

// Config represents the complete sparkeye configuration.
type Config struct {
	InstanceID        string         `yaml:"instance_id"`
	ShutdownTimeoutS  int            `yaml:"shutdown_timeout_s"`
	MotionThreshold   float64        `yaml:"motion_threshold"`
	StillnessS        float64        `yaml:"stillness_duration_s"`
	MinAIIntervalS    float64        `yaml:"min_verifier_interval_s"`
	SuccessDisplayS   float64        `yaml:"success_display_s"`
	Mirror            bool           `yaml:"mirror"`
	Camera            CameraConfig   `yaml:"camera"`
	Verifier          VerifierConfig `yaml:"verifier"`
	MQTT              MQTTConfig     `yaml:"mqtt"`
	Steps             []types.Step   `yaml:"steps"`
}

// CameraConfig contains capture settings.
type CameraConfig struct {
	Device string `yaml:"device"` // e.g. /dev/video0
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// VerifierConfig contains vision-model settings. The API key itself comes
// from the environment, never from the config file.
type VerifierConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// MQTTConfig contains optional broker settings. An empty broker disables
// event emission entirely.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic names.
type MQTTTopics struct {
	Events  string `yaml:"events"`
	Control string `yaml:"control"`
	Health  string `yaml:"health"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a config pre-filled with the prototype's tuning.
func Default() *Config {
	return &Config{
		InstanceID:       "sparkeye",
		ShutdownTimeoutS: 5,
		MotionThreshold:  5000,
		StillnessS:       5,
		MinAIIntervalS:   15,
		SuccessDisplayS:  3,
		Mirror:           true,
		Camera: CameraConfig{
			Device: "/dev/video0",
			Width:  640,
			Height: 480,
			FPS:    15,
		},
		Verifier: VerifierConfig{
			APIKeyEnv: "GEMINI_API_KEY",
		},
		MQTT: MQTTConfig{
			Topics: MQTTTopics{
				Events:  "sparkeye/events",
				Control: "sparkeye/control",
				Health:  "sparkeye/health",
			},
		},
	}
}

// Stillness returns the stillness duration.
func (c *Config) Stillness() time.Duration {
	return time.Duration(c.StillnessS * float64(time.Second))
}

// MinAIInterval returns the verification cooldown.
func (c *Config) MinAIInterval() time.Duration {
	return time.Duration(c.MinAIIntervalS * float64(time.Second))
}

// SuccessDisplay returns the success display window.
func (c *Config) SuccessDisplay() time.Duration {
	return time.Duration(c.SuccessDisplayS * float64(time.Second))
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}
