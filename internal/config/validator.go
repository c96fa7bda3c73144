package config

import (
	"fmt"
	"regexp"

	"github.com/sajided/sparkEye/internal/types"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills defaults that
// depend on other fields.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.MotionThreshold <= 0 {
		return fmt.Errorf("motion_threshold must be > 0")
	}
	if cfg.StillnessS <= 0 {
		return fmt.Errorf("stillness_duration_s must be > 0")
	}
	if cfg.MinAIIntervalS < 0 {
		return fmt.Errorf("min_verifier_interval_s must be >= 0")
	}
	if cfg.SuccessDisplayS <= 0 {
		return fmt.Errorf("success_display_s must be > 0")
	}

	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be > 0")
	}

	if err := validateSteps(cfg.Steps); err != nil {
		return fmt.Errorf("step validation failed: %w", err)
	}

	// MQTT is optional; only check shape when a broker is configured.
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Events == "" {
			cfg.MQTT.Topics.Events = fmt.Sprintf("sparkeye/events/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Control == "" {
			cfg.MQTT.Topics.Control = fmt.Sprintf("sparkeye/control/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Health == "" {
			cfg.MQTT.Topics.Health = fmt.Sprintf("sparkeye/health/%s", cfg.InstanceID)
		}
		if cfg.MQTT.QoS == nil {
			cfg.MQTT.QoS = map[string]byte{
				"control": 1,
				"events":  1,
				"health":  0,
			}
		}
		for name, qos := range cfg.MQTT.QoS {
			if qos > 2 {
				return fmt.Errorf("mqtt.qos.%s must be 0, 1 or 2, got %d", name, qos)
			}
		}
	}

	if cfg.Verifier.APIKeyEnv == "" {
		cfg.Verifier.APIKeyEnv = "GEMINI_API_KEY"
	}

	return nil
}

func validateSteps(steps []types.Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	seen := make(map[int]bool, len(steps))
	for i, step := range steps {
		if step.Instruction == "" {
			return fmt.Errorf("step %d: instruction is required", i)
		}
		if step.Expected == "" {
			return fmt.Errorf("step %d: expected is required", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("step %d: duplicate id %d", i, step.ID)
		}
		seen[step.ID] = true
	}
	return nil
}
