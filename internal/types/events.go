package types

import (
	"encoding/json"
	"time"
)

// Session event types published on the MQTT events topic.
const (
	EventPhaseChange = "phase_change"
	EventOutcome     = "outcome"
	EventQuotaLock   = "quota_locked"
	EventStatus      = "status"
)

// SessionEvent is emitted by the capture controller on observable state
// changes. Payloads are JSON, one event per message.
type SessionEvent struct {
	InstanceID   string               `json:"instance_id,omitempty"`
	EventType    string               `json:"event_type"`
	Phase        string               `json:"phase"`
	StepIndex    int                  `json:"step_index"`
	StepID       int                  `json:"step_id,omitempty"`
	MotionScore  float64              `json:"motion_score"`
	Outcome      *VerificationOutcome `json:"outcome,omitempty"`
	QuotaLocked  bool                 `json:"quota_locked"`
	TimestampStr string               `json:"timestamp"`
	ts           time.Time
}

// NewSessionEvent stamps an event with its emission time.
func NewSessionEvent(eventType string, ts time.Time) SessionEvent {
	return SessionEvent{
		EventType:    eventType,
		TimestampStr: ts.UTC().Format(time.RFC3339Nano),
		ts:           ts,
	}
}

// Type returns the event type.
func (e SessionEvent) Type() string { return e.EventType }

// Timestamp returns when the event was generated.
func (e SessionEvent) Timestamp() time.Time { return e.ts }

// ToJSON converts the event to JSON bytes.
func (e SessionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
