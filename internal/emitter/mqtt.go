// Package emitter publishes session events to an MQTT broker and listens for
// remote control commands. The whole package is optional: a nil *Emitter is
// safe to use and does nothing.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sajided/sparkEye/internal/config"
	"github.com/sajided/sparkEye/internal/types"
)

// Emitter publishes session events over MQTT. Enqueue never blocks: events
// are dropped, not queued, when the broker falls behind the tick loop.
type Emitter struct {
	cfg    *config.Config
	client mqtt.Client

	queue  chan types.SessionEvent
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu        sync.RWMutex
	published map[string]uint64
	dropped   uint64
	errors    uint64
	connected bool
}

// Command is a control-plane message. The only supported command is "reset".
type Command struct {
	Command string `json:"command"`
}

// New creates an emitter, or nil when no broker is configured.
func New(cfg *config.Config) *Emitter {
	if cfg.MQTT.Broker == "" {
		return nil
	}
	return &Emitter{
		cfg:       cfg,
		queue:     make(chan types.SessionEvent, 16),
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection and starts the publish loop.
func (e *Emitter) Connect(ctx context.Context) error {
	if e == nil {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.MQTT.Broker))
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.MQTT.Broker,
			"client_id", e.cfg.InstanceID,
		)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.MQTT.Broker,
		)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.MQTT.Broker)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.publishLoop(runCtx)

	return nil
}

// Enqueue schedules an event for publication. Never blocks; safe to call
// from the tick loop.
func (e *Emitter) Enqueue(ev types.SessionEvent) {
	if e == nil {
		return
	}
	ev.InstanceID = e.cfg.InstanceID
	select {
	case e.queue <- ev:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	}
}

// SubscribeReset registers fn to run on a remote "reset" command.
func (e *Emitter) SubscribeReset(fn func()) error {
	if e == nil {
		return nil
	}

	topic := e.cfg.MQTT.Topics.Control
	qos := e.cfg.MQTT.QoS["control"]

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			slog.Warn("malformed control message", "error", err)
			return
		}
		switch cmd.Command {
		case "reset":
			slog.Info("remote reset command received")
			fn()
		default:
			slog.Warn("unknown control command", "command", cmd.Command)
		}
	}

	token := e.client.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control subscription failed: %w", err)
	}

	slog.Info("control plane subscribed", "topic", topic, "qos", qos)
	return nil
}

// PublishHealth publishes a health payload synchronously.
func (e *Emitter) PublishHealth(payload []byte) error {
	if e == nil {
		return nil
	}
	if !e.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	topic := e.cfg.MQTT.Topics.Health
	qos := e.cfg.MQTT.QoS["health"]

	token := e.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// Disconnect stops the publish loop and closes the connection.
func (e *Emitter) Disconnect() error {
	if e == nil {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()

	return nil
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Dropped   uint64
	Errors    uint64
}

// EmitterStats returns current statistics.
func (e *Emitter) EmitterStats() Stats {
	if e == nil {
		return Stats{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}

func (e *Emitter) publishLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.queue:
			e.publish(ev)
		}
	}
}

func (e *Emitter) publish(ev types.SessionEvent) {
	if !e.isConnected() {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		return
	}

	topic := fmt.Sprintf("%s/%s", e.cfg.MQTT.Topics.Events, ev.Type())
	qos := e.cfg.MQTT.QoS["events"]

	payload, err := ev.ToJSON()
	if err != nil {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		slog.Error("failed to marshal event", "error", err)
		return
	}

	token := e.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		slog.Warn("event publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		slog.Warn("event publish failed", "topic", topic, "error", err)
		return
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("event published", "topic", topic, "size", len(payload))
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}
