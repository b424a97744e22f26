// Package emitter publishes scored attempts to an MQTT broker so clinician
// dashboards can follow a patient's progress as it happens.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/config"
	"github.com/ayusman/strokerehab/internal/features"
)

var (
	// ErrNotConnected is returned when publishing before Connect succeeds
	// or while the broker connection is lost.
	ErrNotConnected = errors.New("mqtt not connected")
	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt timeout")
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Message is the payload published for every scored attempt.
type Message struct {
	AttemptID     string             `json:"attempt_id"`
	Username      string             `json:"username"`
	Exercise      string             `json:"exercise"`
	Score         float64            `json:"score"`
	Label         string             `json:"label"`
	Model         string             `json:"model"`
	FrameCount    int                `json:"frame_count"`
	SchemaVersion string             `json:"schema_version"`
	Features      map[string]float64 `json:"features"`
	Timestamp     time.Time          `json:"timestamp"`
}

// NewMessage builds the payload for r.
func NewMessage(r *app.Result, now time.Time) Message {
	return Message{
		AttemptID:     r.AttemptID,
		Username:      r.Username,
		Exercise:      r.Exercise,
		Score:         r.Prediction.Score,
		Label:         r.Prediction.Label,
		Model:         r.Prediction.Model,
		FrameCount:    r.FrameCount,
		SchemaVersion: features.SchemaVersion,
		Features:      r.Vector.Named(),
		Timestamp:     now.UTC(),
	}
}

// MQTTEmitter publishes results to <prefix>/attempts/<username>.
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter. Call Connect before publishing.
func NewMQTTEmitter(cfg config.MQTTConfig) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection. The client reconnects on its
// own after a lost connection.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", e.cfg.Broker, "error", err)
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.Client.Connect()
	if err := wait(ctx, token, connectTimeout); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", e.cfg.Broker, err)
	}

	e.setConnected(true)
	return nil
}

// PublishResult publishes r as JSON.
func (e *MQTTEmitter) PublishResult(ctx context.Context, r *app.Result) error {
	if !e.isConnected() || e.Client == nil {
		e.countError()
		return ErrNotConnected
	}

	topic := Topic(e.cfg.TopicPrefix, r.Username)

	payload, err := json.Marshal(NewMessage(r, time.Now()))
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal result: %w", err)
	}

	token := e.Client.Publish(topic, e.cfg.QoS, false, payload)
	if err := wait(ctx, token, publishTimeout); err != nil {
		e.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("result published", "topic", topic, "qos", e.cfg.QoS, "size", len(payload))
	return nil
}

// Disconnect closes the broker connection.
func (e *MQTTEmitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Stats returns a snapshot of the emitter statistics.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

// Topic returns the topic for a user's results. MQTT wildcard and level
// separator characters in the username are replaced with underscores.
func Topic(prefix, username string) string {
	if username == "" {
		username = "anonymous"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, username)
	return fmt.Sprintf("%s/attempts/%s", prefix, clean)
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// wait blocks until token completes, the timeout passes or ctx is done.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
