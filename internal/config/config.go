// Package config loads the strokerehab daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/strokerehab/internal/biomech"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "STROKEREHAB_CONFIG"

// Config is the complete daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Model     ModelConfig     `yaml:"model"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Capture   CaptureConfig   `yaml:"capture"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig contains database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ExtractorConfig contains per-frame biomechanics settings.
type ExtractorConfig struct {
	Alpha float64 `yaml:"alpha"` // EMA smoothing factor in (0, 1]
}

// ModelConfig selects the scoring model.
type ModelConfig struct {
	Dir      string `yaml:"dir"`
	Active   string `yaml:"active"`
	TimeoutS int    `yaml:"timeout_s"`
}

// Timeout returns the prediction timeout.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutS) * time.Second
}

// MQTTConfig contains result publishing settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"` // results go to <prefix>/attempts/<username>
	QoS         byte   `yaml:"qos"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig contains OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP/HTTP collector host:port
}

// CaptureConfig contains local webcam recording settings.
type CaptureConfig struct {
	Device          int      `yaml:"device"`
	FPS             int      `yaml:"fps"`
	MaxDurationS    int      `yaml:"max_duration_s"`
	IdleTimeoutS    float64  `yaml:"idle_timeout_s"`   // 0 disables stopping on stillness
	MotionThreshold float64  `yaml:"motion_threshold"` // percent of pixels changed
	Estimator       []string `yaml:"estimator"`        // pose estimator command
	MinVisibility   float64  `yaml:"min_visibility"`
}

// MaxDuration returns the recording cap.
func (c CaptureConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationS) * time.Second
}

// IdleTimeout returns how long the patient may stay still before recording stops.
func (c CaptureConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutS * float64(time.Second))
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path: "strokerehab.db",
		},
		Extractor: ExtractorConfig{
			Alpha: biomech.DefaultAlpha,
		},
		Model: ModelConfig{
			Dir:      "models",
			Active:   "baseline",
			TimeoutS: 10,
		},
		MQTT: MQTTConfig{
			Broker:      "localhost:1883",
			ClientID:    "strokerehab",
			TopicPrefix: "strokerehab",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
		},
		Capture: CaptureConfig{
			FPS:             15,
			MaxDurationS:    30,
			IdleTimeoutS:    3,
			MotionThreshold: 1.0,
			Estimator:       []string{"python3", "scripts/pose_service.py"},
			MinVisibility:   0.5,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path falls back to
// $STROKEREHAB_CONFIG, and to the defaults alone when that is unset too.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if err := biomech.ValidateAlpha(c.Extractor.Alpha); err != nil {
		errs = append(errs, fmt.Errorf("extractor.alpha: %w", err))
	}
	if c.Model.TimeoutS <= 0 {
		errs = append(errs, errors.New("model.timeout_s must be positive"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	if c.Capture.FPS <= 0 {
		errs = append(errs, errors.New("capture.fps must be positive"))
	}
	if c.Capture.MaxDurationS <= 0 {
		errs = append(errs, errors.New("capture.max_duration_s must be positive"))
	}
	if c.Capture.IdleTimeoutS < 0 {
		errs = append(errs, errors.New("capture.idle_timeout_s must not be negative"))
	}
	if c.Capture.MotionThreshold <= 0 || c.Capture.MotionThreshold > 100 {
		errs = append(errs, fmt.Errorf("capture.motion_threshold must be in (0, 100], got %v", c.Capture.MotionThreshold))
	}
	if c.Capture.MinVisibility < 0 || c.Capture.MinVisibility > 1 {
		errs = append(errs, fmt.Errorf("capture.min_visibility must be in [0, 1], got %v", c.Capture.MinVisibility))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}
