package config

import (
	"fmt"
	"os"
	"time"

	"capture-tool/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns the configuration used when a field is left unset.
// The chart and timing values match the capture tool's historical behavior.
func Default() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:     "capture-tool",
		Host:     "127.0.0.1",
		Port:     8765,
		LogLevel: "INFO",
		GrpcPort: 50051,
		Render: models.MRenderConfig{
			Mode:            "websocket",
			ParentContainer: "Plot",
		},
		Chart: models.MChartConfig{
			Width:           600,
			Height:          300,
			LineColor:       "red",
			ShowPoints:      false,
			YScaleDistr:     2,
			AxisSize:        100,
			ContainerPrefix: "capture_",
		},
		Session: models.MSessionConfig{
			ConstructionDelayMs: 100,
			ReadinessTimeoutMs:  10000,
			TopicSeparator:      ".",
			TopicCollision:      "share",
			DeliveryQueueSize:   16,
		},
		Backend: models.MBackendConfig{
			AnnounceDelayMs: 100,
			MaxRetries:      3,
			Device: models.MDeviceConfig{
				Samples:   1024,
				BlockSize: 256,
				Amplitude: 1,
				Period:    128,
			},
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config.MConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Render.Mode != "websocket" && c.Render.Mode != "memory" {
		return fmt.Errorf("invalid render mode: %q (must be websocket or memory)", c.Render.Mode)
	}
	if c.Render.Mode == "websocket" {
		if c.Host == "" {
			return fmt.Errorf("server host cannot be empty")
		}
		if c.Port <= 1024 || c.Port > 65535 {
			return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
		}
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}
	if c.Render.ParentContainer == "" {
		return fmt.Errorf("parent container cannot be empty")
	}

	// Chart
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart dimensions must be positive, got %dx%d", c.Chart.Width, c.Chart.Height)
	}

	// Session timing
	if c.Session.ConstructionDelayMs < 0 {
		return fmt.Errorf("construction delay cannot be negative")
	}
	if c.Session.ReadinessTimeoutMs < 0 {
		return fmt.Errorf("readiness timeout cannot be negative")
	}
	if c.Session.ChannelsTimeoutMs < 0 {
		return fmt.Errorf("channels timeout cannot be negative")
	}
	if c.Session.TopicSeparator == "" {
		return fmt.Errorf("topic separator cannot be empty")
	}
	if c.Session.TopicCollision != "share" && c.Session.TopicCollision != "reject" {
		return fmt.Errorf("invalid topic collision policy: %q (must be share or reject)", c.Session.TopicCollision)
	}
	if c.Session.DeliveryQueueSize <= 0 {
		return fmt.Errorf("delivery queue size must be greater than 0")
	}

	// Backend
	if c.Backend.Enabled {
		if len(c.Backend.Channels) == 0 {
			return fmt.Errorf("backend enabled but no channels configured")
		}
		for i, ch := range c.Backend.Channels {
			if ch == "" {
				return fmt.Errorf("channel %d cannot be empty", i)
			}
		}
		if c.Backend.MaxRetries < 0 {
			return fmt.Errorf("max retries cannot be negative")
		}
		if c.Backend.Device.BlockSize <= 0 {
			return fmt.Errorf("device block size must be greater than 0")
		}
		if c.Backend.Device.Samples < 0 {
			return fmt.Errorf("device samples cannot be negative")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// ConstructionDelay returns the chart construction delay as a duration.
func (c *Config) ConstructionDelay() time.Duration {
	return time.Duration(c.Session.ConstructionDelayMs) * time.Millisecond
}

// ReadinessTimeout returns the bounded readiness wait; zero means unbounded.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.Session.ReadinessTimeoutMs) * time.Millisecond
}

// ChannelsTimeout returns how long the registry waits for the channel list.
func (c *Config) ChannelsTimeout() time.Duration {
	return time.Duration(c.Session.ChannelsTimeoutMs) * time.Millisecond
}

// AnnounceDelay returns the backend's delay before answering the channel request.
func (c *Config) AnnounceDelay() time.Duration {
	return time.Duration(c.Backend.AnnounceDelayMs) * time.Millisecond
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
