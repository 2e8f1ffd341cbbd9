package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	GrpcHost string         `yaml:"grpc_host"`
	GrpcPort int            `yaml:"grpc_port"`
	Render   MRenderConfig  `yaml:"render"`
	Chart    MChartConfig   `yaml:"chart"`
	Session  MSessionConfig `yaml:"session"`
	Backend  MBackendConfig `yaml:"backend"`
}

type MRenderConfig struct {
	Mode            string `yaml:"mode"` // "websocket" or "memory"
	ParentContainer string `yaml:"parent_container"`
}

type MChartConfig struct {
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	LineColor       string `yaml:"line_color"`
	ShowPoints      bool   `yaml:"show_points"`
	YScaleDistr     int    `yaml:"y_scale_distr"`
	AxisSize        int    `yaml:"axis_size"`
	ContainerPrefix string `yaml:"container_prefix"`
}

type MSessionConfig struct {
	ConstructionDelayMs int    `yaml:"construction_delay_ms"`
	ReadinessTimeoutMs  int    `yaml:"readiness_timeout_ms"` // 0 waits forever
	ChannelsTimeoutMs   int    `yaml:"channels_timeout_ms"`  // 0 waits forever
	TopicSeparator      string `yaml:"topic_separator"`
	TopicCollision      string `yaml:"topic_collision"` // "share" or "reject"
	DeliveryQueueSize   int    `yaml:"delivery_queue_size"`
}

type MBackendConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Channels        []string      `yaml:"channels"`
	AnnounceDelayMs int           `yaml:"announce_delay_ms"`
	MaxRetries      int           `yaml:"retries"`
	Device          MDeviceConfig `yaml:"device"`
}

type MDeviceConfig struct {
	Samples   int     `yaml:"samples"`
	BlockSize int     `yaml:"block_size"`
	Amplitude float64 `yaml:"amplitude"`
	Period    float64 `yaml:"period"`
}
