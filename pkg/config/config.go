package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pairlink/pkg/validation"

	"gopkg.in/yaml.v2"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		LocalhostOnly   bool          `yaml:"localhost_only"`
		StaticDir       string        `yaml:"static_dir"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		Path                string        `yaml:"path"`
		PingInterval        time.Duration `yaml:"ping_interval"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		SendQueueSize       int           `yaml:"send_queue_size"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
		RTCConfigFile       string        `yaml:"rtc_config_file"`
		IPv6Localize        int           `yaml:"ipv6_localize"`
		DebugMode           bool          `yaml:"debug_mode"`
		AllowedOrigins      []string      `yaml:"allowed_origins"`
	} `yaml:"signal"`

	WebRTC struct {
		SDPSemantics string      `yaml:"sdp_semantics"`
		ICEServers   []ICEServer `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Pairing struct {
		MaxAttempts      int           `yaml:"max_attempts"`
		AttemptWindow    time.Duration `yaml:"attempt_window"`
		RoomSecretLength int           `yaml:"room_secret_length"`
	} `yaml:"pairing"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be >= 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Signal
	if c.Signal.Path == "" || c.Signal.Path[0] != '/' {
		return fmt.Errorf("signal.path must start with '/'")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}
	if c.Signal.SendQueueSize <= 0 {
		return fmt.Errorf("signal.send_queue_size must be > 0")
	}
	if c.Signal.MaxMessageSizeBytes <= 0 {
		return fmt.Errorf("signal.max_message_size_bytes must be > 0")
	}
	if err := validation.ValidateIPv6Localize(c.Signal.IPv6Localize); err != nil {
		return fmt.Errorf("signal.ipv6_localize: %w", err)
	}

	// WebRTC
	switch c.WebRTC.SDPSemantics {
	case "", "unified-plan", "plan-b", "unified-plan-with-fallback":
	default:
		return fmt.Errorf("webrtc.sdp_semantics %q is not supported", c.WebRTC.SDPSemantics)
	}
	for i, s := range c.WebRTC.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("webrtc.ice_servers[%d].urls must not be empty", i)
		}
		for _, u := range s.URLs {
			if err := validation.ValidateICEServerURL(u); err != nil {
				return fmt.Errorf("webrtc.ice_servers[%d]: %w", i, err)
			}
		}
	}

	// Pairing
	if c.Pairing.MaxAttempts <= 0 {
		return fmt.Errorf("pairing.max_attempts must be > 0")
	}
	if c.Pairing.AttemptWindow <= 0 {
		return fmt.Errorf("pairing.attempt_window must be > 0")
	}
	if c.Pairing.RoomSecretLength < validation.MinRoomSecretLength ||
		c.Pairing.RoomSecretLength > validation.MaxRoomSecretLength {
		return fmt.Errorf("pairing.room_secret_length must be between %d and %d",
			validation.MinRoomSecretLength, validation.MaxRoomSecretLength)
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.MetricsPath == "" {
		return fmt.Errorf("monitoring.metrics_path must not be empty when prometheus_enabled=true")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":3000"
	cfg.Server.StaticDir = "public"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 0 // websocket connections are long-lived
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Signal.Path = "/server"
	cfg.Signal.PingInterval = 500 * time.Millisecond
	cfg.Signal.WriteTimeout = 5 * time.Second
	cfg.Signal.SendQueueSize = 64
	cfg.Signal.MaxMessageSizeBytes = 64 * 1024
	cfg.Signal.AllowedOrigins = []string{"*"}

	cfg.WebRTC.SDPSemantics = "unified-plan"

	cfg.Pairing.MaxAttempts = 10
	cfg.Pairing.AttemptWindow = 10 * time.Second
	cfg.Pairing.RoomSecretLength = 256

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "pairlink"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// 1000 requests per 5 minutes per client, disabled by default
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1000.0 / 300.0
	cfg.RateLimiting.HTTP.Burst = 1000
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if addr := os.Getenv("PAIRLINK_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if path := os.Getenv("RTC_CONFIG"); path != "" {
		c.Signal.RTCConfigFile = path
	}
	if v := os.Getenv("IPV6_LOCALIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			n = -1 // rejected by Validate
		}
		c.Signal.IPv6Localize = n
	}
	if os.Getenv("DEBUG_MODE") == "true" {
		c.Signal.DebugMode = true
	}
	if level := os.Getenv("PAIRLINK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
