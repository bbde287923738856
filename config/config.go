package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the complete kiosk configuration.
type Config struct {
	Kiosk     KioskConfig     `mapstructure:"kiosk" yaml:"kiosk"`
	Camera    CameraConfig    `mapstructure:"camera" yaml:"camera"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	DB        DBConfig        `mapstructure:"db" yaml:"db"`
	MQTT      MQTTConfig      `mapstructure:"mqtt" yaml:"mqtt"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots" yaml:"snapshots"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup" yaml:"cleanup"`
}

// KioskConfig holds the session timings and identity.
// Timings are milliseconds.
type KioskConfig struct {
	ID                string `mapstructure:"id" yaml:"id"`
	Group             string `mapstructure:"group" yaml:"group"` // face roster, empty uses the backend default
	Language          string `mapstructure:"language" yaml:"language"`
	Timezone          string `mapstructure:"timezone" yaml:"timezone"`
	DataDir           string `mapstructure:"data_dir" yaml:"data_dir"`
	CaptureIntervalMs int    `mapstructure:"capture_interval_ms" yaml:"capture_interval_ms"`
	SettleDelayMs     int    `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`
	ResultDisplayMs   int    `mapstructure:"result_display_ms" yaml:"result_display_ms"`
	UnknownTimeoutMs  int    `mapstructure:"unknown_timeout_ms" yaml:"unknown_timeout_ms"` // 0 waits for Continue
}

// CaptureInterval is the pause between two snapshots.
func (k KioskConfig) CaptureInterval() time.Duration { return ms(k.CaptureIntervalMs) }

// SettleDelay is the pause between a mode change and the first snapshot.
func (k KioskConfig) SettleDelay() time.Duration { return ms(k.SettleDelayMs) }

// ResultDisplay is how long a recognised name stays on screen.
func (k KioskConfig) ResultDisplay() time.Duration { return ms(k.ResultDisplayMs) }

// UnknownTimeout dismisses the "not recognised" prompt; zero disables it.
func (k KioskConfig) UnknownTimeout() time.Duration { return ms(k.UnknownTimeoutMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// CameraConfig configures the capture device.
type CameraConfig struct {
	Source      string `mapstructure:"source" yaml:"source"` // "webcam" or "still"
	Device      int    `mapstructure:"device" yaml:"device"`
	Width       int    `mapstructure:"width" yaml:"width"`
	Height      int    `mapstructure:"height" yaml:"height"`
	ImageFormat string `mapstructure:"image_format" yaml:"image_format"` // "jpeg" or "png"
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	Mirror      bool   `mapstructure:"mirror" yaml:"mirror"`
	StillPath   string `mapstructure:"still_path" yaml:"still_path"` // file or directory for the still source
}

// TransportConfig selects the recognition backend endpoint.
type TransportConfig struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"` // overrides selection when set
	Secure          bool   `mapstructure:"secure" yaml:"secure"`
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Path            string `mapstructure:"path" yaml:"path"`
	SecureEndpoint  string `mapstructure:"secure_endpoint" yaml:"secure_endpoint"`
	DialTimeoutMs   int    `mapstructure:"dial_timeout_ms" yaml:"dial_timeout_ms"`
	WriteTimeoutMs  int    `mapstructure:"write_timeout_ms" yaml:"write_timeout_ms"`
	MaxMessageBytes int64  `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	InsecureSkipTLS bool   `mapstructure:"insecure_skip_tls" yaml:"insecure_skip_tls"`
}

// ServerConfig holds the local kiosk web UI settings.
type ServerConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	SessionKey  string   `mapstructure:"session_key" yaml:"session_key"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DBConfig holds the attendance journal location.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	File    string `mapstructure:"file" yaml:"file"`
}

// MQTTConfig configures event publishing.
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled" yaml:"enabled"`
	Broker        string              `mapstructure:"broker" yaml:"broker"`
	Port          int                 `mapstructure:"port" yaml:"port"`
	Username      string              `mapstructure:"username" yaml:"username"`
	Password      string              `mapstructure:"password" yaml:"password"`
	ClientID      string              `mapstructure:"client_id" yaml:"client_id"`
	BaseTopic     string              `mapstructure:"base_topic" yaml:"base_topic"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant" yaml:"homeassistant"`
}

// HomeAssistantConfig enables MQTT discovery of the kiosk sensors.
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix" yaml:"discovery_prefix"`
}

// SnapshotsConfig controls archiving of frames that produced a face result.
type SnapshotsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	MaxFrames   int    `mapstructure:"max_frames" yaml:"max_frames"`
	KeepUnknown bool   `mapstructure:"keep_unknown" yaml:"keep_unknown"`
}

// CleanupConfig holds retention settings for journal rows and snapshots.
type CleanupConfig struct {
	RetentionDays   int `mapstructure:"retention_days" yaml:"retention_days"`
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"`
}

// Load reads configuration from defaults, an optional file and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	v.SetEnvPrefix("KIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Kiosk.ID == "" {
		cfg.Kiosk.ID = "kiosk-" + uuid.NewString()[:8]
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading a file or the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static; Unmarshal cannot fail on them.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kiosk.group", "")
	v.SetDefault("kiosk.language", "en")
	v.SetDefault("kiosk.timezone", "UTC")
	v.SetDefault("kiosk.data_dir", "/data")
	v.SetDefault("kiosk.capture_interval_ms", 750)
	v.SetDefault("kiosk.settle_delay_ms", 2000)
	v.SetDefault("kiosk.result_display_ms", 5000)
	v.SetDefault("kiosk.unknown_timeout_ms", 0)

	v.SetDefault("camera.source", "webcam")
	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 600)
	v.SetDefault("camera.image_format", "jpeg")
	v.SetDefault("camera.jpeg_quality", 100)
	v.SetDefault("camera.mirror", false)

	v.SetDefault("transport.secure", false)
	v.SetDefault("transport.host", "localhost")
	v.SetDefault("transport.port", 8000)
	v.SetDefault("transport.path", "/ws/camera")
	v.SetDefault("transport.secure_endpoint", "wss://test.msuaiclub.com:443/ws/camera")
	v.SetDefault("transport.dial_timeout_ms", 10000)
	v.SetDefault("transport.write_timeout_ms", 5000)
	v.SetDefault("transport.max_message_bytes", 1<<20)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.session_key", "kiosk-session")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("db.enabled", true)
	v.SetDefault("db.file", "/data/attendance.db")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "attendance-kiosk")
	v.SetDefault("mqtt.base_topic", "attendance-kiosk")
	v.SetDefault("mqtt.homeassistant.enabled", false)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	v.SetDefault("snapshots.enabled", false)
	v.SetDefault("snapshots.dir", "/data/snapshots")
	v.SetDefault("snapshots.max_frames", 16)
	v.SetDefault("snapshots.keep_unknown", true)

	v.SetDefault("cleanup.retention_days", 30)
	v.SetDefault("cleanup.interval_minutes", 24*60)
}

// Validate rejects configurations the kiosk cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Kiosk.CaptureIntervalMs <= 0 {
		errs = append(errs, errors.New("kiosk.capture_interval_ms must be positive"))
	}
	if c.Kiosk.SettleDelayMs < 0 {
		errs = append(errs, errors.New("kiosk.settle_delay_ms must not be negative"))
	}
	if c.Kiosk.ResultDisplayMs < 0 {
		errs = append(errs, errors.New("kiosk.result_display_ms must not be negative"))
	}
	if c.Kiosk.UnknownTimeoutMs < 0 {
		errs = append(errs, errors.New("kiosk.unknown_timeout_ms must not be negative"))
	}
	// Die Metadaten enden am ersten '}'
	if strings.Contains(c.Kiosk.Group, "}") {
		errs = append(errs, errors.New("kiosk.group must not contain '}'"))
	}
	switch c.Camera.Source {
	case "webcam":
	case "still":
		if c.Camera.StillPath == "" {
			errs = append(errs, errors.New("camera.still_path is required for the still source"))
		}
	default:
		errs = append(errs, fmt.Errorf("camera.source %q is not supported", c.Camera.Source))
	}
	switch c.Camera.ImageFormat {
	case "jpeg", "png":
	default:
		errs = append(errs, fmt.Errorf("camera.image_format %q is not supported", c.Camera.ImageFormat))
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		errs = append(errs, errors.New("camera.jpeg_quality must be within 1..100"))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, errors.New("camera.width and camera.height must be positive"))
	}
	if c.Snapshots.Enabled && c.Snapshots.MaxFrames <= 0 {
		errs = append(errs, errors.New("snapshots.max_frames must be positive"))
	}
	return errors.Join(errs...)
}

func ensureDirectories(cfg *Config) error {
	if cfg.Kiosk.DataDir != "" {
		if err := os.MkdirAll(cfg.Kiosk.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if cfg.Snapshots.Enabled {
		if err := os.MkdirAll(cfg.Snapshots.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if cfg.DB.Enabled && cfg.DB.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.File), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "********"
	}
	if c.Server.SessionKey != "" {
		c.Server.SessionKey = "********"
	}
	return c
}
