package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Assets   AssetsConfig   `toml:"assets"`
	Upload   UploadConfig   `toml:"upload"`
	Export   ExportConfig   `toml:"export"`
	State    StateConfig    `toml:"state"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" (Path is a file path or ":memory:") or "pgx" (Path is a postgres DSN).
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AssetsConfig locates the city boundary dataset and the document font.
//
// BaseURL may be an http(s) URL, a file:// URL or a plain directory.
type AssetsConfig struct {
	BaseURL           string  `toml:"base_url"`
	GeoJSON           string  `toml:"geojson"`
	Font              string  `toml:"font"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Timeout returns the per-request asset timeout.
func (a AssetsConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// UploadConfig selects and configures the media upload provider.
type UploadConfig struct {
	Provider   string           `toml:"provider"`
	Folder     string           `toml:"folder"`
	Cloudinary CloudinaryConfig `toml:"cloudinary"`
	S3         S3Config         `toml:"s3"`
}

// CloudinaryConfig contains the unsigned upload settings for Cloudinary.
type CloudinaryConfig struct {
	CloudName    string `toml:"cloud_name"`
	UploadPreset string `toml:"upload_preset"`
	BaseURL      string `toml:"base_url"`
}

// S3Config contains S3 (or S3-compatible) object storage credentials.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PublicBaseURL   string `toml:"public_base_url"`
}

// ExportConfig contains document export settings.
type ExportConfig struct {
	OutputDir      string `toml:"output_dir"`
	Title          string `toml:"title"`
	Compress       bool   `toml:"compress"`
	SettleDelayMS  int    `toml:"settle_delay_ms"`
	SnapshotWidth  int    `toml:"snapshot_width"`
	SnapshotHeight int    `toml:"snapshot_height"`
}

// SettleDelay returns the wait inserted before rasterizing the map snapshot.
func (e ExportConfig) SettleDelay() time.Duration {
	return time.Duration(e.SettleDelayMS) * time.Millisecond
}

// StateConfig locates the persisted application state (theme, color mode, identity).
type StateConfig struct {
	Path string `toml:"path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports settings that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Upload.Provider {
	case "", "none", "cloudinary", "s3":
	default:
		return fmt.Errorf("%w: unsupported upload provider %q", ErrInvalidConfig, c.Upload.Provider)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
