package server

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the launch settings for a server instance. The zero value is
// not usable; start from DefaultConfig and overlay a settings file or flag
// values. All settings travel through this struct, the server never reads
// or mutates process environment variables.
type Config struct {
	// Path is the data directory holding the backing file. It is created
	// on first open if missing.
	Path string `yaml:"path"`

	// Host and Port form the listen address.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// LogPath receives server output when set. Empty logs to stderr.
	LogPath string `yaml:"log_path"`

	// MaxFileDescriptors is the RLIMIT_NOFILE hint applied at startup on
	// Unix hosts. Zero keeps the inherited limit.
	MaxFileDescriptors uint64 `yaml:"max_file_descriptors"`
}

// DefaultConfig returns the settings used when no file or flags override
// them.
func DefaultConfig() Config {
	return Config{
		Path:               "./chroma_data",
		Host:               "localhost",
		Port:               8000,
		LogPath:            "chroma.log",
		MaxFileDescriptors: 65535,
	}
}

// LoadConfig reads a YAML settings file and overlays it on DefaultConfig.
// Keys absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is operator supplied
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for values the server cannot start with.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("config: path must not be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}

	return nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
