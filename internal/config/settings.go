package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultServerAddress = "127.0.0.1:8420"

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultMaxRetries     = 10
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Stream  StreamConfig  `toml:"stream"`
}

type ServerConfig struct {
	Address string `toml:"address"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type StreamConfig struct {
	Debug            bool `toml:"debug"`
	InitialBackoffMS int  `toml:"initial_backoff_ms"`
	MaxBackoffMS     int  `toml:"max_backoff_ms"`
	MaxRetries       int  `toml:"max_retries"`
}

func Default() Config {
	return Config{
		Server:  ServerConfig{Address: defaultServerAddress},
		Logging: LoggingConfig{Level: "info"},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func (c Config) ServerAddress() string {
	addr := strings.TrimSpace(c.Server.Address)
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultServerAddress
	}
	return addr
}

func (c Config) ServerBaseURL() string {
	return "http://" + c.ServerAddress()
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) StreamDebugEnabled() bool {
	return c.Stream.Debug
}

// ReconnectPolicy returns the supervised-reconnect tuning, substituting
// defaults for unset or nonsensical values.
func (c Config) ReconnectPolicy() (initial, max time.Duration, retries int) {
	initial = time.Duration(c.Stream.InitialBackoffMS) * time.Millisecond
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	max = time.Duration(c.Stream.MaxBackoffMS) * time.Millisecond
	if max < initial {
		max = defaultMaxBackoff
	}
	retries = c.Stream.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return initial, max, retries
}

func loadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}
