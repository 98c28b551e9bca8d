package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultFile is looked up in the working directory when no --config is given.
	DefaultFile = "adbfleet.toml"
	// PathEnv overrides the adb executable when the config leaves it empty.
	PathEnv = "ADB_PATH"

	DefaultAddr            = ":8080"
	DefaultHistoryDatabase = "./data/adbfleet.db"
	DefaultDatabasePath    = "./data/pulled"
)

// ErrConfigValidation wraps every validation failure, as opposed to I/O or
// TOML syntax errors.
var ErrConfigValidation = errors.New("config validation failed")

// Languages and Timezones are the values offered on first run.
var (
	Languages = []string{"english"}
	Timezones = []string{"Europe/Zurich", "Asia/Seoul"}
)

// locales maps a phone language to the persist.sys.locale value.
var locales = map[string]string{
	"english": "en-US",
}

type Config struct {
	Bridge  Bridge  `toml:"bridge"`
	Device  Device  `toml:"device"`
	Server  Server  `toml:"server"`
	History History `toml:"history"`
}

// Bridge configures how adb is run.
type Bridge struct {
	Path          string `toml:"path,omitempty"`
	WaitForDevice bool   `toml:"wait_for_device"`
	Emulator      bool   `toml:"emulator"`
	OnlineOnly    bool   `toml:"online_only"`
	Workers       int    `toml:"workers"`
	// Timeout bounds each invocation, e.g. "30s". Empty means no bound.
	Timeout string `toml:"timeout,omitempty"`
}

// Device holds the per-installation device settings asked on first run.
type Device struct {
	DatabasePath  string `toml:"database_path"`
	PhoneLanguage string `toml:"phone_language"`
	Timezone      string `toml:"timezone"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type History struct {
	Database string `toml:"database"`
}

// Default returns a config that runs "adb" from PATH with no timeout.
func Default() *Config {
	return &Config{
		Device: Device{
			DatabasePath:  DefaultDatabasePath,
			PhoneLanguage: Languages[0],
			Timezone:      Timezones[0],
		},
		Server:  Server{Addr: DefaultAddr},
		History: History{Database: DefaultHistoryDatabase},
	}
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML data over the defaults, rejects unknown keys, expands
// "~" in paths and validates the result. source is used in error messages.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("%w: %s: unrecognized keys:\n%s", ErrConfigValidation, source, strictErr.String())
		}
		return nil, fmt.Errorf("invalid config %s: %w", source, err)
	}
	if err := cfg.expand(); err != nil {
		return nil, fmt.Errorf("config %s: %w", source, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigValidation, source, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.Bridge.Path, &c.Device.DatabasePath, &c.History.Database} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks value ranges. It does not touch the filesystem.
func (c *Config) Validate() error {
	if c.Bridge.Workers < 0 {
		return fmt.Errorf("bridge.workers must not be negative, got %d", c.Bridge.Workers)
	}
	if _, err := c.Bridge.TimeoutDuration(); err != nil {
		return err
	}
	if c.Device.PhoneLanguage != "" && !contains(Languages, c.Device.PhoneLanguage) {
		return fmt.Errorf("device.phone_language %q is not one of %v", c.Device.PhoneLanguage, Languages)
	}
	if c.Device.Timezone != "" && !contains(Timezones, c.Device.Timezone) {
		return fmt.Errorf("device.timezone %q is not one of %v", c.Device.Timezone, Timezones)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.History.Database == "" {
		return errors.New("history.database must not be empty")
	}
	return nil
}

// ResolvePath returns the adb executable to run: the configured path, else
// $ADB_PATH. Empty means adb.NewADBClient falls back to adb.DefaultPath.
func (b Bridge) ResolvePath() string {
	if b.Path != "" {
		return b.Path
	}
	if env := os.Getenv(PathEnv); env != "" {
		if expanded, err := homedir.Expand(env); err == nil {
			return expanded
		}
		return env
	}
	return ""
}

// TimeoutDuration parses Timeout. Empty yields zero (no bound).
func (b Bridge) TimeoutDuration() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, fmt.Errorf("bridge.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("bridge.timeout must not be negative, got %s", b.Timeout)
	}
	return d, nil
}

// Locale returns the persist.sys.locale value for PhoneLanguage.
func (d Device) Locale() string {
	return locales[d.PhoneLanguage]
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
