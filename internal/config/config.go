package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Storage drivers understood by the daemon.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
	Device  DeviceConfig  `yaml:"device"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"LAUNCHERPREFS_SERVER_HOST"`
	Port int    `yaml:"port" env:"LAUNCHERPREFS_SERVER_PORT"`
	// APIToken is only read from the environment. When empty the daemon
	// generates one and stores it in the data directory.
	APIToken string `yaml:"-" env:"LAUNCHERPREFS_API_TOKEN"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver" env:"LAUNCHERPREFS_STORAGE_DRIVER"`
	DataDir   string `yaml:"data_dir" env:"LAUNCHERPREFS_STORAGE_DATA_DIR"`
	PrefsFile string `yaml:"prefs_file" env:"LAUNCHERPREFS_STORAGE_PREFS_FILE"`
}

type RedisConfig struct {
	URL    string `yaml:"url" env:"LAUNCHERPREFS_REDIS_URL"`
	Prefix string `yaml:"prefix" env:"LAUNCHERPREFS_REDIS_PREFIX"`
}

type HistoryConfig struct {
	// Retention bounds how long change history is kept. Zero keeps
	// everything.
	Retention time.Duration `yaml:"retention" env:"LAUNCHERPREFS_HISTORY_RETENTION"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LAUNCHERPREFS_LOG_LEVEL"`
}

// DeviceConfig describes the device the preferences belong to.
type DeviceConfig struct {
	// Profiles maps user ids to profile types (main, work, private).
	Profiles map[int]string `yaml:"profiles"`
	// Apps lists installed apps and shortcuts in short form
	// (package/activity@user, package#id@user). Empty means every stored
	// reference is treated as installed.
	Apps []string `yaml:"apps" env:"LAUNCHERPREFS_DEVICE_APPS" envSeparator:","`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4000,
		},
		Storage: StorageConfig{
			Driver:  DriverSQLite,
			DataDir: defaultDataDir(),
		},
		Redis: RedisConfig{
			Prefix: "launcherprefs",
		},
		Log: LogConfig{
			Level: "info",
		},
		Device: DeviceConfig{
			Profiles: map[int]string{0: "main"},
		},
	}
}

// Load reads configuration from the YAML file at Path and then applies
// LAUNCHERPREFS_* environment variables on top of it.
func Load() (Config, error) {
	return loadFrom(Path())
}

func loadFrom(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		fromFile := defaults()
		// yaml.v3 merges into a non-nil map; profiles from the file replace
		// the default ones.
		fromFile.Device.Profiles = nil
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
		} else {
			if len(fromFile.Device.Profiles) == 0 {
				fromFile.Device.Profiles = cfg.Device.Profiles
			}
			cfg = fromFile
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	case DriverRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("storage driver %q needs redis.url (or LAUNCHERPREFS_REDIS_URL)", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q; want one of file, sqlite, redis, memory", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("history.retention must not be negative")
	}
	seen := make(map[string]int, len(c.Device.Profiles))
	for id, typ := range c.Device.Profiles {
		switch typ {
		case "main", "work", "private":
		default:
			return fmt.Errorf("device.profiles[%d]: unknown profile type %q", id, typ)
		}
		if other, ok := seen[typ]; ok {
			return fmt.Errorf("device.profiles: users %d and %d are both %q", min(id, other), max(id, other), typ)
		}
		seen[typ] = id
	}
	return nil
}
